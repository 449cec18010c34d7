package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const (
	summaryTemperature  float32 = 0.5
	insightsTemperature float32 = 0.3
	maxRetryElapsed             = 30 * time.Second
)

// generator is the part of the genai models service the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Source is a web page the insights were grounded on.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Insights is the market analysis for one organization.
type Insights struct {
	Analysis string   `json:"analysis"`
	Sources  []Source `json:"sources"`
}

// Client sends prompts to Gemini.
type Client struct {
	models generator
	model  string
	logger *zap.Logger
	// newBackOff returns a fresh retry policy per request.
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient connects to the Gemini API with apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newClient(client.Models, opts...), nil
}

func newClient(models generator, opts ...Option) *Client {
	c := &Client{
		models: models,
		model:  DefaultModel,
		logger: zap.NewNop(),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = maxRetryElapsed
			return bo
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConnectSummary asks for a summary of the connect described by in. The
// returned text is always displayable: on failure it is the error message,
// and the error is returned alongside it.
func (c *Client) ConnectSummary(ctx context.Context, in SummaryInput) (string, error) {
	resp, err := c.generate(ctx, ConnectSummaryPrompt(in), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(summaryTemperature),
	})
	if err != nil {
		return "An error occurred while generating the summary: " + err.Error(), err
	}
	return resp.Text(), nil
}

// IndustryInsights asks for a Google Search grounded analysis of the named
// organization. Failures are reported the same way as ConnectSummary.
func (c *Client) IndustryInsights(ctx context.Context, name string) (Insights, error) {
	resp, err := c.generate(ctx, IndustryInsightsPrompt(name), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(insightsTemperature),
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return Insights{Analysis: "An error occurred while generating the insights: " + err.Error(), Sources: []Source{}}, err
	}
	return Insights{Analysis: resp.Text(), Sources: groundingSources(resp)}, nil
}

func groundingSources(resp *genai.GenerateContentResponse) []Source {
	out := []Source{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return out
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		out = append(out, Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}

func (c *Client) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		r, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
		if err == nil {
			resp = r
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("gemini request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		c.logger.Error("gemini request failed", zap.String("model", c.model), zap.Int("attempts", attempt), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// retryable reports whether err looks like rate limiting or a transient
// server fault.
func retryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "500", "502", "503", "504", "resource_exhausted", "unavailable", "deadline exceeded", "connection reset", "i/o timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
