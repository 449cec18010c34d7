package main

import (
	"connectcore/internal/ai"
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func (a *app) aiClient(ctx context.Context) (*ai.Client, error) {
	if a.cfg.Gemini.APIKey == "" {
		return nil, errors.New("the AI service is not configured: set GEMINI_API_KEY")
	}
	return ai.NewClient(ctx, a.cfg.Gemini.APIKey,
		ai.WithModel(a.cfg.Gemini.Model),
		ai.WithLogger(a.logger.Named("ai")),
	)
}

func newSummarizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <connect-id>",
		Short: "Generate an AI summary and next steps for a connect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				in, err := ai.SummaryInputFor(s.ws.Index(), args[0])
				if err != nil {
					return err
				}
				client, err := a.aiClient(ctx)
				if err != nil {
					return err
				}
				text, err := client.ConnectSummary(ctx, in)
				if a.jsonOutput {
					if perr := a.printJSON(map[string]string{"summary": text}); perr != nil {
						return perr
					}
					return err
				}
				a.printf("%s\n", text)
				return err
			})
		},
	}
}

func newInsightsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insights <organization-id>",
		Short: "Generate web-grounded market insights for an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				org, ok := s.ws.Index().Organizations[args[0]]
				if !ok {
					return ai.ErrOrganizationNotFound
				}
				client, err := a.aiClient(ctx)
				if err != nil {
					return err
				}
				insights, err := client.IndustryInsights(ctx, org.Name)
				if a.jsonOutput {
					if perr := a.printJSON(insights); perr != nil {
						return perr
					}
					return err
				}
				a.printf("%s\n", insights.Analysis)
				if len(insights.Sources) > 0 {
					a.printf("\nSources:\n")
					for _, src := range insights.Sources {
						a.printf("- %s (%s)\n", src.Title, src.URI)
					}
				}
				return err
			})
		},
	}
}
