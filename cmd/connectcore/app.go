package main

import (
	"connectcore/internal/config"
	"connectcore/internal/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// app carries the state shared by every command of one invocation.
type app struct {
	cfgFile    string
	verbose    bool
	jsonOutput bool
	metricsOut string
	traceOut   string
	overrides  map[string]any
	flagKeys   []flagKey

	out    io.Writer
	logger *zap.Logger
	cfg    config.Config

	registry  *prometheus.Registry
	tracing   *sdktrace.TracerProvider
	traceFile *os.File
}

// session is an open store with the service and live workspace over it.
type session struct {
	store  core.PersistentStore
	closer io.Closer
	svc    *core.Service
	ws     *core.Workspace
	actor  string
}

func (s *session) Close() error {
	s.ws.Close()
	return s.closer.Close()
}

func newApp(out io.Writer) *app {
	return &app{out: out, overrides: map[string]any{}}
}

// setup resolves configuration and the logger. Flags registered in flagKeys
// win over every other source.
func (a *app) setup(cmd *cobra.Command) error {
	a.collectOverrides(cmd)
	cfg, err := config.Load(config.Options{File: a.cfgFile, Overrides: a.overrides})
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.logger == nil {
		if a.verbose {
			a.logger, err = zap.NewDevelopment()
		} else {
			zc := zap.NewProductionConfig()
			zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
			a.logger, err = zc.Build()
		}
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
	}
	a.registry = prometheus.NewRegistry()
	if a.tracing, err = a.tracerProvider(); err != nil {
		return err
	}
	a.logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("storage", string(cfg.Storage.Driver)),
		zap.String("blob", string(cfg.Blob.Driver)),
		zap.String("config_file", cfg.ConfigSource),
	)
	return nil
}

// tracerProvider exports spans as JSON to --trace-out. Without it spans
// are sampled but not exported.
func (a *app) tracerProvider() (*sdktrace.TracerProvider, error) {
	if a.traceOut == "" {
		return sdktrace.NewTracerProvider(), nil
	}
	f, err := os.Create(a.traceOut)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	a.traceFile = f
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
}

// teardown flushes telemetry and the logger.
func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.tracing != nil {
		errs = append(errs, a.tracing.Shutdown(ctx))
	}
	if a.traceFile != nil {
		errs = append(errs, a.traceFile.Close())
	}
	if a.metricsOut != "" && a.registry != nil {
		errs = append(errs, a.writeMetrics())
	}
	if a.logger != nil {
		// Sync on stderr fails on some platforms; ignore it.
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) writeMetrics() error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(a.metricsOut)
	if err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	defer f.Close()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// open connects to the configured store and loads the workspace. When a
// user email is configured and matches a stakeholder, mutations are
// attributed to it.
func (a *app) open(ctx context.Context) (*session, error) {
	engine := core.NewDefaultRulesEngine()
	store, closer, err := core.OpenPersistentStore(ctx, a.cfg.Storage, engine)
	if err != nil {
		return nil, err
	}
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	opts := []core.ServiceOption{
		core.WithLogger(core.NewZapLogger(a.logger.Named("core"))),
		core.WithAuditRecorder(core.NewLogAuditRecorder(a.logger)),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewOTelTracer(a.tracing)),
	}
	ws, err := core.OpenWorkspace(ctx, store, opts...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	s := &session{store: store, closer: closer, svc: core.NewService(store, opts...), ws: ws}
	if a.cfg.UserEmail != "" {
		if st, ok := ws.CurrentStakeholder(a.cfg.UserEmail); ok {
			s.actor = st.ID
		} else {
			a.logger.Warn("configured user has no stakeholder record", zap.String("email", a.cfg.UserEmail))
		}
	}
	return s, nil
}

// withSession runs fn against an open session and closes it afterwards.
func (a *app) withSession(ctx context.Context, fn func(ctx context.Context, s *session) error) (err error) {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if s.actor != "" {
		ctx = core.WithActor(ctx, s.actor)
	}
	return fn(ctx, s)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

type flagKey struct {
	flag string
	key  string
}

// collectOverrides copies every explicitly set persistent flag onto its
// configuration key.
func (a *app) collectOverrides(cmd *cobra.Command) {
	for _, fk := range a.flagKeys {
		f := cmd.Flags().Lookup(fk.flag)
		if f == nil || !f.Changed {
			continue
		}
		a.overrides[fk.key] = f.Value.String()
	}
}
