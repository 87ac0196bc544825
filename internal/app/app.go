// Package app initializes and holds long-lived services, acting as the
// dependency injection container for the CLI and the HTTP service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/config"
	"github.com/JakeFAU/xmlstream/internal/logging"
	"github.com/JakeFAU/xmlstream/internal/metrics"
	"github.com/JakeFAU/xmlstream/internal/progress"
	"github.com/JakeFAU/xmlstream/internal/progress/sinks"
	"github.com/JakeFAU/xmlstream/internal/storage"
	"github.com/JakeFAU/xmlstream/internal/store"
	"github.com/JakeFAU/xmlstream/internal/store/postgres"
	"github.com/JakeFAU/xmlstream/internal/store/sqlite"
	"github.com/JakeFAU/xmlstream/internal/telemetry"
	"github.com/JakeFAU/xmlstream/internal/transform"
	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// App holds the shared, long-lived services: logger, metrics registry,
// storage resolver, progress hub, session history and tracer provider. It is
// built once at startup and closed when the command finishes.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTP
	resolver    *storage.Resolver
	hub         *progress.Hub
	sessions    store.SessionRepository
	tracer      *sdktrace.TracerProvider

	closeOnce sync.Once
	closeErr  error
}

// Option customizes New, mostly for tests.
type Option func(*options)

type options struct {
	logger       *zap.Logger
	resolverOpts []storage.ResolverOption
	sessions     store.SessionRepository
	spanExporter sdktrace.SpanExporter
}

// WithLogger replaces the logger built from config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithResolverOptions passes options to the storage resolver.
func WithResolverOptions(opts ...storage.ResolverOption) Option {
	return func(o *options) {
		o.resolverOpts = append(o.resolverOpts, opts...)
	}
}

// WithSessionRepository uses repo instead of opening db.driver. The App
// closes it on Close.
func WithSessionRepository(repo store.SessionRepository) Option {
	return func(o *options) {
		o.sessions = repo
	}
}

// WithSpanExporter replaces the log exporter used when tracing is enabled.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.spanExporter = exp
	}
}

// New builds the App from cfg. It fails fast if any configured service
// cannot be initialized, releasing whatever was already opened.
func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: o.logger}
	if a.logger == nil {
		if a.logger, err = logging.New(cfg.Logging.Development); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if a.httpMetrics, err = metrics.NewHTTP(a.registry); err != nil {
		return nil, err
	}

	a.resolver = storage.NewResolver(o.resolverOpts...)

	a.sessions = o.sessions
	if a.sessions == nil {
		if a.sessions, err = openSessionRepository(ctx, cfg.DB); err != nil {
			return nil, err
		}
	}

	if cfg.Progress.Enabled {
		if err = a.startHub(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.Tracing.Enabled {
		exporter := o.spanExporter
		if exporter == nil {
			exporter = telemetry.NewLogExporter(a.logger)
		}
		if a.tracer, err = telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName, exporter); err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	a.logger.Debug("application services initialized",
		zap.Bool("progress", cfg.Progress.Enabled),
		zap.Bool("tracing", cfg.Tracing.Enabled),
		zap.String("db_driver", cfg.DB.Driver),
		zap.Bool("reports", cfg.Storage.ReportsURI != ""),
	)
	return a, nil
}

func openSessionRepository(ctx context.Context, cfg config.DBConfig) (store.SessionRepository, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case config.DriverPostgres:
		repo, err := postgres.New(ctx, postgres.Config{DSN: cfg.DSN})
		if err != nil {
			return nil, fmt.Errorf("init postgres session store: %w", err)
		}
		return repo, nil
	case config.DriverSQLite:
		repo, err := sqlite.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("init sqlite session store: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

func (a *App) startHub(ctx context.Context) error {
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return err
	}
	hubSinks := []progress.Sink{promSink}
	if a.cfg.Progress.LogEvents {
		hubSinks = append(hubSinks, sinks.NewLogSink(a.logger))
	}
	if uri := a.cfg.Storage.ReportsURI; uri != "" {
		writer, prefix, err := a.resolver.Resolve(ctx, uri)
		if err != nil {
			return fmt.Errorf("resolve reports uri: %w", err)
		}
		reportSink, err := sinks.NewReportSink(writer, prefix, a.cfg.Storage.ReportFormat, a.logger)
		if err != nil {
			return err
		}
		hubSinks = append(hubSinks, reportSink)
	}
	if a.sessions != nil {
		sessionSink, err := sinks.NewSessionSink(a.sessions)
		if err != nil {
			return err
		}
		hubSinks = append(hubSinks, sessionSink)
	}
	hubCfg := a.cfg.HubConfig()
	hubCfg.Logger = a.logger
	hubCfg.BaseContext = context.WithoutCancel(ctx)
	a.hub = progress.NewHub(hubCfg, hubSinks...)
	return nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Registry returns the Prometheus registry holding every collector.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// HTTPMetrics returns the request collectors for the HTTP service.
func (a *App) HTTPMetrics() *metrics.HTTP {
	return a.httpMetrics
}

// Resolver returns the storage resolver.
func (a *App) Resolver() *storage.Resolver {
	return a.resolver
}

// Sessions returns the session history repository, or nil when db.driver is
// unset.
func (a *App) Sessions() store.SessionRepository {
	return a.sessions
}

// Hub returns the progress hub, or nil when progress is disabled.
func (a *App) Hub() *progress.Hub {
	return a.hub
}

// ParseReader parses r with the configured defaults, reporting progress and
// spans under source. Caller options are applied last; passing WithObserver
// or WithLogger replaces the App's own.
func (a *App) ParseReader(
	ctx context.Context,
	source string,
	r io.Reader,
	h saxstream.Handlers,
	opts ...saxstream.Option,
) error {
	ctx, all, span := a.sessionOptions(ctx, source, opts)
	err := saxstream.Parse(ctx, r, h, all...)
	span.End(err)
	return err
}

// ParseURI opens uri through the storage resolver and parses it like
// ParseReader.
func (a *App) ParseURI(ctx context.Context, uri string, h saxstream.Handlers, opts ...saxstream.Option) error {
	provider, key, err := a.resolver.Resolve(ctx, uri)
	if err != nil {
		return err
	}
	ctx, all, span := a.sessionOptions(ctx, uri, opts)
	err = saxstream.ParseSource(ctx, provider, key, h, all...)
	span.End(err)
	return err
}

// CopyURI parses src and stores the re-serialized document at dst. The
// object is written only if the parse succeeds on backends with atomic
// uploads.
func (a *App) CopyURI(ctx context.Context, src, dst string, copyOpts ...transform.Option) (string, int64, error) {
	provider, key, err := a.resolver.Resolve(ctx, dst)
	if err != nil {
		return "", 0, err
	}

	pr, pw := io.Pipe()
	type putResult struct {
		location string
		err      error
	}
	done := make(chan putResult, 1)
	go func() {
		location, perr := provider.PutObject(ctx, key, a.cfg.Storage.ContentType, pr)
		_ = pr.CloseWithError(perr)
		done <- putResult{location: location, err: perr}
	}()

	c := transform.NewCopier(pw, copyOpts...)
	parseErr := a.ParseURI(ctx, src, c.Handlers())
	if parseErr != nil {
		_ = pw.CloseWithError(parseErr)
	} else {
		_ = pw.Close()
	}
	res := <-done
	if parseErr != nil {
		return "", c.Written(), parseErr
	}
	if res.err != nil {
		return "", c.Written(), fmt.Errorf("store copy: %w", res.err)
	}
	return res.location, c.Written(), nil
}

type spanEnder interface {
	End(err error)
}

type noSpan struct{}

func (noSpan) End(error) {}

func (a *App) sessionOptions(ctx context.Context, source string, opts []saxstream.Option) (context.Context, []saxstream.Option, spanEnder) {
	observers := make([]saxstream.Observer, 0, 2)
	if a.hub != nil {
		observers = append(observers, progress.NewObserver(a.hub, nil, source))
	}
	var span spanEnder = noSpan{}
	if a.tracer != nil {
		var spanObs *telemetry.SessionObserver
		ctx, spanObs = telemetry.StartSession(ctx, source)
		observers = append(observers, spanObs)
		span = spanObs
	}
	all := append(a.cfg.ParseOptions(),
		saxstream.WithLogger(logging.ForSession(a.logger, "", source)),
		saxstream.WithObserver(saxstream.Observers(observers...)),
	)
	return ctx, append(all, opts...), span
}

// Close drains the progress hub, writes the metrics textfile if configured
// and releases every service. Later calls return the first result.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close(ctx)
	})
	return a.closeErr
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if dropped := a.hub.Dropped(); dropped > 0 {
			a.logger.Warn("progress events dropped", zap.Int64("count", dropped))
		}
	}
	if path := a.cfg.Metrics.Textfile; path != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
	}
	if a.resolver != nil {
		if err := a.resolver.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logger != nil {
		// Sync fails on stderr for some terminals; nothing useful to do then.
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
