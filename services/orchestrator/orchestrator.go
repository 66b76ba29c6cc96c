// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator wires the debate service into a runnable HTTP server.
//
// This package owns the process lifecycle: it opens the conversation store,
// registers the configured model providers, sets up tracing and metrics,
// builds the Gin router and serves until its context is cancelled.
//
// # Usage
//
//	cfg, err := orchestrator.LoadConfig("debate.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := orchestrator.New(cfg, slog.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDebate/services/debate"
	"github.com/AleutianAI/AleutianDebate/services/llm"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/events"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator/ttl"
	"github.com/AleutianAI/AleutianDebate/services/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run blocks and should
// only be called once per instance.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the listener fails, then
	// shuts down gracefully and releases every resource.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server failed. Cancellation is not an error.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine, mainly for tests.
	Router() *gin.Engine

	// Close releases the store, the retention scheduler and the tracer.
	// Run calls it on exit; callers that never Run must call it.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// ProviderConfig configures one model provider. A provider with no API key
// (or, for ollama, no base URL) is not registered.
type ProviderConfig struct {
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Model     string        `yaml:"model" mapstructure:"model"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int           `yaml:"burst" mapstructure:"burst"`
}

// ProvidersConfig lists every supported upstream.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai" mapstructure:"openai"`
	DeepSeek  ProviderConfig `yaml:"deepseek" mapstructure:"deepseek"`
	Gemini    ProviderConfig `yaml:"gemini" mapstructure:"gemini"`
	Anthropic ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama    ProviderConfig `yaml:"ollama" mapstructure:"ollama"`
}

// OTelConfig selects the trace exporter. Endpoint wins over Stdout; with
// neither set tracing stays a global no-op. Stdout also prints the upstream
// call metrics, which are always served on /metrics.
type OTelConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	Stdout      bool   `yaml:"stdout" mapstructure:"stdout"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// AuthConfig lists accepted API keys. Empty disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys" mapstructure:"api_keys"`
}

// Config holds orchestrator configuration options.
//
// # Description
//
// Populated by LoadConfig from defaults, an optional YAML file and DEBATE_*
// environment variables, or built programmatically in tests. Zero values
// are filled by applyConfigDefaults.
//
// # Examples
//
//	cfg := Config{
//	    Port:            8080,
//	    DefaultProvider: "openai",
//	    Providers:       ProvidersConfig{OpenAI: ProviderConfig{APIKey: key}},
//	    Storage:         storage.Config{Backend: "sqlite", Path: "debate.db"},
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int `yaml:"port" mapstructure:"port"`

	// GinMode is "debug", "release" or "test". Default: "release"
	GinMode string `yaml:"gin_mode" mapstructure:"gin_mode"`

	// DefaultProvider serves conversations created without a provider hint.
	// It must be registered. Default: "dummy"
	DefaultProvider string `yaml:"default_provider" mapstructure:"default_provider"`

	// ErrorLocale is the default language of error details, "es" or "en".
	// Default: "es"
	ErrorLocale string `yaml:"error_locale" mapstructure:"error_locale"`

	// RequestTimeout bounds one turn, retries included. Default: 90s
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`

	// PurgeInterval is how often idle conversations are purged from
	// stores without native expiry. Default: 1h
	PurgeInterval time.Duration `yaml:"purge_interval" mapstructure:"purge_interval"`

	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Storage   storage.Config  `yaml:"storage" mapstructure:"storage"`
	OTel      OTelConfig      `yaml:"otel" mapstructure:"otel"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Events    events.Config   `yaml:"events" mapstructure:"events"`

	// LogLevel is applied by the CLI at startup and on config reload.
	// Default: "info"
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service.
//
// # Fields
//
//   - config: Configuration with defaults applied.
//   - logger: Process logger.
//   - router: Gin HTTP engine.
//   - store: Conversation storage backend.
//   - conversations: The debate orchestrator.
//   - scheduler: Retention scheduler, nil when the store expires keys itself
//     or retention is zero.
//   - metrics: Prometheus registry served at /metrics.
//   - meters: OpenTelemetry meter provider for upstream call metrics.
//   - bus: Turn event bus, nil when events are disabled.
//   - tracerCleanup: Flushes and stops the tracer provider.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New
// returns.
type service struct {
	config        Config
	logger        *slog.Logger
	router        *gin.Engine
	store         storage.Backend
	conversations *debate.ConversationService
	scheduler     ttl.Scheduler
	metrics       *prometheus.Registry
	meters        *sdkmetric.MeterProvider
	bus           *events.Bus
	tracerCleanup func(context.Context)
	closeOnce     sync.Once
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all orchestrator components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Creates the Prometheus registry, debate metrics and the meter
//     provider for upstream call metrics
//  4. Opens the conversation store
//  5. Registers the configured providers
//  6. Opens the turn event bus when one is configured
//  7. Creates the retention scheduler when the store needs one
//  8. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - logger: Process logger. Nil uses slog.Default().
//
// # Outputs
//
//   - Service: Ready-to-run orchestrator service
//   - error: Non-nil if any component fails to initialize
//
// # Limitations
//
//   - The default provider must be configured, otherwise New fails.
func New(cfg Config, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &service{
		config: applyConfigDefaults(cfg),
		logger: logger,
	}
	gin.SetMode(s.config.GinMode)

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cleanup, err := s.initTracer(initCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.metrics = prometheus.NewRegistry()
	s.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	debateMetrics := observability.NewDebateMetrics(s.metrics)

	res, err := serviceResource(initCtx, s.config.OTel.ServiceName)
	if err != nil {
		s.cleanup()
		return nil, err
	}
	s.meters, err = observability.NewMeterProvider(s.metrics, res, s.config.OTel.Stdout)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize meters: %w", err)
	}

	s.store, err = storage.Open(initCtx, s.config.Storage, logger)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	providers, err := buildRegistry(s.config.Providers, s.meters.Meter(observability.MeterName), logger)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}
	if _, ok := providers.Get(s.config.DefaultProvider); !ok {
		s.cleanup()
		return nil, fmt.Errorf("default provider %q is not configured (available: %s)",
			s.config.DefaultProvider, strings.Join(providers.Names(), ", "))
	}

	opts := []debate.Option{
		debate.WithRecorder(debateMetrics),
		debate.WithLogger(logger),
	}
	if s.config.Events.Enabled() {
		s.bus, err = events.Open(initCtx, s.config.Events, logger)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to open event bus: %w", err)
		}
		opts = append(opts, debate.WithTurnSink(events.NewPublisher(s.bus.Publisher, s.bus.Topic)))
	}
	s.conversations = debate.NewConversationService(s.store, providers, s.config.DefaultProvider, opts...)

	if purger, ok := s.store.(ttl.Purger); ok && s.config.Storage.Retention > 0 {
		s.scheduler = ttl.NewScheduler(purger, ttl.SchedulerConfig{
			Interval:  s.config.PurgeInterval,
			Retention: s.config.Storage.Retention,
		}, logger)
	}

	s.initRouter()

	logger.Info("Orchestrator initialized",
		"default_provider", s.config.DefaultProvider,
		"providers", providers.Names(),
		"storage", s.config.Storage.Backend,
		"error_locale", s.config.ErrorLocale,
		"auth_enabled", len(s.config.Auth.APIKeys) > 0,
		"events", s.config.Events.Backend,
	)
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server, the retention scheduler and the turn audit
// consumer, and blocks until ctx is cancelled or the server fails.
//
// # Limitations
//
//   - In-flight requests get ten seconds to finish on shutdown.
func (s *service) Run(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting orchestrator server", "port", s.config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down orchestrator server")
		return srv.Shutdown(shutdownCtx)
	})

	if s.scheduler != nil {
		if err := s.scheduler.Start(gctx); err != nil {
			s.logger.Warn("Retention scheduler did not start", "error", err)
		}
	}

	if s.bus != nil {
		g.Go(func() error {
			return events.Consume(gctx, s.bus.Subscriber, s.bus.Topic, events.AuditLog(s.logger), s.logger)
		})
	}

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Close implements Service. Safe to call more than once.
func (s *service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.cleanup()
	})
	return err
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.GinMode == "" {
		cfg.GinMode = gin.ReleaseMode
	}
	cfg.DefaultProvider = strings.ToLower(strings.TrimSpace(cfg.DefaultProvider))
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "dummy"
	}
	if cfg.ErrorLocale == "" {
		cfg.ErrorLocale = "es"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	if cfg.PurgeInterval == 0 {
		cfg.PurgeInterval = time.Hour
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "debate-orchestrator"
	}
	if cfg.Events.Backend == "" {
		cfg.Events.Backend = "none"
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = events.DefaultTopic
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	p := &cfg.Providers
	if p.OpenAI.Model == "" {
		p.OpenAI.Model = "gpt-4o-mini"
	}
	if p.DeepSeek.Model == "" {
		p.DeepSeek.Model = "deepseek-chat"
	}
	if p.DeepSeek.BaseURL == "" {
		p.DeepSeek.BaseURL = llm.DeepSeekBaseURL
	}
	if p.Gemini.Model == "" {
		p.Gemini.Model = "gemini-1.5-flash"
	}
	if p.Gemini.BaseURL == "" {
		p.Gemini.BaseURL = llm.GeminiBaseURL
	}
	return cfg
}

// buildRegistry registers the dummy adapter plus every provider that has
// credentials. Every adapter records call metrics on meter; providers with a
// RateLimit are also wrapped in a client-side limiter, outside the metrics so
// throttled calls that never leave the process are not counted as upstream
// calls.
func buildRegistry(cfg ProvidersConfig, meter metric.Meter, logger *slog.Logger) (*llm.Registry, error) {
	registry := llm.NewRegistry()

	dummy, err := llm.NewInstrumentedCompleter("dummy", llm.NewDummyClient(), meter)
	if err != nil {
		return nil, fmt.Errorf("dummy: %w", err)
	}
	registry.Register("dummy", dummy)

	register := func(name string, pc ProviderConfig, enabled bool, build func() (llm.Completer, error)) error {
		if !enabled {
			logger.Debug("Provider not configured, skipping", "provider", name)
			return nil
		}
		client, err := build()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		instrumented, err := llm.NewInstrumentedCompleter(name, client, meter)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		registry.Register(name, llm.NewRateLimitedCompleter(name, instrumented, pc.RateLimit, pc.Burst, pc.Timeout))
		logger.Info("Registered provider",
			"provider", name,
			"model", pc.Model,
			"api_key_present", pc.APIKey != "",
			"rate_limit", pc.RateLimit,
		)
		return nil
	}

	openAICompatible := func(name string, pc ProviderConfig) func() (llm.Completer, error) {
		return func() (llm.Completer, error) {
			return llm.NewOpenAIClient(llm.OpenAIConfig{
				Name:    name,
				APIKey:  pc.APIKey,
				Model:   pc.Model,
				BaseURL: pc.BaseURL,
			})
		}
	}

	steps := []error{
		register("openai", cfg.OpenAI, cfg.OpenAI.APIKey != "", openAICompatible("openai", cfg.OpenAI)),
		register("deepseek", cfg.DeepSeek, cfg.DeepSeek.APIKey != "", openAICompatible("deepseek", cfg.DeepSeek)),
		register("gemini", cfg.Gemini, cfg.Gemini.APIKey != "", openAICompatible("gemini", cfg.Gemini)),
		register("anthropic", cfg.Anthropic, cfg.Anthropic.APIKey != "", func() (llm.Completer, error) {
			return llm.NewAnthropicClient(llm.AnthropicConfig{
				APIKey:  cfg.Anthropic.APIKey,
				Model:   cfg.Anthropic.Model,
				BaseURL: cfg.Anthropic.BaseURL,
				Timeout: cfg.Anthropic.Timeout,
			})
		}),
		register("ollama", cfg.Ollama, cfg.Ollama.BaseURL != "", func() (llm.Completer, error) {
			return llm.NewOllamaClient(llm.OllamaConfig{
				BaseURL: cfg.Ollama.BaseURL,
				Model:   cfg.Ollama.Model,
			})
		}),
	}
	if err := errors.Join(steps...); err != nil {
		return nil, err
	}
	return registry, nil
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Exports over OTLP/gRPC when OTel.Endpoint is set, to stdout when
// OTel.Stdout is set, and otherwise leaves the global no-op provider.
//
// # Outputs
//
//   - func(context.Context): Flushes and stops the provider.
//   - error: Non-nil if exporter setup fails.
//
// # Limitations
//
//   - Uses an insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer(ctx context.Context) (func(context.Context), error) {
	var (
		exporter sdktrace.SpanExporter
		conn     *grpc.ClientConn
		err      error
	)
	switch {
	case s.config.OTel.Endpoint != "":
		conn, err = grpc.NewClient(s.config.OTel.Endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	case s.config.OTel.Stdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return func(context.Context) {}, nil
	}
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := serviceResource(ctx, s.config.OTel.ServiceName)
	if err != nil {
		return nil, err
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown tracer provider", "error", err)
		}
		if conn != nil {
			_ = conn.Close()
		}
	}, nil
}

// serviceResource describes this process to the trace and metric exporters.
func serviceResource(ctx context.Context, name string) (*resource.Resource, error) {
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(s.config.OTel.ServiceName))

	routes.SetupRoutes(s.router, routes.Dependencies{
		Service:     s.conversations,
		Store:       s.store,
		Gatherer:    s.metrics,
		Auth:        middleware.NewAuthProvider(s.config.Auth.APIKeys),
		ErrorLocale: s.config.ErrorLocale,
		TurnTimeout: handlers.TurnTimeout(s.config.RequestTimeout),
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() error {
	var errs []error
	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop retention scheduler: %w", err))
		}
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if s.meters != nil {
		if err := s.meters.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meters: %w", err))
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
	return errors.Join(errs...)
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
