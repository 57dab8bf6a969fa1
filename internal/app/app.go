package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"pitchstats/internal/config"
	apierrors "pitchstats/internal/errors"
	"pitchstats/internal/infrastructure"
	"pitchstats/internal/insights"
	customMiddleware "pitchstats/internal/middleware"
	"pitchstats/internal/services"
	"pitchstats/internal/study"
	handlers "pitchstats/internal/transport/http"
	ws "pitchstats/internal/websocket"
	"pitchstats/pkg/contracts"
)

const (
	Version = contracts.Version
	RepoURL = "https://github.com/pitchstats/pitchstats"
	AppName = "Pitch Stats"
)

// systemStatusInterval is the cadence of websocket status broadcasts.
const systemStatusInterval = 30 * time.Second

var (
	// BuildTime prefers the ldflags-injected timestamp and falls back to
	// process start for ad-hoc builds.
	BuildTime = resolveBuildTime()
	// BuildID is a unique identifier for this build.
	BuildID = generateBuildID()
)

func resolveBuildTime() string {
	if contracts.BuildTime != "unknown" {
		return contracts.BuildTime
	}
	return time.Now().Format(time.RFC3339)
}

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(Version))
	h.Write([]byte(contracts.GitCommit))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application is the main application container. It owns the configuration,
// the shared services, and the HTTP server, and wires them together.
type Application struct {
	Config           *config.Config
	Paths            *config.Paths
	Router           *chi.Mux
	Server           *http.Server
	WebSocketHub     *ws.Hub
	RunService       *services.RunService
	ResultsService   *services.ResultsService
	HealthService    *services.HealthService
	Narratives       *insights.Client
	BusinessMetrics  *infrastructure.BusinessMetrics
	SystemMetrics    *infrastructure.SystemMetrics
	MetricsCollector *infrastructure.SystemMetricsCollector
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution()

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	businessMetrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Logger.Warn("Business metrics unavailable", slog.String("error", err.Error()))
	}
	a.BusinessMetrics = businessMetrics

	systemMetrics, err := infrastructure.NewSystemMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Logger.Warn("System metrics unavailable", slog.String("error", err.Error()))
	}
	a.SystemMetrics = systemMetrics
	if systemMetrics != nil {
		a.MetricsCollector = infrastructure.NewSystemMetricsCollector(systemMetrics, 15*time.Second)
	}

	// The narrative client is shared by the run pipeline and the on-demand
	// endpoint so its rate limiter covers both. Nil means disabled.
	if a.Config.OpenAI.APIKey != "" {
		narratives, err := insights.NewClient(a.Config.OpenAI, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize narrative client: %w", err)
		}
		a.Narratives = narratives
	} else {
		a.Logger.Info("Narrative generation disabled: no OpenAI API key configured")
	}

	studyCfg := study.DefaultConfig()
	if config.FileExists(a.Paths.StudyConfigFile) {
		studyCfg, err = study.LoadConfig(a.Paths.StudyConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load study config: %w", err)
		}
		a.Logger.Info("Study configuration loaded",
			slog.String("path", a.Paths.StudyConfigFile))
	}

	a.RunService = services.NewRunService(a.Config, a.Paths, studyCfg, hub, a.Narratives, businessMetrics, a.Logger)
	a.ResultsService = services.NewResultsService(a.Paths, a.Narratives, a.Logger)
	a.HealthService = services.NewHealthServiceWithBuildInfo(
		Version,
		RepoURL,
		BuildTime,
		BuildID,
		a.Paths,
		a.RunService,
		hub,
		a.Logger,
	)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// Only middleware that leaves the ResponseWriter unwrapped may run
	// before the websocket upgrade.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	wsHandler := handlers.NewWebSocketHandler(
		a.WebSocketHub,
		a.Config.Security.AllowedOrigins,
		a.Config.Logging.Development,
		a.Logger,
	)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", wsHandler.Handle)

	a.setupStaticRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.BusinessMetrics).Handler)
		r.Use(customMiddleware.BusinessMetricsMiddleware(a.BusinessMetrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		r.Use(customMiddleware.CORS(a.corsConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
				errorHandler,
			).Handler)
		}

		a.setupAPIRoutes(r, errorHandler)
		a.setupHTMLRoutes(r)
	})

	// Prometheus scrape endpoint, outside the middleware group.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler) {
	validate := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	resultsHandler := handlers.NewResultsHandler(a.ResultsService, validate, a.Logger, errorHandler)
	runHandler := handlers.NewRunHandler(a.RunService, validate, a.Logger, errorHandler)
	metricsHandler := handlers.NewMetricsHandler(a.WebSocketHub, a.SystemMetrics, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.ContentTypeValidator("application/json"))
		r.Use(validate.ValidateRequest)

		// Read-side endpoints under the standard timeout.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/health/detailed", healthHandler.DetailedHealth)
			r.Get("/version", healthHandler.Version)
			r.Get("/stats", healthHandler.SystemStats)

			r.Get("/results/{study}", resultsHandler.GetResults)
			r.Get("/aggregates/{study}", resultsHandler.GetAggregates)

			r.Mount("/metrics", metricsHandler.Routes())

			r.Post("/logs", handlers.NewClientLogHandler(a.Logger).Handle)
		})

		// Run management and narrative generation wait on real work and get
		// the longer run timeout.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RunTimeout, a.Logger))
			r.Use(customMiddleware.AuditLog(a.Logger))

			r.Mount("/runs", runHandler.Routes())
			r.Post("/narratives", resultsHandler.GenerateNarrative)
		})
	})
}

// setupStaticRoutes configures static asset serving
func (a *Application) setupStaticRoutes(r chi.Router) {
	r.Route("/static", func(r chi.Router) {
		r.Use(customMiddleware.Compress(5))
		r.Handle("/*", http.StripPrefix("/static", http.FileServer(http.Dir(a.Paths.StaticDir))))
	})
}

// setupHTMLRoutes configures the dashboard page routes
func (a *Application) setupHTMLRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app", http.StatusTemporaryRedirect)
	})
	r.Get("/app", handlers.ServeMainApp(a.Paths.WebDir))
	r.Get("/test", handlers.ServeTestPage())
}

// corsConfig builds the CORS policy from configuration. Development mode
// additionally allows the local frontend dev server.
func (a *Application) corsConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if a.Config.Logging.Development {
		cfg.AllowedOrigins = append([]string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		}, cfg.AllowedOrigins...)
		a.Logger.Info("CORS configured for development mode",
			slog.Any("allowed_origins", cfg.AllowedOrigins))
	}

	return cfg
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the HTTP server and verifies the runtime environment. The
// cancel func is invoked if the server fails, so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if a.MetricsCollector != nil {
		go a.MetricsCollector.Start(ctx)
	}
	go a.watchSystemStatus(ctx)

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Cancel runs while the hub is still draining broadcasts, so the final
	// cancelled snapshots reach connected clients.
	if n := a.RunService.CancelAll(ctx); n > 0 {
		a.Logger.InfoContext(ctx, "Cancelled active runs", slog.Int("count", n))
	}

	if a.MetricsCollector != nil {
		a.MetricsCollector.Stop()
	}
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")

	if err := infrastructure.CloseLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
	}

	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped, shutting down")
	}

	// Shutdown gets a fresh context: the run context is already cancelled.
	return a.Stop(context.Background())
}

// watchSystemStatus pushes a component status frame to connected dashboard
// clients on a fixed cadence until ctx is cancelled. Broadcasts are skipped
// while nobody is listening.
func (a *Application) watchSystemStatus(ctx context.Context) {
	ticker := time.NewTicker(systemStatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.WebSocketHub.ClientCount() == 0 {
				continue
			}
			status, components := a.HealthService.ComponentStatuses(ctx)
			a.WebSocketHub.BroadcastSystemStatus(status, components, a.HealthService.Uptime())
		}
	}
}

// performStartupHealthCheck verifies the writable directories and warns
// about missing optional files before traffic arrives.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"data":      a.Paths.DataDir,
		"artifacts": a.Paths.ArtifactsDir,
		"logs":      a.Paths.LogsDir,
	}

	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	if !config.FileExists(a.Paths.WebDir) {
		warnings = append(warnings, fmt.Sprintf("web directory not found: %s", a.Paths.WebDir))
	}

	if !config.FileExists(a.Paths.StudyConfigFile) {
		a.Logger.InfoContext(ctx, "Study config file not found, using built-in defaults",
			slog.String("path", a.Paths.StudyConfigFile))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
