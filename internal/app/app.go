package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"massupload/internal/config"
	apierrors "massupload/internal/errors"
	"massupload/internal/infrastructure"
	customMiddleware "massupload/internal/middleware"
	"massupload/internal/operations"
	"massupload/internal/services"
	"massupload/internal/store"
	httpHandlers "massupload/internal/transport/http"
	"massupload/internal/upload"
	"massupload/internal/uploadtypes"
	ws "massupload/internal/websocket"
)

// Version is set at build time with -ldflags "-X massupload/internal/app.Version=...".
var Version = "dev"

const (
	maintenanceInterval = 10 * time.Minute
	finishedRetention   = time.Hour
	progressBuffer      = 256
)

// Application represents the main application container
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	OTel     *infrastructure.OTelProviders
	DB       *store.DB
	Router   *chi.Mux
	Server   *http.Server
	Hub      *ws.Hub
	Jobs     *operations.MemoryJobStore
	JobQueue *operations.JobQueue
	Status   *operations.StatusBroadcaster
	Progress *operations.ProgressNotifier
	Uploads  *services.UploadService
	Health   *services.HealthService

	stopMaintenance context.CancelFunc
}

// NewApplication wires every component of the service. Background workers
// are started by Start.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", Version))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{Config: cfg, Logger: logger, OTel: otelProviders}
	if err := a.initializeServices(ctx); err != nil {
		otelProviders.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := a.setupRouter(); err != nil {
		a.closeResources(ctx)
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	a.createServer()
	return a, nil
}

func (a *Application) initializeServices(ctx context.Context) error {
	cfg := a.Config
	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	a.DB = db

	registry, err := uploadtypes.NewRegistry(db)
	if err != nil {
		return fmt.Errorf("failed to register upload types: %w", err)
	}
	pipeline := upload.NewPipeline(registry, upload.WithLogger(a.Logger))

	uploadMetrics, err := infrastructure.NewUploadMetrics(a.OTel.Meter)
	if err != nil {
		return fmt.Errorf("failed to create upload metrics: %w", err)
	}
	hubMetrics, err := ws.NewHubMetrics(a.OTel.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}

	a.Hub = ws.NewHub(a.Logger, hubMetrics)
	a.Status = operations.NewStatusBroadcaster(a.Hub, a.Logger)
	a.Progress = operations.NewProgressNotifier(a.Status, uploadMetrics, progressBuffer, a.Logger)
	a.Jobs = operations.NewMemoryJobStore()
	a.JobQueue = operations.NewJobQueue(cfg.Upload.Workers, cfg.Upload.QueueSize, a.Jobs, a.Logger)

	a.Uploads = services.NewUploadService(services.UploadServiceDeps{
		Pipeline: pipeline,
		Log:      store.NewUploadLogRepository(db),
		Queue:    a.JobQueue,
		Status:   a.Status,
		Progress: a.Progress,
		Metrics:  uploadMetrics,
		Config:   cfg.Upload,
		Logger:   a.Logger,
	})
	a.Health = services.NewHealthService(Version, db, a.JobQueue, a.Hub, a.Logger)

	a.Logger.InfoContext(ctx, "Services initialized",
		slog.String("database", cfg.Database.Driver),
		slog.Any("upload_types", registry.Types()),
		slog.Int("workers", cfg.Upload.Workers))
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")
	validator := customMiddleware.NewValidator(a.Logger)

	r := chi.NewRouter()
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// Middleware that does not wrap the ResponseWriter, so the websocket
	// upgrade still sees a Hijacker.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Method(http.MethodGet, "/ws", ws.NewHandler(a.Hub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))
	r.Method(http.MethodGet, "/metrics", httpHandlers.NewMetricsHandler(a.OTel.PrometheusHTTP))

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTel.Meter)
	if err != nil {
		return err
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → headers → CORS → rate limit
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Content-Type", customMiddleware.UserIDHeader, customMiddleware.RequestIDHeader},
				MaxAge:         300,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		uploads := httpHandlers.NewUploadHandler(a.Uploads, validator, errorHandler,
			a.Config.Upload.MaxFileBytes, a.Config.Upload.HistoryLimit, a.Logger)
		health := httpHandlers.NewHealthHandler(a.Health, a.Logger)

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Mount("/health", health.Routes())
			r.Mount("/upload-types", uploads.TypeRoutes())
			r.Mount("/uploads", uploads.Routes())
		})
	})

	a.Router = r
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// StartBackground starts the hub, the job queue and the maintenance loop
// without serving HTTP.
func (a *Application) StartBackground(ctx context.Context) {
	// Stop drains the queue, so its workers outlive ctx.
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopMaintenance = cancel

	a.Hub.Start()
	a.JobQueue.Start(context.WithoutCancel(ctx))
	go a.maintain(bg)
}

// Start starts the background workers and the HTTP server. A server failure
// calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.StartBackground(ctx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", a.Server.Addr),
		slog.String("results_dir", a.Config.Upload.ResultsDir))
	return nil
}

func (a *Application) maintain(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Status.Cleanup(finishedRetention)
			if n := a.Jobs.PurgeBefore(time.Now().Add(-finishedRetention)); n > 0 {
				a.Logger.Info("purged finished jobs", slog.Int("removed", n))
			}
		}
	}
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
		a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully", slog.String("error", err.Error()))
	}
	a.Progress.Close()
	a.Hub.Stop()
	if a.stopMaintenance != nil {
		a.stopMaintenance()
	}

	if err := a.closeResources(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) closeResources(ctx context.Context) error {
	var errs []error
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	if a.OTel != nil {
		if err := a.OTel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop); err != nil {
		return err
	}
	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.Background())
}
