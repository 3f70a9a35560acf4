package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"issue-service/internal/config"
	"issue-service/internal/db"
	"issue-service/internal/health"
	"issue-service/internal/issue"
	"issue-service/internal/logger"
	"issue-service/internal/messaging"
	"issue-service/internal/metrics"
	"issue-service/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
)

type App struct {
	config   *config.Config
	router   chi.Router
	server   *http.Server
	database *bun.DB
	producer *messaging.Producer
	logger   *slog.Logger
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	app.database = db.New(cfg.Database)

	ctx := context.Background()
	if err := db.RunMigrations(ctx, app.database, (*issue.Issue)(nil)); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	// Apply security headers and CORS globally
	app.router.Use(middleware.SecureHeaders)
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	// NATS producer setup; events are optional, the API works without them
	producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.SubjectPrefix, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize NATS producer", "error", err)
		producer = nil
	}
	app.producer = producer

	issueMetrics, err := metrics.New(otel.GetMeterProvider().Meter(ServiceName))
	if err != nil {
		slogLogger.Warn("failed to initialize metrics", "error", err)
		issueMetrics = metrics.NewMock()
	}

	issueRepo := issue.NewRepository(app.database)
	var publisher issue.Publisher
	if producer != nil {
		publisher = producer
	}
	issueService := issue.NewService(issueRepo, publisher, slogLogger)
	issueHandler := issue.NewHandler(issueService, slogLogger, issueMetrics)
	issueHandler.RegisterRoutes(app.router)

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", a.config.Server.Port),
		Handler: a.router,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	if err := a.server.Shutdown(ctx); err != nil {
		return err
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("NATS producer close error", "error", err)
		}
	}

	db.Close(a.database)
	return nil
}
