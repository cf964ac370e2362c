package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/fitdesk/fitdesk-api/internal/alerts"
	"github.com/fitdesk/fitdesk-api/internal/config"
	"github.com/fitdesk/fitdesk-api/internal/handlers"
	"github.com/fitdesk/fitdesk-api/internal/middleware"
	"github.com/fitdesk/fitdesk-api/internal/migration"
	"github.com/fitdesk/fitdesk-api/internal/notify"
	"github.com/fitdesk/fitdesk-api/internal/repository"
	"github.com/fitdesk/fitdesk-api/internal/routes"
	"github.com/fitdesk/fitdesk-api/internal/scheduler"
	"github.com/fitdesk/fitdesk-api/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config    *config.Config
	db        *sql.DB
	logger    zerolog.Logger
	scheduler *scheduler.Scheduler
	processor *alerts.Processor
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	goose.SetLogger(migration.NewGooseAdapter(logger))

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Repositories.
	backoff := repository.Backoff{Base: cfg.Notifier.BackoffBase, Cap: cfg.Notifier.BackoffCap}
	templateRepo := repository.NewTemplateRepository(db)
	queueRepo := repository.NewQueueRepository(db, backoff)
	logRepo := repository.NewLogRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)

	// Notification service and delivery channels.
	notifyService := notify.NewService(queueRepo, templateRepo, cfg.Notifier.MaxAttempts, logger)
	channels := buildChannels(cfg, db, logger)
	renderer := notify.NewRenderer(logger)

	deliveryWorker := worker.NewDeliveryWorker(queueRepo, templateRepo, logRepo, maintenanceRepo, channels, renderer, logger)
	processor := alerts.NewProcessor(alerts.DefaultRules(maintenanceRepo), notifyService, logger)

	// Scheduler owns the recurring scan and drain cycles.
	sched := scheduler.New(logger)
	if err := sched.Register("alert-scan", cfg.Notifier.ScanInterval, func(ctx context.Context) error {
		result := processor.ProcessAlerts(ctx)
		if len(result.Errors) > 0 {
			return errors.New(result.Errors[0])
		}
		return nil
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register alert scan job")
	}
	if err := sched.Register("queue-drain", cfg.Notifier.DrainInterval, func(ctx context.Context) error {
		_, err := deliveryWorker.RunCycle(ctx, cfg.Notifier.BatchSize)
		return err
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register queue drain job")
	}
	sched.Start()

	// Create the application instance.
	app := &application{
		config:    cfg,
		db:        db,
		logger:    logger,
		scheduler: sched,
		processor: processor,
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(notifyService, queueRepo, templateRepo, logRepo)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(
	notifyService notify.Service,
	queueRepo repository.QueueRepository,
	templateRepo repository.TemplateRepository,
	logRepo repository.LogRepository,
) http.Handler {
	queueHandler := handlers.NewQueueHandler(notifyService, queueRepo, app.logger)
	templateHandler := handlers.NewTemplateHandler(templateRepo, app.logger)
	logHandler := handlers.NewLogHandler(logRepo, app.logger)
	schedulerHandler := handlers.NewSchedulerHandler(app.scheduler, app.processor, app.logger)

	return routes.NewRouter(queueHandler, templateHandler, logHandler, schedulerHandler)
}

// buildChannels wires every configured delivery transport. Email is always
// on; SMS and push come up only when their config sections enable them.
func buildChannels(cfg *config.Config, db *sql.DB, logger zerolog.Logger) notify.ChannelSet {
	emailChannel, err := notify.NewSMTPChannel(cfg.Email, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure email channel")
	}

	channels := []notify.Channel{
		emailChannel,
		notify.NewInAppChannel(db, logger),
		notify.NewPushChannel(cfg.Push, logger),
	}

	if cfg.SMS.Enabled {
		smsChannel, err := notify.NewSNSChannel(context.Background(), cfg.SMS.Region, cfg.SMS.SenderID, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure sms channel")
		}
		channels = append(channels, smsChannel)
	}

	return notify.NewChannelSet(channels...)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Stop the scheduler, letting any in-flight cycle finish.
	logger.Info().Msg("Stopping scheduler...")
	app.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped.")
}
