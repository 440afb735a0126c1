package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/api"
	"github.com/CMZCoder/CommerzioS-sub000/internal/config"
	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/events"
	"github.com/CMZCoder/CommerzioS-sub000/internal/export"
	"github.com/CMZCoder/CommerzioS-sub000/internal/logging"
	"github.com/CMZCoder/CommerzioS-sub000/internal/metrics"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
	"github.com/CMZCoder/CommerzioS-sub000/internal/notify"
	"github.com/CMZCoder/CommerzioS-sub000/internal/payments"
	"github.com/CMZCoder/CommerzioS-sub000/internal/repository"
	"github.com/CMZCoder/CommerzioS-sub000/internal/service"
	"github.com/CMZCoder/CommerzioS-sub000/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	sessionTTL := time.Duration(cfg.API.SessionTTL) * time.Second
	sessions := initSessions(redisClient, sessionTTL, &logger)

	bus := events.NewEventBus()
	locks := service.NewBookingLocks()

	ledger := service.NewEscrowLedger(db, db, locks, bus,
		time.Duration(cfg.Escrow.AutoReleaseDelay)*time.Second, &logger)
	bookingService := service.NewBookingService(db, db, db, ledger, bus, locks, &logger)
	disputeService := service.NewDisputeService(db, db, ledger, bus, locks, &logger)
	authService := service.NewAuthService(db, sessions, sessionTTL, &logger)
	catalogService := service.NewCatalogService(db, &logger)
	chatService := service.NewChatService(db, &logger)

	subscribeMetrics(bus)
	initNotifier(cfg, db, bus, &logger)

	provider := payments.NewProvider(cfg.Payments.ProviderBaseURL, cfg.Payments.ProviderAPIKey, &logger)
	exporter := export.NewExporter(db, db, cfg.Exports.Path, &logger)

	server := api.NewServer(cfg.API, cfg.Payments.WebhookSecret, api.Deps{
		Auth:          authService,
		Catalog:       catalogService,
		Bookings:      bookingService,
		Disputes:      disputeService,
		Ledger:        ledger,
		Chat:          chatService,
		Notifications: db,
		Sessions:      sessions,
		Provider:      provider,
		Exporter:      exporter,
	}, &logger)

	releaseWorker := worker.NewReleaseWorker(db, ledger,
		time.Duration(cfg.Escrow.ReleasePollInterval)*time.Second,
		cfg.Escrow.ReleaseBatchSize, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	go releaseWorker.Run(ctx)
	go func() {
		if err := server.StartMetrics(); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("port", cfg.API.Port).Msg("api started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.API.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("api stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initSessions prefers redis with an in-memory failover; without redis the
// memory store carries sessions alone (single instance).
func initSessions(redisClient *redis.Client, ttl time.Duration, logger *zerolog.Logger) domain.SessionRepository {
	memory := repository.NewMemorySessions(ttl)
	if redisClient == nil {
		logger.Warn().Msg("sessions are in-memory only; restarts force re-login")
		return memory
	}
	return repository.NewFailoverSessions(repository.NewRedisSessions(redisClient, ttl), memory, logger)
}

func initNotifier(cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) {
	var email domain.EmailSender
	if cfg.SMTP.Host != "" {
		email = notify.NewSMTPSender(cfg.SMTP, logger)
	} else {
		logger.Warn().Msg("smtp not configured, emails disabled")
	}
	notify.NewNotifier(db, db, email, logger).Subscribe(bus)
}

func subscribeMetrics(bus *events.EventBus) {
	bookingEvents := map[string]string{
		events.EventBookingConfirmed: models.BookingConfirmed,
		events.EventBookingCancelled: models.BookingCancelled,
		events.EventBookingStarted:   models.BookingInProgress,
		events.EventBookingCompleted: models.BookingCompleted,
		events.EventBookingNoShow:    models.BookingNoShow,
	}
	for eventType, status := range bookingEvents {
		status := status
		bus.Subscribe(eventType, func(*events.Event) error {
			metrics.IncBookingTransition(status)
			return nil
		})
	}

	escrowEvents := map[string]string{
		events.EventEscrowReleased: models.EscrowReleased,
		events.EventEscrowRefunded: models.EscrowRefunded,
		events.EventEscrowSplit:    models.EscrowSplit,
	}
	for eventType, state := range escrowEvents {
		state := state
		bus.Subscribe(eventType, func(*events.Event) error {
			metrics.IncEscrowMovement(state)
			return nil
		})
	}
}
