package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/tastyhub-service/internal/api/http"
	"github.com/spec-kit/tastyhub-service/internal/api/http/handlers"
	"github.com/spec-kit/tastyhub-service/internal/auth"
	"github.com/spec-kit/tastyhub-service/internal/config"
	"github.com/spec-kit/tastyhub-service/internal/events"
	"github.com/spec-kit/tastyhub-service/internal/observability"
	"github.com/spec-kit/tastyhub-service/internal/persistence"
	"github.com/spec-kit/tastyhub-service/internal/repository"
	"github.com/spec-kit/tastyhub-service/internal/service"
	"github.com/spec-kit/tastyhub-service/internal/storage"
	"github.com/spec-kit/tastyhub-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	tagRepo := repository.NewTagRepository(pool)
	followRepo := repository.NewFollowRepository(pool)
	tokenRepo := repository.NewTokenRepository(redis.Client)

	txManager := persistence.NewTxManager(pool, logger)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventOnboardingStepCompleted, func(ctx context.Context, event events.Event) error {
		if payload, ok := event.Payload.(events.StepCompletedPayload); ok {
			metrics.RecordOnboardingTransition(string(payload.Step), string(payload.NewState))
		}
		return nil
	})

	imageStore, err := storage.NewImageStore(cfg.Upload, logger)
	if err != nil {
		logger.Fatal("failed to init image store", zap.Error(err))
	}

	tagService := service.NewTagService(tagRepo)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		TokenRepo:  tokenRepo,
		Dispatcher: dispatcher,
	})
	onboardingService := service.NewOnboardingService(service.OnboardingDependencies{
		UserRepo:   userRepo,
		FollowRepo: followRepo,
		Tags:       tagService,
		Images:     imageStore,
		Tx:         txManager,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Onboarding:     handlers.NewOnboardingHandler(onboardingService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
