package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/errands-backend/internal/cache"
	"github.com/ignatzorin/errands-backend/internal/config"
	"github.com/ignatzorin/errands-backend/internal/db"
	"github.com/ignatzorin/errands-backend/internal/gateway/paystack"
	httpHandlers "github.com/ignatzorin/errands-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/errands-backend/internal/http/router"
	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/repository"
	"github.com/ignatzorin/errands-backend/internal/service"
	"github.com/ignatzorin/errands-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// Кэш статистики оценок: Redis, если задан, иначе память процесса.
	var statsCache service.StatsCache
	healthChecks := map[string]httpHandlers.Pinger{}
	if cfg.RedisURL != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatalf("main: %v", err)
		}
		defer rdb.Close()
		statsCache = cache.NewRedisStatsCache(rdb, cfg.StatsCacheTTL)
		healthChecks["redis"] = cache.Pinger{Client: rdb}
	} else {
		memCache := cache.NewMemoryStatsCache(cfg.StatsCacheTTL)
		g.Go(func() error {
			memCache.Cleanup(ctx, cfg.StatsCacheTTL)
			return nil
		})
		statsCache = memCache
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	errandRepo := repository.NewErrandRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	messageRepo := repository.NewMessageRepository(dbConn)
	ratingRepo := repository.NewRatingRepository(dbConn)

	gateway := paystack.NewClient(paystack.Config{
		BaseURL:     cfg.PaystackBaseURL,
		SecretKey:   cfg.PaystackSecretKey,
		CallbackURL: cfg.PaystackCallbackURL,
		Timeout:     cfg.GatewayTimeout,
		MaxRetries:  cfg.GatewayMaxRetries,
	}, logger.Log)

	// Сервисы.
	errandService := service.NewErrandService(errandRepo, service.ErrandServiceConfig{
		DefaultETAMinutes:        cfg.DefaultETAMinutes,
		RequireEscrowBeforeStart: cfg.RequireEscrowBeforeStart,
	})
	paymentService := service.NewPaymentService(paymentRepo, errandRepo, gateway, cfg.GatewayTimeout)
	errandService.SetLedger(paymentService)
	messageService := service.NewMessageService(messageRepo, errandRepo)
	ratingService := service.NewRatingService(ratingRepo, errandRepo, userRepo, statsCache)
	userService := service.NewUserService(userRepo, errandRepo)
	reconciler := service.NewPaymentReconciler(paymentService, cfg.ReconcileInterval, cfg.ReconcileStaleAfter, cfg.ReconcileBatchSize)
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Вебсокеты: hub рассылает события и заданий, и чата.
	hub := ws.NewHub(messageService)
	errandService.SetPublisher(hub)
	messageService.SetPublisher(hub)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health:   httpHandlers.NewHealthHandler(dbConn, healthChecks),
		Errands:  httpHandlers.NewErrandHandler(errandService),
		Messages: httpHandlers.NewMessageHandler(messageService),
		Payments: httpHandlers.NewPaymentHandler(paymentService),
		Ratings:  httpHandlers.NewRatingHandler(ratingService),
		Users:    httpHandlers.NewUserHandler(userService),
		WS:       httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		reconciler.Run(ctx)
		return nil
	})

	g.Go(func() error {
		logger.Log.Infof("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("main: сервер завершился с ошибкой: %w", err)
		}
		return nil
	})

	// Останавливаем сервер по сигналу или при ошибке соседней горутины.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("main: ошибка остановки http сервера: %w", err)
		}
		logger.Log.Info("main: сервер остановлен")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Log.Errorf("%v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.Errorf("main: ошибка закрытия базы: %v", err)
	}
}
