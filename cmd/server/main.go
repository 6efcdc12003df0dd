package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/app"
	"github.com/iliyamo/pool-booking/internal/config"
	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/handler"
	"github.com/iliyamo/pool-booking/internal/middleware"
	"github.com/iliyamo/pool-booking/internal/queue"
	"github.com/iliyamo/pool-booking/internal/repository"
	"github.com/iliyamo/pool-booking/internal/router"
	"github.com/iliyamo/pool-booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := app.SetupTracing(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.Connect(ctx, cfg.DB, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	store := repository.NewStore(db)

	// Confirmations go to RabbitMQ when configured, otherwise to the log.
	var notifier service.Notifier
	if cfg.RabbitMQURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitMQURL, cfg.NotifyQueue, logger)
		if err != nil {
			logger.Warn("broker unavailable, logging confirmations instead", zap.Error(err))
		} else {
			defer pub.Close()
			notifier = pub
			consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.NotifyQueue, cfg.NotifyLogPath, logger)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("notification consumer stopped", zap.Error(err))
				}
			}()
		}
	}
	svc := service.New(store, notifier, logger)

	scheduler, err := app.NewScheduler(cfg.SweepSchedule, svc.Sweeper, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(ctx, redisCfg)
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and caching disabled", zap.String("addr", redisCfg.Address()))
	} else {
		defer rdb.Close()
	}
	limiter := middleware.NewRateLimiter(rlCfg, rdb, logger)
	cache := middleware.NewResponseCache(cacheCfg, rdb, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(logger))

	router.RegisterRoutes(e, handler.NewHealthHandler(db))
	router.RegisterPublic(e, handler.NewPublicHandler(svc), cache.Middleware(), limiter.Middleware())
	router.RegisterBookings(e, handler.NewBookingHandler(svc), cfg.JWTSecret, limiter.Middleware())
	router.RegisterAdmin(e, handler.NewAdminHandler(svc, store), cfg.JWTSecret)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("db_driver", cfg.DB.Driver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	return e.Shutdown(shutdownCtx)
}
