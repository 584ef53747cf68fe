package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/config"
	"github.com/iliyamo/conference-reservation/internal/database"
	"github.com/iliyamo/conference-reservation/internal/handler"
	"github.com/iliyamo/conference-reservation/internal/logger"
	"github.com/iliyamo/conference-reservation/internal/middleware"
	"github.com/iliyamo/conference-reservation/internal/queue"
	"github.com/iliyamo/conference-reservation/internal/repository"
	"github.com/iliyamo/conference-reservation/internal/router"
	"github.com/iliyamo/conference-reservation/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "conference-reservation")
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	db, err := database.Open(cfg.Database())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	dialect, err := repository.DialectFor(cfg.DBDriver)
	if err != nil {
		return err
	}
	ledger := repository.NewLedger(db, dialect)
	if err := seed(ctx, ledger, zl); err != nil {
		return err
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn("redis unavailable, running without projector cache and rate limiting")
	} else {
		defer rdb.Close()
	}

	cacheCfg, err := config.LoadProjectorCacheConfig()
	if err != nil {
		return err
	}
	limitCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}

	// a nil *redis.Client inside an interface is not nil
	var (
		cache   *service.ProjectorCache
		limiter echo.MiddlewareFunc
	)
	if rdb != nil {
		if cacheCfg.Enabled {
			cache = service.NewProjectorCache(rdb, cacheCfg.Prefix, cacheCfg.TTL, zl)
		}
		limiter = middleware.NewTokenBucket(limitCfg, rdb, zl)
	} else {
		limiter = middleware.NewTokenBucket(limitCfg, nil, zl)
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.RabbitMQURL, zl)
	}

	quota := service.NewQuotaCalculator(service.QuotaPolicy{SeatsPerDelegate: cfg.SeatsPerDelegate})
	projector := service.NewProjector(ledger, quota, cache, zl)
	coordinator := service.NewCoordinator(ledger, quota, cache, events, zl)
	submissions := service.NewSubmissionLock(ledger, cache, events, zl)

	var workers sync.WaitGroup
	if cfg.EventsEnabled {
		if err := startConsumers(ctx, &workers, cfg, service.NewEntitySync(ledger, cache, zl), zl); err != nil {
			return err
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(zl))

	router.RegisterRoutes(e, db)
	router.RegisterDelegate(e,
		handler.NewSeatingHandler(coordinator, projector),
		handler.NewSessionHandler(submissions, projector),
		cfg.JWTSecret,
		limiter,
	)
	router.RegisterOrganizer(e, handler.NewOrganizerHandler(projector), cfg.JWTSecret)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db_driver", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	workers.Wait()
	return nil
}

// seed writes the configured layout and entity roster.  Existing seats,
// pools and held counters are left untouched.
func seed(ctx context.Context, ledger *repository.Ledger, zl *zap.Logger) error {
	layout, entities, err := config.LoadLayout()
	if err != nil {
		return fmt.Errorf("load layout: %w", err)
	}
	err = ledger.Update(ctx, func(tx *repository.LedgerTx) error {
		if err := tx.SeedLayout(tx.Context(), layout); err != nil {
			return err
		}
		for _, en := range entities {
			if err := tx.UpsertEntity(tx.Context(), en); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}
	zl.Info("ledger seeded",
		zap.Int("tables", len(layout.Tables)),
		zap.Int("pools", len(layout.Pools)),
		zap.Int("entities", len(entities)))
	return nil
}

func startConsumers(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, es *service.EntitySync, zl *zap.Logger) error {
	audit, err := logger.NewFile(cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	consumers := []*queue.Consumer{
		queue.NewConsumer(cfg.RabbitMQURL, queue.ReservationsQueue, queue.AuditLogHandler(audit), zl),
		queue.NewConsumer(cfg.RabbitMQURL, queue.PopulationQueue, queue.PopulationHandler(es), zl),
	}
	for _, c := range consumers {
		wg.Add(1)
		go func(c *queue.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("consumer stopped", zap.Error(err))
			}
		}(c)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		_ = audit.Sync()
	}()
	return nil
}

func requestLogger(zl *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			zl.Info("request", fields...)
			return nil
		},
	})
}
