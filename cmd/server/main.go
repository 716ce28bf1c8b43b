package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tooling-tracker/internal/config"
	"github.com/iliyamo/tooling-tracker/internal/database"
	"github.com/iliyamo/tooling-tracker/internal/handler"
	"github.com/iliyamo/tooling-tracker/internal/logger"
	"github.com/iliyamo/tooling-tracker/internal/middleware"
	"github.com/iliyamo/tooling-tracker/internal/queue"
	"github.com/iliyamo/tooling-tracker/internal/repository"
	"github.com/iliyamo/tooling-tracker/internal/router"
	"github.com/iliyamo/tooling-tracker/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("database open failed", "error", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			lg.Fatal("database migration failed", "error", err)
		}
	}

	var opts []service.Option
	opts = append(opts, service.WithLogger(lg.With("component", "tooling")))
	qcfg := config.LoadQueueConfig()
	if qcfg.PublishEnabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(qcfg, lg.With("component", "publisher"))))
	}
	if qcfg.ConsumerEnabled {
		consumer := queue.NewJournalConsumer(qcfg, lg.With("component", "journal"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("journal consumer stopped", "error", err)
			}
		}()
	}

	svc := service.NewToolingService(
		repository.NewUnitOfWork(db),
		service.Stores{
			Tools:     repository.NewToolRepo(db),
			ToolTypes: repository.NewToolTypeRepo(db),
			Equipment: repository.NewEquipmentRepo(db),
			Slots:     repository.NewSlotRepo(db),
			Mounts:    repository.NewMountRepo(db),
			Events:    repository.NewEventRepo(db),
		},
		config.LoadVocabulary(),
		opts...,
	)

	rdb := config.NewRedisClient()
	if rdb == nil {
		lg.Warn("redis unavailable, cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(lg.With("component", "http")))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), lg), cfg.JWTSecret)
	router.RegisterTooling(e, handler.NewToolingHandler(svc, lg), cfg.JWTSecret, router.ToolingMiddleware{
		Cache:      middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate: middleware.InvalidateOnWrite(cacheCfg, rdb),
		RateLimit:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg.With("component", "ratelimit")),
	})

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown failed", "error", err)
	}
}
