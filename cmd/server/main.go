package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/cache"
	"github.com/amoradev/amora/internal/config"
	"github.com/amoradev/amora/internal/db"
	"github.com/amoradev/amora/internal/gateway/local"
	"github.com/amoradev/amora/internal/httpapi"
	"github.com/amoradev/amora/internal/logger"
	"github.com/amoradev/amora/internal/storage"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Media storage
	store, err := storage.NewS3Store(context.Background(), cfg)
	if err != nil {
		log.Error("failed to init s3 store", "err", err)
		return
	}

	gw := local.New(database, redisCache, store, log)
	appCtx := app.New(gw, redisCache, log, cfg)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(appCtx, gw)
	if err := srv.Start(ctx); err != nil {
		log.Error("http server failed", "err", err)
	}
}
