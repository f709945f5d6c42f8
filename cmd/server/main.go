package main

import (
	"context"

	"github.com/oggyb/agency-backoffice/internal/app"
	"github.com/oggyb/agency-backoffice/internal/cache"
	"github.com/oggyb/agency-backoffice/internal/config"
	"github.com/oggyb/agency-backoffice/internal/db"
	"github.com/oggyb/agency-backoffice/internal/logger"
	"github.com/oggyb/agency-backoffice/internal/notify"
	"github.com/oggyb/agency-backoffice/internal/server"
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

	// Notifications are optional; without a broker events are dropped.
	var notifier notify.Notifier = notify.Noop{}
	if cfg.NATS.Enabled {
		n, err := notify.NewNATS(cfg.NATS.URL, log)
		if err != nil {
			log.Error("failed to connect to nats", "err", err)
			return
		}
		defer n.Close()
		notifier = n
	}

	appCtx := app.New(database, redisCache, notifier, log)

	if cfg.App.ENV == "development" {
		if err := db.SeedDemoData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	srv := server.New(appCtx, cfg)
	if err := srv.Run(); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
