// Command server runs the game server: lobby endpoints, one websocket per
// seated player, optional Postgres persistence and Redis action history.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cluefall/cluefall/internal/cache"
	"github.com/cluefall/cluefall/internal/config"
	"github.com/cluefall/cluefall/internal/database"
	"github.com/cluefall/cluefall/internal/game"
	"github.com/cluefall/cluefall/internal/rooms"
	"github.com/cluefall/cluefall/internal/server"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store rooms.Store
	if cfg.DatabaseURL != "" {
		pg, err := database.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.WithError(err).Fatal("database connect failed")
		}
		defer pg.Close()
		store = pg
		log.Info("postgres persistence enabled")
	} else {
		log.Warn("no database configured, games are in-memory only")
	}

	var history game.HistoryFn
	if cfg.RedisURL != "" {
		pub, err := cache.Connect(ctx, cfg.RedisURL, cfg.HistoryStream, log)
		if err != nil {
			log.WithError(err).Fatal("redis connect failed")
		}
		defer pub.Close()
		history = pub.HistoryFn()
		log.WithField("stream", cfg.HistoryStream).Info("action history stream enabled")
	}

	registry := server.NewRegistry(log)
	manager := rooms.NewManager(registry, store, history, cfg.ShuffleSeed, log)
	handler := server.New(manager, registry, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown incomplete")
		}
	}()

	log.WithField("addr", cfg.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("bye")
}
