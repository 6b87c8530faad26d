package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dinestream/internal/api"
	"dinestream/internal/auth"
	"dinestream/internal/buildinfo"
	"dinestream/internal/bus"
	"dinestream/internal/config"
	"dinestream/internal/events"
	"dinestream/internal/metrics"
	"dinestream/internal/push"
	"dinestream/internal/store"
	"dinestream/internal/stream"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var b bus.Bus
	if cfg.RedisURL != "" {
		rb, err := bus.NewRedis(cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to redis")
		}
		b = rb
		log.Info().Msg("using redis bus")
	} else {
		b = bus.NewMemory()
		log.Warn().Msg("REDIS_URL not set, using in-process bus; events will not cross instances")
	}

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to postgres")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrating device store")
		}
		st = pg
	} else {
		st = store.NewMemory()
		log.Warn().Msg("DATABASE_URL not set, device registrations are in-memory only")
	}

	metrics.RegisterDefault()

	registry := stream.NewRegistry(b, log)
	notifier := push.NewService(st, cfg.Push, log)
	publisher := events.NewPublisher(b, notifier, cfg.ChatPolicy, log)
	server := api.NewServer(cfg, log, registry, publisher, st, auth.NewVerifier(cfg.Auth))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", buildinfo.Version).Msg("realtime API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	registry.Close(shutdownCtx)
	if err := b.Close(); err != nil {
		log.Warn().Err(err).Msg("bus shutdown")
	}
}
