package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkellner/curator/internal/catalog"
	"github.com/mkellner/curator/internal/config"
	"github.com/mkellner/curator/internal/curator"
	"github.com/mkellner/curator/internal/handlers"
	"github.com/mkellner/curator/internal/logger"
	"github.com/mkellner/curator/internal/musicbrainz"
	"github.com/mkellner/curator/internal/notify"
	"github.com/mkellner/curator/internal/scheduler"
	"github.com/mkellner/curator/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	db, err := store.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSeeds(cfg.Seeds.Artists, cfg.Seeds.Songs); err != nil {
		log.Error("failed to bootstrap seed set", "error", err)
		os.Exit(1)
	}

	tokens, err := catalog.NewTokenSourceFromFile(cfg.Catalog.TeamID, cfg.Catalog.KeyID, cfg.Catalog.PrivateKeyPath)
	if err != nil {
		log.Error("failed to load catalog signing key", "error", err)
		os.Exit(1)
	}
	provider := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Storefront, cfg.Catalog.MusicUserToken, tokens)

	mb := musicbrainz.NewClient(cfg.MusicBrainz.BaseURL, cfg.MusicBrainz.RateInterval())
	enricher := musicbrainz.NewCachedClient(mb, db, cfg.MusicBrainz.CacheTTL())

	mailer := notify.NewMailer(cfg.Notify, log)

	cur := curator.New(db, provider, enricher, mailer, curator.Options{
		PlaylistName: cfg.User.PlaylistName,
		PlaylistID:   cfg.Catalog.PlaylistID,
		Filters:      cfg.Filters.Domain(),
		Model: curator.ModelConfig{
			PositiveBoost:   cfg.Algorithm.PositiveBoost,
			NegativePenalty: cfg.Algorithm.NegativePenalty,
			DecayRate:       cfg.Algorithm.DecayRate,
			HotZoneSize:     cfg.Algorithm.HotZoneSize,
			HotZoneHours:    cfg.Algorithm.HotZoneHours,
			DecayDays:       cfg.Algorithm.DecayDays,
		},
		PlaylistSize:   cfg.Algorithm.PlaylistSize,
		Weights:        cfg.Algorithm.Weights.Map(),
		NewReleaseDays: cfg.Algorithm.NewReleaseDays,
	}, log)

	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(cur, cfg.Schedule, log)
		if err != nil {
			log.Error("failed to build scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	} else {
		log.Warn("scheduled refresh disabled, cycles run only via the API")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	handlers.NewHandler(cur, db, log).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr, "playlist", cfg.User.PlaylistName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
