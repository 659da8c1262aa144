package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"cloak-engine/internal/api"
	"cloak-engine/internal/auth"
	"cloak-engine/internal/config"
	"cloak-engine/internal/engine"
	"cloak-engine/internal/fingerprint"
	"cloak-engine/internal/geo"
	"cloak-engine/internal/storage"
	"cloak-engine/internal/telemetry"
	"cloak-engine/internal/verifier"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()

	// Fingerprint cache
	var fpCache fingerprint.Cache
	if cfg.Redis.Addr != "" {
		fpCache = fingerprint.NewRedisCache(cfg.Redis.Addr, cfg.FingerprintTTL())
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis fingerprint cache")
	} else {
		fpCache = fingerprint.NewMemoryCache(cfg.FingerprintTTL())
	}

	// Country resolution: trusted edge header first, local database second.
	var resolver geo.Resolver = geo.Noop{}
	if cfg.Geo.MMDBPath != "" {
		mm, err := geo.OpenMaxMind(cfg.Geo.MMDBPath)
		if err != nil {
			log.Warn().Err(err).Msg("geo database unavailable; relying on edge header only")
		} else {
			defer mm.Close()
			resolver = mm
		}
	}

	// Telemetry sink
	sink := telemetry.NewSink(256)
	sink.Start(rootCtx)

	// Risk scorer with configured weights and the external challenge
	// verifier. No model is wired by default; deployments inject one
	// through their own build.
	ver := verifier.NewHTTP(cfg.Verifier.URL, cfg.Verifier.Secret, cfg.VerifierTimeout())
	scorer := engine.NewRiskScorer(cfg.Engine.Weights, nil, ver)

	// Orchestrator
	orch := engine.NewOrchestrator(store, scorer, resolver, sink, engine.Options{
		FallbackURL:    cfg.Engine.FallbackURL,
		RiskThreshold:  cfg.Engine.RiskThreshold,
		ConfigCacheTTL: cfg.ConfigCacheTTL(),
	})

	// Config change listener (LISTEN/NOTIFY)
	go storage.ListenAndInvalidate(rootCtx, store, orch, cfg.Backoff())

	// HTTP
	authSvc := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.AdminUser,
		cfg.Auth.AdminPasswordHash, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	h := api.NewHandler(orch, store, fpCache, sink, authSvc, cfg.Engine.FallbackURL)
	r := api.Router(h)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
