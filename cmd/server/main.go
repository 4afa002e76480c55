// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package main is the entry point for the Trailmark server.
//
// Trailmark verifies physical activity during the annual Nevada event and
// credits accomplishments into a per-user ledger. Activities arrive three
// ways: manual GPX uploads, catalog route submissions, and Strava syncs.
// Flags and social check-ins are credited alongside them, all subject to
// per-user quotas and the event geofence.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered sources via Koanf v2 (defaults, config.yaml,
//     TRAILMARK_ environment variables)
//  2. Store: BadgerDB document store for users, accomplishments, check-ins
//  3. Services: quota guard, ledger, route catalog, check-ins, uploads,
//     flags, Strava sync orchestrator
//  4. HTTP server: Chi REST API with Prometheus metrics on /metrics
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, waits for in-flight requests up to the configured
// shutdown timeout, then closes the store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trailmark-dev/trailmark/internal/api"
	"github.com/trailmark-dev/trailmark/internal/cache"
	"github.com/trailmark-dev/trailmark/internal/catalog"
	"github.com/trailmark-dev/trailmark/internal/checkin"
	"github.com/trailmark-dev/trailmark/internal/config"
	"github.com/trailmark-dev/trailmark/internal/flag"
	"github.com/trailmark-dev/trailmark/internal/geo"
	"github.com/trailmark-dev/trailmark/internal/geofence"
	"github.com/trailmark-dev/trailmark/internal/ledger"
	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/quota"
	"github.com/trailmark-dev/trailmark/internal/store"
	"github.com/trailmark-dev/trailmark/internal/strava"
	"github.com/trailmark-dev/trailmark/internal/upload"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Bool("db_in_memory", cfg.Database.InMemory).
		Msg("Starting Trailmark")

	var s *store.Store
	if cfg.Database.InMemory {
		s, err = store.OpenInMemory()
	} else {
		s, err = store.Open(cfg.Database.Path)
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := s.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	c := cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	defer c.Stop()

	guard := quota.New(s, cfg.Quota)
	l := ledger.New(s)
	fence := geofence.NewNevada()
	cat := catalog.New(cfg.Catalog, c)

	if cfg.Strava.ClientID == "" {
		logging.Warn().Msg("Strava client credentials not configured; syncs will fail token refresh")
	}
	// Partner activities expose only start/end coordinates, so they are
	// held to the tighter metro box rather than the statewide one.
	syncer := strava.NewOrchestrator(strava.NewClient(cfg.Strava), s, l, guard,
		geofence.New(geo.LasVegasMetro))

	handler := api.NewHandler(s, l, guard,
		checkin.New(s, guard),
		upload.New(guard, l, cat, fence, cfg.Upload),
		flag.New(guard, l),
		syncer,
		cat,
	)
	router := api.NewRouter(cfg.Server, handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown incomplete, forcing close")
		_ = server.Close()
	}

	logging.Info().Msg("Application stopped gracefully")
}
