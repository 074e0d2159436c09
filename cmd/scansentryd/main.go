// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the scansentryd daemon entry point: it wires config,
// policy, coordination, caching, enrichment, and the API server, then
// serves until an OS signal requests graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scansentry/scansentry/internal/adaptive"
	"github.com/scansentry/scansentry/internal/api"
	"github.com/scansentry/scansentry/internal/cache"
	"github.com/scansentry/scansentry/internal/config"
	"github.com/scansentry/scansentry/internal/coordinate"
	"github.com/scansentry/scansentry/internal/enrich"
	"github.com/scansentry/scansentry/internal/identify"
	"github.com/scansentry/scansentry/internal/orchestrate"
	"github.com/scansentry/scansentry/internal/policy"
	"github.com/scansentry/scansentry/internal/resolve"
	"github.com/scansentry/scansentry/internal/store"
	"github.com/scansentry/scansentry/internal/tasks"
	"github.com/scansentry/scansentry/internal/telemetry"
	"github.com/scansentry/scansentry/internal/validate"
	"github.com/scansentry/scansentry/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON, Output: os.Stdout})
	logger := log.WithComponent("scansentryd")

	ctx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()

	scanStore, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open scan store")
	}

	denylist, err := policy.LoadList(cfg.DenylistPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load denylist")
	}
	allowlist, err := policy.LoadList(cfg.AllowlistPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load allowlist")
	}
	gate := &policy.Gate{Denylist: denylist, Allowlist: allowlist}

	whitelist := validate.NewWhitelist(cfg.PrivateIPWhitelist)

	var mirror coordinate.Mirror
	if cfg.RedisAddr != "" {
		redisMirror := coordinate.NewRedisMirror(cfg.RedisAddr, cfg.RateLimitWindow)
		if pingErr := redisMirror.Ping(ctx); pingErr != nil {
			logger.Warn().Err(pingErr).Msg("redis mirror unreachable, running without shared-state mirroring")
		} else {
			mirror = redisMirror
		}
	}

	coord := coordinate.New(coordinate.Options{
		WindowSize:        cfg.RateLimitWindow,
		ClientLimit:       cfg.ClientRateLimit,
		ClientConcurrency: int64(cfg.ClientConcurrentLimit),
		GlobalConcurrency: int64(cfg.GlobalConcurrentLimit),
	}, mirror)

	scanCache := cache.New(cfg.CacheMaxEntries, cfg.CacheMaxValue)
	enricher := enrich.New(enrich.NewNVDFeed(""), enrich.Options{
		TTL: cfg.CVECacheTTL, MaxEntries: cfg.CacheMaxEntries, FetchWorkers: 4,
	})
	defer enricher.Close()

	deps := orchestrate.Deps{
		Coordinator: coord,
		Cache:       scanCache,
		Resolver:    resolve.New(nil),
		Identifier:  identify.New(nil),
		Enricher:    enricher,
		Whitelist:   whitelist,
		Gate:        gate,
		AdaptiveOpts: adaptive.Options{
			InitialConcurrency: 50, MinConcurrency: 5, MaxConcurrency: 500,
			InitialTimeout: time.Second, MinTimeout: 100 * time.Millisecond, MaxTimeout: 5 * time.Second,
			MinInterval: 500 * time.Millisecond,
		},
		ScanTimeout: 10 * time.Minute,
		CacheTTL:    cfg.CVECacheTTL,
	}

	registry := tasks.New(ctx, scanStore, cfg.TaskRetention)
	keys := api.NewKeyStore()

	server := api.NewServer(deps, registry, gate, keys, api.Config{
		WSToken:   cfg.WebsocketAPIKey,
		PortLimit: cfg.PortLimitPerScan,
		WarnAt:    cfg.PortWarnThreshold,
	})

	telemetry.ServeMetrics(cfg.MetricsAddr)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("scansentryd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown did not complete cleanly")
	}
	if err := scanStore.Close(); err != nil {
		logger.Warn().Err(err).Msg("error closing scan store")
	}

	logger.Info().Msg("scansentryd stopped")
}
