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

// Package config binds the environment-variable knobs that control rate
// limiting, concurrency ceilings, caching, and auth (§6), loaded once at
// startup via viper and passed explicitly to every collaborator.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved set of runtime knobs. There is no
// package-level singleton; callers thread this struct through explicitly.
type Config struct {
	// Per-client and global admission control.
	ClientRateLimit       int           // WS_RATE_LIMIT: requests per window
	RateLimitWindow       time.Duration
	ClientConcurrentLimit int           // WS_CONCURRENT_LIMIT
	GlobalConcurrentLimit int           // GLOBAL_CONCURRENT_LIMIT

	// Scan shape limits.
	PortLimitPerScan  int // PORT_LIMIT_PER_SCAN
	PortWarnThreshold int // PORT_WARN_THRESHOLD

	// Scan result cache sizing (CacheMaxEntries also bounds the CVE cache).
	CacheMaxEntries int           // CACHE_MAX_ENTRIES
	CacheMaxValue   int           // CACHE_MAX_VALUE
	CVECacheTTL     time.Duration

	// Auth.
	APIKeyTTL        time.Duration // API_KEY_TTL
	WebsocketAPIKey  string        // WEBSOCKET_API_KEY

	// Target policy.
	PrivateIPWhitelist string // PRIVATE_IP_WHITELIST (comma-separated hosts/IPs, matched exactly; no CIDR ranges)
	DenylistPath       string // DENYLIST_PATH
	AllowlistPath      string // ALLOWLIST_PATH

	// Persistence.
	DatabaseURL string // DATABASE_URL
	SQLitePath  string // SQLITE_PATH
	RedisAddr   string // REDIS_ADDR

	// Task retention.
	TaskRetention time.Duration // TASK_RETENTION_DAYS, as a duration

	// Ambient.
	HTTPAddr    string // HTTP_ADDR
	MetricsAddr string // METRICS_ADDR
	LogLevel    string // LOG_LEVEL
	LogJSON     bool   // LOG_JSON
}

// Load reads the environment (and, if present, a config file named
// "scansentry" on the search path) via viper and returns a resolved Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("WS_RATE_LIMIT", 5)
	v.SetDefault("WS_RATE_LIMIT_WINDOW", time.Minute)
	v.SetDefault("WS_CONCURRENT_LIMIT", 2)
	v.SetDefault("GLOBAL_CONCURRENT_LIMIT", 1000)
	v.SetDefault("PORT_LIMIT_PER_SCAN", 65536)
	v.SetDefault("PORT_WARN_THRESHOLD", 100)
	v.SetDefault("CACHE_MAX_ENTRIES", 1000)
	v.SetDefault("CACHE_MAX_VALUE", 65536)
	v.SetDefault("CVE_CACHE_TTL", 24*time.Hour)
	v.SetDefault("API_KEY_TTL", 24*time.Hour)
	v.SetDefault("WEBSOCKET_API_KEY", "")
	v.SetDefault("PRIVATE_IP_WHITELIST", "")
	v.SetDefault("DENYLIST_PATH", "")
	v.SetDefault("ALLOWLIST_PATH", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "scansentry.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("TASK_RETENTION_DAYS", 30)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_JSON", false)

	v.SetConfigName("scansentry")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return &Config{
		ClientRateLimit:       v.GetInt("WS_RATE_LIMIT"),
		RateLimitWindow:       v.GetDuration("WS_RATE_LIMIT_WINDOW"),
		ClientConcurrentLimit: v.GetInt("WS_CONCURRENT_LIMIT"),
		GlobalConcurrentLimit: v.GetInt("GLOBAL_CONCURRENT_LIMIT"),
		PortLimitPerScan:      v.GetInt("PORT_LIMIT_PER_SCAN"),
		PortWarnThreshold:     v.GetInt("PORT_WARN_THRESHOLD"),
		CacheMaxEntries:       v.GetInt("CACHE_MAX_ENTRIES"),
		CacheMaxValue:         v.GetInt("CACHE_MAX_VALUE"),
		CVECacheTTL:           v.GetDuration("CVE_CACHE_TTL"),
		APIKeyTTL:             v.GetDuration("API_KEY_TTL"),
		WebsocketAPIKey:       v.GetString("WEBSOCKET_API_KEY"),
		PrivateIPWhitelist:    v.GetString("PRIVATE_IP_WHITELIST"),
		DenylistPath:          v.GetString("DENYLIST_PATH"),
		AllowlistPath:         v.GetString("ALLOWLIST_PATH"),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		SQLitePath:            v.GetString("SQLITE_PATH"),
		RedisAddr:             v.GetString("REDIS_ADDR"),
		TaskRetention:         time.Duration(v.GetInt("TASK_RETENTION_DAYS")) * 24 * time.Hour,
		HTTPAddr:              v.GetString("HTTP_ADDR"),
		MetricsAddr:           v.GetString("METRICS_ADDR"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogJSON:               v.GetBool("LOG_JSON"),
	}, nil
}
