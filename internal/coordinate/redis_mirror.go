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

package coordinate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror mirrors per-client attempt counts to Redis. It is write-only
// and advisory: Coordinator never reads the counts back and never blocks an
// admission decision on a write succeeding.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMirror dials addr; callers should ping before relying on it.
func NewRedisMirror(addr string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Ping verifies connectivity at startup.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// RecordAttempt increments the mirrored counter for clientID with a sliding
// expiry, matching the window's TTL.
func (m *RedisMirror) RecordAttempt(ctx context.Context, clientID string) error {
	key := "scansentry:coordinate:" + clientID
	pipe := m.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, m.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Close releases the underlying connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
