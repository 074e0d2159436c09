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

// Package resolve performs the single, cancellable DNS resolution a scan is
// permitted (Testable Property 1: resolution-once).
package resolve

import (
	"context"
	"net"

	"github.com/scansentry/scansentry/internal/model"
	"github.com/scansentry/scansentry/internal/validate"
)

// Resolver resolves hostnames to the address used for a scan's lifetime.
type Resolver struct {
	res *net.Resolver
}

// New builds a Resolver. A nil *net.Resolver uses net.DefaultResolver.
func New(res *net.Resolver) *Resolver {
	if res == nil {
		res = net.DefaultResolver
	}
	return &Resolver{res: res}
}

// Resolve fills in Target.ResolvedIP for a hostname target; IP-literal
// targets are returned unchanged (they were already resolved by Validate).
// The resolved address is re-checked against the block policy — DNS
// rebinding to a private address must still be rejected.
func (r *Resolver) Resolve(ctx context.Context, t model.Target, wl validate.Whitelist) (model.Target, error) {
	if t.ResolvedIP != "" {
		return t, nil
	}
	addrs, err := r.res.LookupIPAddr(ctx, t.Hostname)
	if err != nil {
		return model.Target{}, model.NewError(model.KindResolution, model.ReasonResolutionFailed, "dns lookup failed", err)
	}
	if len(addrs) == 0 {
		return model.Target{}, model.NewError(model.KindResolution, model.ReasonResolutionFailed, "no addresses returned", nil)
	}
	ip := addrs[0].IP
	if err := validate.CheckIPBlocked(ip, t.AllowPrivate, wl, t.Hostname); err != nil {
		return model.Target{}, model.NewError(model.KindResolution, model.ReasonBlockedAfterResolution, "resolved address is blocked", err)
	}
	t.ResolvedIP = ip.String()
	return t, nil
}
