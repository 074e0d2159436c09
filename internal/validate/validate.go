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

// Package validate rejects unsafe or malformed targets and port sets before
// any network I/O is attempted.
package validate

import (
	"net"
	"regexp"
	"sort"
	"strings"

	"github.com/scansentry/scansentry/internal/model"
)

const (
	MaxPortCount = 65536
	MaxPort      = 65535
	MinPort      = 1
)

// placeholderHosts are refused unless explicitly whitelisted — they do not
// resolve to anything meaningful and exist only to catch copy-pasted docs.
var placeholderHosts = map[string]bool{
	"example.com":     true,
	"example.org":     true,
	"example.net":     true,
	"localhost":       true,
	"test.com":        true,
	"invalid":         true,
}

var labelRE = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
var tldRE = regexp.MustCompile(`^[a-zA-Z]{2,}$`)

// Whitelist holds PRIVATE_IP_WHITELIST entries that override the private/
// loopback/link-local block when allow_private was not explicitly requested.
type Whitelist struct {
	entries map[string]bool
}

// NewWhitelist builds a Whitelist from a comma-separated env-style string.
func NewWhitelist(csv string) Whitelist {
	w := Whitelist{entries: map[string]bool{}}
	for _, e := range strings.Split(csv, ",") {
		e = strings.TrimSpace(strings.ToLower(e))
		if e != "" {
			w.entries[e] = true
		}
	}
	return w
}

func (w Whitelist) allows(hostOrIP string) bool {
	return w.entries[strings.ToLower(hostOrIP)]
}

// ValidateTarget validates a raw target string. hostname is set when raw is
// not a literal IP address. The caller performs resolution separately (§4.B);
// ValidateTarget only rejects what is knowable pre-resolution.
func ValidateTarget(raw string, allowPrivate bool, wl Whitelist) (model.Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Target{}, model.NewError(model.KindInput, model.ReasonInvalidTarget, "empty target", nil)
	}
	lower := strings.ToLower(raw)
	if placeholderHosts[lower] && !wl.allows(lower) {
		return model.Target{}, model.NewError(model.KindInput, model.ReasonBlockedTarget, "placeholder host", nil)
	}

	if ip := net.ParseIP(raw); ip != nil {
		if !isStrictDottedQuad(raw) && ip.To4() != nil {
			return model.Target{}, model.NewError(model.KindInput, model.ReasonInvalidTarget, "malformed IPv4 literal", nil)
		}
		if err := checkIPBlocked(ip, allowPrivate, wl, raw); err != nil {
			return model.Target{}, err
		}
		return model.Target{Raw: raw, ResolvedIP: ip.String(), AllowPrivate: allowPrivate}, nil
	}

	if !isValidHostname(raw) {
		return model.Target{}, model.NewError(model.KindInput, model.ReasonInvalidTarget, "invalid hostname", nil)
	}
	return model.Target{Raw: raw, Hostname: raw, AllowPrivate: allowPrivate}, nil
}

// isStrictDottedQuad rejects forms net.ParseIP accepts but the original
// source's strict parser does not (leading zeros, octets out of dotted-quad
// shape disguised as valid by Go's parser).
func isStrictDottedQuad(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return true // not IPv4 dotted form at all (e.g. IPv6); let ParseIP own it
	}
	for _, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return false
		}
		if len(p) > 3 {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// CheckIPBlocked re-validates a resolved IP against the block policy; it is
// exported for reuse by internal/resolve after DNS resolution.
func CheckIPBlocked(ip net.IP, allowPrivate bool, wl Whitelist, originalHost string) error {
	return checkIPBlocked(ip, allowPrivate, wl, originalHost)
}

func checkIPBlocked(ip net.IP, allowPrivate bool, wl Whitelist, originalHost string) error {
	if ip.IsMulticast() {
		return model.NewError(model.KindInput, model.ReasonBlockedTarget, "multicast address", nil)
	}
	if ip.Equal(net.IPv4bcast) || ip.IsUnspecified() {
		return model.NewError(model.KindInput, model.ReasonBlockedTarget, "broadcast or unspecified address", nil)
	}
	if allowPrivate || wl.allows(originalHost) || wl.allows(ip.String()) {
		return nil
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || isPrivate(ip) {
		return model.NewError(model.KindInput, model.ReasonBlockedTarget, "private or loopback address not permitted", nil)
	}
	return nil
}

var privateBlocks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

func isPrivate(ip net.IP) bool {
	for _, b := range privateBlocks {
		if b.Contains(ip) {
			return true
		}
	}
	return false
}

func isValidHostname(host string) bool {
	if len(host) == 0 || len(host) > 255 {
		return false
	}
	if strings.HasSuffix(host, ".") {
		return false
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	for i, l := range labels {
		if len(l) == 0 || len(l) > 63 {
			return false
		}
		if !labelRE.MatchString(l) {
			return false
		}
		if i == len(labels)-1 && !tldRE.MatchString(l) {
			return false
		}
	}
	return true
}

// ValidatePortSet enforces the [1,65535], no-duplicate, ≤65536-cardinality
// rule and returns the set in ascending order with duplicates removed.
func ValidatePortSet(ports []int) ([]int, error) {
	if len(ports) == 0 {
		return nil, model.NewError(model.KindInput, model.ReasonInvalidPortSet, "empty port set", nil)
	}
	if len(ports) > MaxPortCount {
		return nil, model.NewError(model.KindInput, model.ReasonInvalidPortSet, "too many ports", nil)
	}
	seen := make(map[int]bool, len(ports))
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		if p < MinPort || p > MaxPort {
			return nil, model.NewError(model.KindInput, model.ReasonInvalidPortSet, "port out of range", nil)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}
