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

// Package identify sends protocol-appropriate probes to open ports and
// classifies the responding service (§4.G). All reads are size-capped;
// adversarial banners (invalid UTF-8, null bytes, oversized or unbounded
// streams) never panic and never allocate past the cap (Testable Property 7).
package identify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"regexp"
	"time"
)

const bannerCap = 1024

// probeTemplate is the bytes written after connect, before reading a banner.
var probeTemplates = map[int][]byte{
	21:  []byte("\r\n"),
	25:  []byte("EHLO scansentry\r\n"),
	80:  []byte("GET / HTTP/1.0\r\n\r\n"),
	8080: []byte("GET / HTTP/1.0\r\n\r\n"),
	110: []byte("USER guest\r\n"),
	143: []byte("a1 CAPABILITY\r\n"),
}

var tlsPorts = map[int]bool{443: true, 8443: true, 465: true, 636: true, 993: true, 995: true}

var commonServices = map[int]string{
	20: "ftp-data", 21: "ftp", 22: "ssh", 23: "telnet", 25: "smtp", 53: "dns",
	80: "http", 110: "pop3", 111: "rpcbind", 135: "msrpc", 139: "netbios-ssn",
	143: "imap", 443: "https", 445: "microsoft-ds", 993: "imaps", 995: "pop3s",
	1723: "pptp", 3306: "mysql", 3389: "rdp", 5432: "postgresql", 5900: "vnc",
	6379: "redis", 8080: "http-alt", 8443: "https-alt", 27017: "mongodb",
}

var bannerFingerprints = []struct {
	re      *regexp.Regexp
	service string
}{
	{regexp.MustCompile(`(?i)^SSH-`), "ssh"},
	{regexp.MustCompile(`(?i)^220.*FTP`), "ftp"},
	{regexp.MustCompile(`(?i)^220.*SMTP|ESMTP`), "smtp"},
	{regexp.MustCompile(`(?i)HTTP/1\.[01]`), "http"},
	{regexp.MustCompile(`(?i)^\+OK.*POP3`), "pop3"},
	{regexp.MustCompile(`(?i)mysql`), "mysql"},
	{regexp.MustCompile(`(?i)redis`), "redis"},
}

var versionRE = regexp.MustCompile(`[\w.-]+[_/-][\d]+(?:\.[\d]+){1,3}`)

// Dial abstracts connection establishment so tests can inject a fake conn.
type Dial func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error)

func defaultDial(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, network, addr)
}

// Identifier classifies the service behind an open port.
type Identifier struct {
	dial Dial
}

// New builds an Identifier. dial may be nil to use the real network.
func New(dial Dial) *Identifier {
	if dial == nil {
		dial = defaultDial
	}
	return &Identifier{dial: dial}
}

// Classification is the evidence produced for one open port.
type Classification struct {
	Service    string
	Version    string
	Banner     string
	Confidence float64
	TLSVersion string
	TLSCipher  string
}

// Identify connects to host:port, writes the protocol probe template (if
// any), reads up to bannerCap bytes, and scores confidence per §4.G.
func (id *Identifier) Identify(ctx context.Context, host string, port int, timeout time.Duration) Classification {
	addr := fmt.Sprintf("%s:%d", host, port)
	known := commonServices[port]

	if tlsPorts[port] {
		c := id.identifyTLS(ctx, addr, timeout)
		if known != "" && c.Service == "" {
			c.Service = known
			if c.Confidence < 0.5 {
				c.Confidence = 0.5
			}
		}
		return c
	}

	conn, err := id.dial(ctx, "tcp", addr, timeout)
	if err != nil {
		return Classification{Service: known, Confidence: confidenceFor(known, "", false)}
	}
	defer conn.Close()

	if tmpl, ok := probeTemplates[port]; ok {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		_, _ = conn.Write(tmpl)
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	buf := make([]byte, bannerCap)
	n, _ := io.ReadFull(io.LimitReader(conn, bannerCap), buf)
	raw := buf[:n]
	banner := string(bytes.ToValidUTF8(raw, []byte{}))

	service := known
	matched := false
	for _, fp := range bannerFingerprints {
		if fp.re.MatchString(banner) {
			service = fp.service
			matched = true
			break
		}
	}
	version := ""
	if m := versionRE.FindString(banner); m != "" {
		version = m
	}

	return Classification{
		Service:    service,
		Version:    version,
		Banner:     banner,
		Confidence: confidenceScore(known != "" || matched, matched, version != ""),
	}
}

func confidenceFor(knownPort string, banner string, matched bool) float64 {
	if knownPort == "" && !matched && banner == "" {
		return 0
	}
	return 0.5
}

// confidenceScore implements the §4.G scoring table.
func confidenceScore(hasServiceHint, hasBanner, hasVersion bool) float64 {
	switch {
	case hasBanner && hasVersion:
		return 0.9
	case hasBanner:
		return 0.7
	case hasServiceHint:
		return 0.5
	default:
		return 0
	}
}

func (id *Identifier) identifyTLS(ctx context.Context, addr string, timeout time.Duration) Classification {
	dialer := &net.Dialer{Timeout: timeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Classification{}
	}
	defer raw.Close()

	conn := tls.Client(raw, &tls.Config{InsecureSkipVerify: true})
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if err := conn.Handshake(); err != nil {
		return Classification{Confidence: 0}
	}
	defer conn.Close()

	state := conn.ConnectionState()
	return Classification{
		TLSVersion: tlsVersionName(state.Version),
		TLSCipher:  tls.CipherSuiteName(state.CipherSuite),
		Confidence: 0.5,
	}
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS13:
		return "TLS1.3"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS10:
		return "TLS1.0"
	default:
		return "unknown"
	}
}
