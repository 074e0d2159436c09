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

package identify

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

func bannerDial(banner []byte) Dial {
	return func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			_, _ = io_copy_discard(server)
			_, _ = server.Write(banner)
			server.Close()
		}()
		return client, nil
	}
}

func io_copy_discard(c net.Conn) (int, error) {
	buf := make([]byte, 256)
	_ = c.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	n, _ := c.Read(buf)
	return n, nil
}

func TestIdentifySSHBannerHighConfidence(t *testing.T) {
	id := New(bannerDial([]byte("SSH-2.0-OpenSSH_8.0\r\n")))
	c := id.Identify(context.Background(), "host", 22, 200*time.Millisecond)
	if c.Service != "ssh" {
		t.Fatalf("expected ssh service, got %q", c.Service)
	}
	if c.Version == "" {
		t.Fatal("expected a version to be extracted from the banner")
	}
	if c.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", c.Confidence)
	}
}

func TestIdentifyHandlesInvalidUTF8Safely(t *testing.T) {
	bad := append([]byte{0xff, 0xfe, 0x00, 0x00}, bytes.Repeat([]byte{0x80}, 50)...)
	id := New(bannerDial(bad))
	c := id.Identify(context.Background(), "host", 110, 200*time.Millisecond)
	_ = c // must not panic
}

func TestIdentifyCapsOversizedBanner(t *testing.T) {
	huge := bytes.Repeat([]byte("A"), 65*1024)
	id := New(bannerDial(huge))
	c := id.Identify(context.Background(), "host", 143, 200*time.Millisecond)
	if len(c.Banner) > bannerCap {
		t.Fatalf("expected banner to be capped at %d bytes, got %d", bannerCap, len(c.Banner))
	}
}

func TestIdentifyNonFingerprintBannerStaysAtKnownPortConfidence(t *testing.T) {
	id := New(bannerDial([]byte("not a recognized banner at all\r\n")))
	c := id.Identify(context.Background(), "host", 21, 200*time.Millisecond)
	if c.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5 for a known port with a non-matching banner, got %v", c.Confidence)
	}
}

func TestIdentifyUnreachableHostReturnsZeroConfidence(t *testing.T) {
	id := New(func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Err: net.UnknownNetworkError("refused")}
	})
	c := id.Identify(context.Background(), "host", 9999, 50*time.Millisecond)
	if c.Confidence != 0 {
		t.Fatalf("expected zero confidence for unreachable unknown port, got %v", c.Confidence)
	}
}
