// scan-loadgen is a tiny, dependency-free HTTP load generator for driving
// scansentryd's POST /scan endpoint with concurrent submissions, adapted
// from the rate-limiter demo's http-loadgen tool.
//
// Usage example:
//
//	scan-loadgen -base=http://127.0.0.1:8080 -target=127.0.0.1 -ports=1-1024 -n=200 -c=8
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	var (
		base    = flag.String("base", "http://127.0.0.1:8080", "Base URL including scheme and host")
		apiKey  = flag.String("api_key", "", "Bearer token to send with every submission")
		target  = flag.String("target", "127.0.0.1", "Scan target for every submission")
		ports   = flag.String("ports", "1-1024", "Port spec (comma/range) for every submission")
		n       = flag.Int("n", 200, "Total scan submissions to send")
		conc    = flag.Int("c", 8, "Number of concurrent workers")
		timeout = flag.Duration("timeout", 30*time.Second, "Overall timeout for the loadgen run")
	)
	flag.Parse()

	if *n <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	url := strings.TrimRight(*base, "/") + "/scan"
	client := &http.Client{Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	body := fmt.Sprintf(`{"target":%q,"ports":%q}`, *target, *ports)

	var done, accepted, rejected int64
	start := time.Now()

	worker := func(count int) {
		defer atomic.AddInt64(&done, int64(count))
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
			if err != nil {
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			if *apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+*apiKey)
			}
			resp, err := client.Do(req)
			if err != nil {
				time.Sleep(200 * time.Microsecond)
				continue
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusAccepted {
				atomic.AddInt64(&accepted, 1)
			} else {
				atomic.AddInt64(&rejected, 1)
			}
		}
	}

	per := *n / *conc
	rem := *n - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(c int) {
			defer wg.Done()
			worker(c)
		}(count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*n) / elapsed.Seconds()
	fmt.Printf("ScanLoadGen: n=%d c=%d go=%d accepted=%d rejected=%d duration=%s throughput=%.0f req/s\n",
		*n, *conc, runtime.GOMAXPROCS(0), accepted, rejected, elapsed.Truncate(time.Millisecond), ops)
}
