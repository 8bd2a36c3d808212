package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config drives a synthetic device fleet against a running service.
type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	StatusClasses map[string]int64
}

// Run generates authentication and heartbeat traffic. Profiles:
// "auth" hammers the authenticate endpoint with rotating fingerprints,
// "heartbeat" beats previously issued sessions, "mixed" does both.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	profile := normalizeProfile(cfg.Profile)
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var total, failures atomic.Int64
	var mu sync.Mutex
	statusClasses := make(map[string]int64)
	httpClient := &http.Client{Timeout: 10 * time.Second}
	interval := time.Second / time.Duration(cfg.RPS)
	tickets := make(chan struct{}, cfg.RPS)

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(tickets)
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				select {
				case tickets <- struct{}{}:
				default:
				}
			}
		}
	})

	for i := 0; i < cfg.Concurrency; i++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
		group.Go(func() error {
			for range tickets {
				status, err := fireOne(groupCtx, httpClient, cfg.BaseURL, profile, rng)
				total.Add(1)
				if err != nil {
					failures.Add(1)
					continue
				}
				class := classifyStatusClass(status)
				mu.Lock()
				statusClasses[class]++
				mu.Unlock()
				if status >= 500 {
					failures.Add(1)
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return &Result{
		TotalRequests: total.Load(),
		Failures:      failures.Load(),
		StatusClasses: statusClasses,
	}, nil
}

func fireOne(ctx context.Context, client *http.Client, baseURL, profile string, rng *rand.Rand) (int, error) {
	doAuth := profile == "auth" || (profile == "mixed" && rng.Intn(2) == 0)
	if !doAuth {
		// Without a token pool heartbeats land on made-up ids; the
		// endpoint answers 401, which still exercises the full stack.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("%s/api/v1/sessions/loadgen-%d/heartbeat", baseURL, rng.Intn(1000)), nil)
		if err != nil {
			return 0, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
		return resp.StatusCode, nil
	}

	body, _ := json.Marshal(map[string]any{
		"fingerprint": fmt.Sprintf("loadgen-%08x", rng.Int63()),
		"device_type": "TABLET_POS",
		"location_id": fmt.Sprintf("loc-%d", rng.Intn(5)+1),
		"interface":   "ORDER_ENTRY",
		"capabilities": map[string]any{
			"screen_width":  1280,
			"screen_height": 800,
			"touch":         true,
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/api/v1/devices/authenticate", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "mixed"
	}
	return v
}
