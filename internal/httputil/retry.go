// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil retries throttled HTTP requests.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = time.Second
)

// Retrier sends requests and retries responses with HTTP 429 or 503 using
// exponential backoff. A Retry-After header given in seconds overrides the
// computed delay.
type Retrier struct {
	Client *http.Client

	// MaxRetries bounds the retries after the first attempt (default 5).
	MaxRetries int

	// BaseDelay is the first backoff; each retry doubles it (default 1s).
	BaseDelay time.Duration

	Log zerolog.Logger
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// Do sends req and retries throttled responses. Request bodies are
// replayed through req.GetBody. If ctx is cancelled during a backoff wait,
// Do returns ctx.Err(). After the last retry the throttled response is
// returned as-is so the caller can inspect it.
func (r Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	delay := r.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}
		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryAfter(resp.Header.Get("Retry-After"), delay<<attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		r.Log.Debug().Int("status", resp.StatusCode).Dur("wait", wait).
			Int("attempt", attempt+1).Int("max", maxRetries).Str("url", req.URL.String()).
			Msg("throttled, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryAfter(header string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
