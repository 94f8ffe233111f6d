// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the marketplace client
// and its tests.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	maxRetryAfter     = 30 * time.Second
)

// Retrier executes HTTP requests and retries on 429 (Too Many Requests)
// and 503 (Service Unavailable) with exponential backoff. A Retry-After
// header given in seconds overrides the computed delay, capped at 30s.
type Retrier struct {
	Client *http.Client

	// MaxRetries is the number of retries after the first attempt (default 3).
	MaxRetries int

	// BaseDelay is the first backoff; it doubles on every attempt (default 500ms).
	// Tests set it to a millisecond to avoid real sleeps.
	BaseDelay time.Duration

	Log logrus.FieldLogger
}

// Retryable reports whether a response status is worth another attempt.
func Retryable(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// Do sends req, retrying as described on Retrier. Request bodies are
// replayed through req.GetBody, so requests built with
// http.NewRequestWithContext over a bytes or strings reader retry safely.
// After exhausting retries the last retryable response is returned as-is
// so the caller can inspect it. If ctx is cancelled during a backoff wait
// Do returns ctx.Err().
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	base := r.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
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
		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * base
		if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			backoff = ra
		}
		if r.Log != nil {
			r.Log.WithFields(logrus.Fields{
				"method":  req.Method,
				"url":     req.URL.String(),
				"status":  resp.StatusCode,
				"attempt": attempt + 1,
				"backoff": backoff,
			}).Debug("retrying request")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d, true
}
