// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package marketplace is the HTTP client for the marketplace API endpoints
// the reconciliation engine consumes: the applied-ids index, the full
// applications list and its count, apply/withdraw mutations, and project
// detail lookups.
//
// Responses are decoded with gjson rather than fixed structs because the
// services disagree on identifier shapes (numbers, numeric strings, nested
// project objects). Every identifier goes through identity.Normalize;
// entries whose id cannot be normalized are dropped.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/pdiddy/applytrack/internal/httputil"
	"github.com/pdiddy/applytrack/pkg/types"
)

// maxBody bounds how much of a response body is read.
const maxBody = 4 << 20

// Endpoint paths, relative to the base URL.
const (
	PathAppliedIDs        = "/api/applications/applied-ids"
	PathMyApplications    = "/api/applications/mine"
	PathApplicationsCount = "/api/applications/mine/count"
	pathProject           = "/api/projects/%d"
	pathApply             = "/api/projects/%d/apply"
)

// StatusError is returned when the API answers with an unexpected status.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
}

// Client talks to one marketplace deployment.
type Client struct {
	baseURL   *url.URL
	token     string
	userAgent string
	retrier   *httputil.Retrier
	limiter   *rate.Limiter
	log       logrus.FieldLogger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.retrier.Client = hc }
}

// WithRetryBaseDelay overrides the retry backoff base.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.retrier.BaseDelay = d }
}

// New creates a client from cfg. A nil log discards output.
func New(cfg types.MarketplaceConfig, log logrus.FieldLogger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", cfg.BaseURL)
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	c := &Client{
		baseURL:   base,
		token:     cfg.APIToken,
		userAgent: cfg.UserAgent,
		retrier: &httputil.Retrier{
			Client:     &http.Client{Timeout: timeout},
			MaxRetries: cfg.MaxRetries,
			Log:        log,
		},
		log: log.WithField("component", "marketplace"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchAppliedIDsWithStatus loads the lightweight id→status index.
func (c *Client) FetchAppliedIDsWithStatus(ctx context.Context) (types.AppliedIDs, error) {
	doc, err := c.getJSON(ctx, "fetch applied ids", PathAppliedIDs)
	if err != nil {
		return types.AppliedIDs{}, err
	}
	return decodeAppliedIDs(doc, c.log), nil
}

// FetchMyApplications loads the full application records.
func (c *Client) FetchMyApplications(ctx context.Context) ([]types.ApplicationRecord, error) {
	doc, err := c.getJSON(ctx, "fetch applications", PathMyApplications)
	if err != nil {
		return nil, err
	}
	return decodeApplications(doc, c.log), nil
}

// FetchMyApplicationsCount loads the aggregate count.
func (c *Client) FetchMyApplicationsCount(ctx context.Context) (int, error) {
	doc, err := c.getJSON(ctx, "fetch applications count", PathApplicationsCount)
	if err != nil {
		return 0, err
	}
	count := doc.Get("count")
	if !count.Exists() {
		return 0, fmt.Errorf("fetch applications count: response has no count field")
	}
	n := count.Int()
	if n < 0 {
		n = 0
	}
	return int(n), nil
}

// FetchProjectDetail loads one project summary.
func (c *Client) FetchProjectDetail(ctx context.Context, id types.ProjectID) (types.ProjectSummary, error) {
	doc, err := c.getJSON(ctx, "fetch project", fmt.Sprintf(pathProject, id))
	if err != nil {
		return types.ProjectSummary{}, err
	}
	summary, ok := decodeProject(doc)
	if !ok {
		return types.ProjectSummary{}, fmt.Errorf("fetch project %d: response has no usable id", id)
	}
	return summary, nil
}

// SubmitApplication applies to a project. A 409 means the server already
// holds an application and is treated as success.
func (c *Client) SubmitApplication(ctx context.Context, id types.ProjectID, notes string) error {
	body, err := json.Marshal(map[string]string{"notes": notes})
	if err != nil {
		return fmt.Errorf("encoding apply request: %w", err)
	}
	return c.mutate(ctx, "submit application", http.MethodPost, fmt.Sprintf(pathApply, id), body, http.StatusConflict)
}

// WithdrawApplication withdraws from a project. A 404 means there is
// nothing left to withdraw and is treated as success.
func (c *Client) WithdrawApplication(ctx context.Context, id types.ProjectID) error {
	return c.mutate(ctx, "withdraw application", http.MethodDelete, fmt.Sprintf(pathApply, id), nil, http.StatusNotFound)
}

func (c *Client) getJSON(ctx context.Context, op, path string) (gjson.Result, error) {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: reading response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, statusError(op, resp.StatusCode, data)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%s: response is not valid JSON", op)
	}
	return gjson.ParseBytes(data), nil
}

func (c *Client) mutate(ctx context.Context, op, method, path string, body []byte, alsoOK int) error {
	resp, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == alsoOK:
		c.log.WithFields(logrus.Fields{"op": op, "status": resp.StatusCode}).Debug("treating status as success")
		return nil
	default:
		return statusError(op, resp.StatusCode, data)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

func statusError(op string, code int, body []byte) error {
	msg := ""
	if gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)
		for _, key := range []string{"error", "message", "detail"} {
			if v := doc.Get(key); v.Type == gjson.String {
				msg = v.Str
				break
			}
		}
	}
	return &StatusError{Op: op, Code: code, Message: msg}
}
