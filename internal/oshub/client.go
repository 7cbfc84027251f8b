// Package oshub is the REST client for the Open Supply Hub backend: production locations,
// moderation events and filter options. Calls are never retried automatically; a circuit
// breaker short-circuits calls while the backend is failing.
package oshub

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opensupplyhub/contribute/internal/config"
	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
)

const (
	userAgent = "opensupplyhub-contribute/1.0"

	// maxErrorBody bounds how much of an error response is read for decoding.
	maxErrorBody = 64 << 10
)

// Client is a circuit-breaking Open Supply Hub API client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a client for the configured backend.
func New(cfg config.UpstreamConfig, logger *slog.Logger) *Client {
	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		logger:  logger,
	}

	failures := uint32(max(cfg.BreakerFailures, 1))
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oshub",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only transport failures and 5xx count against the backend; a 4xx is the caller's problem.
		IsSuccessful: func(err error) bool {
			return err == nil || domainerrors.CodeOf(err) != domainerrors.CodeUnavailable
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// get issues a GET and decodes a JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// send issues a body-carrying request and decodes a JSON response into out (which may be nil).
func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, query, body, out)
	})
	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return domainerrors.Unavailable("Open Supply Hub is temporarily unavailable. Please try again shortly.").WithCause(err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed", "method", method, "path", path, "error", err)
		return domainerrors.Unavailable("Could not reach Open Supply Hub. Please check your connection and try again.").WithCause(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"took", time.Since(start),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeUpstream, "decode upstream response")
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return decodeError(resp.StatusCode, raw)
}

// escapePath percent-encodes one path segment.
func escapePath(segment string) string {
	return url.PathEscape(segment)
}
