// Package discord posts rendered notification payloads to a webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "streamwatch/pkg/logx"
)

// ErrDispatch marks sink failures: transport errors and non-2xx responses.
// No retry happens here; the failure propagates to the cycle.
var ErrDispatch = errors.New("dispatch failed")

// StatusError is a non-2xx webhook response, body included for diagnosis.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrDispatch }

// Doer is the HTTP capability: perform a request, return the response.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	WebhookURL string
	RatePerSec int
}

// Webhook dispatches payloads to a fixed sink endpoint. A token bucket
// spaces out posts so a burst of simultaneous transitions stays inside the
// sink's rate limits.
type Webhook struct {
	log  logx.Logger
	http Doer

	mu      sync.Mutex
	url     string
	limiter *rate.Limiter
}

type Option func(*Webhook)

// WithHTTPClient overrides the HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(w *Webhook) {
		if d != nil {
			w.http = d
		}
	}
}

func NewWebhook(cfg Config, log logx.Logger, opts ...Option) *Webhook {
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Webhook{
		log:  log,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(w)
	}
	w.Apply(cfg)
	return w
}

// Apply swaps the sink endpoint and rate at runtime (config hot reload).
func (w *Webhook) Apply(cfg Config) {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	w.mu.Lock()
	w.url = cfg.WebhookURL
	w.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	w.mu.Unlock()
}

// Dispatch posts the payload. Any 2xx is success; everything else is a
// *StatusError wrapping ErrDispatch.
func (w *Webhook) Dispatch(ctx context.Context, payload json.RawMessage) error {
	w.mu.Lock()
	url := w.url
	lim := w.limiter
	w.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	w.log.Debug("payload dispatched", logx.Int("status", resp.StatusCode))
	return nil
}
