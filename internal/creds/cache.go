// Package creds owns the upstream bearer token: its expiry, its refresh
// via the client-credentials grant, and its persistence across restarts.
package creds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logx "streamwatch/pkg/logx"
)

// ErrAuth marks token acquisition failures. They are not retried here;
// the scheduler's backoff handles the next attempt.
var ErrAuth = errors.New("auth failed")

// DefaultSkewMargin is subtracted from the real expiry so a token is never
// used when it could expire mid-request.
const DefaultSkewMargin = 60 * time.Second

// Credential is the persisted token state.
type Credential struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is epoch milliseconds.
	ExpiresAt int64 `json:"expires_at"`
}

// TokenSource performs one token request. Implementations do not cache;
// reuse is the Cache's job.
type TokenSource interface {
	Token(ctx context.Context) (token string, expiresAt time.Time, err error)
}

// Cache is the process-wide credential owner. It is not safe for concurrent
// use; the single-threaded cycle model makes that unnecessary.
type Cache struct {
	log  logx.Logger
	path string
	src  TokenSource
	skew time.Duration
	now  func() time.Time

	cred Credential
}

type Option func(*Cache)

func WithSkewMargin(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.skew = d
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache loads any previously persisted credential from path. A missing or
// corrupt file is not an error; the first GetToken will refresh.
func NewCache(path string, src TokenSource, log logx.Logger, opts ...Option) *Cache {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Cache{
		log:  log,
		path: path,
		src:  src,
		skew: DefaultSkewMargin,
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.load()
	return c
}

func (c *Cache) load() {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("credential file unreadable; starting fresh", logx.String("path", c.path), logx.Err(err))
		}
		return
	}
	var cred Credential
	if err := json.Unmarshal(b, &cred); err != nil {
		c.log.Warn("credential file corrupt; starting fresh", logx.String("path", c.path), logx.Err(err))
		return
	}
	c.cred = cred
}

// Valid reports whether the cached token can still be used at t.
func (c *Cache) valid(t time.Time) bool {
	if c.cred.AccessToken == "" {
		return false
	}
	return t.UnixMilli() < c.cred.ExpiresAt-c.skew.Milliseconds()
}

// GetToken returns the cached token when it is still inside the
// expiry-minus-skew window, otherwise performs exactly one refresh,
// persists the replacement and returns it.
func (c *Cache) GetToken(ctx context.Context) (string, error) {
	if c.valid(c.now()) {
		return c.cred.AccessToken, nil
	}

	tok, exp, err := c.src.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if tok == "" || exp.IsZero() {
		return "", fmt.Errorf("%w: token response missing access_token or expiry", ErrAuth)
	}

	c.cred = Credential{AccessToken: tok, ExpiresAt: exp.UnixMilli()}
	if err := c.persist(); err != nil {
		// The token itself is usable; losing the cache only costs one
		// refresh after a restart.
		c.log.Warn("credential persist failed", logx.String("path", c.path), logx.Err(err))
	}
	c.log.Debug("token refreshed", logx.Time("expires_at", exp))
	return tok, nil
}

func (c *Cache) persist() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(c.cred)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
