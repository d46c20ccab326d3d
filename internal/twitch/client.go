// Package twitch maps configured channel names to Helix identifiers and
// fetches the current live/offline picture in batched calls.
package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "streamwatch/pkg/logx"
)

const (
	helixBaseURL = "https://api.twitch.tv/helix"

	// Fixed preview dimensions substituted into thumbnail URL templates.
	thumbnailWidth  = 1280
	thumbnailHeight = 720

	// Helix batch endpoints accept up to 100 ids/logins per request.
	batchLimit = 100
)

// TokenProvider supplies the current bearer token. It is consulted per
// request so a refreshed token is picked up automatically.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// Doer is the HTTP capability: perform a request, return the response.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	log      logx.Logger
	clientID string
	tokens   TokenProvider
	http     Doer
	baseURL  string
	now      func() time.Time
}

type Option func(*Client)

// WithBaseURL overrides the Helix endpoint (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithClock overrides the time source used for thumbnail cache-busting (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(clientID string, tokens TokenProvider, log logx.Logger, opts ...Option) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{
		log:      log,
		clientID: clientID,
		tokens:   tokens,
		http:     &http.Client{Timeout: 30 * time.Second},
		baseURL:  helixBaseURL,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ResolveEntities looks up the given logins. Names with no match are simply
// omitted from the result; the caller treats them as unknown and must not
// touch their persisted state.
func (c *Client) ResolveEntities(ctx context.Context, names []string) (map[string]Entity, error) {
	out := make(map[string]Entity, len(names))
	for lo := 0; lo < len(names); lo += batchLimit {
		q := url.Values{}
		for _, n := range names[lo:min(lo+batchLimit, len(names))] {
			q.Add("login", n)
		}
		var resp usersResponse
		if err := c.get(ctx, "/users", q, &resp); err != nil {
			return nil, fmt.Errorf("resolve users: %w", err)
		}
		for _, u := range resp.Data {
			name := strings.ToLower(u.Login)
			out[name] = Entity{
				Name:        name,
				ID:          u.ID,
				DisplayName: u.DisplayName,
				AvatarURL:   u.ProfileImageURL,
			}
		}
	}
	return out, nil
}

// FetchLiveSnapshots returns the live picture for the given channel ids,
// keyed by id. Offline channels are absent from the result; absence means
// offline, there is no explicit marker.
func (c *Client) FetchLiveSnapshots(ctx context.Context, ids []string) (map[string]Snapshot, error) {
	out := make(map[string]Snapshot)
	for lo := 0; lo < len(ids); lo += batchLimit {
		q := url.Values{}
		for _, id := range ids[lo:min(lo+batchLimit, len(ids))] {
			q.Add("user_id", id)
		}
		q.Set("first", strconv.Itoa(batchLimit))
		var resp streamsResponse
		if err := c.get(ctx, "/streams", q, &resp); err != nil {
			return nil, fmt.Errorf("fetch streams: %w", err)
		}
		for _, s := range resp.Data {
			// Helix reports "live" for live streams and "" in case of error.
			if s.Type != "live" {
				continue
			}
			startedAt, _ := time.Parse(time.RFC3339, s.StartedAt)
			out[s.UserID] = Snapshot{
				Title:        s.Title,
				Category:     s.GameName,
				StartedAt:    startedAt,
				ThumbnailURL: c.thumbnailURL(s.ThumbnailURL),
			}
		}
	}
	return out, nil
}

// thumbnailURL substitutes the resolution placeholders and appends a
// time-derived cache buster so link-preview caches don't reuse a stale image.
func (c *Client) thumbnailURL(tmpl string) string {
	if tmpl == "" {
		return ""
	}
	u := strings.ReplaceAll(tmpl, "{width}", strconv.Itoa(thumbnailWidth))
	u = strings.ReplaceAll(u, "{height}", strconv.Itoa(thumbnailHeight))
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "t=" + strconv.FormatInt(c.now().Unix(), 10)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Client-Id", c.clientID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("helix %s: status %d: %s", path, resp.StatusCode, truncate(string(body), 300))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("helix %s: decode: %w", path, err)
	}
	return nil
}

func truncate(s string, maxN int) string {
	if len(s) <= maxN {
		return s
	}
	return s[:maxN-3] + "..."
}
