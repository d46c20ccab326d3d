// Package engine detects offline->live transitions and emits exactly one
// notification per transition per cycle.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"streamwatch/internal/state"
	"streamwatch/internal/twitch"
	logx "streamwatch/pkg/logx"
)

// Provider resolves configured names and fetches the current live picture.
type Provider interface {
	ResolveEntities(ctx context.Context, names []string) (map[string]twitch.Entity, error)
	FetchLiveSnapshots(ctx context.Context, ids []string) (map[string]twitch.Snapshot, error)
}

// Renderer turns a notification context into a sink-ready payload.
type Renderer interface {
	Render(nctx map[string]string) (json.RawMessage, error)
}

// Dispatcher posts a rendered payload to the sink.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload json.RawMessage) error
}

// Mention is the prefix prepended to notifications via the template's
// {{mention}} field.
type Mention struct {
	Everyone bool
	RoleID   string
}

func (m Mention) String() string {
	switch {
	case m.Everyone:
		return "@everyone"
	case m.RoleID != "":
		return "<@&" + m.RoleID + ">"
	default:
		return ""
	}
}

type Engine struct {
	log        logx.Logger
	provider   Provider
	renderer   Renderer
	dispatcher Dispatcher
	now        func() time.Time
	dryRun     bool

	// mention may be swapped by the config watcher while a cycle runs.
	mu      sync.Mutex
	mention Mention
}

type Option func(*Engine)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithDryRun logs would-be notifications instead of dispatching them.
func WithDryRun(on bool) Option {
	return func(e *Engine) { e.dryRun = on }
}

func New(p Provider, r Renderer, d Dispatcher, mention Mention, log logx.Logger, opts ...Option) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		log:        log,
		provider:   p,
		renderer:   r,
		dispatcher: d,
		mention:    mention,
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SetMention swaps the mention prefix at runtime.
func (e *Engine) SetMention(m Mention) {
	e.mu.Lock()
	e.mention = m
	e.mu.Unlock()
}

func (e *Engine) currentMention() Mention {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mention
}

// RunCycle resolves the configured names, fetches one batched live snapshot,
// diffs against prior and dispatches one notification per offline->live
// edge, processing names in configured order with no concurrent dispatches.
//
// The returned state holds the settled picture: every resolvable name gets
// its observed flag; unresolvable names keep their prior value untouched.
// On a mid-cycle render/dispatch failure the returned state covers only the
// names settled before the failure (the failing name keeps its prior value,
// so its transition is detected again next cycle). The engine never
// persists; the caller decides what to do with partial results.
func (e *Engine) RunCycle(ctx context.Context, names []string, prior state.LiveState) (state.LiveState, error) {
	entities, err := e.provider.ResolveEntities(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolve entities: %w", err)
	}

	ids := make([]string, 0, len(entities))
	for _, name := range names {
		if ent, ok := entities[name]; ok {
			ids = append(ids, ent.ID)
		} else {
			// Logical miss, not an error: the name is skipped this cycle
			// and its stored value stays untouched.
			e.log.Warn("configured channel not found", logx.String("channel", name))
		}
	}

	snaps, err := e.provider.FetchLiveSnapshots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}

	newState := prior.Clone()
	dispatched := 0
	for _, name := range names {
		ent, ok := entities[name]
		if !ok {
			continue
		}
		snap, isLive := snaps[ent.ID]
		wasLive := prior[name]

		if isLive && !wasLive {
			if err := e.notify(ctx, ent, snap); err != nil {
				// Abort the cycle. Names settled so far keep their observed
				// flags; this name keeps its prior value so the transition
				// fires again next cycle.
				return newState, fmt.Errorf("notify %s: %w", name, err)
			}
			dispatched++
		}
		newState[name] = isLive
	}

	e.log.Info("cycle complete",
		logx.Int("channels", len(names)),
		logx.Int("resolved", len(entities)),
		logx.Int("live", len(snaps)),
		logx.Int("dispatched", dispatched),
	)
	return newState, nil
}

func (e *Engine) notify(ctx context.Context, ent twitch.Entity, snap twitch.Snapshot) error {
	nctx := e.buildContext(ent, snap)

	payload, err := e.renderer.Render(nctx)
	if err != nil {
		return err
	}

	if e.dryRun {
		e.log.Info("dry-run: would dispatch",
			logx.String("channel", ent.Name),
			logx.String("payload", string(payload)),
		)
		return nil
	}

	if err := e.dispatcher.Dispatch(ctx, payload); err != nil {
		return err
	}
	e.log.Info("went live",
		logx.String("channel", ent.Name),
		logx.String("title", snap.Title),
		logx.String("category", snap.Category),
	)
	return nil
}

// buildContext assembles the flat key->string map consumed by the template.
func (e *Engine) buildContext(ent twitch.Entity, snap twitch.Snapshot) map[string]string {
	display := ent.DisplayName
	if display == "" {
		display = ent.Name
	}
	startedAt := ""
	if !snap.StartedAt.IsZero() {
		startedAt = snap.StartedAt.Format(time.RFC3339)
	}
	return map[string]string{
		"streamer":   display,
		"url":        "https://twitch.tv/" + ent.Name,
		"title":      snap.Title,
		"category":   snap.Category,
		"started_at": startedAt,
		"thumbnail":  snap.ThumbnailURL,
		"avatar":     ent.AvatarURL,
		"mention":    e.currentMention().String(),
		"timestamp":  e.now().UTC().Format(time.RFC3339),
	}
}
