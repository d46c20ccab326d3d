// Package scheduler drives the reconciliation engine: one cycle at a time,
// on an interval or cron trigger, with exponential backoff after failures
// and a state flush on shutdown.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"streamwatch/internal/state"
	logx "streamwatch/pkg/logx"
)

// Backoff bounds after consecutive cycle failures. The delay doubles per
// failure and a success resets it, reverting to the configured schedule.
const (
	BackoffFloor = 5 * time.Second
	BackoffCap   = 300 * time.Second
)

// NextBackoff escalates the failure delay: floor on first failure, then
// doubling up to the cap.
func NextBackoff(cur time.Duration) time.Duration {
	if cur <= 0 {
		return BackoffFloor
	}
	next := cur * 2
	if next > BackoffCap {
		next = BackoffCap
	}
	return next
}

// Phase is the loop's observable state.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAwaitingDelay
	PhaseRunning
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingDelay:
		return "awaiting_delay"
	case PhaseRunning:
		return "running"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CycleRunner is the reconciliation engine as the loop sees it.
type CycleRunner interface {
	RunCycle(ctx context.Context, names []string, prior state.LiveState) (state.LiveState, error)
}

type Loop struct {
	log    logx.Logger
	engine CycleRunner
	store  state.Store
	names  []string
	sched  Schedule

	phase atomic.Int32

	// current is the committed in-memory state; flushed on shutdown.
	current state.LiveState
	backoff time.Duration

	cycleTimeout time.Duration
}

type LoopOption func(*Loop)

// WithCycleTimeout bounds each cycle with a deadline, so a wedged upstream
// call fails the cycle into backoff instead of stalling the loop. Zero
// disables the bound.
func WithCycleTimeout(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.cycleTimeout = d
		}
	}
}

func NewLoop(engine CycleRunner, store state.Store, names []string, sched Schedule, log logx.Logger, opts ...LoopOption) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Loop{
		log:    log,
		engine: engine,
		store:  store,
		names:  names,
		sched:  sched,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Phase returns the loop's current phase.
func (l *Loop) Phase() Phase { return Phase(l.phase.Load()) }

func (l *Loop) setPhase(p Phase) { l.phase.Store(int32(p)) }

// Run blocks until ctx is done. The first cycle starts immediately; cycles
// never overlap, and the next one is scheduled only after the previous has
// fully settled. On shutdown the pending timer is stopped and the committed
// in-memory state is flushed before returning.
func (l *Loop) Run(ctx context.Context) error {
	prior, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	l.current = prior

	l.log.Info("scheduler started",
		logx.String("schedule", l.sched.Describe()),
		logx.Int("channels", len(l.names)),
	)

	for {
		l.runOnce(ctx)
		if ctx.Err() != nil {
			return l.terminate()
		}

		delay := l.sched.NextDelay(time.Now())
		if l.backoff > 0 {
			delay = l.backoff
		}

		l.setPhase(PhaseAwaitingDelay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			// Stop the pending timer: no further cycle may start. We do not
			// wait out an interval; whatever is committed in memory is
			// flushed and the loop exits.
			timer.Stop()
			return l.terminate()
		case <-timer.C:
		}
	}
}

// runOnce executes a single cycle and settles its result: commit + persist
// on success, backoff escalation on failure. Partial results from a
// mid-cycle failure are still committed so an already-notified channel is
// not notified again for the same session.
func (l *Loop) runOnce(ctx context.Context) {
	l.setPhase(PhaseRunning)
	started := time.Now()

	cctx := ctx
	if l.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, l.cycleTimeout)
		defer cancel()
	}

	next, err := l.engine.RunCycle(cctx, l.names, l.current)
	if next != nil {
		l.current = next
		if perr := l.store.Save(ctx, l.current); perr != nil {
			l.log.Error("state persist failed", logx.Err(perr))
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the cycle; not a failure to back off from.
			return
		}
		l.backoff = NextBackoff(l.backoff)
		l.log.Error("cycle failed",
			logx.Err(err),
			logx.Duration("took", time.Since(started)),
			logx.Duration("retry_in", l.backoff),
		)
		return
	}

	if l.backoff > 0 {
		l.log.Info("cycle recovered; backoff reset")
	}
	l.backoff = 0
}

// terminate flushes the committed state and marks the loop terminated.
func (l *Loop) terminate() error {
	l.setPhase(PhaseTerminated)
	if l.current == nil {
		return nil
	}
	// The run context is already canceled; give the flush its own deadline.
	fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(fctx, l.current); err != nil {
		l.log.Error("final state flush failed", logx.Err(err))
		return err
	}
	l.log.Info("scheduler stopped; state flushed")
	return nil
}
