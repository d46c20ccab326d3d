package scheduler

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"streamwatch/internal/state"
	logx "streamwatch/pkg/logx"
)

type memStore struct {
	mu    sync.Mutex
	st    state.LiveState
	saves int
}

func (m *memStore) Load(ctx context.Context) (state.LiveState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return state.LiveState{}, nil
	}
	return m.st.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, s state.LiveState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = s.Clone()
	m.saves++
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) saved() (state.LiveState, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Clone(), m.saves
}

type scriptedRunner struct {
	mu     sync.Mutex
	script []func(prior state.LiveState) (state.LiveState, error)
	priors []state.LiveState
	ran    chan struct{}
}

func (r *scriptedRunner) RunCycle(ctx context.Context, names []string, prior state.LiveState) (state.LiveState, error) {
	r.mu.Lock()
	r.priors = append(r.priors, prior.Clone())
	var step func(state.LiveState) (state.LiveState, error)
	if len(r.script) > 0 {
		step = r.script[0]
		r.script = r.script[1:]
	}
	ran := r.ran
	r.mu.Unlock()

	if ran != nil {
		select {
		case ran <- struct{}{}:
		default:
		}
	}
	if step == nil {
		return prior.Clone(), nil
	}
	return step(prior)
}

func TestNextBackoffSequence(t *testing.T) {
	t.Parallel()
	var got []time.Duration
	cur := time.Duration(0)
	for i := 0; i < 3; i++ {
		cur = NextBackoff(cur)
		got = append(got, cur)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("backoff sequence = %v, want %v", got, want)
	}

	if d := NextBackoff(300 * time.Second); d != 300*time.Second {
		t.Fatalf("backoff must cap at 300s, got %v", d)
	}
	if d := NextBackoff(200 * time.Second); d != 300*time.Second {
		t.Fatalf("doubling past the cap must clamp, got %v", d)
	}
}

func TestRunOnceEscalatesAndResetsBackoff(t *testing.T) {
	t.Parallel()
	boom := errors.New("cycle failed")
	r := &scriptedRunner{script: []func(state.LiveState) (state.LiveState, error){
		func(p state.LiveState) (state.LiveState, error) { return nil, boom },
		func(p state.LiveState) (state.LiveState, error) { return nil, boom },
		func(p state.LiveState) (state.LiveState, error) { return nil, boom },
		func(p state.LiveState) (state.LiveState, error) { return p.Clone(), nil },
	}}
	st := &memStore{}
	sched, _ := NewSchedule("90s")
	l := NewLoop(r, st, []string{"a"}, sched, logx.Nop())
	l.current = state.LiveState{}

	ctx := context.Background()
	for _, want := range []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second} {
		l.runOnce(ctx)
		if l.backoff != want {
			t.Fatalf("backoff = %v, want %v", l.backoff, want)
		}
	}
	// A success reverts the next delay to the configured schedule.
	l.runOnce(ctx)
	if l.backoff != 0 {
		t.Fatalf("backoff after success = %v, want 0", l.backoff)
	}

	// Failed cycles returned nil state: nothing was persisted for them.
	if _, saves := st.saved(); saves != 1 {
		t.Fatalf("saves = %d, want 1 (success only)", saves)
	}
}

func TestRunOncePersistsPartialProgress(t *testing.T) {
	t.Parallel()
	r := &scriptedRunner{script: []func(state.LiveState) (state.LiveState, error){
		func(p state.LiveState) (state.LiveState, error) {
			// One channel settled before a mid-cycle dispatch failure.
			return state.LiveState{"a": true}, errors.New("notify b: sink rejected")
		},
	}}
	st := &memStore{}
	sched, _ := NewSchedule("90s")
	l := NewLoop(r, st, []string{"a", "b"}, sched, logx.Nop())
	l.current = state.LiveState{}

	l.runOnce(context.Background())

	got, saves := st.saved()
	if saves != 1 {
		t.Fatalf("saves = %d, want 1", saves)
	}
	if !reflect.DeepEqual(got, state.LiveState{"a": true}) {
		t.Fatalf("persisted = %v, want partial {a:true}", got)
	}
	if l.backoff == 0 {
		t.Fatal("failed cycle must still escalate backoff")
	}
	// The committed state becomes the next cycle's prior.
	if !l.current["a"] {
		t.Fatalf("committed state = %v", l.current)
	}
}

type deadlineRunner struct {
	hadDeadline bool
	err         error
}

func (r *deadlineRunner) RunCycle(ctx context.Context, names []string, prior state.LiveState) (state.LiveState, error) {
	_, r.hadDeadline = ctx.Deadline()
	if r.err != nil {
		return nil, r.err
	}
	return prior.Clone(), nil
}

func TestRunOnceCycleTimeout(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	sched, _ := NewSchedule("90s")

	// The bound reaches the engine as a context deadline.
	r := &deadlineRunner{}
	l := NewLoop(r, st, []string{"a"}, sched, logx.Nop(), WithCycleTimeout(30*time.Second))
	l.current = state.LiveState{}
	l.runOnce(context.Background())
	if !r.hadDeadline {
		t.Fatal("cycle context must carry the timeout deadline")
	}
	if l.backoff != 0 {
		t.Fatalf("successful cycle escalated backoff to %v", l.backoff)
	}

	// A cycle killed by its own deadline is a failure, not a shutdown: the
	// parent context is intact, so backoff escalates and the loop retries.
	r = &deadlineRunner{err: context.DeadlineExceeded}
	l = NewLoop(r, st, []string{"a"}, sched, logx.Nop(), WithCycleTimeout(30*time.Second))
	l.current = state.LiveState{}
	l.runOnce(context.Background())
	if l.backoff != BackoffFloor {
		t.Fatalf("backoff after timed-out cycle = %v, want %v", l.backoff, BackoffFloor)
	}

	// Without the option the engine sees no deadline.
	r = &deadlineRunner{}
	l = NewLoop(r, st, []string{"a"}, sched, logx.Nop())
	l.current = state.LiveState{}
	l.runOnce(context.Background())
	if r.hadDeadline {
		t.Fatal("unbounded loop must not impose a deadline")
	}
}

func TestRunLoadsPriorAndFlushesOnShutdown(t *testing.T) {
	st := &memStore{st: state.LiveState{"a": true}}
	r := &scriptedRunner{
		ran: make(chan struct{}, 1),
		script: []func(state.LiveState) (state.LiveState, error){
			func(p state.LiveState) (state.LiveState, error) {
				next := p.Clone()
				next["b"] = true
				return next, nil
			},
		},
	}
	sched, _ := NewSchedule("1h")
	l := NewLoop(r, st, []string{"a", "b"}, sched, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-r.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle never ran")
	}
	// The loop is now waiting out a 1h delay; shutdown must not wait for it.
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not stop the pending timer")
	}

	if got := l.Phase(); got != PhaseTerminated {
		t.Fatalf("phase = %v, want terminated", got)
	}

	r.mu.Lock()
	prior := r.priors[0]
	r.mu.Unlock()
	if !prior["a"] {
		t.Fatalf("first cycle must see persisted prior state, got %v", prior)
	}

	got, _ := st.saved()
	if !got["a"] || !got["b"] {
		t.Fatalf("flushed state = %v, want both live", got)
	}
}

func TestPhaseString(t *testing.T) {
	t.Parallel()
	tests := map[Phase]string{
		PhaseIdle:          "idle",
		PhaseAwaitingDelay: "awaiting_delay",
		PhaseRunning:       "running",
		PhaseTerminated:    "terminated",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Fatalf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}
