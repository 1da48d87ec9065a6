package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jorge-barreto/tome/internal/progress"
)

// ErrBusy is returned by Launcher.Start when every run slot is taken.
// It is transient; callers may retry.
var ErrBusy = errors.New("pipeline: too many runs in progress")

// Runner runs one book. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, req Request) (*Outcome, error)
}

// Launcher starts runs in the background, bounded by MaxConcurrent, each
// with its own cancel function.
type Launcher struct {
	runner Runner
	base   context.Context
	log    *slog.Logger
	slots  chan struct{}
	// OnDone, when set, is called after each run returns.
	OnDone func(runID string, out *Outcome, err error)
	// Store, when set, records a panicking run as failed.
	Store progress.Store

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewLauncher returns a launcher whose runs derive from base; cancelling
// base cancels them all.
func NewLauncher(base context.Context, r Runner, maxConcurrent int, log *slog.Logger) *Launcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Launcher{
		runner:  r,
		base:    base,
		log:     log,
		slots:   make(chan struct{}, maxConcurrent),
		running: make(map[string]context.CancelFunc),
	}
}

// Start assigns a run ID and runs req in a goroutine. The ID is returned
// before PLAN finishes, so the progress record may not exist yet.
func (l *Launcher) Start(req Request) (string, error) {
	select {
	case l.slots <- struct{}{}:
	default:
		return "", ErrBusy
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(l.base)

	l.mu.Lock()
	if _, dup := l.running[req.RunID]; dup {
		l.mu.Unlock()
		cancel()
		<-l.slots
		return "", errors.New("pipeline: run " + req.RunID + " already running")
	}
	l.running[req.RunID] = cancel
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() { <-l.slots }()
		defer func() {
			l.mu.Lock()
			delete(l.running, req.RunID)
			l.mu.Unlock()
			cancel()
		}()

		l.log.Info("run started", "run_id", req.RunID, "topic", req.Topic, "words", req.TargetWordCount)
		out, err := l.run(ctx, req)
		if err != nil {
			l.log.Error("run failed", "run_id", req.RunID, "error", err)
		}
		if l.OnDone != nil {
			l.OnDone(req.RunID, out, err)
		}
	}()
	return req.RunID, nil
}

// run calls the runner and turns a panic into an error, marking the record
// failed so it does not stay in progress.
func (l *Launcher) run(ctx context.Context, req Request) (out *Outcome, err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		out, err = nil, fmt.Errorf("pipeline: run panicked: %v", p)
		l.log.Error("run panicked", "run_id", req.RunID, "panic", p, "stack", string(debug.Stack()))
		if l.Store == nil {
			return
		}
		ferr := l.Store.Fail(context.WithoutCancel(ctx), req.RunID, progress.ReasonError, err.Error())
		if ferr != nil && !errors.Is(ferr, progress.ErrNotFound) {
			l.log.Error("recording panic", "run_id", req.RunID, "error", ferr)
		}
	}()
	return l.runner.Run(ctx, req)
}

// Cancel stops a running run. It reports whether the run was found.
func (l *Launcher) Cancel(runID string) bool {
	l.mu.Lock()
	cancel, ok := l.running[runID]
	l.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running lists the IDs of runs in flight, sorted.
func (l *Launcher) Running() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.running))
	for id := range l.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until every started run has returned.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
