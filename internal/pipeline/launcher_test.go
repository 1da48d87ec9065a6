package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jorge-barreto/tome/internal/progress"
)

// blockingRunner holds each run until released or cancelled.
type blockingRunner struct {
	started chan string
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan string, 8), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, req Request) (*Outcome, error) {
	r.started <- req.RunID
	select {
	case <-r.release:
		return &Outcome{RunID: req.RunID, BookGenerated: true}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitStarted(t *testing.T, r *blockingRunner) string {
	t.Helper()
	select {
	case id := <-r.started:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
		return ""
	}
}

func TestLauncher_AssignsIDAndCompletes(t *testing.T) {
	r := newBlockingRunner()
	l := NewLauncher(context.Background(), r, 2, quietLog())

	var mu sync.Mutex
	done := map[string]error{}
	l.OnDone = func(runID string, out *Outcome, err error) {
		mu.Lock()
		done[runID] = err
		mu.Unlock()
	}

	id, err := l.Start(Request{Topic: "X"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}
	if got := waitStarted(t, r); got != id {
		t.Fatalf("runner saw %q, want %q", got, id)
	}
	if running := l.Running(); len(running) != 1 || running[0] != id {
		t.Fatalf("running = %v", running)
	}

	close(r.release)
	l.Wait()

	mu.Lock()
	defer mu.Unlock()
	if err, ok := done[id]; !ok || err != nil {
		t.Fatalf("OnDone = %v, %v", ok, err)
	}
	if len(l.Running()) != 0 {
		t.Fatalf("running after wait = %v", l.Running())
	}
}

func TestLauncher_KeepsGivenID(t *testing.T) {
	r := newBlockingRunner()
	l := NewLauncher(context.Background(), r, 1, quietLog())
	id, err := l.Start(Request{RunID: "mine", Topic: "X"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "mine" {
		t.Fatalf("id = %q", id)
	}
	waitStarted(t, r)
	close(r.release)
	l.Wait()
}

func TestLauncher_Busy(t *testing.T) {
	r := newBlockingRunner()
	l := NewLauncher(context.Background(), r, 1, quietLog())

	if _, err := l.Start(Request{Topic: "A"}); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, r)

	if _, err := l.Start(Request{Topic: "B"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}

	close(r.release)
	l.Wait()

	// the slot is free again
	if _, err := l.Start(Request{Topic: "C"}); err != nil {
		t.Fatalf("start after release: %v", err)
	}
	waitStarted(t, r)
	l.Wait()
}

func TestLauncher_Cancel(t *testing.T) {
	r := newBlockingRunner()
	l := NewLauncher(context.Background(), r, 1, quietLog())
	errc := make(chan error, 1)
	l.OnDone = func(runID string, out *Outcome, err error) { errc <- err }

	id, err := l.Start(Request{Topic: "X"})
	if err != nil {
		t.Fatal(err)
	}
	waitStarted(t, r)

	if !l.Cancel(id) {
		t.Fatal("cancel reported run missing")
	}
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	l.Wait()

	if l.Cancel(id) {
		t.Fatal("cancel of finished run reported true")
	}
	if l.Cancel("nope") {
		t.Fatal("cancel of unknown run reported true")
	}
}

func TestLauncher_BaseContextCancelsRuns(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	r := newBlockingRunner()
	l := NewLauncher(base, r, 2, quietLog())
	errc := make(chan error, 2)
	l.OnDone = func(runID string, out *Outcome, err error) { errc <- err }

	for i := 0; i < 2; i++ {
		if _, err := l.Start(Request{Topic: "X"}); err != nil {
			t.Fatal(err)
		}
		waitStarted(t, r)
	}
	cancel()
	l.Wait()
	close(errc)
	n := 0
	for err := range errc {
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("finished runs = %d", n)
	}
}

func TestLauncher_DuplicateID(t *testing.T) {
	r := newBlockingRunner()
	l := NewLauncher(context.Background(), r, 2, quietLog())
	if _, err := l.Start(Request{RunID: "same", Topic: "X"}); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, r)
	if _, err := l.Start(Request{RunID: "same", Topic: "X"}); err == nil || errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v", err)
	}
	close(r.release)
	l.Wait()
}

// panicRunner creates the record, then panics like a faulty backend would.
type panicRunner struct {
	store progress.Store
}

func (r panicRunner) Run(ctx context.Context, req Request) (*Outcome, error) {
	if _, err := r.store.Initialize(ctx, progress.Init{RunID: req.RunID, Topic: req.Topic, TotalSections: 4}); err != nil {
		return nil, err
	}
	panic("backend exploded")
}

func TestLauncher_PanicMarksRunFailed(t *testing.T) {
	store, err := progress.NewFileStore(filepath.Join(t.TempDir(), "runs"))
	if err != nil {
		t.Fatal(err)
	}
	l := NewLauncher(context.Background(), panicRunner{store: store}, 1, quietLog())
	l.Store = store
	var gotErr error
	l.OnDone = func(runID string, out *Outcome, err error) { gotErr = err }

	id, err := l.Start(Request{RunID: "boom", Topic: "X"})
	if err != nil {
		t.Fatal(err)
	}
	l.Wait()

	if gotErr == nil || !strings.Contains(gotErr.Error(), "backend exploded") {
		t.Fatalf("OnDone err = %v", gotErr)
	}
	snap, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != progress.StatusFailed || snap.Reason != progress.ReasonError {
		t.Fatalf("status %q reason %q", snap.Status, snap.Reason)
	}
	if len(snap.Errors) == 0 || !strings.Contains(snap.Errors[len(snap.Errors)-1].Message, "panicked") {
		t.Fatalf("errors = %+v", snap.Errors)
	}
	if len(l.Running()) != 0 {
		t.Fatalf("running = %v", l.Running())
	}
	// the slot is released
	if _, err := l.Start(Request{RunID: "next", Topic: "Y"}); err != nil {
		t.Fatalf("second start: %v", err)
	}
	l.Wait()
}
