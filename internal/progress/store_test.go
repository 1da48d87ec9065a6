package progress

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// backends returns a constructor per Store implementation so every behaviour
// test runs against both.
func backends() map[string]func(t *testing.T, clock *fakeClock) Store {
	return map[string]func(t *testing.T, clock *fakeClock) Store{
		"file": func(t *testing.T, clock *fakeClock) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "runs"), WithClock(clock.Now))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T, clock *fakeClock) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"), WithClock(clock.Now))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store, clock *fakeClock)) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			fn(t, mk(t, clock), clock)
		})
	}
}

func initRun(t *testing.T, s Store, id string) {
	t.Helper()
	_, err := s.Initialize(context.Background(), Init{
		RunID:           id,
		Topic:           "Go concurrency",
		Audience:        "engineers",
		TotalChapters:   2,
		TotalSections:   4,
		TargetWordCount: 1000,
	})
	require.NoError(t, err)
}

func TestInitialize_FreshRecord(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		initRun(t, s, "run-1")

		snap, err := s.Get(context.Background(), "run-1")
		require.NoError(t, err)
		assert.Equal(t, "run-1", snap.WorkflowID)
		assert.Equal(t, StatusInProgress, snap.Status)
		assert.Equal(t, 0, snap.CompletedSections)
		assert.Equal(t, 4, snap.TotalSections)
		assert.True(t, snap.StartTime.Equal(clock.Now()))
		assert.Empty(t, snap.Errors)
		require.Len(t, snap.Steps, 4)
		for _, st := range snap.Steps {
			assert.Equal(t, StepPending, st.Status)
		}
		assert.Equal(t, "Calculating...", snap.EstimatedTimeRemaining)
	})
}

func TestInitialize_RejectsDuplicate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		initRun(t, s, "run-1")
		require.NoError(t, s.Update(context.Background(), "run-1", Update{CompletedSections: Int(2)}))

		_, err := s.Initialize(context.Background(), Init{RunID: "run-1", Topic: "other"})
		assert.ErrorIs(t, err, ErrAlreadyInitialized)

		snap, err := s.Get(context.Background(), "run-1")
		require.NoError(t, err)
		assert.Equal(t, 2, snap.CompletedSections, "duplicate initialize must not reset the record")
	})
}

func TestUpdate_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		err := s.Update(context.Background(), "missing", Update{CurrentStep: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Complete(context.Background(), "missing"), ErrNotFound)
		assert.ErrorIs(t, s.Fail(context.Background(), "missing", ReasonError, "boom"), ErrNotFound)
		_, err = s.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInvalidRunID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		for _, id := range []string{"", "..", "a/b", `a\b`} {
			_, err := s.Initialize(context.Background(), Init{RunID: id})
			assert.ErrorIs(t, err, ErrInvalidRunID, "id %q", id)
		}
	})
}

func TestUpdate_MergesAndAppendsErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		initRun(t, s, "run-1")

		clock.Advance(time.Second)
		require.NoError(t, s.Update(ctx, "run-1", Update{CurrentStep: "Writing chapter 1", ErrorMessage: "first"}))
		clock.Advance(time.Second)
		require.NoError(t, s.Update(ctx, "run-1", Update{CompletedSections: Int(1), TotalWordsGenerated: Int(120), ErrorMessage: "second"}))

		snap, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, "Writing chapter 1", snap.CurrentStep)
		assert.Equal(t, 1, snap.CompletedSections)
		assert.Equal(t, 120, snap.TotalWordsGenerated)
		require.Len(t, snap.Errors, 2)
		assert.Equal(t, "first", snap.Errors[0].Message)
		assert.Equal(t, "second", snap.Errors[1].Message)
		assert.True(t, snap.LastUpdate.Equal(clock.Now()))
	})
}

func TestUpdate_CountersNeverDecrease(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()
		initRun(t, s, "run-1")

		seq := []int{1, 3, 2, 0, 4, 3}
		maxSeen := 0
		for _, n := range seq {
			require.NoError(t, s.Update(ctx, "run-1", Update{
				CompletedSections: Int(n),
				CompletedChapters: Int(n / 2),
			}))
			snap, err := s.Get(ctx, "run-1")
			require.NoError(t, err)
			if n > maxSeen {
				maxSeen = n
			}
			assert.Equal(t, maxSeen, snap.CompletedSections)
			assert.Equal(t, maxSeen/2, snap.CompletedChapters)
		}
	})
}

func TestLastUpdate_NeverMovesBackwards(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		initRun(t, s, "run-1")
		clock.Advance(time.Minute)
		require.NoError(t, s.Update(ctx, "run-1", Update{CurrentStep: "a"}))
		later := clock.Now()

		clock.Advance(-30 * time.Second)
		require.NoError(t, s.Update(ctx, "run-1", Update{CurrentStep: "b"}))

		snap, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.True(t, snap.LastUpdate.Equal(later))
	})
}

func TestTerminalState_IsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()
		initRun(t, s, "done")
		require.NoError(t, s.Complete(ctx, "done"))
		require.NoError(t, s.Complete(ctx, "done"))
		require.NoError(t, s.Fail(ctx, "done", ReasonError, "late failure"))
		require.NoError(t, s.Update(ctx, "done", Update{CurrentStep: "Writing", CompletedSections: Int(3)}))

		snap, err := s.Get(ctx, "done")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, snap.Status)
		assert.Equal(t, "Completed", snap.CurrentStep)
		assert.Equal(t, 0, snap.CompletedSections)

		initRun(t, s, "failed")
		require.NoError(t, s.Fail(ctx, "failed", ReasonCancelled, "run cancelled"))
		require.NoError(t, s.Complete(ctx, "failed"))
		require.NoError(t, s.Update(ctx, "failed", Update{CurrentStep: "Writing", ErrorMessage: "after"}))

		snap, err = s.Get(ctx, "failed")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, snap.Status)
		assert.Equal(t, ReasonCancelled, snap.Reason)
		assert.Equal(t, "Failed", snap.CurrentStep)
		require.Len(t, snap.Errors, 2)
		assert.Equal(t, "after", snap.Errors[1].Message)
	})
}

func TestFail_DoesNotDuplicateTrailingError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()
		initRun(t, s, "run-1")
		msg := `section "Intro" failed after 3 attempts`
		require.NoError(t, s.Update(ctx, "run-1", Update{ErrorMessage: msg}))
		require.NoError(t, s.Fail(ctx, "run-1", ReasonError, msg))

		snap, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, snap.Status)
		assert.Equal(t, ReasonError, snap.Reason)
		require.Len(t, snap.Errors, 1)
		assert.NotNil(t, snap.EndTime)
	})
}

func TestStageUpdates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		initRun(t, s, "run-1")
		require.NoError(t, s.Update(ctx, "run-1", Update{Stage: &StageUpdate{ID: StageGenerate, Status: StepInProgress}}))
		clock.Advance(90 * time.Second)
		require.NoError(t, s.Update(ctx, "run-1", Update{Stage: &StageUpdate{ID: StageGenerate, Status: StepCompleted, Progress: Int(100), Details: "4 sections"}}))

		snap, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		st := snap.Step(StageGenerate)
		require.NotNil(t, st)
		assert.Equal(t, StepCompleted, st.Status)
		assert.Equal(t, 100, st.Progress)
		assert.Equal(t, "4 sections", st.Details)
		assert.Equal(t, "1m 30s", st.Duration)
		require.NotNil(t, st.StartTime)
		require.NotNil(t, st.EndTime)
	})
}

func TestGet_DerivedFields(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		initRun(t, s, "run-1")

		clock.Advance(2 * time.Minute)
		require.NoError(t, s.Update(ctx, "run-1", Update{CompletedSections: Int(1), TotalWordsGenerated: Int(100)}))

		snap, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		// sections 1/4 beats words 100/1000
		assert.Equal(t, 25, snap.ProgressPercentage)
		// 2m per section, 3 left
		assert.Equal(t, "6m 00s", snap.EstimatedTimeRemaining)

		require.NoError(t, s.Update(ctx, "run-1", Update{TotalWordsGenerated: Int(600)}))
		snap, err = s.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, 60, snap.ProgressPercentage)

		require.NoError(t, s.Update(ctx, "run-1", Update{TotalWordsGenerated: Int(5000)}))
		snap, err = s.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, 100, snap.ProgressPercentage)
	})
}

func TestList_NewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		initRun(t, s, "older")
		clock.Advance(time.Hour)
		initRun(t, s, "newer")

		recs, err := s.List(context.Background())
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "newer", recs[0].WorkflowID)
		assert.Equal(t, "older", recs[1].WorkflowID)
	})
}

func TestConcurrentRunsDoNotInterfere(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()
		ids := []string{"a", "b", "c"}
		for _, id := range ids {
			initRun(t, s, id)
		}
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for i := 1; i <= 4; i++ {
					if err := s.Update(ctx, id, Update{CompletedSections: Int(i)}); err != nil {
						t.Errorf("update %s: %v", id, err)
					}
				}
			}(id)
		}
		wg.Wait()
		for _, id := range ids {
			snap, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 4, snap.CompletedSections)
		}
	})
}

func TestErrNotFound_Wrapped(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "nope")
}

func TestStageUpdate_StartedOverride(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		began := clock.Now()
		clock.Advance(45 * time.Second)
		initRun(t, s, "run-1")
		require.NoError(t, s.Update(ctx, "run-1", Update{Stage: &StageUpdate{ID: StagePlan, Status: StepCompleted, Started: began}}))

		snap, err := s.Get(ctx, "run-1")
		require.NoError(t, err)
		st := snap.Step(StagePlan)
		require.NotNil(t, st.StartTime)
		assert.True(t, st.StartTime.Equal(began))
		assert.Equal(t, "0m 45s", st.Duration)
	})
}
