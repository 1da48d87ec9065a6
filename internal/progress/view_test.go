package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFixture(status string) *Snapshot {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := newRecord(Init{RunID: "r1", Topic: "Rust", TotalSections: 10, TargetWordCount: 1000}, start)
	r.Status = status
	r.CompletedSections = 5
	r.Errors = []ErrorEntry{{Time: start, Message: "transient"}}
	return derive(r, start.Add(5*time.Minute))
}

func TestBuildView_InProgress(t *testing.T) {
	v := BuildView(snapshotFixture(StatusInProgress), "/api/runs/r1/artifact")

	assert.Equal(t, "r1", v.RunID)
	assert.Equal(t, StatusInProgress, v.Status)
	assert.Equal(t, 50, v.Progress)
	assert.Equal(t, "5m 00s", v.EstimatedTimeRemaining)
	assert.Equal(t, []string{"transient"}, v.Errors)
	assert.Len(t, v.Steps, 4)
	assert.Nil(t, v.Result)
}

func TestBuildView_CompletedHasResult(t *testing.T) {
	s := snapshotFixture(StatusCompleted)
	done := s.StartTime.Add(10 * time.Minute)
	s.Result = &Result{WordCount: 1234, CompletedAt: done}

	v := BuildView(s, "/api/runs/r1/artifact")
	assert.Equal(t, 100, v.Progress)
	assert.Empty(t, v.EstimatedTimeRemaining)
	require.NotNil(t, v.Result)
	assert.Equal(t, "/api/runs/r1/artifact", v.Result.ContentURL)
	assert.Empty(t, v.Result.PDFURL)
	assert.Equal(t, 1234, v.Result.WordCount)
	require.NotNil(t, v.Result.CompletedAt)
	assert.True(t, v.Result.CompletedAt.Equal(done))
}

func TestBuildView_FailedHasNoResult(t *testing.T) {
	s := snapshotFixture(StatusFailed)
	s.Reason = ReasonRejected
	s.Result = &Result{WordCount: 10}

	v := BuildView(s, "/x")
	assert.Nil(t, v.Result)
	assert.Equal(t, ReasonRejected, v.Reason)
	assert.Empty(t, v.EstimatedTimeRemaining)
}

func TestBuildView_CopiesSteps(t *testing.T) {
	s := snapshotFixture(StatusInProgress)
	v := BuildView(s, "")
	v.Steps[0].Status = StepFailed
	assert.Equal(t, StepPending, s.Steps[0].Status)
}
