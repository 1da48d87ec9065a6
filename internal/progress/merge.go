package progress

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// Option customizes a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func validRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." ||
		strings.ContainsAny(runID, `/\`) || filepath.Base(runID) != runID {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

func newRecord(in Init, now time.Time) *Record {
	steps := make([]Step, 0, len(Stages))
	for _, s := range Stages {
		steps = append(steps, Step{ID: s.ID, Name: s.Name, Status: StepPending})
	}
	return &Record{
		WorkflowID:              in.RunID,
		Topic:                   in.Topic,
		TargetAudience:          in.Audience,
		StartTime:               now,
		CurrentStep:             "Initialized",
		TotalChapters:           in.TotalChapters,
		TotalSections:           in.TotalSections,
		TargetWordCount:         in.TargetWordCount,
		LastUpdate:              now,
		Status:                  StatusInProgress,
		Errors:                  []ErrorEntry{},
		CompletedChapterDetails: []ChapterDetail{},
		Steps:                   steps,
	}
}

// touch refreshes LastUpdate without letting it move backwards.
func touch(r *Record, now time.Time) {
	if now.After(r.LastUpdate) {
		r.LastUpdate = now
	}
}

func appendError(r *Record, msg string, now time.Time) {
	r.Errors = append(r.Errors, ErrorEntry{Time: now, Message: msg})
}

func applyUpdate(r *Record, u Update, now time.Time) {
	defer touch(r, now)
	if u.ErrorMessage != "" {
		appendError(r, u.ErrorMessage, now)
	}
	if r.Terminal() {
		return
	}
	if u.CurrentStep != "" {
		r.CurrentStep = u.CurrentStep
	}
	if u.CompletedChapters != nil && *u.CompletedChapters > r.CompletedChapters {
		r.CompletedChapters = *u.CompletedChapters
	}
	if u.CompletedSections != nil && *u.CompletedSections > r.CompletedSections {
		r.CompletedSections = *u.CompletedSections
	}
	if u.TotalWordsGenerated != nil && *u.TotalWordsGenerated > r.TotalWordsGenerated {
		r.TotalWordsGenerated = *u.TotalWordsGenerated
	}
	if u.ChapterCompleted != nil {
		r.CompletedChapterDetails = append(r.CompletedChapterDetails, *u.ChapterCompleted)
	}
	if u.QualityScore != nil {
		score := *u.QualityScore
		r.QualityScore = &score
	}
	if u.Result != nil {
		res := *u.Result
		r.Result = &res
	}
	if u.Stage != nil {
		applyStage(r, *u.Stage, now)
	}
}

func applyStage(r *Record, su StageUpdate, now time.Time) {
	step := r.Step(su.ID)
	if step == nil {
		return
	}
	start := now
	if !su.Started.IsZero() {
		start = su.Started
	}
	switch su.Status {
	case StepInProgress:
		if step.StartTime == nil {
			step.StartTime = &start
		}
	case StepCompleted, StepFailed:
		if step.StartTime == nil {
			step.StartTime = &start
		}
		t := now
		step.EndTime = &t
		step.Duration = formatDuration(t.Sub(*step.StartTime))
	}
	if su.Status != "" {
		step.Status = su.Status
	}
	if su.Progress != nil {
		step.Progress = *su.Progress
	}
	if su.Details != "" {
		step.Details = su.Details
	}
	if su.Error != "" {
		step.Error = su.Error
	}
}

func applyComplete(r *Record, now time.Time) {
	if r.Terminal() {
		return
	}
	r.Status = StatusCompleted
	r.CurrentStep = "Completed"
	t := now
	r.EndTime = &t
	touch(r, now)
}

func applyFail(r *Record, reason, msg string, now time.Time) {
	if msg != "" {
		n := len(r.Errors)
		if n == 0 || r.Errors[n-1].Message != msg {
			appendError(r, msg, now)
		}
	}
	defer touch(r, now)
	if r.Terminal() {
		return
	}
	if reason == "" {
		reason = ReasonError
	}
	r.Status = StatusFailed
	r.Reason = reason
	r.CurrentStep = "Failed"
	t := now
	r.EndTime = &t
}

// derive computes the read-time fields of a snapshot.
func derive(r *Record, now time.Time) *Snapshot {
	snap := &Snapshot{Record: *r}

	var ratio float64
	if r.TotalSections > 0 {
		ratio = float64(r.CompletedSections) / float64(r.TotalSections)
	}
	if r.TargetWordCount > 0 {
		ratio = math.Max(ratio, float64(r.TotalWordsGenerated)/float64(r.TargetWordCount))
	}
	pct := int(math.Round(ratio * 100))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	snap.ProgressPercentage = pct

	if r.CompletedSections > 0 {
		elapsed := now.Sub(r.StartTime)
		if r.EndTime != nil {
			elapsed = r.EndTime.Sub(r.StartTime)
		}
		remaining := r.TotalSections - r.CompletedSections
		if remaining < 0 {
			remaining = 0
		}
		per := elapsed / time.Duration(r.CompletedSections)
		snap.EstimatedTimeRemaining = formatDuration(per * time.Duration(remaining))
	} else {
		snap.EstimatedTimeRemaining = "Calculating..."
	}
	return snap
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
