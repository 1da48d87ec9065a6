package progress

import (
	"context"
	"errors"
	"time"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Step statuses, as reported to monitors.
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// Reasons recorded alongside a terminal status. A completed run has none.
const (
	ReasonError     = "error"
	ReasonRejected  = "rejected"
	ReasonCancelled = "cancelled"
)

// Stage IDs, in execution order.
const (
	StagePlan     = "plan"
	StageGenerate = "generate"
	StageReview   = "review"
	StagePublish  = "publish"
)

// StageInfo names one pipeline stage.
type StageInfo struct {
	ID   string
	Name string
}

// Stages lists the pipeline stages in execution order.
var Stages = []StageInfo{
	{StagePlan, "Plan outline"},
	{StageGenerate, "Generate content"},
	{StageReview, "Review quality"},
	{StagePublish, "Publish book"},
}

// StageIndex returns the position of id in Stages, or -1.
func StageIndex(id string) int {
	for i, s := range Stages {
		if s.ID == id {
			return i
		}
	}
	return -1
}

var (
	// ErrNotFound is returned when no record exists for a run ID.
	ErrNotFound = errors.New("progress: run not found")
	// ErrAlreadyInitialized is returned by Initialize for a run ID that already has a record.
	ErrAlreadyInitialized = errors.New("progress: run already initialized")
	// ErrInvalidRunID is returned for IDs that cannot be used as a storage key.
	ErrInvalidRunID = errors.New("progress: invalid run id")
)

// Store is the durable per-run record. The pipeline is the only writer for a
// given run ID; readers get snapshots.
type Store interface {
	Initialize(ctx context.Context, in Init) (*Record, error)
	Update(ctx context.Context, runID string, u Update) error
	Complete(ctx context.Context, runID string) error
	Fail(ctx context.Context, runID, reason, message string) error
	Get(ctx context.Context, runID string) (*Snapshot, error)
	List(ctx context.Context) ([]*Record, error)
}

type Record struct {
	WorkflowID              string          `json:"workflowId"`
	Topic                   string          `json:"topic"`
	TargetAudience          string          `json:"targetAudience,omitempty"`
	StartTime               time.Time       `json:"startTime"`
	EndTime                 *time.Time      `json:"endTime,omitempty"`
	CurrentStep             string          `json:"currentStep"`
	CompletedChapters       int             `json:"completedChapters"`
	TotalChapters           int             `json:"totalChapters"`
	CompletedSections       int             `json:"completedSections"`
	TotalSections           int             `json:"totalSections"`
	TotalWordsGenerated     int             `json:"totalWordsGenerated"`
	TargetWordCount         int             `json:"targetWordCount"`
	LastUpdate              time.Time       `json:"lastUpdate"`
	Status                  string          `json:"status"` // in_progress, completed, failed
	Reason                  string          `json:"reason,omitempty"`
	Errors                  []ErrorEntry    `json:"errors"`
	CompletedChapterDetails []ChapterDetail `json:"completedChapterDetails"`
	Steps                   []Step          `json:"steps"`
	QualityScore            *float64        `json:"qualityScore,omitempty"`
	Result                  *Result         `json:"result,omitempty"`
}

// Terminal reports whether the record can no longer change status.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Step returns the step with the given ID, or nil.
func (r *Record) Step(id string) *Step {
	for i := range r.Steps {
		if r.Steps[i].ID == id {
			return &r.Steps[i]
		}
	}
	return nil
}

type ErrorEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

type ChapterDetail struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	WordCount   int       `json:"wordCount"`
	Sections    int       `json:"sections"`
	CompletedAt time.Time `json:"completedAt"`
}

type Step struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  string     `json:"duration,omitempty"`
	Progress  int        `json:"progress,omitempty"`
	Details   string     `json:"details,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Result describes the published artifact of a completed run.
type Result struct {
	ArtifactPath string    `json:"artifactPath,omitempty"`
	MarkdownPath string    `json:"markdownPath,omitempty"`
	FileSize     int64     `json:"fileSize,omitempty"`
	WordCount    int       `json:"wordCount"`
	CompletedAt  time.Time `json:"completedAt"`
}

// Init holds the fields of a fresh record.
type Init struct {
	RunID           string
	Topic           string
	Audience        string
	TotalChapters   int
	TotalSections   int
	TargetWordCount int
}

// Update is a partial record change. Zero values and nil pointers leave the
// stored field unchanged.
type Update struct {
	CurrentStep         string
	CompletedChapters   *int
	CompletedSections   *int
	TotalWordsGenerated *int
	ChapterCompleted    *ChapterDetail
	ErrorMessage        string
	Stage               *StageUpdate
	QualityScore        *float64
	Result              *Result
}

// StageUpdate moves one step through its lifecycle.
type StageUpdate struct {
	ID       string
	Status   string
	Progress *int
	Details  string
	Error    string
	// Started overrides the start time of a step that has none yet.
	Started time.Time
}

// Snapshot is a record plus the fields derived at read time.
type Snapshot struct {
	Record
	ProgressPercentage     int    `json:"progressPercentage"`
	EstimatedTimeRemaining string `json:"estimatedTimeRemaining"`
}

// Int returns a pointer to n, for Update fields.
func Int(n int) *int { return &n }

// Float returns a pointer to f, for Update fields.
func Float(f float64) *float64 { return &f }
