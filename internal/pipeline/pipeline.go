// Package pipeline drives a book run through its four stages: PLAN,
// GENERATE, REVIEW and PUBLISH. Every stage reports to the progress store
// before the next begins, and any failure after the record exists leaves
// the run in the failed state before Run returns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jorge-barreto/tome/internal/agent"
	"github.com/jorge-barreto/tome/internal/generate"
	"github.com/jorge-barreto/tome/internal/outline"
	"github.com/jorge-barreto/tome/internal/progress"
	"github.com/jorge-barreto/tome/internal/render"
	"github.com/jorge-barreto/tome/internal/research"
)

const (
	MinWords     = 1000
	MaxWords     = 100000
	DefaultWords = 60000
)

// ErrRendering matches every *RenderError.
var ErrRendering = errors.New("rendering failed")

// RenderError wraps a renderer failure in PUBLISH.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "rendering book: " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool { return target == ErrRendering }

// ClampWords bounds a requested word count. Zero selects def, or
// DefaultWords when def is zero too.
func ClampWords(n, def int) int {
	if n == 0 {
		n = def
	}
	if n == 0 {
		n = DefaultWords
	}
	return min(max(n, MinWords), MaxWords)
}

// Request starts a run. RunID may be pre-assigned by the caller.
type Request struct {
	RunID           string `json:"runId,omitempty"`
	Topic           string `json:"topic"`
	Audience        string `json:"audience"`
	TargetWordCount int    `json:"targetWordCount"`
}

// Plan is the output of PLAN.
type Plan struct {
	RunID       string
	Topic       string
	Audience    string
	TargetWords int
	// OutlineText is Chapters rendered back to outline form, so section
	// prompts see the structure actually being written.
	OutlineText   string
	Chapters      []outline.Chapter
	TotalSections int
}

// ChapterContent is one written chapter.
type ChapterContent struct {
	Number    int
	Title     string
	Sections  []generate.Section
	Content   string
	WordCount int
}

// Draft is the output of GENERATE.
type Draft struct {
	RunID          string
	Topic          string
	Chapters       []ChapterContent
	TotalWordCount int
}

// Review is the output of REVIEW.
type Review struct {
	QualityScore float64
	Approved     bool
	Summary      string
	Chapters     []ChapterContent
}

// Outcome is the output of PUBLISH and of Run.
type Outcome struct {
	RunID           string    `json:"runId"`
	BookGenerated   bool      `json:"bookGenerated"`
	ArtifactPath    string    `json:"artifactPath,omitempty"`
	MarkdownPath    string    `json:"markdownPath,omitempty"`
	FileSize        int64     `json:"fileSize,omitempty"`
	FinalWordCount  int       `json:"finalWordCount"`
	QualityScore    float64   `json:"qualityScore"`
	Rejected        bool      `json:"rejected,omitempty"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	CompletedAt     time.Time `json:"completedAt"`
}

// Reporter receives console-level stage events. ux.Console implements it.
type Reporter interface {
	StageStart(index, total int, name string)
	StageDone(index int, d time.Duration)
	StageFail(index int, name, msg string)
	SectionDone(chapter, section int, title string, words int)
}

type nopReporter struct{}

func (nopReporter) StageStart(int, int, string)       {}
func (nopReporter) StageDone(int, time.Duration)      {}
func (nopReporter) StageFail(int, string, string)     {}
func (nopReporter) SectionDone(int, int, string, int) {}

// Pipeline holds the collaborators of a run. It carries no per-run state,
// so one Pipeline may serve concurrent runs.
type Pipeline struct {
	Store    progress.Store
	Outliner agent.Generator
	Writer   *generate.Writer
	Reviewer agent.Generator
	Renderer render.Renderer
	// Research is optional; its failures are logged and ignored.
	Research research.Fetcher
	// CallTimeout bounds the outline and review calls.
	CallTimeout time.Duration
	Log         *slog.Logger
	Report      Reporter
	NewID       func() string
	Now         func() time.Time
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

func (p *Pipeline) report() Reporter {
	if p.Report == nil {
		return nopReporter{}
	}
	return p.Report
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) newID() string {
	if p.NewID == nil {
		return uuid.NewString()
	}
	return p.NewID()
}

// Run executes all four stages for req. A rejected book is not an error:
// the Outcome has Rejected set and the record is failed with reason
// "rejected".
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	req.TargetWordCount = ClampWords(req.TargetWordCount, 0)

	plan, err := p.plan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	log := p.log().With("run_id", plan.RunID)

	draft, err := p.generate(ctx, plan)
	if err != nil {
		return nil, err
	}
	review, err := p.review(ctx, plan, draft)
	if err != nil {
		return nil, err
	}
	out, err := p.publish(ctx, plan, draft, review)
	if err != nil {
		return nil, err
	}
	log.Info("run finished", "book_generated", out.BookGenerated,
		"words", out.FinalWordCount, "score", out.QualityScore)
	return out, nil
}

// stageStart marks a stage in progress in both the store and the console.
func (p *Pipeline) stageStart(ctx context.Context, runID, id string) error {
	i := progress.StageIndex(id)
	p.report().StageStart(i, len(progress.Stages), progress.Stages[i].Name)
	return p.Store.Update(ctx, runID, progress.Update{
		CurrentStep: progress.Stages[i].Name,
		Stage:       &progress.StageUpdate{ID: id, Status: progress.StepInProgress},
	})
}

func (p *Pipeline) stageDone(ctx context.Context, runID, id, details string, started time.Time) error {
	i := progress.StageIndex(id)
	if err := p.Store.Update(ctx, runID, progress.Update{
		Stage: &progress.StageUpdate{ID: id, Status: progress.StepCompleted, Progress: progress.Int(100), Details: details, Started: started},
	}); err != nil {
		return err
	}
	p.report().StageDone(i, p.now().Sub(started))
	return nil
}

// fail persists the failed state of the run and returns err unchanged.
// Store writes use a context that survives cancellation of ctx.
func (p *Pipeline) fail(ctx context.Context, runID, stage string, err error) error {
	reason, msg := progress.ReasonError, err.Error()
	if ctx.Err() != nil {
		reason, msg = progress.ReasonCancelled, "run cancelled"
	}
	return p.failWith(ctx, runID, stage, reason, msg, err)
}

func (p *Pipeline) failWith(ctx context.Context, runID, stage, reason, msg string, err error) error {
	wctx := context.WithoutCancel(ctx)
	log := p.log().With("run_id", runID, "stage", stage)

	if uerr := p.Store.Update(wctx, runID, progress.Update{
		Stage: &progress.StageUpdate{ID: stage, Status: progress.StepFailed, Error: msg},
	}); uerr != nil {
		log.Warn("failed to record stage failure", "error", uerr)
	}
	if ferr := p.Store.Fail(wctx, runID, reason, msg); ferr != nil {
		log.Error("failed to mark run failed", "error", ferr)
	}
	if i := progress.StageIndex(stage); i >= 0 {
		p.report().StageFail(i, progress.Stages[i].Name, msg)
	}
	log.Warn("run failed", "reason", reason, "error", msg)
	return err
}

// call runs one non-section generation under CallTimeout.
func (p *Pipeline) call(ctx context.Context, g agent.Generator, req agent.Request) (string, error) {
	if p.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		defer cancel()
	}
	return g.Generate(ctx, req)
}
