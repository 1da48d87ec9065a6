package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jorge-barreto/tome/internal/agent"
	"github.com/jorge-barreto/tome/internal/outline"
	"github.com/jorge-barreto/tome/internal/progress"
)

const outlineSystemPrompt = `You are an experienced book editor planning a long-form educational book.
Answer with the outline only. Use the format:
Chapter N: Title
- Section title`

// BuildOutlinePrompt asks for 8-12 chapters of 4-6 sections each.
func BuildOutlinePrompt(req Request, background string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Audience: %s\n", req.Audience)
	fmt.Fprintf(&b, "Total length: about %d words\n\n", req.TargetWordCount)
	b.WriteString("Create a detailed outline for a comprehensive book on this topic.\n")
	b.WriteString("Plan 8 to 12 chapters. Give each chapter 4 to 6 sections of roughly 600 to 800 words.\n")
	b.WriteString("Order chapters from fundamentals to advanced material.\n")
	if background != "" {
		b.WriteString("\nBackground material:\n")
		b.WriteString(background)
		b.WriteString("\n")
	}
	return b.String()
}

// plan generates and parses the outline, then creates the progress record.
// Nothing is persisted if it fails.
func (p *Pipeline) plan(ctx context.Context, req Request) (*Plan, error) {
	started := p.now()
	runID := req.RunID
	if runID == "" {
		runID = p.newID()
	}
	log := p.log().With("run_id", runID, "stage", progress.StagePlan)
	p.report().StageStart(0, len(progress.Stages), progress.Stages[0].Name)

	var background string
	if p.Research != nil {
		text, err := p.Research.Fetch(ctx, req.Topic)
		if err != nil {
			log.Warn("research unavailable", "error", err)
		} else {
			background = text
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := p.call(ctx, p.Outliner, agent.Request{
		Role:     agent.RoleOutline,
		System:   outlineSystemPrompt,
		Prompt:   BuildOutlinePrompt(req, background),
		ThreadID: runID,
	})
	if err != nil {
		p.report().StageFail(0, progress.Stages[0].Name, err.Error())
		return nil, fmt.Errorf("generating outline: %w", err)
	}

	chapters := outline.Parse(text, req.TargetWordCount)
	plan := &Plan{
		RunID:         runID,
		Topic:         req.Topic,
		Audience:      req.Audience,
		TargetWords:   req.TargetWordCount,
		OutlineText:   outline.Text(chapters),
		Chapters:      chapters,
		TotalSections: outline.TotalSections(chapters),
	}

	if _, err := p.Store.Initialize(ctx, progress.Init{
		RunID:           runID,
		Topic:           req.Topic,
		Audience:        req.Audience,
		TotalChapters:   len(chapters),
		TotalSections:   plan.TotalSections,
		TargetWordCount: req.TargetWordCount,
	}); err != nil {
		return nil, fmt.Errorf("initializing progress: %w", err)
	}
	details := fmt.Sprintf("%d chapters, %d sections", len(chapters), plan.TotalSections)
	if err := p.stageDone(ctx, runID, progress.StagePlan, details, started); err != nil {
		return nil, p.fail(ctx, runID, progress.StagePlan, err)
	}
	log.Info("outline ready", "chapters", len(chapters), "sections", plan.TotalSections)
	return plan, nil
}
