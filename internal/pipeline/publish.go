package pipeline

import (
	"context"
	"fmt"

	"github.com/jorge-barreto/tome/internal/gate"
	"github.com/jorge-barreto/tome/internal/progress"
	"github.com/jorge-barreto/tome/internal/render"
)

// BookTitle is the title given to every rendered book.
func BookTitle(topic string) string {
	return "The Complete Guide to " + topic
}

func (p *Pipeline) publish(ctx context.Context, plan *Plan, draft *Draft, rv *Review) (*Outcome, error) {
	started := p.now()
	runID := plan.RunID
	if err := p.stageStart(ctx, runID, progress.StagePublish); err != nil {
		return nil, p.fail(ctx, runID, progress.StagePublish, err)
	}
	out := &Outcome{
		RunID:          runID,
		FinalWordCount: draft.TotalWordCount,
		QualityScore:   rv.QualityScore,
	}

	if !rv.Approved {
		reason := gate.Reason(rv.QualityScore, rv.Summary)
		msg := fmt.Sprintf("rejected by review (quality score %.1f): %s", rv.QualityScore, reason)
		p.failWith(ctx, runID, progress.StagePublish, progress.ReasonRejected, msg, nil)
		out.Rejected = true
		out.RejectionReason = reason
		out.CompletedAt = p.now()
		return out, nil
	}

	book := render.Book{ID: runID, Title: BookTitle(plan.Topic), Audience: plan.Audience}
	for _, c := range rv.Chapters {
		book.Chapters = append(book.Chapters, render.Chapter{
			Number:    c.Number,
			Title:     c.Title,
			Content:   c.Content,
			WordCount: c.WordCount,
		})
	}
	art, err := p.Renderer.Render(ctx, book)
	if err != nil {
		if ctx.Err() != nil {
			return nil, p.fail(ctx, runID, progress.StagePublish, err)
		}
		return nil, p.fail(ctx, runID, progress.StagePublish, &RenderError{Err: err})
	}

	out.BookGenerated = true
	out.ArtifactPath = art.Path
	out.MarkdownPath = art.MarkdownPath
	out.FileSize = art.Size
	out.CompletedAt = p.now()

	if err := p.Store.Update(ctx, runID, progress.Update{
		Result: &progress.Result{
			ArtifactPath: art.Path,
			MarkdownPath: art.MarkdownPath,
			FileSize:     art.Size,
			WordCount:    draft.TotalWordCount,
			CompletedAt:  out.CompletedAt,
		},
	}); err != nil {
		return nil, p.fail(ctx, runID, progress.StagePublish, err)
	}
	if err := p.stageDone(ctx, runID, progress.StagePublish, fmt.Sprintf("%d bytes", art.Size), started); err != nil {
		return nil, p.fail(ctx, runID, progress.StagePublish, err)
	}
	if err := p.Store.Complete(ctx, runID); err != nil {
		return nil, p.fail(ctx, runID, progress.StagePublish, fmt.Errorf("completing run: %w", err))
	}
	return out, nil
}
