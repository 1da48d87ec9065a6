package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jorge-barreto/tome/internal/agent"
	"github.com/jorge-barreto/tome/internal/gate"
	"github.com/jorge-barreto/tome/internal/progress"
)

// SampleChars is how much of the first chapter the reviewer sees.
const SampleChars = 3000

const reviewSystemPrompt = `You are a senior editor reviewing a generated book before publication.
Start your answer with "Quality Score: N/10". End with APPROVED, or NEEDS MAJOR REVISION if the book must not be published.`

// BuildReviewPrompt summarizes the draft and includes a sample of the
// first chapter.
func BuildReviewPrompt(plan *Plan, draft *Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Book: %s\n", BookTitle(plan.Topic))
	fmt.Fprintf(&b, "Audience: %s\n", plan.Audience)
	fmt.Fprintf(&b, "Total words: %d (target %d)\n\n", draft.TotalWordCount, plan.TargetWords)
	b.WriteString("Chapters:\n")
	for _, c := range draft.Chapters {
		fmt.Fprintf(&b, "%d. %s: %d words, %d sections\n", c.Number, c.Title, c.WordCount, len(c.Sections))
	}
	if len(draft.Chapters) > 0 {
		b.WriteString("\nSample from chapter 1:\n")
		b.WriteString(truncate(draft.Chapters[0].Content, SampleChars))
		b.WriteString("\n")
	}
	b.WriteString("\nRate the structure, coverage and writing quality.\n")
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (p *Pipeline) review(ctx context.Context, plan *Plan, draft *Draft) (*Review, error) {
	started := p.now()
	runID := plan.RunID
	if err := p.stageStart(ctx, runID, progress.StageReview); err != nil {
		return nil, p.fail(ctx, runID, progress.StageReview, err)
	}

	text, err := p.call(ctx, p.Reviewer, agent.Request{
		Role:     agent.RoleReviewer,
		System:   reviewSystemPrompt,
		Prompt:   BuildReviewPrompt(plan, draft),
		ThreadID: runID,
	})
	if err != nil {
		return nil, p.fail(ctx, runID, progress.StageReview, fmt.Errorf("review: %w", err))
	}

	score := gate.ParseScore(text)
	rv := &Review{
		QualityScore: score,
		Approved:     gate.Decide(score, text),
		Summary:      text,
		Chapters:     draft.Chapters,
	}
	if err := p.Store.Update(ctx, runID, progress.Update{QualityScore: progress.Float(score)}); err != nil {
		return nil, p.fail(ctx, runID, progress.StageReview, err)
	}
	verdict := "approved"
	if !rv.Approved {
		verdict = "rejected"
	}
	details := fmt.Sprintf("score %.1f, %s", score, verdict)
	if err := p.stageDone(ctx, runID, progress.StageReview, details, started); err != nil {
		return nil, p.fail(ctx, runID, progress.StageReview, err)
	}
	p.log().Info("review complete", "run_id", runID, "score", score, "approved", rv.Approved)
	return rv, nil
}
