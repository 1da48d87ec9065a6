package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jorge-barreto/tome/internal/generate"
	"github.com/jorge-barreto/tome/internal/outline"
	"github.com/jorge-barreto/tome/internal/progress"
)

// JoinSections concatenates sections under "## <title>" headings.
func JoinSections(sections []generate.Section) string {
	blocks := make([]string, len(sections))
	for i, s := range sections {
		blocks[i] = "## " + s.Title + "\n\n" + s.Content
	}
	return strings.Join(blocks, "\n\n")
}

// generate writes every section in outline order, one call at a time.
func (p *Pipeline) generate(ctx context.Context, plan *Plan) (*Draft, error) {
	started := p.now()
	runID := plan.RunID
	log := p.log().With("run_id", runID, "stage", progress.StageGenerate)
	if err := p.stageStart(ctx, runID, progress.StageGenerate); err != nil {
		return nil, p.fail(ctx, runID, progress.StageGenerate, err)
	}

	draft := &Draft{RunID: runID, Topic: plan.Topic}
	completed := 0
	for ci, ch := range plan.Chapters {
		if err := ctx.Err(); err != nil {
			return nil, p.fail(ctx, runID, progress.StageGenerate, err)
		}
		if err := p.Store.Update(ctx, runID, progress.Update{
			CurrentStep: fmt.Sprintf("Writing chapter %d/%d: %s", ci+1, len(plan.Chapters), ch.Title),
		}); err != nil {
			return nil, p.fail(ctx, runID, progress.StageGenerate, err)
		}

		content, err := p.writeChapter(ctx, plan, ch, &completed, draft.TotalWordCount)
		if err != nil {
			return nil, err
		}
		draft.Chapters = append(draft.Chapters, *content)
		draft.TotalWordCount += content.WordCount

		if err := p.Store.Update(ctx, runID, progress.Update{
			CompletedChapters: progress.Int(ci + 1),
			ChapterCompleted: &progress.ChapterDetail{
				Number:      ch.Number,
				Title:       ch.Title,
				WordCount:   content.WordCount,
				Sections:    len(content.Sections),
				CompletedAt: p.now(),
			},
		}); err != nil {
			return nil, p.fail(ctx, runID, progress.StageGenerate, err)
		}
		log.Info("chapter complete", "chapter", ch.Number, "words", content.WordCount)
	}

	details := fmt.Sprintf("%d sections, %d words", completed, draft.TotalWordCount)
	if err := p.stageDone(ctx, runID, progress.StageGenerate, details, started); err != nil {
		return nil, p.fail(ctx, runID, progress.StageGenerate, err)
	}
	return draft, nil
}

// writeChapter writes the sections of ch. completed counts sections across
// the whole run; wordsBefore is the run total before this chapter.
func (p *Pipeline) writeChapter(ctx context.Context, plan *Plan, ch outline.Chapter, completed *int, wordsBefore int) (*ChapterContent, error) {
	runID := plan.RunID
	out := &ChapterContent{Number: ch.Number, Title: ch.Title}
	if len(ch.Sections) == 0 {
		return out, nil
	}
	target := ch.TargetWordCount / len(ch.Sections)

	for si, title := range ch.Sections {
		if err := ctx.Err(); err != nil {
			return nil, p.fail(ctx, runID, progress.StageGenerate, err)
		}
		sec, err := p.Writer.WriteSection(ctx, generate.SectionPrompt{
			Topic:         plan.Topic,
			Audience:      plan.Audience,
			ChapterNumber: ch.Number,
			ChapterTitle:  ch.Title,
			Section:       title,
			SectionIndex:  si,
			Siblings:      ch.Sections,
			Outline:       plan.OutlineText,
			TargetWords:   target,
			ThreadID:      runID,
		})
		if err != nil {
			if ctx.Err() == nil {
				if uerr := p.Store.Update(context.WithoutCancel(ctx), runID, progress.Update{ErrorMessage: err.Error()}); uerr != nil {
					p.log().Warn("failed to record section error", "run_id", runID, "error", uerr)
				}
			}
			return nil, p.fail(ctx, runID, progress.StageGenerate, err)
		}

		out.Sections = append(out.Sections, *sec)
		out.WordCount += sec.WordCount
		*completed++
		pct := *completed * 100 / plan.TotalSections
		if err := p.Store.Update(ctx, runID, progress.Update{
			CompletedSections:   progress.Int(*completed),
			TotalWordsGenerated: progress.Int(wordsBefore + out.WordCount),
			Stage: &progress.StageUpdate{
				ID:       progress.StageGenerate,
				Progress: progress.Int(pct),
				Details:  fmt.Sprintf("%d/%d sections", *completed, plan.TotalSections),
			},
		}); err != nil {
			return nil, p.fail(ctx, runID, progress.StageGenerate, err)
		}
		p.report().SectionDone(ch.Number, si+1, title, sec.WordCount)
	}
	out.Content = JoinSections(out.Sections)
	return out, nil
}
