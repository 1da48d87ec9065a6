// Package doctor asks an LLM to explain why a run failed.
package doctor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jorge-barreto/tome/internal/agent"
	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/progress"
	"github.com/jorge-barreto/tome/internal/ux"
)

const maxErrors = 20

const diagPrompt = `You are diagnosing a failed tome book run. Analyze the context below and provide a concise diagnosis.

## Run
%s

## Failed Stage
%s

## Stages
%s

## Error Log (last %d entries)
%s
%s
Instructions:
1. Identify what went wrong from the failed stage and the error log.
2. Classify this as a CONFIGURATION problem (provider, model, timeouts, attempts), a PROVIDER problem (rate limits, outages, refusals) or a CONTENT problem (the review rejected the book).
3. Suggest specific fixes.
4. Recommend the next command to run, for example:
   - tome run --topic "<topic>" --words N   (start a new run)
   - edit .tome/config.yaml first, then start a new run

Be direct and concise. Focus on actionable advice.`

// Run gathers failure context from snap and prints gen's diagnosis to w.
func Run(ctx context.Context, w io.Writer, gen agent.Generator, cfg *config.Config, snap *progress.Snapshot) error {
	if snap.Status != progress.StatusFailed {
		fmt.Fprintln(w, "No failed run to diagnose.")
		return nil
	}

	fmt.Fprintf(w, "\n%s%s══ Doctor: diagnosing run %s (%s) ══%s\n\n",
		ux.Bold, ux.Cyan, snap.WorkflowID, failedStageName(snap), ux.Reset)

	text, err := gen.Generate(ctx, agent.Request{
		Role:     agent.RoleDoctor,
		Prompt:   buildPrompt(cfg, snap),
		ThreadID: snap.WorkflowID,
	})
	if err != nil {
		return fmt.Errorf("diagnosis failed: %w", err)
	}
	fmt.Fprintln(w, strings.TrimSpace(text))
	fmt.Fprintln(w)
	(&ux.Console{W: w}).StatusHint(snap.WorkflowID)
	return nil
}

func buildPrompt(cfg *config.Config, snap *progress.Snapshot) string {
	var cfgSection string
	if cfg != nil {
		cfgSection = fmt.Sprintf("\n## Configuration\n%s\n", gatherConfig(cfg))
	}
	return fmt.Sprintf(diagPrompt,
		gatherRun(snap), gatherFailedStage(snap), gatherStages(snap),
		maxErrors, gatherErrors(snap), cfgSection)
}

func gatherRun(s *progress.Snapshot) string {
	parts := []string{
		fmt.Sprintf("ID: %s", s.WorkflowID),
		fmt.Sprintf("Topic: %s", s.Topic),
	}
	if s.TargetAudience != "" {
		parts = append(parts, fmt.Sprintf("Audience: %s", s.TargetAudience))
	}
	parts = append(parts,
		fmt.Sprintf("Failure reason: %s", s.Reason),
		fmt.Sprintf("Target words: %d, generated: %d", s.TargetWordCount, s.TotalWordsGenerated),
		fmt.Sprintf("Chapters: %d/%d, sections: %d/%d",
			s.CompletedChapters, s.TotalChapters, s.CompletedSections, s.TotalSections),
	)
	if s.QualityScore != nil {
		parts = append(parts, fmt.Sprintf("Quality score: %.1f", *s.QualityScore))
	}
	if s.CurrentStep != "" {
		parts = append(parts, fmt.Sprintf("Last step: %s", s.CurrentStep))
	}
	return strings.Join(parts, "\n")
}

func failedStage(s *progress.Snapshot) *progress.Step {
	for i := range s.Steps {
		if s.Steps[i].Status == progress.StepFailed {
			return &s.Steps[i]
		}
	}
	return nil
}

func failedStageName(s *progress.Snapshot) string {
	if st := failedStage(s); st != nil {
		return st.Name
	}
	return "unknown stage"
}

func gatherFailedStage(s *progress.Snapshot) string {
	st := failedStage(s)
	if st == nil {
		return "(no stage marked failed; the run failed before or between stages)"
	}
	parts := []string{fmt.Sprintf("Name: %s", st.Name)}
	if st.Error != "" {
		parts = append(parts, fmt.Sprintf("Error: %s", st.Error))
	}
	if st.Details != "" {
		parts = append(parts, fmt.Sprintf("Details: %s", st.Details))
	}
	if st.Progress > 0 {
		parts = append(parts, fmt.Sprintf("Progress: %d%%", st.Progress))
	}
	return strings.Join(parts, "\n")
}

func gatherStages(s *progress.Snapshot) string {
	var lines []string
	for _, st := range s.Steps {
		line := fmt.Sprintf("- %s: %s", st.Name, st.Status)
		if st.Duration != "" {
			line += fmt.Sprintf(" (%s)", st.Duration)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func gatherErrors(s *progress.Snapshot) string {
	if len(s.Errors) == 0 {
		return "(no errors recorded)"
	}
	errs := s.Errors
	if len(errs) > maxErrors {
		errs = errs[len(errs)-maxErrors:]
	}
	var lines []string
	for _, e := range errs {
		lines = append(lines, fmt.Sprintf("%s %s", e.Time.Format("15:04:05"), e.Message))
	}
	return strings.Join(lines, "\n")
}

func gatherConfig(cfg *config.Config) string {
	parts := []string{fmt.Sprintf("Provider: %s", cfg.LLM.Provider)}
	if cfg.LLM.Model != "" {
		parts = append(parts, fmt.Sprintf("Model: %s", cfg.LLM.Model))
	}
	parts = append(parts,
		fmt.Sprintf("Call timeout: %ds", cfg.LLM.Timeout),
		fmt.Sprintf("Section attempts: %d", cfg.Generation.Attempts),
	)
	return strings.Join(parts, "\n")
}
