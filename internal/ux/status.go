package ux

import (
	"fmt"
	"io"
	"time"

	"github.com/jorge-barreto/tome/internal/progress"
)

// RenderStatus prints the full status display for a run.
func RenderStatus(w io.Writer, snap *progress.Snapshot) {
	fmt.Fprintf(w, "%sRun:%s      %s\n", Bold, Reset, snap.WorkflowID)
	fmt.Fprintf(w, "%sTopic:%s    %s\n", Bold, Reset, snap.Topic)
	if snap.TargetAudience != "" {
		fmt.Fprintf(w, "%sAudience:%s %s\n", Bold, Reset, snap.TargetAudience)
	}
	fmt.Fprintf(w, "%sState:%s    %s\n", Bold, Reset, statusLabel(snap.Status, snap.Reason))
	fmt.Fprintf(w, "%sStep:%s     %s\n", Bold, Reset, snap.CurrentStep)
	fmt.Fprintf(w, "%sProgress:%s %d%% (%d/%d chapters, %d/%d sections, %d/%d words)\n",
		Bold, Reset, snap.ProgressPercentage,
		snap.CompletedChapters, snap.TotalChapters,
		snap.CompletedSections, snap.TotalSections,
		snap.TotalWordsGenerated, snap.TargetWordCount)
	if snap.Status == progress.StatusInProgress && snap.EstimatedTimeRemaining != "" {
		fmt.Fprintf(w, "%sETA:%s      %s\n", Bold, Reset, snap.EstimatedTimeRemaining)
	}
	if snap.QualityScore != nil {
		fmt.Fprintf(w, "%sScore:%s    %.1f\n", Bold, Reset, *snap.QualityScore)
	}

	fmt.Fprintf(w, "\n%sStages:%s\n", Bold, Reset)
	for i, st := range snap.Steps {
		detail := st.Details
		if st.Error != "" {
			detail = st.Error
		}
		dur := ""
		if st.Duration != "" {
			dur = "(" + st.Duration + ")"
		}
		fmt.Fprintf(w, "  %s%d%s  %-18s %s %s %s\n", Dim, i+1, Reset, st.Name, stepLabel(st.Status), dur, detail)
	}

	if len(snap.Errors) > 0 {
		fmt.Fprintf(w, "\n%sErrors:%s\n", Bold, Reset)
		for _, e := range snap.Errors {
			fmt.Fprintf(w, "  %s%s%s  %s\n", Dim, e.Time.Format(time.RFC3339), Reset, e.Message)
		}
	}
	if snap.Result != nil {
		fmt.Fprintf(w, "\n%sBook:%s\n", Bold, Reset)
		fmt.Fprintf(w, "  %s (%d bytes, %d words)\n", snap.Result.ArtifactPath, snap.Result.FileSize, snap.Result.WordCount)
	}
	fmt.Fprintln(w)
}

// RenderList prints one line per run, newest first as given.
func RenderList(w io.Writer, recs []*progress.Record) {
	if len(recs) == 0 {
		fmt.Fprintf(w, "%s(no runs)%s\n", Dim, Reset)
		return
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s  %s  %-24s %s  %d/%d sections\n",
			r.WorkflowID, r.StartTime.Local().Format("2006-01-02 15:04"),
			statusLabel(r.Status, r.Reason), clip(r.Topic, 40),
			r.CompletedSections, r.TotalSections)
	}
}

func statusLabel(status, reason string) string {
	switch status {
	case progress.StatusCompleted:
		return Green + "completed" + Reset
	case progress.StatusFailed:
		if reason != "" {
			return Red + "failed" + Reset + " (" + reason + ")"
		}
		return Red + "failed" + Reset
	default:
		return Yellow + "in progress" + Reset
	}
}

func stepLabel(status string) string {
	switch status {
	case progress.StepCompleted:
		return Green + "done   " + Reset
	case progress.StepFailed:
		return Red + "failed " + Reset
	case progress.StepInProgress:
		return Yellow + "running" + Reset
	default:
		return Dim + "pending" + Reset
	}
}
