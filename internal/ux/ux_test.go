package ux

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jorge-barreto/tome/internal/progress"
)

func fixedConsole(buf *bytes.Buffer) *Console {
	t0 := time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local)
	return &Console{W: buf, Now: func() time.Time { return t0 }}
}

func TestConsole_StageLines(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf)

	c.StageStart(1, 4, "Generate content")
	c.SectionDone(2, 3, "Loops", 612)
	c.StageDone(1, 95*time.Second)
	c.StageFail(2, "Review quality", "boom")

	out := buf.String()
	for _, want := range []string{
		"[09:30:00]",
		"Stage 2/4: Generate content",
		"2.3",
		"Loops",
		"(612 words)",
		"✓ Stage 2 complete (1m 35s)",
		"✗ Stage 3 (Review quality) failed: boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_QuietHidesSections(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf)
	c.Quiet = true
	c.SectionDone(1, 1, "Hidden", 10)
	if buf.Len() != 0 {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestConsole_Hints(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf)
	c.StatusHint("abc")
	c.DoctorHint("abc")
	out := buf.String()
	if !strings.Contains(out, "tome status abc") || !strings.Contains(out, "tome doctor abc") {
		t.Fatalf("hints missing:\n%s", out)
	}
}

func TestConsole_ToolUseClipped(t *testing.T) {
	var buf bytes.Buffer
	c := fixedConsole(&buf)
	c.ToolUse("WebSearch", strings.Repeat("x", 200))
	out := buf.String()
	if !strings.Contains(out, "WebSearch") || !strings.Contains(out, "...") {
		t.Fatalf("got %q", out)
	}
	if strings.Contains(out, strings.Repeat("x", 78)) {
		t.Fatalf("input not clipped: %q", out)
	}
}

func TestDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                "0m 00s",
		59 * time.Second: "0m 59s",
		61 * time.Second: "1m 01s",
		-time.Second:     "0m 00s",
	}
	for d, want := range cases {
		if got := Duration(d); got != want {
			t.Errorf("Duration(%v) = %q, want %q", d, got, want)
		}
	}
}

func sampleSnapshot() *progress.Snapshot {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	score := 8.2
	return &progress.Snapshot{
		Record: progress.Record{
			WorkflowID:          "run-1",
			Topic:               "Rust",
			TargetAudience:      "beginners",
			StartTime:           start,
			CurrentStep:         "Writing chapter 2/8: Ownership",
			CompletedChapters:   1,
			TotalChapters:       8,
			CompletedSections:   5,
			TotalSections:       40,
			TotalWordsGenerated: 3000,
			TargetWordCount:     60000,
			Status:              progress.StatusFailed,
			Reason:              progress.ReasonError,
			Errors:              []progress.ErrorEntry{{Time: start, Message: "section failed"}},
			QualityScore:        &score,
			Steps: []progress.Step{
				{ID: progress.StagePlan, Name: "Plan outline", Status: progress.StepCompleted, Duration: "0m 12s", Details: "8 chapters, 40 sections"},
				{ID: progress.StageGenerate, Name: "Generate content", Status: progress.StepFailed, Error: "section failed"},
				{ID: progress.StageReview, Name: "Review quality", Status: progress.StepPending},
				{ID: progress.StagePublish, Name: "Publish book", Status: progress.StepPending},
			},
		},
		ProgressPercentage: 12,
	}
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	RenderStatus(&buf, sampleSnapshot())
	out := buf.String()
	for _, want := range []string{
		"run-1", "Rust", "beginners",
		"failed", "(error)",
		"12% (1/8 chapters, 5/40 sections, 3000/60000 words)",
		"Score:", "8.2",
		"Plan outline", "(0m 12s)", "8 chapters, 40 sections",
		"Generate content", "section failed",
		"Errors:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ETA:") {
		t.Error("ETA shown for a finished run")
	}
}

func TestRenderStatus_Result(t *testing.T) {
	snap := sampleSnapshot()
	snap.Status = progress.StatusCompleted
	snap.Reason = ""
	snap.Errors = nil
	snap.Result = &progress.Result{ArtifactPath: "/books/run-1/book.html", FileSize: 1234, WordCount: 60000}
	var buf bytes.Buffer
	RenderStatus(&buf, snap)
	if !strings.Contains(buf.String(), "/books/run-1/book.html (1234 bytes, 60000 words)") {
		t.Fatalf("result missing:\n%s", buf.String())
	}
}

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer
	RenderList(&buf, nil)
	if !strings.Contains(buf.String(), "no runs") {
		t.Fatalf("got %q", buf.String())
	}

	buf.Reset()
	snap := sampleSnapshot()
	RenderList(&buf, []*progress.Record{&snap.Record})
	out := buf.String()
	if !strings.Contains(out, "run-1") || !strings.Contains(out, "Rust") || !strings.Contains(out, "5/40 sections") {
		t.Fatalf("got %q", out)
	}
}
