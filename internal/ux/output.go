package ux

import (
	"fmt"
	"io"
	"os"
	"time"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

// Console prints run progress for a terminal. The zero value writes to
// stdout with wall-clock timestamps.
type Console struct {
	W   io.Writer
	Now func() time.Time
	// Quiet hides per-section lines.
	Quiet bool
}

func (c *Console) w() io.Writer {
	if c == nil || c.W == nil {
		return os.Stdout
	}
	return c.W
}

func (c *Console) timestamp() string {
	now := time.Now
	if c != nil && c.Now != nil {
		now = c.Now
	}
	return now().Format("15:04:05")
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.w(), format, args...)
}

// StageStart prints a timestamped stage header.
func (c *Console) StageStart(index, total int, name string) {
	ts := c.timestamp()
	c.printf("\n%s[%s]%s %s══════════════════════════════════════%s\n", Dim, ts, Reset, Cyan, Reset)
	c.printf("%s[%s]%s  %sStage %d/%d: %s%s\n", Dim, ts, Reset, Bold, index+1, total, name, Reset)
	c.printf("%s[%s]%s %s══════════════════════════════════════%s\n", Dim, ts, Reset, Cyan, Reset)
}

// StageDone prints a stage completion line.
func (c *Console) StageDone(index int, d time.Duration) {
	c.printf("%s[%s]%s  %s✓ Stage %d complete (%s)%s\n",
		Dim, c.timestamp(), Reset, Green, index+1, Duration(d), Reset)
}

// StageFail prints a stage failure line.
func (c *Console) StageFail(index int, name, msg string) {
	c.printf("%s[%s]%s  %s✗ Stage %d (%s) failed: %s%s\n",
		Dim, c.timestamp(), Reset, Red, index+1, name, msg, Reset)
}

// SectionDone prints one written section.
func (c *Console) SectionDone(chapter, section int, title string, words int) {
	if c.Quiet {
		return
	}
	c.printf("  %s%d.%d%s %s %s(%d words)%s\n", Dim, chapter, section, Reset, title, Dim, words, Reset)
}

// Success prints the final line of a published run.
func (c *Console) Success(runID string, words int, path string) {
	c.printf("\n%s[%s]%s  %s%s══ Book published: %d words ══%s\n", Dim, c.timestamp(), Reset, Bold, Green, words, Reset)
	c.printf("  %s\n", path)
	c.printf("  %sRun:%s %s\n\n", Dim, Reset, runID)
}

// Rejected prints the outcome of a run that failed review.
func (c *Console) Rejected(score float64, reason string) {
	c.printf("\n%s[%s]%s  %s✗ Book rejected (quality score %.1f): %s%s\n",
		Dim, c.timestamp(), Reset, Yellow, score, reason, Reset)
}

// StatusHint points at the status command for a run.
func (c *Console) StatusHint(runID string) {
	c.printf("\n%sStatus:%s tome status %s\n", Yellow, Reset, runID)
}

// DoctorHint points at the doctor command for a failed run.
func (c *Console) DoctorHint(runID string) {
	c.printf("%sDiagnose:%s tome doctor %s\n", Yellow, Reset, runID)
}

// ToolUse prints an inline tool call reported by an agent CLI.
func (c *Console) ToolUse(name, input string) {
	c.printf("  %s⚡ %s%s %s\n", Cyan, name, Reset, clip(input, 80))
}

// Duration formats d as "Xm YYs".
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
