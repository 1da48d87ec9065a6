// Package generate writes book sections through an agent.Generator with
// bounded retries.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jorge-barreto/tome/internal/agent"
)

const (
	DefaultAttempts = 3
	baseBackoff     = time.Second
	maxBackoff      = 30 * time.Second
)

// ErrGenerationExhausted matches every *GenerationExhaustedError.
var ErrGenerationExhausted = errors.New("generation exhausted")

// GenerationExhaustedError reports a section whose every attempt failed.
type GenerationExhaustedError struct {
	Section  string
	Attempts int
	Err      error
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("section %q failed after %d attempts: %v", e.Section, e.Attempts, e.Err)
}

func (e *GenerationExhaustedError) Unwrap() error { return e.Err }

func (e *GenerationExhaustedError) Is(target error) bool {
	return target == ErrGenerationExhausted
}

// Section is one generated unit of a chapter.
type Section struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	WordCount  int    `json:"wordCount"`
	ChunkIndex int    `json:"chunkIndex"`
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Backoff is the wait before attempt k (1-based): none for the first,
// then 1s doubling up to 30s.
func Backoff(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	d := baseBackoff
	for i := 2; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Writer generates sections. The zero value of Attempts means DefaultAttempts;
// Timeout bounds each call; Sleep is replaceable in tests.
type Writer struct {
	Gen      agent.Generator
	Attempts int
	Timeout  time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
	Log      *slog.Logger
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WriteSection generates the section described by p. Context cancellation
// stops retrying and is returned as is.
func (w *Writer) WriteSection(ctx context.Context, p SectionPrompt) (*Section, error) {
	attempts := w.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	sleep := w.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	log := w.Log
	if log == nil {
		log = slog.Default()
	}
	req := agent.Request{
		Role:        agent.RoleWriter,
		System:      SectionSystemPrompt,
		Prompt:      BuildSectionPrompt(p),
		ThreadID:    p.ThreadID,
		TargetWords: p.TargetWords,
	}

	var lastErr error
	for k := 1; k <= attempts; k++ {
		if err := sleep(ctx, Backoff(k)); err != nil {
			return nil, err
		}
		text, err := w.call(ctx, req)
		if err == nil {
			return &Section{
				Title:      p.Section,
				Content:    text,
				WordCount:  WordCount(text),
				ChunkIndex: p.SectionIndex,
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn("section attempt failed",
			"section", p.Section, "attempt", k, "attempts", attempts, "error", err)
	}
	return nil, &GenerationExhaustedError{Section: p.Section, Attempts: attempts, Err: lastErr}
}

func (w *Writer) call(ctx context.Context, req agent.Request) (string, error) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	text, err := w.Gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", agent.ErrEmptyReply
	}
	return strings.TrimSpace(text), nil
}
