package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestModelsFor(t *testing.T) {
	m := Models{Default: "base", ByRole: map[Role]string{RoleWriter: "big"}}
	if got := m.For(RoleWriter); got != "big" {
		t.Fatalf("writer model = %q", got)
	}
	if got := m.For(RoleReviewer); got != "base" {
		t.Fatalf("reviewer model = %q", got)
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	slow := Func(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	g := WithTimeout(slow, 20*time.Millisecond)

	_, err := g.Generate(context.Background(), Request{Role: RoleWriter})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("error %q does not mention timeout", err)
	}
}

func TestWithTimeout_ZeroIsPassthrough(t *testing.T) {
	inner := Func(func(ctx context.Context, req Request) (string, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Error("unexpected deadline")
		}
		return "ok", nil
	})
	out, err := WithTimeout(inner, 0).Generate(context.Background(), Request{})
	if err != nil || out != "ok" {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestNonEmpty(t *testing.T) {
	if _, err := nonEmpty("  \n"); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
	if out, err := nonEmpty(" hi "); err != nil || out != "hi" {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestMock_WriterHonoursTarget(t *testing.T) {
	for _, n := range []int{1, 59, 60, 61, 250} {
		out, err := Mock{}.Generate(context.Background(), Request{Role: RoleWriter, Prompt: "p", TargetWords: n})
		if err != nil {
			t.Fatal(err)
		}
		if got := len(strings.Fields(out)); got != n {
			t.Fatalf("target %d: got %d words", n, got)
		}
	}
}

func TestMock_Deterministic(t *testing.T) {
	a := MockText("seed", 100)
	b := MockText("seed", 100)
	c := MockText("other", 100)
	if a != b {
		t.Fatal("same seed produced different text")
	}
	if a == c {
		t.Fatal("different seeds produced the same text")
	}
}

func TestMock_Outline(t *testing.T) {
	out, err := Mock{Chapters: 3, Sections: 2}.Generate(context.Background(), Request{
		Role:   RoleOutline,
		Prompt: "Write an outline.\nTopic: Rust\nAudience: devs",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "Chapter ") != 3 {
		t.Fatalf("outline:\n%s", out)
	}
	if strings.Count(out, "\n- ") != 6 {
		t.Fatalf("outline:\n%s", out)
	}
	if !strings.Contains(out, "Part 1 of Rust") {
		t.Fatalf("topic missing:\n%s", out)
	}
}

func TestMock_Reviewer(t *testing.T) {
	out, err := Mock{Score: 9}.Generate(context.Background(), Request{Role: RoleReviewer})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Quality Score: 9.0/10") {
		t.Fatalf("review = %q", out)
	}
}

func TestMock_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Mock{}).Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
