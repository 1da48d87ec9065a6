package agent

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeClaude writes an executable script that stands in for the CLI.
func fakeClaude(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClaude_ReturnsFinalResult(t *testing.T) {
	bin := fakeClaude(t, `cat <<'JSON'
{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"draft"}}}
{"type":"result","subtype":"success","result":"The finished section."}
JSON`)
	c := &Claude{Bin: bin, Models: Models{Default: "sonnet"}}

	out, err := c.Generate(context.Background(), Request{Role: RoleWriter, Prompt: "write"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "The finished section." {
		t.Fatalf("out = %q", out)
	}
}

func TestClaude_PassesModelAndPrompt(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	bin := fakeClaude(t, `printf '%s\n' "$@" > `+argsFile+`
echo '{"type":"result","result":"ok"}'`)
	c := &Claude{Bin: bin, Models: Models{Default: "base", ByRole: map[Role]string{RoleReviewer: "opus"}}}

	if _, err := c.Generate(context.Background(), Request{Role: RoleReviewer, Prompt: "review this", System: "be strict"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	args := string(data)
	for _, want := range []string{"review this", "--model\nopus", "--append-system-prompt\nbe strict", "stream-json"} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q:\n%s", want, args)
		}
	}
}

func TestClaude_NonZeroExit(t *testing.T) {
	bin := fakeClaude(t, `echo "rate limited" >&2
exit 3`)
	c := &Claude{Bin: bin}

	_, err := c.Generate(context.Background(), Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "code 3") || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err = %v", err)
	}
}

func TestClaude_ErrorResult(t *testing.T) {
	bin := fakeClaude(t, `echo '{"type":"result","subtype":"error_during_execution","is_error":true,"result":"boom"}'`)
	c := &Claude{Bin: bin}

	if _, err := c.Generate(context.Background(), Request{Prompt: "x"}); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}
}

func TestClaude_EmptyReply(t *testing.T) {
	bin := fakeClaude(t, `echo '{"type":"result","result":"  "}'`)
	c := &Claude{Bin: bin}

	if _, err := c.Generate(context.Background(), Request{Prompt: "x"}); err != ErrEmptyReply {
		t.Fatalf("err = %v, want ErrEmptyReply", err)
	}
}

func TestCheckClaude_Missing(t *testing.T) {
	if err := CheckClaude("definitely-not-a-real-binary-xyz"); err == nil {
		t.Fatal("expected error")
	}
}

func TestClaude_LogsCostAndSession(t *testing.T) {
	bin := fakeClaude(t, `echo '{"type":"result","subtype":"success","result":"done","session_id":"sess-9","total_cost_usd":0.42}'`)
	var logs bytes.Buffer
	c := &Claude{Bin: bin, Log: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	if _, err := c.Generate(context.Background(), Request{Role: RoleWriter, Prompt: "x"}); err != nil {
		t.Fatal(err)
	}
	out := logs.String()
	for _, want := range []string{"session_id=sess-9", "cost_usd=0.42", "role=writer"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}
