package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Claude runs the claude CLI in print mode with stream-json output.
type Claude struct {
	Models Models
	// Bin defaults to "claude".
	Bin string
	// Dir is the working directory of the child process.
	Dir string
	// Display, when set, receives text as it streams.
	Display io.Writer
	// Log receives per-call cost and session at debug level.
	Log *slog.Logger
}

// CheckClaude verifies the claude CLI is on PATH.
func CheckClaude(bin string) error {
	if bin == "" {
		bin = "claude"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%s CLI not found on PATH: %w", bin, err)
	}
	return nil
}

func (c *Claude) Generate(ctx context.Context, req Request) (string, error) {
	bin := c.Bin
	if bin == "" {
		bin = "claude"
	}
	args := []string{"-p", req.Prompt,
		"--output-format", "stream-json", "--verbose", "--include-partial-messages"}
	if m := c.Models.For(req.Role); m != "" {
		args = append(args, "--model", m)
	}
	if req.System != "" {
		args = append(args, "--append-system-prompt", req.System)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.Dir
	cmd.Env = childEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting %s: %w", bin, err)
	}
	res, streamErr := processStream(ctx, stdout, c.Display)
	// drain so the child never blocks on a full pipe
	io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if streamErr != nil {
		return "", streamErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return "", fmt.Errorf("%s exited with code %d: %s", bin, exitErr.ExitCode(), lastLine(stderr.String()))
		}
		return "", waitErr
	}
	if c.Log != nil {
		c.Log.Debug("claude call finished",
			"role", string(req.Role), "session_id", res.SessionID, "cost_usd", res.CostUSD, "is_error", res.IsError)
	}
	if res.IsError {
		return "", fmt.Errorf("%s reported an error: %s", bin, lastLine(res.Final))
	}
	text := res.Final
	if strings.TrimSpace(text) == "" {
		text = res.Text
	}
	return nonEmpty(text)
}

// childEnv strips CLAUDECODE so a nested claude does not refuse to start.
func childEnv() []string {
	var env []string
	for _, e := range os.Environ() {
		key, _, _ := strings.Cut(e, "=")
		if strings.HasPrefix(key, "CLAUDECODE") {
			continue
		}
		env = append(env, e)
	}
	return env
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
