// Package agent wraps the text-generation backends the pipeline talks to.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role tells a backend which part of the book a call belongs to, so each
// role can run on its own model.
type Role string

const (
	RoleOutline  Role = "outline"
	RoleWriter   Role = "writer"
	RoleReviewer Role = "reviewer"
	RoleDoctor   Role = "doctor"
)

// Request is one generation call.
type Request struct {
	Role     Role
	System   string
	Prompt   string
	ThreadID string
	// TargetWords is advisory; only the mock backend acts on it.
	TargetWords int
}

// Generator produces text for a prompt. Implementations are fallible and
// may be slow; callers bound each call with a context deadline.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrEmptyReply is returned when a backend answers with no text.
var ErrEmptyReply = errors.New("agent: empty reply")

// Models maps roles to model names, falling back to Default.
type Models struct {
	Default string
	ByRole  map[Role]string
}

// For returns the model for role.
func (m Models) For(role Role) string {
	if s := m.ByRole[role]; s != "" {
		return s
	}
	return m.Default
}

// WithTimeout bounds every call made through g.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return Func(func(ctx context.Context, req Request) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		out, err := g.Generate(ctx, req)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s call timed out after %s: %w", req.Role, d, err)
		}
		return out, err
	})
}

// nonEmpty trims out and maps "" to ErrEmptyReply.
func nonEmpty(out string) (string, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}
