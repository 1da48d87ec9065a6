package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jorge-barreto/tome/internal/agent"
	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/generate"
	"github.com/jorge-barreto/tome/internal/pipeline"
	"github.com/jorge-barreto/tome/internal/progress"
	"github.com/jorge-barreto/tome/internal/render"
	"github.com/jorge-barreto/tome/internal/research"
)

// project is a loaded project root and its configuration.
type project struct {
	Root   string
	Config *config.Config
}

// loadProject finds the project root, loads the env files and the config.
// A missing config file selects the defaults.
func loadProject() (*project, error) {
	root, err := findProjectRoot()
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(root); err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.Path(root), root)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(root)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &project{Root: root, Config: cfg}, nil
}

// findProjectRoot walks up from cwd looking for a .tome directory, and
// falls back to cwd.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findRootFrom(cwd), nil
}

func findRootFrom(start string) string {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, config.Dir)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// openStore opens the configured progress backend.
func openStore(cfg *config.Config) (progress.Store, func() error, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
			return nil, nil, err
		}
		s, err := progress.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := progress.NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	}
}

func models(cfg *config.Config) agent.Models {
	return agent.Models{
		Default: cfg.LLM.Model,
		ByRole: map[agent.Role]string{
			agent.RoleOutline:  cfg.LLM.Models.Outline,
			agent.RoleWriter:   cfg.LLM.Models.Writer,
			agent.RoleReviewer: cfg.LLM.Models.Reviewer,
			agent.RoleDoctor:   cfg.LLM.Models.Doctor,
		},
	}
}

// newGenerator builds the configured backend. mock forces the offline one.
func newGenerator(cfg *config.Config, mock bool, display io.Writer, log *slog.Logger) (agent.Generator, error) {
	provider := cfg.LLM.Provider
	if mock {
		provider = "mock"
	}
	switch provider {
	case "mock":
		return agent.Mock{}, nil
	case "claude":
		if err := agent.CheckClaude(cfg.LLM.Bin); err != nil {
			return nil, err
		}
		return &agent.Claude{Models: models(cfg), Bin: cfg.LLM.Bin, Display: display, Log: log}, nil
	case "openai":
		return agent.NewOpenAI(agent.OpenAIConfig{
			APIKey:  cfg.APIKey(),
			BaseURL: cfg.LLM.BaseURL,
			Models:  models(cfg),
		})
	}
	return nil, fmt.Errorf("unknown llm provider %q", provider)
}

// checkNested refuses to drive the claude provider from inside a Claude Code
// session, where the child CLI would refuse to start.
func checkNested(cfg *config.Config, mock bool) error {
	if mock || cfg.LLM.Provider != "claude" || os.Getenv("CLAUDECODE") == "" {
		return nil
	}
	return fmt.Errorf("tome cannot drive the claude provider inside Claude Code (CLAUDECODE env var is set). Run from a regular terminal, switch llm.provider, or use --mock")
}

// newPipeline wires one pipeline over store.
func newPipeline(cfg *config.Config, store progress.Store, gen agent.Generator, log *slog.Logger, report pipeline.Reporter) *pipeline.Pipeline {
	p := &pipeline.Pipeline{
		Store:    store,
		Outliner: gen,
		Writer: &generate.Writer{
			Gen:      gen,
			Attempts: cfg.Generation.Attempts,
			Timeout:  cfg.CallTimeout(),
			Log:      log,
		},
		Reviewer:    gen,
		Renderer:    &render.HTML{Dir: cfg.Publish.Dir},
		CallTimeout: cfg.CallTimeout(),
		Log:         log,
		Report:      report,
	}
	if cfg.Research.Enabled {
		p.Research = &research.Wikipedia{
			BaseURL:  cfg.Research.BaseURL,
			Language: cfg.Research.Language,
			Client:   &http.Client{Timeout: 15 * time.Second},
		}
	}
	return p
}

// newLogger returns a JSON logger for the server and a text logger for
// interactive commands.
func newLogger(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func defaultRequest(cfg *config.Config) pipeline.Request {
	return pipeline.Request{
		Topic:           cfg.Defaults.Topic,
		Audience:        cfg.Defaults.Audience,
		TargetWordCount: cfg.Defaults.Words,
	}
}
