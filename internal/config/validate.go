package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	minWords = 1000
	maxWords = 100000
)

var validProviders = map[string]bool{
	"openai": true,
	"claude": true,
	"mock":   true,
}

var validBackends = map[string]bool{
	"file":   true,
	"sqlite": true,
}

var languageRe = regexp.MustCompile(`^[a-z]{2,3}$`)

// Validate checks the config for errors and sets defaults. Relative paths
// are resolved against projectRoot.
func Validate(cfg *Config, projectRoot string) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("config: 'name' is required")
	}

	d := &cfg.Defaults
	if d.Audience == "" {
		d.Audience = "general readers"
	}
	if d.Words == 0 {
		d.Words = 60000
	}
	if d.Words < minWords || d.Words > maxWords {
		return fmt.Errorf("config: defaults.words must be between %d and %d, got %d", minWords, maxWords, d.Words)
	}

	s := &cfg.Schedule
	if s.Cron == "" {
		s.Cron = "0 9 * * *"
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("config: schedule.timezone %q: %w", s.Timezone, err)
	}
	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return fmt.Errorf("config: schedule.cron %q: %w", s.Cron, err)
	}
	if s.Enabled && d.Topic == "" {
		return fmt.Errorf("config: schedule.enabled requires defaults.topic")
	}

	l := &cfg.LLM
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if !validProviders[l.Provider] {
		return fmt.Errorf("config: llm.provider: unknown provider %q (must be openai, claude, or mock)", l.Provider)
	}
	if l.Provider == "openai" && l.Model == "" {
		l.Model = "gpt-4o-mini"
	}
	if l.APIKeyEnv == "" {
		l.APIKeyEnv = "OPENAI_API_KEY"
	}
	if l.Bin == "" {
		l.Bin = "claude"
	}
	if l.Timeout == 0 {
		l.Timeout = 300
	}
	if l.Timeout < 0 {
		return fmt.Errorf("config: llm.timeout must be >= 0")
	}

	g := &cfg.Generation
	if g.Attempts == 0 {
		g.Attempts = 3
	}
	if g.Attempts < 1 || g.Attempts > 10 {
		return fmt.Errorf("config: generation.attempts must be between 1 and 10, got %d", g.Attempts)
	}

	r := &cfg.Research
	if r.Language == "" {
		r.Language = "en"
	}
	if !languageRe.MatchString(r.Language) {
		return fmt.Errorf("config: research.language %q is not a language code", r.Language)
	}

	st := &cfg.Store
	if st.Backend == "" {
		st.Backend = "file"
	}
	if !validBackends[st.Backend] {
		return fmt.Errorf("config: store.backend: unknown backend %q (must be file or sqlite)", st.Backend)
	}
	if st.Path == "" {
		st.Path = filepath.Join(Dir, "runs")
		if st.Backend == "sqlite" {
			st.Path = filepath.Join(Dir, "progress.db")
		}
	}
	st.Path = resolve(projectRoot, st.Path)

	if cfg.Publish.Dir == "" {
		cfg.Publish.Dir = filepath.Join(Dir, "books")
	}
	cfg.Publish.Dir = resolve(projectRoot, cfg.Publish.Dir)

	sv := &cfg.Server
	if sv.Addr == "" {
		sv.Addr = ":8080"
	}
	if sv.MaxConcurrent == 0 {
		sv.MaxConcurrent = 2
	}
	if sv.MaxConcurrent < 0 {
		return fmt.Errorf("config: server.max-concurrent must be >= 0")
	}
	return nil
}

// ValidateTopic checks a run topic given on the command line or API.
func ValidateTopic(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("topic is required")
	}
	if len(topic) > 200 {
		return fmt.Errorf("topic must be at most 200 bytes, got %d", len(topic))
	}
	return nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
