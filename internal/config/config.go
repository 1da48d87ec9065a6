package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Dir is the project directory holding config, env files and run data.
const Dir = ".tome"

type Defaults struct {
	Topic    string `yaml:"topic"`
	Audience string `yaml:"audience"`
	Words    int    `yaml:"words"`
}

type Schedule struct {
	Enabled  bool   `yaml:"enabled"`
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// RoleModels overrides LLM.Model for a single role.
type RoleModels struct {
	Outline  string `yaml:"outline"`
	Writer   string `yaml:"writer"`
	Reviewer string `yaml:"reviewer"`
	Doctor   string `yaml:"doctor"`
}

type LLM struct {
	Provider  string     `yaml:"provider"`
	Model     string     `yaml:"model"`
	BaseURL   string     `yaml:"base-url"`
	APIKeyEnv string     `yaml:"api-key-env"`
	Bin       string     `yaml:"bin"`
	Timeout   int        `yaml:"timeout"` // seconds per call
	Models    RoleModels `yaml:"models"`
}

type Generation struct {
	Attempts int `yaml:"attempts"`
}

type Research struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language"`
	BaseURL  string `yaml:"base-url"`
}

type Store struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type Publish struct {
	Dir string `yaml:"dir"`
}

type Server struct {
	Addr          string `yaml:"addr"`
	MaxConcurrent int    `yaml:"max-concurrent"`
}

type Config struct {
	Name       string     `yaml:"name"`
	Defaults   Defaults   `yaml:"defaults"`
	Schedule   Schedule   `yaml:"schedule"`
	LLM        LLM        `yaml:"llm"`
	Generation Generation `yaml:"generation"`
	Research   Research   `yaml:"research"`
	Store      Store      `yaml:"store"`
	Publish    Publish    `yaml:"publish"`
	Server     Server     `yaml:"server"`
}

// Path returns the config file location under projectRoot.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, Dir, "config.yaml")
}

// LoadEnv loads .tome/.env and then ./.env into the process environment.
// Missing files are ignored and variables already set are kept.
func LoadEnv(projectRoot string) error {
	for _, p := range []string{
		filepath.Join(projectRoot, Dir, ".env"),
		filepath.Join(projectRoot, ".env"),
	} {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file, applies TOME_ overrides and returns a
// validated Config.
func Load(path, projectRoot string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	ApplyEnv(&cfg, os.Getenv)
	if err := Validate(&cfg, projectRoot); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the validated configuration used when no config file
// exists.
func Default(projectRoot string) (*Config, error) {
	cfg := &Config{Name: filepath.Base(projectRoot)}
	ApplyEnv(cfg, os.Getenv)
	if err := Validate(cfg, projectRoot); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv copies TOME_PROVIDER, TOME_MODEL and TOME_ADDR over the file
// values.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("TOME_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := getenv("TOME_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := getenv("TOME_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

// APIKey returns the provider key from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// CallTimeout is the per-call LLM timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.LLM.Timeout) * time.Second
}

// Location returns the schedule timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
