package scaffold

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/ux"
)

var configTemplate = `name: {{name}}

defaults:
  topic: ""
  audience: general readers
  words: 60000

# Starts a run with the defaults above. Requires defaults.topic.
schedule:
  enabled: false
  cron: "0 9 * * *"
  timezone: UTC

llm:
  provider: openai        # openai, claude or mock
  model: gpt-4o-mini
  api-key-env: OPENAI_API_KEY
  timeout: 300
  models:
    outline: ""
    writer: ""
    reviewer: ""

generation:
  attempts: 3

research:
  enabled: false
  language: en

store:
  backend: file           # file or sqlite

server:
  addr: ":8080"
  max-concurrent: 2
`

var envTemplate = `# Copy to .tome/.env and fill in.
OPENAI_API_KEY=
# OPENAI_BASE_URL=
# TOME_PROVIDER=mock
`

var gitignoreTemplate = `.env
runs/
books/
progress.db
`

// Init creates a new .tome/ directory with an example config and env file.
func Init(targetDir string, w io.Writer) error {
	dir := filepath.Join(targetDir, config.Dir)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%s directory already exists in %s", config.Dir, targetDir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", config.Dir, err)
	}

	name := filepath.Base(targetDir)
	files := []struct {
		name, content string
	}{
		{"config.yaml", strings.ReplaceAll(configTemplate, "{{name}}", name)},
		{".env.example", envTemplate},
		{".gitignore", gitignoreTemplate},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}

	fmt.Fprintf(w, "\n%s%s✓ Initialized .tome/ directory%s\n\n", ux.Bold, ux.Green, ux.Reset)
	fmt.Fprintf(w, "  Created:\n")
	fmt.Fprintf(w, "    %s.tome/config.yaml%s   generation settings\n", ux.Cyan, ux.Reset)
	fmt.Fprintf(w, "    %s.tome/.env.example%s  provider credentials\n\n", ux.Cyan, ux.Reset)
	fmt.Fprintf(w, "  Next steps:\n")
	fmt.Fprintf(w, "    1. Copy %s.tome/.env.example%s to %s.tome/.env%s and set your API key\n", ux.Cyan, ux.Reset, ux.Cyan, ux.Reset)
	fmt.Fprintf(w, "    2. Run %stome run --topic \"...\" --mock%s to try the pipeline offline\n", ux.Cyan, ux.Reset)
	fmt.Fprintf(w, "    3. Run %stome serve%s for the HTTP API and scheduler\n\n", ux.Cyan, ux.Reset)
	return nil
}
