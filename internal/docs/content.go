package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Set up a project and generate a first book",
		Content: topicQuickstart,
	},
	{
		Name:    "config",
		Title:   "Configuration Reference",
		Summary: "Every key in .tome/config.yaml and the .env files",
		Content: topicConfig,
	},
	{
		Name:    "pipeline",
		Title:   "Pipeline Stages",
		Summary: "What PLAN, GENERATE, REVIEW and PUBLISH do",
		Content: topicPipeline,
	},
	{
		Name:    "progress",
		Title:   "Progress Records",
		Summary: "The persisted run record and how it is derived",
		Content: topicProgress,
	},
	{
		Name:    "api",
		Title:   "HTTP API",
		Summary: "Endpoints served by tome serve",
		Content: topicAPI,
	},
	{
		Name:    "providers",
		Title:   "LLM Providers",
		Summary: "openai, claude and mock backends",
		Content: topicProviders,
	},
}

const topicQuickstart = `Quick Start

1. Scaffold a project:

     tome init

   This creates .tome/config.yaml, .tome/.env.example and .tome/.gitignore.

2. Try the pipeline offline with the mock provider:

     tome run --topic "Distributed Systems" --words 5000 --mock

   Stage headers are printed as the run moves through PLAN, GENERATE,
   REVIEW and PUBLISH. The book is written to .tome/books/<run-id>/.

3. Set a real provider. Copy .tome/.env.example to .tome/.env and fill in
   OPENAI_API_KEY, then:

     tome run --topic "Distributed Systems"

4. Check on runs:

     tome status              list runs, newest first
     tome status <run-id>     stages, errors and the artifact of one run
     tome watch <run-id>      live terminal monitor, polls every 2s

5. Diagnose a failed run:

     tome doctor <run-id>

6. Serve the HTTP API and the daily scheduler:

     tome serve
`

const topicConfig = `Configuration Reference

tome reads .tome/config.yaml from the project root (the nearest parent
directory containing .tome/). Without a config file the defaults below are
used. Before the config is read, .tome/.env and then ./.env are loaded into
the environment; variables that are already set win.

name                     project name (required in the file)

defaults:
  topic                  topic for scheduled runs and for tome run without --topic
  audience               target audience (default: general readers)
  words                  target word count, 1000..100000 (default: 60000)

schedule:
  enabled                start a run on every tick (requires defaults.topic)
  cron                   five-field cron expression (default: "0 9 * * *")
  timezone               IANA zone for the cron expression (default: UTC)

llm:
  provider               openai, claude or mock (default: openai)
  model                  default model (openai default: gpt-4o-mini)
  base-url               OpenAI-compatible endpoint
  api-key-env            environment variable holding the key (default: OPENAI_API_KEY)
  bin                    claude CLI binary (default: claude)
  timeout                seconds allowed per LLM call (default: 300)
  models:
    outline              per-role model overrides
    writer
    reviewer
    doctor

generation:
  attempts               attempts per section before the run fails (1..10, default: 3)

research:
  enabled                fetch a Wikipedia summary of the topic during PLAN
  language               Wikipedia language code (default: en)
  base-url               alternate Wikipedia host

store:
  backend                file or sqlite (default: file)
  path                   default .tome/runs (file) or .tome/progress.db (sqlite)

publish:
  dir                    where books are written (default: .tome/books)

server:
  addr                   listen address (default: :8080)
  max-concurrent         runs allowed at once; more are refused (default: 2)

Environment overrides: TOME_PROVIDER, TOME_MODEL, TOME_ADDR.
`

const topicPipeline = `Pipeline Stages

Every run passes through four stages in order. Each stage reports to the
progress record before the next one begins.

PLAN
  Asks the outline model for 8 to 12 chapters of 4 to 6 sections. The reply
  is parsed line by line: "Chapter N: Title", "N. Title" and markdown
  headings start a chapter, "-" and "•" bullets add sections. A chapter
  without sections gets a five-section skeleton; a reply without chapters
  falls back to eight skeleton chapters. The word target is divided evenly
  across chapters. The progress record is created only after the outline is
  parsed, so a failed PLAN leaves nothing behind.

GENERATE
  Writes sections one at a time in outline order. Each section gets the
  chapter's target divided by its section count. A failed call is retried
  with backoff (1s, 2s, 4s ... capped at 30s); when the attempts run out the
  run fails and no later section is attempted. Progress is recorded after
  every section.

REVIEW
  Sends a summary of every chapter plus a sample of the first chapter to the
  reviewer. The score is read from "Quality Score: N" (7.5 when absent). The
  book is approved when the score is at least 7.0 and the review does not
  contain "needs major revision" or "not approved".

PUBLISH
  A rejected book is not rendered: the run ends failed with reason
  "rejected". An approved book is rendered to markdown and HTML with a title
  page and a table of contents, and the run is completed.

Cancelling a run (Ctrl-C, DELETE /api/runs/<id>) marks it failed with reason
"cancelled".
`

const topicProgress = `Progress Records

Each run has one record, keyed by run ID. Counters only move forward and
lastUpdate never goes backwards. Once a run is completed or failed only new
error entries are accepted.

Derived at read time:
  progressPercentage       max(sections done / total, words / target), 0..100
  estimatedTimeRemaining   average time per section times sections left

Steps:
  plan, generate, review, publish; each pending, in_progress, completed or
  failed, with start and end times, a duration and details.

Failure reasons:
  error       a stage failed
  rejected    the review refused the book
  cancelled   the run was cancelled
`

const topicAPI = `HTTP API

tome serve listens on server.addr. Every JSON reply has the shape

  {"success": true, "data": ..., "timestamp": "...", "requestId": "..."}
  {"success": false, "error": {"code": "NOT_FOUND", "message": "..."}, ...}

POST   /api/runs                 start a run: {"topic", "audience", "targetWordCount"}
                                 202 with {"runId", "statusUrl", "watchUrl"};
                                 503 BUSY when server.max-concurrent runs are active
GET    /api/runs                 list runs, newest first
GET    /api/runs/<id>            progress view; 404 until PLAN has finished
DELETE /api/runs/<id>            cancel a running run
GET    /api/runs/<id>/artifact   the rendered HTML book
GET    /ws/runs/<id>             websocket; one progress view per change, closed
                                 when the run finishes
GET    /healthz                  liveness

Clients that poll should use a 2 second interval and treat 404 as "not
started yet".
`

const topicProviders = `LLM Providers

openai
  Uses the chat completions API. Set OPENAI_API_KEY (or the variable named
  by llm.api-key-env). llm.base-url points at any compatible endpoint.

claude
  Runs the claude CLI in print mode with streaming JSON output. The binary
  must be on PATH or set with llm.bin.

mock
  Deterministic offline text. Outlines have ten chapters of four sections,
  sections have exactly the requested word count and reviews score 8.5.
  Select it with --mock or TOME_PROVIDER=mock.
`
