package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jorge-barreto/tome/internal/ux"
)

// streamResult holds the parsed output from a stream-json claude invocation.
type streamResult struct {
	Text      string
	Final     string
	IsError   bool
	CostUSD   float64
	SessionID string
}

// streamState tracks tool use accumulation across stream events.
type streamState struct {
	toolName string
	inputBuf strings.Builder
}

// processStream reads stream-json lines from stdout, copies text deltas to
// display, and extracts the final result.
func processStream(ctx context.Context, stdout io.Reader, display io.Writer) (*streamResult, error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)

	var result streamResult
	var textBuf strings.Builder
	var ss streamState

	for scanner.Scan() {
		if ctx.Err() != nil {
			return &result, ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			// Skip malformed lines
			continue
		}

		switch event.Type {
		case "stream_event":
			handleStreamEvent(&event, &textBuf, &ss, display)
		case "result":
			handleResultEvent(&event, &result)
		}
	}

	if err := scanner.Err(); err != nil {
		return &result, fmt.Errorf("reading stream: %w", err)
	}

	result.Text = textBuf.String()
	return &result, nil
}

// streamEvent is the top-level JSON structure from stream-json output.
type streamEvent struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype"`
	Event     json.RawMessage `json:"event"`
	SessionID string          `json:"session_id"`
	Result    json.RawMessage `json:"result"`
	CostUSD   float64         `json:"cost_usd"`
	TotalCost float64         `json:"total_cost_usd"`
	IsError   bool            `json:"is_error"`
}

type contentBlock struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type nestedEvent struct {
	Type         string        `json:"type"`
	ContentBlock *contentBlock `json:"content_block"`
	Delta        *deltaBlock   `json:"delta"`
}

type deltaBlock struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
}

func handleStreamEvent(event *streamEvent, textBuf *strings.Builder, ss *streamState, display io.Writer) {
	if event.Event == nil {
		return
	}

	var nested nestedEvent
	if err := json.Unmarshal(event.Event, &nested); err != nil {
		return
	}

	switch nested.Type {
	case "content_block_start":
		if nested.ContentBlock != nil && nested.ContentBlock.Type == "tool_use" {
			ss.toolName = nested.ContentBlock.Name
			ss.inputBuf.Reset()
		}

	case "content_block_delta":
		if nested.Delta == nil {
			return
		}
		switch nested.Delta.Type {
		case "text_delta":
			textBuf.WriteString(nested.Delta.Text)
			if display != nil {
				fmt.Fprint(display, nested.Delta.Text)
			}
		case "input_json_delta":
			ss.inputBuf.WriteString(nested.Delta.PartialJSON)
		}

	case "content_block_stop":
		if ss.toolName != "" {
			if display != nil {
				(&ux.Console{W: display}).ToolUse(ss.toolName, ss.inputBuf.String())
			}
			ss.toolName = ""
			ss.inputBuf.Reset()
		}
	}
}

// handleResultEvent reads the final event. Newer CLIs put the reply text in
// "result" as a string; older ones nest an object there.
func handleResultEvent(event *streamEvent, result *streamResult) {
	result.IsError = event.IsError || strings.HasPrefix(event.Subtype, "error")
	if event.SessionID != "" {
		result.SessionID = event.SessionID
	}
	result.CostUSD = event.CostUSD
	if event.TotalCost > 0 {
		result.CostUSD = event.TotalCost
	}
	if event.Result == nil {
		return
	}

	var text string
	if err := json.Unmarshal(event.Result, &text); err == nil {
		result.Final = text
		return
	}
	var payload struct {
		CostUSD   float64 `json:"cost_usd"`
		SessionID string  `json:"session_id"`
	}
	if err := json.Unmarshal(event.Result, &payload); err == nil {
		if payload.CostUSD > 0 {
			result.CostUSD = payload.CostUSD
		}
		if payload.SessionID != "" {
			result.SessionID = payload.SessionID
		}
	}
}
