// Package research fetches background material for a book topic.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Fetcher returns reference text about a topic.
type Fetcher interface {
	Fetch(ctx context.Context, topic string) (string, error)
}

// ErrNoArticle is returned when the source has nothing for the topic.
var ErrNoArticle = errors.New("research: no article for topic")

// maxExtract caps the text handed to the outline prompt.
const maxExtract = 4000

// Wikipedia reads the REST page summary of the topic.
type Wikipedia struct {
	// BaseURL defaults to https://<Language>.wikipedia.org.
	BaseURL  string
	Language string
	Client   *http.Client
}

type summary struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

func (w *Wikipedia) Fetch(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrNoArticle
	}
	base := w.BaseURL
	if base == "" {
		lang := w.Language
		if lang == "" {
			lang = "en"
		}
		base = "https://" + lang + ".wikipedia.org"
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	title := url.PathEscape(strings.ReplaceAll(topic, " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(base, "/")+"/api/rest_v1/page/summary/"+title, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tome/1.0 (book generator)")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrNoArticle, topic)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching summary: status %d", resp.StatusCode)
	}

	var s summary
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&s); err != nil {
		return "", fmt.Errorf("decoding summary: %w", err)
	}
	if s.Type == "disambiguation" || strings.TrimSpace(s.Extract) == "" {
		return "", fmt.Errorf("%w: %s", ErrNoArticle, topic)
	}
	text := clip(strings.TrimSpace(s.Extract), maxExtract)
	return fmt.Sprintf("%s (Wikipedia): %s", s.Title, text), nil
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
