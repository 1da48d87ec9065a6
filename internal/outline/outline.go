// Package outline turns a free-text book outline into chapters and sections.
package outline

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ChapterEstimate is the fixed divisor used to budget words per chapter,
// independent of how many chapters the outline actually has.
const ChapterEstimate = 10

// FallbackChapters is the number of chapters in the default skeleton.
const FallbackChapters = 8

// FallbackSections is the section list given to skeleton chapters and to
// parsed chapters that came without sections.
var FallbackSections = []string{
	"Introduction",
	"Core Concepts",
	"Practical Examples",
	"Advanced Topics",
	"Summary",
}

// Chapter is one structural unit of the book.
type Chapter struct {
	Number          int      `json:"number"`
	Title           string   `json:"title"`
	Sections        []string `json:"sections"`
	TargetWordCount int      `json:"targetWordCount"`
}

var (
	chapterRe      = regexp.MustCompile(`^(?i:chapter\s*)?\d+\s*[:.\s]\s*(.+)$`)
	sectionLabelRe = regexp.MustCompile(`^(?i:section)\s+\d+(?:\.\d+)*\s*:\s*`)
)

// Parse scans text line by line. Chapters are numbered in parse order; the
// numbers written in the text are ignored. When no chapter header is found
// the Fallback skeleton is returned.
func Parse(text string, totalWords int) []Chapter {
	target := totalWords / ChapterEstimate
	text = norm.NFC.String(text)

	var chapters []Chapter
	var cur *Chapter
	flush := func() {
		if cur == nil {
			return
		}
		if len(cur.Sections) == 0 {
			cur.Sections = append([]string(nil), FallbackSections...)
		}
		chapters = append(chapters, *cur)
		cur = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if title, ok := chapterTitle(line); ok {
			flush()
			cur = &Chapter{
				Number:          len(chapters) + 1,
				Title:           title,
				TargetWordCount: target,
			}
			continue
		}
		if title, ok := sectionTitle(line); ok && cur != nil {
			cur.Sections = append(cur.Sections, title)
		}
	}
	flush()

	if len(chapters) == 0 {
		return Fallback(totalWords)
	}
	return chapters
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•")
}

func chapterTitle(line string) (string, bool) {
	if isBullet(line) {
		return "", false
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "#"))
	line = strings.TrimSpace(strings.Trim(line, "*"))
	if isBullet(line) {
		return "", false
	}
	m := chapterRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	title := cleanTitle(strings.TrimLeft(m[1], "-–— "))
	if title == "" {
		return "", false
	}
	return title, true
}

func sectionTitle(line string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(line, "-"):
		rest = strings.TrimPrefix(line, "-")
	case strings.HasPrefix(line, "•"):
		rest = strings.TrimPrefix(line, "•")
	default:
		return "", false
	}
	rest = cleanTitle(rest)
	rest = cleanTitle(sectionLabelRe.ReplaceAllString(rest, ""))
	// markdown rules like "---"
	if strings.Trim(rest, "-") == "" {
		return "", false
	}
	return rest, true
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.Trim(s, "*"))
	return s
}

// Fallback returns the default skeleton: FallbackChapters chapters titled
// "Chapter N" with FallbackSections each.
func Fallback(totalWords int) []Chapter {
	target := totalWords / ChapterEstimate
	chapters := make([]Chapter, FallbackChapters)
	for i := range chapters {
		chapters[i] = Chapter{
			Number:          i + 1,
			Title:           "Chapter " + strconv.Itoa(i+1),
			Sections:        append([]string(nil), FallbackSections...),
			TargetWordCount: target,
		}
	}
	return chapters
}

// TotalSections sums the section counts of chapters.
func TotalSections(chapters []Chapter) int {
	n := 0
	for _, c := range chapters {
		n += len(c.Sections)
	}
	return n
}

// Text renders chapters back into the outline format Parse accepts.
func Text(chapters []Chapter) string {
	var b strings.Builder
	for _, c := range chapters {
		b.WriteString("Chapter ")
		b.WriteString(strconv.Itoa(c.Number))
		b.WriteString(": ")
		b.WriteString(c.Title)
		b.WriteByte('\n')
		for _, s := range c.Sections {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
