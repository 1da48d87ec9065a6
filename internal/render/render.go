// Package render turns a finished book into files on disk.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/jorge-barreto/tome/internal/fsutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Book is what the renderer receives.
type Book struct {
	ID       string
	Title    string
	Audience string
	Chapters []Chapter
}

type Chapter struct {
	Number    int
	Title     string
	Content   string
	WordCount int
}

// WordCount sums the chapter word counts.
func (b Book) WordCount() int {
	n := 0
	for _, c := range b.Chapters {
		n += c.WordCount
	}
	return n
}

// Artifact locates a rendered book.
type Artifact struct {
	Path         string
	MarkdownPath string
	Size         int64
}

// Renderer produces an artifact for a book.
type Renderer interface {
	Render(ctx context.Context, b Book) (*Artifact, error)
}

// HTML writes <Dir>/<book ID>/book.md and book.html.
type HTML struct {
	Dir string
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAttribute()),
)

var page = template.Must(template.New("book").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 46em; margin: 3em auto; padding: 0 1em; line-height: 1.6; color: #222; }
h1 { page-break-before: always; }
h1:first-of-type { page-break-before: avoid; text-align: center; }
hr { border: 0; border-top: 1px solid #ccc; margin: 3em 0; }
pre, code { background: #f5f5f5; }
</style>
</head>
<body>
<article>
{{.Body}}</article>
</body>
</html>
`))

func (h *HTML) Render(ctx context.Context, b Book) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.ID == "" || strings.ContainsAny(b.ID, `/\`) {
		return nil, fmt.Errorf("invalid book id %q", b.ID)
	}
	if len(b.Chapters) == 0 {
		return nil, fmt.Errorf("book %q has no chapters", b.Title)
	}

	dir := filepath.Join(h.Dir, b.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating book dir: %w", err)
	}

	src := Markdown(b)
	mdPath := filepath.Join(dir, "book.md")
	if err := fsutil.WriteFileAtomic(mdPath, []byte(src), 0644); err != nil {
		return nil, fmt.Errorf("writing markdown: %w", err)
	}

	out, err := HTMLPage(b.Title, src)
	if err != nil {
		return nil, err
	}
	htmlPath := filepath.Join(dir, "book.html")
	if err := fsutil.WriteFileAtomic(htmlPath, out, 0644); err != nil {
		return nil, fmt.Errorf("writing html: %w", err)
	}
	return &Artifact{Path: htmlPath, MarkdownPath: mdPath, Size: int64(len(out))}, nil
}

// Markdown lays out the title page, the table of contents and the chapters.
func Markdown(b Book) string {
	var s strings.Builder
	fmt.Fprintf(&s, "# %s\n\n", b.Title)
	if b.Audience != "" {
		fmt.Fprintf(&s, "*Written for %s.*\n\n", b.Audience)
	}
	fmt.Fprintf(&s, "*%d chapters, %d words*\n\n", len(b.Chapters), b.WordCount())

	s.WriteString("## Contents\n\n")
	for _, c := range b.Chapters {
		fmt.Fprintf(&s, "%d. [%s](#chapter-%d)\n", c.Number, c.Title, c.Number)
	}

	for _, c := range b.Chapters {
		fmt.Fprintf(&s, "\n---\n\n# Chapter %d: %s {#chapter-%d}\n\n", c.Number, c.Title, c.Number)
		s.WriteString(strings.TrimSpace(c.Content))
		s.WriteString("\n")
	}
	return s.String()
}

// HTMLPage converts markdown to a standalone HTML document.
func HTMLPage(title, src string) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(src), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	var out bytes.Buffer
	err := page.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body.String())})
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return out.Bytes(), nil
}
