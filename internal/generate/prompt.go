package generate

import (
	"fmt"
	"strings"
)

// Tolerance is the advisory band around a section's word target.
const Tolerance = 50

const SectionSystemPrompt = `You are an expert technical author writing one section of a long-form educational book.
Write flowing prose in Markdown. Do not repeat the section title as a heading. Do not summarize other sections.`

// SectionPrompt is the context handed to the writer for one section.
type SectionPrompt struct {
	Topic         string
	Audience      string
	ChapterNumber int
	ChapterTitle  string
	Section       string
	SectionIndex  int
	Siblings      []string
	Outline       string
	TargetWords   int
	ThreadID      string
}

// BuildSectionPrompt renders p as the writer's user prompt.
func BuildSectionPrompt(p SectionPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", p.Topic)
	if p.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", p.Audience)
	}
	fmt.Fprintf(&b, "Chapter %d: %s\n", p.ChapterNumber, p.ChapterTitle)
	fmt.Fprintf(&b, "Section to write: %s\n\n", p.Section)

	b.WriteString("Sections in this chapter, in order:\n")
	for i, s := range p.Siblings {
		marker := " "
		if i == p.SectionIndex {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %d. %s\n", marker, i+1, s)
	}

	if p.Outline != "" {
		b.WriteString("\nFull book outline:\n")
		b.WriteString(strings.TrimSpace(p.Outline))
		b.WriteString("\n")
	}

	lo := p.TargetWords - Tolerance
	if lo < 0 {
		lo = 0
	}
	fmt.Fprintf(&b, "\nTarget length: %d words (between %d and %d).\n", p.TargetWords, lo, p.TargetWords+Tolerance)
	b.WriteString("Write only the body of this section.\n")
	return b.String()
}
