package agent

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

// Mock produces deterministic offline text. Writer replies contain exactly
// Request.TargetWords whitespace-separated words.
type Mock struct {
	Chapters int // default 10
	Sections int // default 4
	Score    float64
}

var mockTopicRe = regexp.MustCompile(`(?m)^Topic:\s*(.+)$`)

var mockWords = strings.Fields(`the system design pattern data model practice example
concept method process layer signal detail review structure approach result
reader builds learns applies tests measures compares explains improves shapes
simple careful clear robust general useful modern common practical important`)

func (m Mock) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch req.Role {
	case RoleOutline:
		return m.outline(req), nil
	case RoleReviewer:
		score := m.Score
		if score == 0 {
			score = 8.5
		}
		return fmt.Sprintf("Quality Score: %.1f/10\n\nThe manuscript is coherent and ready for publication.", score), nil
	case RoleDoctor:
		return "The run failed in the stage recorded last. Check the error log and retry with a shorter target.", nil
	default:
		n := req.TargetWords
		if n <= 0 {
			n = 300
		}
		return MockText(req.Prompt, n), nil
	}
}

func (m Mock) outline(req Request) string {
	chapters, sections := m.Chapters, m.Sections
	if chapters <= 0 {
		chapters = 10
	}
	if sections <= 0 {
		sections = 4
	}
	topic := "the subject"
	if mt := mockTopicRe.FindStringSubmatch(req.Prompt); mt != nil {
		topic = strings.TrimSpace(mt[1])
	}
	var b strings.Builder
	for c := 1; c <= chapters; c++ {
		fmt.Fprintf(&b, "Chapter %d: Part %d of %s\n", c, c, topic)
		for s := 1; s <= sections; s++ {
			fmt.Fprintf(&b, "- Section %d.%d: Topic %d.%d\n", c, s, c, s)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// MockText returns n words picked deterministically from seed, in
// paragraphs of up to 60 words.
func MockText(seed string, n int) string {
	h := fnv.New64a()
	h.Write([]byte(seed))
	x := h.Sum64() | 1

	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			if i%60 == 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte(' ')
			}
		}
		// xorshift
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		b.WriteString(mockWords[x%uint64(len(mockWords))])
	}
	return b.String()
}
