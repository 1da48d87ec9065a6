// Package gate decides whether a reviewed book may be published.
//
// The decision is a known-brittle substring heuristic over model-written
// prose: a review that quotes "not approved" in passing still vetoes.
package gate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// Threshold is the minimum approving score, inclusive.
	Threshold = 7.0
	// DefaultScore is used when the review carries no parsable score.
	DefaultScore = 7.5
)

// VetoPhrases reject a review regardless of its score.
var VetoPhrases = []string{"not approved", "needs major revision"}

var scoreRe = regexp.MustCompile(`(?i)quality\s+score\**\s*[:=]?\s*\**\s*(\d+(?:\.\d+)?)`)

// ParseScore extracts the first "quality score: N" from text, or DefaultScore.
func ParseScore(text string) float64 {
	m := scoreRe.FindStringSubmatch(text)
	if m == nil {
		return DefaultScore
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultScore
	}
	return f
}

// veto returns the first veto phrase found in text.
func veto(text string) string {
	lower := strings.ToLower(text)
	for _, p := range VetoPhrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}

// Decide approves when score >= Threshold and text has no veto phrase.
func Decide(score float64, text string) bool {
	return score >= Threshold && veto(text) == ""
}

// Reason explains a rejection. It returns "" when Decide would approve.
func Reason(score float64, text string) string {
	var parts []string
	if score < Threshold {
		parts = append(parts, fmt.Sprintf("quality score %.1f is below %.1f", score, Threshold))
	}
	if p := veto(text); p != "" {
		parts = append(parts, fmt.Sprintf("review says %q", p))
	}
	return strings.Join(parts, "; ")
}
