package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	cases := map[string]struct {
		text string
		want float64
	}{
		"plain":         {"Quality Score: 8", 8},
		"decimal":       {"quality score: 6.5 overall", 6.5},
		"equals":        {"QUALITY SCORE=9.25", 9.25},
		"no colon":      {"quality score 7", 7},
		"out of ten":    {"Quality Score: 8/10", 8},
		"markdown bold": {"**Quality Score:** 9", 9},
		"bold all":      {"**Quality Score: 4.5**", 4.5},
		"first wins":    {"Quality score: 3\nQuality score: 9", 3},
		"missing":       {"Looks great, approved.", DefaultScore},
		"empty":         {"", DefaultScore},
		"no number":     {"quality score: excellent", DefaultScore},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ParseScore(tc.text), 1e-9)
		})
	}
}

func TestDecide(t *testing.T) {
	cases := map[string]struct {
		score float64
		text  string
		want  bool
	}{
		"at threshold":          {7.0, "fine", true},
		"above":                 {9, "excellent work", true},
		"below":                 {6.99, "fine", false},
		"veto not approved":     {9, "Verdict: NOT APPROVED", false},
		"veto major revision":   {9, "This needs major revision before release", false},
		"minor revision ok":     {8, "needs minor revision", true},
		"approved mention only": {8, "Approved for publication", true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.score, tc.text))
		})
	}
}

func TestReason(t *testing.T) {
	assert.Empty(t, Reason(8, "good"))
	assert.Equal(t, "quality score 5.0 is below 7.0", Reason(5, "ok"))
	assert.Equal(t, `review says "needs major revision"`, Reason(9, "Needs Major Revision"))
	assert.Equal(t, `quality score 2.0 is below 7.0; review says "not approved"`, Reason(2, "not approved"))
}
