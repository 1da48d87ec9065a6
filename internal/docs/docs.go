// Package docs serves the articles behind 'tome docs'.
package docs

import (
	"fmt"
	"io"
	"strings"
)

// Topic is one article.
type Topic struct {
	Name    string
	Title   string
	Summary string
	Content string
}

// All returns every topic in display order.
func All() []Topic {
	return topics
}

// Get finds a topic by name, ignoring case. A unique prefix is enough, so
// 'tome docs prov' opens providers.
func Get(name string) (Topic, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var matches []Topic
	for _, t := range topics {
		if t.Name == name {
			return t, nil
		}
		if name != "" && strings.HasPrefix(t.Name, name) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Topic{}, fmt.Errorf("unknown topic %q, run 'tome docs' to list available topics", name)
	}
	names := make([]string, len(matches))
	for i, t := range matches {
		names[i] = t.Name
	}
	return Topic{}, fmt.Errorf("topic %q is ambiguous: %s", name, strings.Join(names, ", "))
}

// List writes the topic index.
func List(w io.Writer) {
	fmt.Fprint(w, "\nAvailable topics:\n\n")
	for _, t := range topics {
		fmt.Fprintf(w, "  %-14s %s\n", t.Name, t.Summary)
	}
	fmt.Fprintln(w, "\nRun 'tome docs <topic>' to read a topic.")
}
