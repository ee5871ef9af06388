// Package parser derives the display title, description, and inline tags of a
// Markdown note from its raw text.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/kadisync/internal/frontmatter"
)

var (
	headingRe = regexp.MustCompile(`(?m)^#[ \t]+(.+)$`)
	tagRe     = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_][\p{L}\p{N}_/-]*)`)
)

// Result holds the parsed parts of a note.
type Result struct {
	Title       string
	Description string
	Tags        []string
}

// Parse derives title, description, and inline tags in one pass.
func Parse(content, fallback string) Result {
	body := StripHeader(content)
	return Result{
		Title:       title(body, fallback),
		Description: description(body),
		Tags:        inlineTags(body),
	}
}

// StripHeader removes a leading "---" delimited header block, if present.
func StripHeader(content string) string {
	_, body, ok := frontmatter.Split(content)
	if !ok {
		return content
	}
	return body
}

// Title returns the text of the first level-one heading, else fallback.
func Title(content, fallback string) string {
	return title(StripHeader(content), fallback)
}

// Description returns the note text without its header and without the
// first level-one heading, trimmed.
func Description(content string) string {
	return description(StripHeader(content))
}

// InlineTags returns the deduplicated #tags written in the note body.
func InlineTags(content string) []string {
	return inlineTags(StripHeader(content))
}

func title(body, fallback string) string {
	m := headingRe.FindStringSubmatch(body)
	if m == nil {
		return fallback
	}
	if t := strings.TrimSpace(m[1]); t != "" {
		return t
	}
	return fallback
}

func description(body string) string {
	loc := headingRe.FindStringIndex(body)
	if loc != nil {
		end := loc[1]
		if end < len(body) && body[end] == '\n' {
			end++
		}
		body = body[:loc[0]] + body[end:]
	}
	return strings.TrimSpace(body)
}

func inlineTags(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		t := m[1]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
