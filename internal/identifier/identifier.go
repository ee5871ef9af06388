// Package identifier derives human-readable record identifiers from note titles.
//
// An identifier is a slug of the title followed by the generation instant at
// millisecond resolution. Two generations for the same title within the same
// millisecond produce the same identifier; callers that need uniqueness across
// such bursts must check with the remote service.
package identifier

import (
	"regexp"
	"strings"
	"time"
)

// MaxSlugLen caps the title part of an identifier.
const MaxSlugLen = 50

// emptySlug is used when a title has no character in [a-z0-9].
const emptySlug = "note"

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases title, collapses every run of characters outside [a-z0-9]
// into one hyphen, trims hyphens at both ends, and truncates to MaxSlugLen.
func Slug(title string) string {
	s := nonSlugRe.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLen {
		s = s[:MaxSlugLen]
	}
	return s
}

// Timestamp renders t in UTC as 2006-01-02-15-04-05-000.
func Timestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	iso = strings.NewReplacer(":", "-", ".", "-", "T", "-").Replace(iso)
	return strings.ToLower(strings.TrimSuffix(iso, "Z"))
}

// Generate returns the identifier for title at instant now.
func Generate(title string, now time.Time) string {
	slug := Slug(title)
	if slug == "" {
		slug = emptySlug
	}
	return slug + "-" + Timestamp(now)
}

// New returns the identifier for title at the current instant.
func New(title string) string {
	return Generate(title, time.Now())
}
