package frontmatter

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Control keys read by the extractor.
const (
	KeyTitle      = "kadi_title"
	KeyIdentifier = "kadi_identifier"
	KeyState      = "kadi_state"
	KeyVisibility = "kadi_visibility"
	KeyTags       = "kadi_tags"
	KeyID         = "kadi_id"
	KeyLicense    = "kadi_license"

	// KeyNativeTags is the host's own tag field.
	KeyNativeTags = "tags"
)

// ControlFields are the record fields resolved from a header for one sync attempt.
// Empty strings mean "absent"; Tags is nil when no tag was found.
type ControlFields struct {
	Title      string
	Identifier string
	State      string
	Visibility string
	Tags       []string

	RecordID    int64
	HasRecordID bool
}

var tagSplitRe = regexp.MustCompile(`[,\s]+`)

// Extract resolves the control fields of a note from its header. basename is
// the title fallback; a nil header yields only the title.
func Extract(basename string, h *Header) ControlFields {
	if h == nil {
		return ControlFields{Title: basename}
	}

	f := ControlFields{Title: basename}
	if s, ok := stringValue(h, KeyTitle); ok {
		f.Title = s
	}
	f.Identifier, _ = stringValue(h, KeyIdentifier)
	f.State, _ = stringValue(h, KeyState)
	f.Visibility, _ = stringValue(h, KeyVisibility)

	native := NativeTags(h)
	control, _ := h.Lookup(KeyTags)
	f.Tags = unionTags(native, tagList(control))

	if v, ok := h.Lookup(KeyID); ok {
		f.RecordID, f.HasRecordID = RecordID(v)
	}
	return f
}

// NativeTags returns the host tag annotations of a header with any leading
// '#' removed.
func NativeTags(h *Header) []string {
	v, _ := h.Lookup(KeyNativeTags)
	return tagList(v)
}

// RecordID reports whether v is a numeric record id. Numeric strings do not
// count: a hand-written "42" leaves the note unsynced.
func RecordID(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func stringValue(h *Header, key string) (string, bool) {
	v, ok := h.Lookup(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func tagList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = tagSplitRe.Split(t, -1)
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	case []string:
		raw = t
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func unionTags(sources ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, src := range sources {
		for _, tag := range src {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
