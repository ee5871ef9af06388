package syncengine

import (
	"context"
	"slices"
	"strings"

	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/settings"
)

// ShouldSync reports whether note passes the eligibility rules of the
// current settings. Tags are only read when a tag filter is set.
func (e *Engine) ShouldSync(ctx context.Context, note models.Note) (bool, error) {
	s := e.settings.Get()
	if !pathEligible(note, s) {
		return false, nil
	}
	if len(s.TagFilter) == 0 {
		return true, nil
	}
	tags, err := e.host.Tags(ctx, note)
	if err != nil {
		return false, err
	}
	return Eligible(note, tags, s), nil
}

// Eligible is the eligibility rule: notes must be Markdown, outside every
// excluded prefix, and carry one of the filter tags when a filter is set.
func Eligible(note models.Note, tags []string, s settings.Settings) bool {
	if !pathEligible(note, s) {
		return false
	}
	if len(s.TagFilter) == 0 {
		return true
	}
	for _, want := range s.TagFilter {
		if slices.Contains(tags, strings.TrimPrefix(want, "#")) {
			return true
		}
	}
	return false
}

func pathEligible(note models.Note, s settings.Settings) bool {
	if note.Extension != models.NoteExtension {
		return false
	}
	for _, prefix := range s.ExcludeFolders {
		if prefix != "" && strings.HasPrefix(note.Path, prefix) {
			return false
		}
	}
	return true
}
