package parser

import (
	"reflect"
	"testing"
)

func TestParse_TitleAndDescription(t *testing.T) {
	r := Parse("---\nkadi_id: 1\n---\n# My Title\nBody text", "fallback")
	if r.Title != "My Title" {
		t.Errorf("title = %q, want %q", r.Title, "My Title")
	}
	if r.Description != "Body text" {
		t.Errorf("description = %q, want %q", r.Description, "Body text")
	}
}

func TestTitle_Fallback(t *testing.T) {
	if got := Title("no heading here\n## Second level\n", "file"); got != "file" {
		t.Errorf("title = %q, want file", got)
	}
	if got := Title("", "file"); got != "file" {
		t.Errorf("title = %q, want file", got)
	}
}

func TestTitle_HeadingInsideHeaderIgnored(t *testing.T) {
	content := "---\nnote: |\n  # not a title\n---\ntext\n# Real\n"
	if got := Title(content, "f"); got != "Real" {
		t.Errorf("title = %q, want Real", got)
	}
}

func TestDescription_OnlyFirstHeadingRemoved(t *testing.T) {
	content := "# One\n\nIntro\n# Two\nMore\n"
	want := "Intro\n# Two\nMore"
	if got := Description(content); got != want {
		t.Errorf("description = %q, want %q", got, want)
	}
	// Applying it again strips the next heading; only the first is special.
	if got := Description(Description(content)); got != "Intro\nMore" {
		t.Errorf("second pass = %q", got)
	}
}

func TestDescription_NoHeader(t *testing.T) {
	if got := Description("  plain body  \n"); got != "plain body" {
		t.Errorf("description = %q", got)
	}
}

func TestDescription_UnterminatedHeaderKept(t *testing.T) {
	content := "---\nfoo: 1\nbody"
	if got := Description(content); got != content {
		t.Errorf("description = %q, want unchanged", got)
	}
}

func TestInlineTags(t *testing.T) {
	content := "---\ntags: [x]\n---\nSome #alpha and #beta/sub, again #alpha. Not a#tag. # Heading\n"
	got := InlineTags(content)
	want := []string{"alpha", "beta/sub"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}
