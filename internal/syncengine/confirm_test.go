package syncengine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/kadisync/internal/apperr"
)

func TestConfirmation_Validate(t *testing.T) {
	valid := Confirmation{Title: "T", State: "active", Visibility: "private", License: "CC-BY-4.0"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid: %v", err)
	}

	noLicense := valid
	noLicense.License = ""
	if err := noLicense.Validate(); err != nil {
		t.Errorf("empty license must be accepted: %v", err)
	}

	for name, c := range map[string]Confirmation{
		"blank title":    {Title: " \t", State: "active", Visibility: "private"},
		"bad state":      {Title: "T", State: "draft", Visibility: "private"},
		"bad visibility": {Title: "T", State: "active", Visibility: "internal"},
		"bad license":    {Title: "T", State: "active", Visibility: "private", License: "nope-1.0"},
	} {
		if err := c.Validate(); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", name, err)
		}
	}
}

func TestConfirmation_BlankTitleMessage(t *testing.T) {
	err := Confirmation{Title: "  ", State: "active", Visibility: "private"}.Validate()
	if err == nil {
		t.Fatal("blank title accepted")
	}
	msg := err.Error()
	if !strings.Contains(msg, "title is required") {
		t.Errorf("err = %q", msg)
	}
	if strings.Contains(msg, msgTitleRequired) {
		t.Errorf("notice text leaked into the error: %q", msg)
	}
}

func TestAutoConfirmer_Overrides(t *testing.T) {
	p := Prompt{Defaults: Confirmation{Title: "A", State: "active", Visibility: "private", License: "MIT"}}
	got, err := AutoConfirmer{Overrides: Confirmation{Visibility: "public"}}.Confirm(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	want := Confirmation{Title: "A", State: "active", Visibility: "public", License: "MIT"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
