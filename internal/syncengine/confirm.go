package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
)

// Confirmation is what the user agreed to send.
type Confirmation struct {
	Title      string `json:"title"`
	State      string `json:"state"`
	Visibility string `json:"visibility"`
	License    string `json:"license"`
}

// Validate checks the confirmation before anything is sent. Errors wrap
// apperr.ErrValidation.
func (c Confirmation) Validate() error {
	c.Title = strings.TrimSpace(c.Title)
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required.Error("title is required")),
		validation.Field(&c.State, validation.Required, validation.In(toAny(models.RecordStates)...)),
		validation.Field(&c.Visibility, validation.Required, validation.In(toAny(models.RecordVisibilities)...)),
		validation.Field(&c.License, validation.By(knownLicense)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

func knownLicense(v any) error {
	id, _ := v.(string)
	if id == "" {
		return nil
	}
	if _, ok := kadi.LicenseByID(id); !ok {
		return errors.New("unknown license")
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Prompt is shown to the user before a sync.
type Prompt struct {
	Operation models.Operation
	RecordID  int64
	Note      models.Note
	Defaults  Confirmation
	// Preview is the payload the defaults would produce.
	Preview *Preview
	Log     *DebugLog
}

// Confirmer gates every sync. Returning an error wrapping apperr.ErrCancelled
// aborts the sync without reporting a failure.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (Confirmation, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, p Prompt) (Confirmation, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, p Prompt) (Confirmation, error) {
	return f(ctx, p)
}

// AutoConfirmer accepts the seeded defaults. Non-empty Overrides fields
// replace the matching default.
type AutoConfirmer struct {
	Overrides Confirmation
}

func (a AutoConfirmer) Confirm(_ context.Context, p Prompt) (Confirmation, error) {
	c := p.Defaults
	if a.Overrides.Title != "" {
		c.Title = a.Overrides.Title
	}
	if a.Overrides.State != "" {
		c.State = a.Overrides.State
	}
	if a.Overrides.Visibility != "" {
		c.Visibility = a.Overrides.Visibility
	}
	if a.Overrides.License != "" {
		c.License = a.Overrides.License
	}
	return c, nil
}
