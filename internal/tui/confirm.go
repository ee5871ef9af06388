package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/syncengine"
)

// FormConfirmer asks the user to confirm each sync in a terminal form.
type FormConfirmer struct {
	Input  io.Reader
	Output io.Writer
	// Accessible replaces the interactive widgets with plain prompts, for
	// terminals without cursor control.
	Accessible bool
}

var _ syncengine.Confirmer = FormConfirmer{}

// Confirm shows the seeded defaults and the payload preview. Declining or
// aborting the form yields apperr.ErrCancelled.
func (f FormConfirmer) Confirm(ctx context.Context, p syncengine.Prompt) (syncengine.Confirmation, error) {
	c := p.Defaults
	c.License = canonicalLicense(c.License)
	proceed := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(Heading(p)).
				Description(RenderPreview(p.Preview)),
			huh.NewInput().
				Title("Title").
				Value(&c.Title).
				Validate(validateTitle),
			huh.NewSelect[string]().
				Title("State").
				Options(huh.NewOptions(models.RecordStates...)...).
				Value(&c.State),
			huh.NewSelect[string]().
				Title("Visibility").
				Options(huh.NewOptions(models.RecordVisibilities...)...).
				Value(&c.Visibility),
			huh.NewSelect[string]().
				Title("License").
				Options(licenseOptions(c.License)...).
				Value(&c.License),
			huh.NewConfirm().
				Title(confirmTitle(p.Operation)).
				Affirmative("Sync").
				Negative("Cancel").
				Value(&proceed),
		),
	).WithAccessible(f.Accessible)
	if f.Input != nil {
		form = form.WithInput(f.Input)
	}
	if f.Output != nil {
		form = form.WithOutput(f.Output)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return c, fmt.Errorf("tui: %w", apperr.ErrCancelled)
		}
		return c, fmt.Errorf("tui: %w", err)
	}
	if !proceed {
		return c, fmt.Errorf("tui: %w", apperr.ErrCancelled)
	}
	return c, nil
}

// Heading names the operation the prompt is for.
func Heading(p syncengine.Prompt) string {
	if p.Operation == models.OperationUpdate {
		return fmt.Sprintf("Update Kadi4Mat record (ID: %d)", p.RecordID)
	}
	return "Create new Kadi4Mat record"
}

func confirmTitle(op models.Operation) string {
	if op == models.OperationUpdate {
		return "Update the record now?"
	}
	return "Create the record now?"
}

var errTitleRequired = errors.New("title is required")

func validateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return errTitleRequired
	}
	return nil
}

// canonicalLicense spells a known license id the way the catalog does, so
// the select finds it among its options.
func canonicalLicense(id string) string {
	if l, ok := kadi.LicenseByID(id); ok {
		return l.ID
	}
	return id
}

// licenseOptions offers the common licenses, led by the seeded one when it
// is not among them. seeded must already be canonical.
func licenseOptions(seeded string) []huh.Option[string] {
	var opts []huh.Option[string]
	common := kadi.CommonLicenses()
	found := false
	for _, l := range common {
		if l.ID == seeded {
			found = true
		}
	}
	if !found && seeded != "" {
		name := seeded
		if l, ok := kadi.LicenseByID(seeded); ok {
			name = l.Name
		}
		opts = append(opts, huh.NewOption(name+" ("+seeded+")", seeded))
	}
	for _, l := range common {
		opts = append(opts, huh.NewOption(l.Name+" ("+l.ID+")", l.ID))
	}
	return opts
}

var (
	previewKey   = lipgloss.NewStyle().Bold(true)
	previewMuted = lipgloss.NewStyle().Faint(true)
)

// RenderPreview summarizes the payload a sync would send.
func RenderPreview(p *syncengine.Preview) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	row := func(k, v string) {
		b.WriteString(previewKey.Render(k+":") + " " + v + "\n")
	}
	row("Title", p.Title)
	row("State", p.State)
	row("Visibility", p.Visibility)
	row("License", p.License)
	if len(p.Tags) > 0 {
		row("Tags", strings.Join(p.Tags, ", "))
	}
	row("Metadata fields", fmt.Sprint(p.ExtrasCount))
	for _, e := range p.ExtrasSample {
		b.WriteString(previewMuted.Render(fmt.Sprintf("  %s (%s)", e.Key, e.Type)) + "\n")
	}
	if more := p.ExtrasCount - len(p.ExtrasSample); more > 0 {
		b.WriteString(previewMuted.Render(fmt.Sprintf("  ... and %d more", more)) + "\n")
	}
	for _, n := range p.Nested {
		b.WriteString(fmt.Sprintf("  nested %s: %s\n", n.Type, n.Key))
	}
	return strings.TrimRight(b.String(), "\n")
}
