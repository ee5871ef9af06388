// Package tui renders the sync engine for a terminal: a huh form that
// confirms each sync and a console that prints notices and state changes.
package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/syncengine"
)

// Console prints notices and status lines to a writer. It implements
// syncengine.Notifier and syncengine.StatusReporter.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	notice  lipgloss.Style
	syncing lipgloss.Style
	synced  lipgloss.Style
	failed  lipgloss.Style

	line string
}

// NewConsole creates a Console. Colors follow the capabilities of out.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:     out,
		notice:  r.NewStyle().Bold(true),
		syncing: r.NewStyle().Foreground(lipgloss.Color("214")),
		synced:  r.NewStyle().Foreground(lipgloss.Color("42")),
		failed:  r.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
}

// Notify prints a notice. Multi-line notices are indented under the first line.
func (c *Console) Notify(message string) {
	lines := strings.Split(message, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = "  " + lines[i]
	}
	c.print(c.notice.Render(lines[0]), lines[1:]...)
}

func (c *Console) Syncing(note models.Note) {
	c.status(c.syncing, note, syncengine.NoteState{State: models.StateSyncing})
}

func (c *Console) Synced(note models.Note, recordID int64) {
	c.status(c.synced, note, syncengine.NoteState{
		State:  models.StateSynced,
		Status: models.SyncStatus{RecordID: recordID},
	})
}

func (c *Console) Failed(note models.Note, message string) {
	c.status(c.failed, note, syncengine.NoteState{State: models.StateError, Message: message})
}

// Line is the last status line printed.
func (c *Console) Line() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.line
}

func (c *Console) status(style lipgloss.Style, note models.Note, ns syncengine.NoteState) {
	line := syncengine.StatusLine(ns)
	c.mu.Lock()
	c.line = line
	c.mu.Unlock()
	c.print(style.Render(line) + "  " + note.Path)
}

func (c *Console) print(first string, rest ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, first)
	for _, l := range rest {
		fmt.Fprintln(c.out, l)
	}
}
