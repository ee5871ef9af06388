package syncengine

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/starford/kadisync/internal/models"
)

const debugLogRule = "=================================================="

// DebugLog collects the diagnostic lines of one sync, each prefixed with the
// time of day. Lines are echoed to the logger at debug level.
type DebugLog struct {
	mu     sync.Mutex
	lines  []string
	now    func() time.Time
	logger *slog.Logger
}

// NewDebugLog returns an empty log. A nil logger or clock means slog.Default
// and time.Now.
func NewDebugLog(logger *slog.Logger, now func() time.Time) *DebugLog {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &DebugLog{logger: logger, now: now}
}

// Add appends a formatted line.
func (l *DebugLog) Add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Debug("sync debug", slog.String("message", msg))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("[%s] %s", l.now().Format("15:04:05.000"), msg))
}

// Lines returns a copy of the collected lines.
func (l *DebugLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// String joins the lines.
func (l *DebugLog) String() string {
	return strings.Join(l.Lines(), "\n")
}

// Render formats the log as a standalone report about note.
func (l *DebugLog) Render(note models.Note, op models.Operation, recordID int64) string {
	mode := "Create"
	if op == models.OperationUpdate {
		mode = "Update"
	}
	out := []string{
		"Kadi4Mat Sync Debug Log",
		debugLogRule,
		"Generated: " + models.FormatTime(l.now()),
		"File: " + note.Path,
		"Mode: " + mode,
	}
	if op == models.OperationUpdate {
		out = append(out, "Record ID: "+strconv.FormatInt(recordID, 10))
	}
	out = append(out, debugLogRule)
	out = append(out, l.Lines()...)
	return strings.Join(out, "\n")
}

// LogFileName is the name a debug log saved at t gets in the vault.
func LogFileName(t time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(models.FormatTime(t))
	return "kadi-sync-log-" + ts + ".txt"
}
