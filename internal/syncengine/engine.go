// Package syncengine drives the synchronization of one note with its remote
// Kadi4Mat record.
//
// A note moves through Unsynced, Syncing, Synced and Error. Synced and
// Unsynced are read from the note header (kadi_id); Syncing and Error only
// exist while the process runs. The header is written once, after the remote
// call succeeded, and a failed call leaves it untouched.
//
// Only one SyncNote call may hold a note at a time; a second call fails with
// apperr.ErrSyncInProgress.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/frontmatter"
	"github.com/starford/kadisync/internal/identifier"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/parser"
)

// User-facing notices.
const (
	msgNotConfigured = "Kadi4Mat not configured. Please check settings."
	msgExcluded      = "This file is excluded from sync"
	msgNotSynced     = "This note has not been synced yet"
	msgTitleRequired = "Please enter a title for the record"
)

// Engine coordinates the extractor, filter, parser and identifier generator
// with the remote service and the host.
type Engine struct {
	host     Host
	clients  ClientSource
	settings SettingsSource

	logger    *slog.Logger
	notifier  Notifier
	reporters Reporters
	observers []Observer
	now       func() time.Time

	track *tracker

	mu      sync.Mutex
	written map[string]string // path -> checksum of the engine's last header write
}

// New creates an Engine.
func New(host Host, clients ClientSource, cfg SettingsSource, opts ...Option) *Engine {
	e := &Engine{
		host:     host,
		clients:  clients,
		settings: cfg,
		logger:   slog.Default(),
		notifier: nopNotifier{},
		now:      time.Now,
		track:    newTracker(),
		written:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result describes a successful sync.
type Result struct {
	Operation models.Operation  `json:"operation"`
	Record    *kadi.Record      `json:"record"`
	Status    models.SyncStatus `json:"status"`
}

// SyncNote creates or updates the remote record of note after c confirmed
// the request, then writes the sync status into the note header.
func (e *Engine) SyncNote(ctx context.Context, note models.Note, c Confirmer, opts ...SyncOption) (*Result, error) {
	var so syncOptions
	for _, opt := range opts {
		opt(&so)
	}
	log := so.log
	if log == nil {
		log = NewDebugLog(e.logger, e.now)
	}

	client, err := e.client()
	if err != nil {
		e.notifier.Notify(msgNotConfigured)
		return nil, err
	}

	ok, err := e.ShouldSync(ctx, note)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.notifier.Notify(msgExcluded)
		return nil, fmt.Errorf("syncengine: %s: %w", note.Path, apperr.ErrExcluded)
	}

	if !e.track.acquire(note.Path) {
		return nil, fmt.Errorf("syncengine: %s: %w", note.Path, apperr.ErrSyncInProgress)
	}
	defer e.track.release(note.Path)

	h, err := e.host.Header(ctx, note)
	if err != nil {
		return nil, err
	}
	fields := frontmatter.Extract(note.Basename, h)
	op := operationOf(fields)
	defaults := e.seed(fields, h)

	prompt := Prompt{
		Operation: op,
		RecordID:  fields.RecordID,
		Note:      note,
		Defaults:  defaults,
		Preview:   e.preview(note, h, fields, op, defaults),
		Log:       log,
	}
	conf, err := c.Confirm(ctx, prompt)
	if err != nil {
		if errors.Is(err, apperr.ErrCancelled) {
			log.Add("Sync cancelled by user")
		}
		return nil, err
	}

	log.Add("--- Starting Sync Process ---")
	log.Add("Title: %s", conf.Title)
	log.Add("State: %s", conf.State)
	log.Add("Visibility: %s", conf.Visibility)
	log.Add("License: %s", conf.License)
	if err := conf.Validate(); err != nil {
		if strings.TrimSpace(conf.Title) == "" {
			e.notifier.Notify(msgTitleRequired)
		}
		log.Add("ERROR: %v", err)
		return nil, err
	}
	log.Add("User confirmed sync with parameters")
	if b, err := json.MarshalIndent(conf, "", "  "); err == nil {
		log.Add("%s", b)
	}

	e.track.begin(note.Path)
	e.reporters.Syncing(note)

	res, recordID, err := e.send(ctx, client, note, conf, log)
	if err != nil {
		e.fail(ctx, note, res, recordID, err, log)
		return nil, err
	}

	log.Add("✅ Sync completed successfully")
	verb := "Created"
	if res.Operation == models.OperationUpdate {
		verb = "Updated"
	}
	e.notifier.Notify(fmt.Sprintf("✅ %s Kadi4Mat record: %s", verb, res.Status.Identifier))
	e.reporters.Synced(note, res.Status.RecordID)
	e.record(ctx, models.SyncEvent{
		Path:      note.Path,
		Operation: res.Operation,
		Outcome:   models.OutcomeSynced,
		RecordID:  res.Status.RecordID,
		At:        e.now(),
	})
	e.logger.Info("note synced",
		slog.String("path", note.Path),
		slog.String("operation", string(res.Operation)),
		slog.Int64("record_id", res.Status.RecordID),
		slog.String("identifier", res.Status.Identifier))
	return res, nil
}

// send runs the Syncing step. On failure res still names the operation that
// was attempted.
func (e *Engine) send(ctx context.Context, client RecordService, note models.Note, conf Confirmation, log *DebugLog) (res *Result, recordID int64, err error) {
	res = &Result{Operation: models.OperationCreate}

	content, err := e.host.Read(ctx, note)
	if err != nil {
		return res, 0, err
	}
	log.Add("Read note content: %d characters", len(content))

	h, err := e.host.Header(ctx, note)
	if err != nil {
		return res, 0, err
	}
	parsed := parser.Parse(content, note.Basename)
	log.Add("Extracted title: %s", parsed.Title)
	log.Add("Description length: %d characters", len(parsed.Description))

	log.Add("Extracting Kadi4Mat fields from frontmatter")
	fields := frontmatter.Extract(note.Basename, h)
	op := operationOf(fields)
	res.Operation = op
	now := e.now()

	log.Add("Filtering custom metadata")
	meta := e.metadata(note, h, op, now)
	log.Add("Converting metadata to Kadi4Mat extras format")
	extras := kadi.JSONToExtras(meta.OrderedMap, convertOptions)
	log.Add("Generated %d extras fields", len(extras))
	if n := kadi.CountNested(extras); n > 0 {
		log.Add("Including %d nested structures (dict/list)", n)
	}

	params := kadi.RecordParams{
		Title:       conf.Title,
		Identifier:  fields.Identifier,
		State:       conf.State,
		Visibility:  conf.Visibility,
		License:     conf.License,
		Tags:        fields.Tags,
		Description: parsed.Description,
		Extras:      extras,
	}

	var rec *kadi.Record
	switch op {
	case models.OperationUpdate:
		log.Add("Updating existing record %d", fields.RecordID)
		rec, err = client.UpdateRecord(ctx, fields.RecordID, params)
	default:
		if params.Identifier == "" {
			params.Identifier = identifier.Generate(conf.Title, now)
		}
		log.Add("Using identifier: %s", params.Identifier)
		log.Add("Sending create request to Kadi4Mat API...")
		rec, err = client.CreateRecord(ctx, params)
	}
	if err != nil {
		return res, fields.RecordID, err
	}
	log.Add("Record saved with ID: %d", rec.ID)

	synced := models.FormatTime(e.now())
	status := models.SyncStatus{
		RecordID:   firstID(rec.ID, fields.RecordID),
		Identifier: firstString(rec.Identifier, params.Identifier),
		Synced:     synced,
		State:      firstString(rec.State, conf.State),
		Visibility: firstString(rec.Visibility, conf.Visibility),
		License:    conf.License,
	}
	if op == models.OperationUpdate {
		status.Modified = synced
	}

	log.Add("Updating note frontmatter with Kadi4Mat identifiers")
	patch := status.Patch()
	sum, err := e.host.ProcessFrontmatter(context.WithoutCancel(ctx), note, func(h *frontmatter.Header) error {
		h.Merge(patch)
		return nil
	})
	if err != nil {
		return res, status.RecordID, fmt.Errorf("syncengine: record %d saved but header update failed: %w", status.RecordID, err)
	}
	e.markWritten(note.Path, sum)
	log.Add("Frontmatter updated")

	res.Record = rec
	res.Status = status
	return res, status.RecordID, nil
}

func (e *Engine) fail(ctx context.Context, note models.Note, res *Result, recordID int64, err error, log *DebugLog) {
	msg := errorMessage(err)
	log.Add("❌ ERROR: %s", msg)

	statusCode := 0
	var kerr *kadi.Error
	if errors.As(err, &kerr) {
		statusCode = kerr.StatusCode
		if kerr.Response != nil {
			log.Add("--- API Error Response ---")
			if b, jerr := json.MarshalIndent(kerr.Response, "", "  "); jerr == nil {
				log.Add("%s", b)
			}
		}
		log.Add("Status Code: %d", kerr.StatusCode)
	}

	e.track.fail(note.Path, msg)
	e.notifier.Notify("Sync failed: " + msg)
	e.reporters.Failed(note, msg)

	op := models.OperationCreate
	if res != nil {
		op = res.Operation
	}
	e.record(ctx, models.SyncEvent{
		Path:       note.Path,
		Operation:  op,
		Outcome:    models.OutcomeFailed,
		RecordID:   recordID,
		Message:    msg,
		StatusCode: statusCode,
		At:         e.now(),
	})
	e.logger.Error("sync failed",
		slog.String("path", note.Path),
		slog.String("operation", string(op)),
		slog.Int("status_code", statusCode),
		slog.String("error", err.Error()))
}

func (e *Engine) record(ctx context.Context, ev models.SyncEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, o := range e.observers {
		if err := o.RecordSync(ctx, ev); err != nil {
			e.logger.Warn("sync history not recorded",
				slog.String("path", ev.Path),
				slog.String("error", err.Error()))
		}
	}
}

func (e *Engine) client() (RecordService, error) {
	if !e.settings.Get().Configured() {
		return nil, fmt.Errorf("syncengine: %w", apperr.ErrNotConfigured)
	}
	c, err := e.clients()
	if err != nil {
		return nil, fmt.Errorf("syncengine: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("syncengine: %w", apperr.ErrNotConfigured)
	}
	return c, nil
}

func (e *Engine) markWritten(path, sum string) {
	e.mu.Lock()
	e.written[path] = sum
	e.mu.Unlock()
}

// OwnWrite reports whether sum is the content the engine itself last wrote
// to path.
func (e *Engine) OwnWrite(path, sum string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written[path] == sum
}

func operationOf(f frontmatter.ControlFields) models.Operation {
	if f.HasRecordID {
		return models.OperationUpdate
	}
	return models.OperationCreate
}

func errorMessage(err error) string {
	var kerr *kadi.Error
	if errors.As(err, &kerr) && kerr.Message != "" {
		return kerr.Message
	}
	return err.Error()
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstID(ids ...int64) int64 {
	for _, id := range ids {
		if id != 0 {
			return id
		}
	}
	return 0
}
