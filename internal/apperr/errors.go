// Package apperr holds the sentinel errors shared across the sync engine and its surfaces.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")

	// ErrNotConfigured means the remote service has no host or token.
	ErrNotConfigured = errors.New("kadi4mat not configured")
	// ErrExcluded means the note failed the eligibility rules.
	ErrExcluded       = errors.New("note is excluded from sync")
	ErrCancelled      = errors.New("sync cancelled")
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNotSynced      = errors.New("note has not been synced yet")
)
