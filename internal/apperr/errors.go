// Package apperr holds sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnknownPath = errors.New("unknown path")
	ErrNoLibrary   = errors.New("no library directory selected")
	ErrSuperseded  = errors.New("superseded by a newer directory selection")
)
