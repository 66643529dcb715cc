package models

import "github.com/pkg/errors"

// Error taxonomy shared by the scheduler, the reconciler and the lesson engine.
// Callers wrap these with context and match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrResourceConflict  = errors.New("resource conflict")
	ErrResourceBusy      = errors.New("resource busy")
	ErrAlreadyManaged    = errors.New("already managed")
	ErrNotManaged        = errors.New("not managed")
	ErrConfigParse       = errors.New("config parse error")
	ErrInvalidAssignment = errors.New("invalid assignment")
)
