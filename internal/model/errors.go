package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies recoverable engine failures.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindAlreadyExists     ErrorKind = "already_exists"
	KindVersionConflict   ErrorKind = "version_conflict"
	KindInvalidCorrection ErrorKind = "invalid_correction"
	KindIllegalTransition ErrorKind = "illegal_transition"
	KindUnauthorizedActor ErrorKind = "unauthorized_actor"
	KindNotReadyForExport ErrorKind = "not_ready_for_export"
)

// Error is a typed, recoverable failure. Callers branch on Kind; the engine
// guarantees no partial mutation accompanies it.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	SpecimenID string    `json:"specimen_id,omitempty"`
	Message    string    `json:"message"`
}

func (e *Error) Error() string {
	if e.SpecimenID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: specimen %s: %s", e.Kind, e.SpecimenID, e.Message)
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "specimen not found"}
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists, Message: "specimen already exists"}
	ErrVersionConflict   = &Error{Kind: KindVersionConflict, Message: "stale version"}
	ErrInvalidCorrection = &Error{Kind: KindInvalidCorrection, Message: "invalid correction"}
	ErrIllegalTransition = &Error{Kind: KindIllegalTransition, Message: "illegal transition"}
	ErrUnauthorizedActor = &Error{Kind: KindUnauthorizedActor, Message: "actor not authorized"}
	ErrNotReadyForExport = &Error{Kind: KindNotReadyForExport, Message: "specimen not ready for export"}
)

// NewError builds a typed error for a specimen.
func NewError(kind ErrorKind, specimenID, format string, args ...any) *Error {
	return &Error{Kind: kind, SpecimenID: specimenID, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a typed error, or "" for anything else
// (storage failures and other unexpected errors).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
