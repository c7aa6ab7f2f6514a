package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a run-level failure detected by the engine.
//
// Per-effect and per-rule problems are never RuntimeErrors - those are
// recovered and logged into the execution record. RuntimeErrors cover the
// failures that abort a run: rules or entities that cannot be loaded, and a
// run cancelled between steps.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// WorldID identifies the affected world.
	WorldID string

	// RuleID identifies the rule involved, when there is one.
	RuleID string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeLoadFailed indicates rules, entities, or grammars could not be
	// loaded at run start.
	ErrCodeLoadFailed RuntimeErrorCode = "LOAD_FAILED"

	// ErrCodeRunCancelled indicates the run was cancelled between steps.
	ErrCodeRunCancelled RuntimeErrorCode = "RUN_CANCELLED"

	// ErrCodeBadState indicates a step was attempted from an invalid engine
	// state (e.g. Step re-entered while already stepping).
	ErrCodeBadState RuntimeErrorCode = "BAD_STATE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.WorldID != "" {
		return fmt.Sprintf("%s: %s (world=%s)", e.Code, e.Message, e.WorldID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether the error is a load failure.
// Uses errors.As to handle wrapped errors.
func IsLoadError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeLoadFailed
}

// IsCancelled reports whether the error is a run cancellation.
func IsCancelled(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeRunCancelled
}

// NewLoadError creates a RuntimeError for a load-time failure.
func NewLoadError(worldID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
		WorldID: worldID,
	}
}
