package types

import (
	"errors"
	"fmt"
)

// Error kinds. The structured error types below match these with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("revision conflict")
	ErrStore      = errors.New("store request failed")
	ErrDecode     = errors.New("malformed catalog document")
)

// Validation rules named by ValidationError.Rule.
const (
	RuleRequired      = "required"
	RuleSlugFormat    = "slug_format"
	RuleSlugDuplicate = "slug_duplicate"
	RuleIndexRange    = "index_range"
	RuleSlugUnknown   = "slug_unknown"
)

// ValidationError reports input that fails a local rule. It is always
// returned before any store request is made.
type ValidationError struct {
	Rule  string // One of the Rule constants.
	Field string // Offending field, e.g. "slug" or "index".
	Value string // Offending value, may be empty.
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case RuleRequired:
		return fmt.Sprintf("%s is required", e.Field)
	case RuleSlugFormat:
		return fmt.Sprintf("slug %q must be lowercase letters, numbers, and hyphens only", e.Value)
	case RuleSlugDuplicate:
		return fmt.Sprintf("a book with slug %q already exists", e.Value)
	case RuleIndexRange:
		return fmt.Sprintf("index %s is out of range", e.Value)
	case RuleSlugUnknown:
		return fmt.Sprintf("no book with slug %q", e.Value)
	default:
		return fmt.Sprintf("invalid %s %q (%s)", e.Field, e.Value, e.Rule)
	}
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError reports a write rejected because Revision is no longer the
// current revision of the document at Path. Reload before retrying.
type ConflictError struct {
	Path     string
	Revision string
	Message  string // Server-supplied message, may be empty.
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s changed since revision %q; reload before retrying", e.Path, e.Revision)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StoreError reports a transport or protocol failure talking to a document
// store. Status is the HTTP status when there was a response, otherwise 0.
type StoreError struct {
	Op      string // "get" or "put".
	Status  int
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	msg := e.Op
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrStore.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed catalog line.
type DecodeError struct {
	Line   int    `json:"line"` // 1-based.
	Reason string `json:"reason"`
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
