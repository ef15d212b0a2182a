package models

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react to them.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindDependency
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindDependency:
		return "dependency"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrDependency = errors.New("dependency failure")
	ErrNotFound   = errors.New("not found")
)

type Code string

const (
	CodeUnsupportedFormat Code = "unsupported_format"
	CodeEmptyDocument     Code = "empty_document"
	CodeUploadTooLarge    Code = "upload_too_large"
	CodeInvalidStrategy   Code = "invalid_strategy"
	CodeInvalidChunkSize  Code = "invalid_chunk_size"
	CodeInvalidInput      Code = "invalid_input"

	CodeEmbeddingFailure   Code = "embedding_failure"
	CodeIndexFailure       Code = "index_failure"
	CodeRetrievalFailure   Code = "retrieval_failure"
	CodeGenerationFailure  Code = "generation_failure"
	CodeCacheFailure       Code = "cache_failure"
	CodePersistenceFailure Code = "persistence_failure"
	CodeStorageFailure     Code = "storage_failure"
	CodeExtractionFailure  Code = "extraction_failure"

	CodePastDate          Code = "past_date"
	CodeMissingFields     Code = "missing_fields"
	CodeInvalidEmail      Code = "invalid_email"
	CodeInvalidPhone      Code = "invalid_phone"
	CodeInvalidTime       Code = "invalid_time"
	CodeInvalidDate       Code = "invalid_date"
	CodeInvalidTransition Code = "invalid_transition"
	CodeInvalidStatus     Code = "invalid_status"

	CodeDuplicateBooking Code = "duplicate_booking"

	CodeBookingNotFound  Code = "booking_not_found"
	CodeDocumentNotFound Code = "document_not_found"
	CodeFileNotFound     Code = "file_not_found"
)

// Error is the single error type returned across service boundaries.
type Error struct {
	Kind  Kind
	Code  Code
	Stage BookingStage
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel of e, or another *Error with the same code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrDependency:
		return e.Kind == KindDependency
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Code != "" && other.Code == e.Code
	}
	return false
}

func NewValidation(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NewConflict(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NewNotFound(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Dependency tags an infrastructure failure. An err that already is an *Error
// is returned unchanged so the innermost classification wins.
func Dependency(code Code, msg string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindDependency, Code: code, Msg: msg, Err: err}
}

// WithStage returns a copy of err annotated with a booking stage. Errors
// that are not *Error are classified as dependency failures first.
func WithStage(err error, stage BookingStage, code Code) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		return &Error{Kind: KindDependency, Code: code, Stage: stage, Msg: string(code), Err: err}
	}
	cp := *appErr
	cp.Stage = stage
	return &cp
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// KindOf returns the kind of the outermost *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}
