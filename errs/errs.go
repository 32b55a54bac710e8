// Package errs defines the typed error taxonomy shared by every layer of
// the retrieval core, per the error handling design: errors are typed by
// kind, not by message.
package errs

import (
	"errors"
	"fmt"
)

// Kind enumerates the closed set of error kinds the core returns.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindUnsupportedLanguage Kind = "unsupported_language"
	KindParseError         Kind = "parse_error"
	KindParseTooLarge      Kind = "parse_too_large"
	KindEmbeddingFailed    Kind = "embedding_failed"
	KindStorageError       Kind = "storage_error"
	KindTimeout            Kind = "timeout"
	KindPoolExhausted      Kind = "pool_exhausted"
	KindDimensionMismatch  Kind = "dimension_mismatch"
	KindReadOnly           Kind = "read_only"
	KindInternal           Kind = "internal"
)

// Error is the concrete typed error every component boundary returns. It
// carries a stable kind, a short code, an actionable message, the
// operation that produced it, and an optional wrapped cause.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Operation string
	Cause     error
}

func (e *Error) Error() string {
	if e.Operation != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Operation, e.Code, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s: %s", e.Operation, e.Code, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errs.NotFound) style matching against a
// kind-only sentinel constructed by New with no message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an Error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches operation context and a cause while preserving kind.
func Wrap(kind Kind, operation string, cause error) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: cause.Error(), Operation: operation, Cause: cause}
}

// WithOperation returns a copy of e annotated with the crossing operation
// name, per the propagation policy: low-level errors are wrapped with
// context as they cross component boundaries, preserving kind.
func (e *Error) WithOperation(operation string) *Error {
	cp := *e
	if cp.Operation == "" {
		cp.Operation = operation
	} else {
		cp.Operation = operation + " > " + cp.Operation
	}
	return &cp
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := kindOf(err)
	return ok && k == kind
}

func NotFound(code, message string) *Error { return New(KindNotFound, code, message) }
func Validation(field string, value any) *Error {
	return New(KindValidation, "invalid_field", fmt.Sprintf("field %q has invalid value %v", field, value))
}
func UnsupportedLanguage(ext string) *Error {
	return New(KindUnsupportedLanguage, "unsupported_language", fmt.Sprintf("no parser registered for extension %q", ext))
}
func ParseError(path string, cause error) *Error {
	return &Error{Kind: KindParseError, Code: "parse_error", Message: fmt.Sprintf("failed to parse %s", path), Cause: cause}
}
func ParseTooLarge(path string, size, limit int64) *Error {
	return New(KindParseTooLarge, "parse_too_large", fmt.Sprintf("%s is %d bytes, exceeding limit %d", path, size, limit))
}
func EmbeddingFailed(failedIndices []int, cause error) *Error {
	return &Error{Kind: KindEmbeddingFailed, Code: "embedding_failed", Message: fmt.Sprintf("embedding failed for %d of the batch", len(failedIndices)), Cause: cause}
}
func StorageError(operation string, cause error) *Error {
	return Wrap(KindStorageError, operation, cause)
}
func Timeout(operation string) *Error {
	return New(KindTimeout, "timeout", fmt.Sprintf("%s exceeded its deadline", operation))
}
func PoolExhausted(maxSize int) *Error {
	return New(KindPoolExhausted, "pool_exhausted", fmt.Sprintf("pool exhausted at max_size=%d; raise max_size or reduce concurrency", maxSize))
}
func DimensionMismatch(configured, actual int) *Error {
	return New(KindDimensionMismatch, "dimension_mismatch", fmt.Sprintf("configured dimension %d disagrees with collection dimension %d", configured, actual))
}
func ReadOnly(operation string) *Error {
	return New(KindReadOnly, "read_only", fmt.Sprintf("%s rejected: engine is in read-only mode", operation))
}
func Internal(message string) *Error {
	return New(KindInternal, "internal", message)
}
