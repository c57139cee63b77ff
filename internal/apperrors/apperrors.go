// Package apperrors classifies failures into the kinds callers act on.
//
// Transient and collaborator failures are absorbed where they happen and only
// reported through logs, history, or statistics. Store and contract failures
// propagate to the caller, which can tell them apart with IsStore and
// IsContract and decide whether the whole operation is worth retrying.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies the handling policy for an error.
type Kind int

const (
	// KindUnknown is reported for errors that were never classified.
	KindUnknown Kind = iota
	// KindTransient: a single path could not be stat'd or read.
	KindTransient
	// KindCollaborator: the embedding model or language model failed.
	KindCollaborator
	// KindStore: the catalog could not be queried or written.
	KindStore
	// KindContract: invalid configuration or arguments.
	KindContract
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindCollaborator:
		return "collaborator"
	case KindStore:
		return "store"
	case KindContract:
		return "contract"
	default:
		return "unknown"
	}
}

// Error is a classified error.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "storage.Query"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindStore})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New creates a classified error.
func New(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

func Transient(op string, cause error) error {
	return New(KindTransient, op, "", cause)
}

func Collaborator(op string, cause error) error {
	return New(KindCollaborator, op, "", cause)
}

func Store(op string, cause error) error {
	if cause == nil {
		return nil
	}
	// Already classified as a store failure, keep the innermost op.
	if KindOf(cause) == KindStore {
		return cause
	}
	return New(KindStore, op, "", cause)
}

// Contract reports a caller or configuration mistake.
func Contract(op, format string, args ...any) error {
	return New(KindContract, op, fmt.Sprintf(format, args...), nil)
}

// ContractWrap classifies an existing error (usually a package sentinel) as a
// contract violation while keeping it reachable through errors.Is.
func ContractWrap(op string, cause error) error {
	return New(KindContract, op, "", cause)
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsTransient(err error) bool    { return KindOf(err) == KindTransient }
func IsCollaborator(err error) bool { return KindOf(err) == KindCollaborator }
func IsStore(err error) bool        { return KindOf(err) == KindStore }
func IsContract(err error) bool     { return KindOf(err) == KindContract }
