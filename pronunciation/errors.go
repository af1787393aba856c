package pronunciation

import (
	"errors"
	"fmt"
)

// ErrorKind classifies evaluation failures
type ErrorKind int

const (
	// KindInput: recording too quiet, too short, or undecodable
	KindInput ErrorKind = iota + 1
	// KindNoTemplate: no reference recording available for the item
	KindNoTemplate
	// KindMismatch: user and template features cannot be compared
	KindMismatch
	// KindInternal: unexpected numeric failure
	KindInternal
	// KindTimeout: the evaluation exceeded its deadline or was cancelled
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNoTemplate:
		return "no_template"
	case KindMismatch:
		return "mismatch"
	case KindInternal:
		return "internal"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the scoring engine
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Sentinels for errors.Is; they match any *Error of the same kind
var (
	ErrInput      = &Error{Kind: KindInput}
	ErrNoTemplate = &Error{Kind: KindNoTemplate}
	ErrMismatch   = &Error{Kind: KindMismatch}
	ErrInternal   = &Error{Kind: KindInternal}
	ErrTimeout    = &Error{Kind: KindTimeout}
)

// NewError creates a new evaluation error
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
