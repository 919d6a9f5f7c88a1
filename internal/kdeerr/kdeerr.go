// Package kdeerr defines the three error kinds used across the build
// engine: Config (user-fixable), Runtime (environment-fixable or
// transient) and Internal (a bug, carrying a stack trace).
package kdeerr

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// Kind is the tag of the three-variant error enum: errors are
// classified rather than used for ad hoc control flow.
type Kind int

const (
	// Config errors are fatal for the run: malformed rc-file, unknown
	// option, duplicate module name, missing include file.
	Config Kind = iota
	// Runtime errors are environment-fixable or transient: git clone
	// failed, a required ref is missing, a build command failed.
	Runtime
	// Internal errors indicate a bug in the build engine itself.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Runtime:
		return "runtime"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a kdebuilder error: a Kind plus a wrapped cause. Internal
// errors capture a stack trace at construction time.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
	stack *goerrors.Error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Stack returns a formatted stack trace for Internal errors, and the
// empty string otherwise.
func (e *Error) Stack() string {
	if e.stack == nil {
		return ""
	}
	return string(e.stack.Stack())
}

// Configf builds a Config-kind error, fatal for the run.
func Configf(format string, args ...interface{}) error {
	return &Error{Kind: Config, Msg: fmt.Sprintf(format, args...)}
}

// Runtimef builds a Runtime-kind error.
func Runtimef(format string, args ...interface{}) error {
	return &Error{Kind: Runtime, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates cause with msg, preserving cause's Kind if it already
// is a *Error, defaulting to Runtime otherwise (most wrapped failures —
// failed child processes, I/O errors — are environment-fixable).
func Wrap(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	kind := Runtime
	var existing *Error
	if xerrors.As(cause, &existing) {
		kind = existing.Kind
	}
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// Internalf builds an Internal-kind error with a captured stack trace,
// for conditions that indicate a bug (an invariant violated).
func Internalf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return &Error{
		Kind:  Internal,
		Msg:   msg,
		stack: goerrors.Wrap(fmt.Errorf("%s", msg), 1),
	}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if xerrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
