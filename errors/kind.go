package errors

import (
	stderrors "errors"
)

// Kind classifies failures surfaced by the client.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindAuth covers bad credentials and unreachable hosts.
	KindAuth
	// KindExec covers commands that could not be dispatched or failed remotely.
	KindExec
	// KindShell covers shell channel open and write failures.
	KindShell
	// KindSftp covers channel open, filesystem and malformed listing failures.
	KindSftp
	// KindCancelNoop marks a cancel issued with nothing in flight. Not a failure.
	KindCancelNoop
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindExec:
		return "exec"
	case KindShell:
		return "shell"
	case KindSftp:
		return "sftp"
	case KindCancelNoop:
		return "cancel-noop"
	default:
		return "unknown"
	}
}

// KindOf returns the outermost kind found in the chain of err.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok && e.kind != KindUnknown {
			return e.kind
		}
		err = stderrors.Unwrap(err)
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Is and As forward to the standard library so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
