// Package errs defines the error-kind taxonomy shared by the wire, gateway,
// and rate-limit packages. It exists as its own package, rather than living
// inside gateway or ratelimit, because both of those packages need the same
// vocabulary and neither may import the other.
package errs

import (
	"fmt"
	"runtime"
)

// Kind enumerates the error taxonomy.
type Kind uint8

const (
	// InvalidInput: caller violated a documented precondition. Not retried.
	InvalidInput Kind = iota
	// IoError: transport/socket failure. Retried via reconnect.
	IoError
	// InternalError: library invariant violated. May force shutdown.
	InternalError
	// Panicked: a caught panic from user or library code.
	Panicked
	// DiscordBadResponse: malformed protocol data. Non-resumable.
	DiscordBadResponse
	// DiscordUnparsablePacket: raw packet text captured for diagnostics.
	DiscordUnparsablePacket
	// RequestFailed: HTTP >=400 excluding handled 429s.
	RequestFailed
	// AuthenticationFailure: Identify was rejected. Never ignorable — a
	// handler's Ignore is always forced to Reconnect.
	AuthenticationFailure
	// UnknownOpcode: a gateway opcode this client doesn't recognize.
	// Ignorable: the frame is simply dropped.
	UnknownOpcode
	// UnexpectedPacket: a recognized opcode arriving in a direction it's
	// not allowed to (e.g. a send-only opcode received from the server).
	// Ignorable: the frame is simply dropped.
	UnexpectedPacket
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case IoError:
		return "IoError"
	case InternalError:
		return "InternalError"
	case Panicked:
		return "Panicked"
	case DiscordBadResponse:
		return "DiscordBadResponse"
	case DiscordUnparsablePacket:
		return "DiscordUnparsablePacket"
	case RequestFailed:
		return "RequestFailed"
	case AuthenticationFailure:
		return "AuthenticationFailure"
	case UnknownOpcode:
		return "UnknownOpcode"
	case UnexpectedPacket:
		return "UnexpectedPacket"
	default:
		return "UnknownKind"
	}
}

// CaptureStacks enables capturing a call stack on every newly-constructed
// Error. Off by default: walking runtime.Callers on every socket hiccup
// would be needlessly expensive in the hot path.
var CaptureStacks = false

// Error is the library's error type: a Kind plus optional structured
// detail, an optional chained cause, and an optional captured stack.
type Error struct {
	Kind    Kind
	Detail  string
	Cause   error
	Stack   []uintptr
	Route   string // only set for RequestFailed
	Status  int    // only set for RequestFailed
	Code    int    // Discord's numeric error code, only set for RequestFailed
}

// New constructs an Error of the given kind with a formatted detail.
func New(kind Kind, format string, args ...interface{}) *Error {
	e := &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
	if CaptureStacks {
		e.captureStack()
	}
	return e
}

// Wrap constructs an Error of the given kind chained to cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	e := New(kind, format, args...)
	e.Cause = cause
	return e
}

// RequestFailure constructs a RequestFailed error carrying the failing
// route, HTTP status, and Discord's numeric error code.
func RequestFailure(route string, status int, code int, detail string) *Error {
	e := New(RequestFailed, "%s", detail)
	e.Route = route
	e.Status = status
	e.Code = code
	return e
}

func (e *Error) captureStack() {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	e.Stack = pcs[:n]
}

// Error implements the error interface as a single line "<kind>: <detail>".
func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the chained cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// DebugString renders the full error chain, one cause per line.
func (e *Error) DebugString() string {
	s := e.Error()
	cause := e.Cause
	for cause != nil {
		s += "\ncaused by: " + cause.Error()
		type unwrapper interface{ Unwrap() error }
		u, ok := cause.(unwrapper)
		if !ok {
			break
		}
		cause = u.Unwrap()
	}
	return s
}

// Ignorable reports whether this Kind may legally be downgraded from
// Shutdown/Reconnect to Ignore by a handler's response. IoError covers the
// gateway run loop's connection-error, send-error, remote-disconnect,
// hello-timeout, and heartbeat-timeout situations; AuthenticationFailure
// is the sixth. All six force a reconnect even if the handler asks to
// ignore them. DiscordBadResponse's other envelope/header parse failures
// are treated the same way out of caution, since continuing past
// malformed protocol data has no well-defined recovery.
func (k Kind) Ignorable() bool {
	switch k {
	case IoError, DiscordBadResponse, AuthenticationFailure:
		return false
	default:
		return true
	}
}

// CanResume reports the default resumability for a Kind: unparsable
// packets and bad upstream responses are assumed to recur and therefore
// are not resumable; everything else defaults to true.
func (k Kind) CanResume() bool {
	switch k {
	case DiscordUnparsablePacket, DiscordBadResponse:
		return false
	default:
		return true
	}
}
