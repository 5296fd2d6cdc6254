package errs

import (
	"errors"
	"testing"
)

// TestErrorMessage tests the "<kind>: <detail>" rendering, including the
// no-detail case.
func TestErrorMessage(t *testing.T) {
	e := New(IoError, "connection reset by %s", "peer")
	if got := e.Error(); got != "IoError: connection reset by peer" {
		t.Fatalf("(Error): got %q", got)
	}

	bare := &Error{Kind: InternalError}
	if got := bare.Error(); got != "InternalError" {
		t.Fatalf("(no detail): got %q, wanted %q", got, "InternalError")
	}
}

// TestWrapChainsCause tests that Wrap preserves the original error for
// errors.Is/errors.As and DebugString.
func TestWrapChainsCause(t *testing.T) {
	cause := errors.New("socket closed")
	e := Wrap(IoError, cause, "read failed")

	if !errors.Is(e, cause) {
		t.Fatalf("(errors.Is): wrapped error does not unwrap to its cause")
	}

	debug := e.DebugString()
	if debug != "IoError: read failed\ncaused by: socket closed" {
		t.Fatalf("(DebugString): got %q", debug)
	}
}

// TestRequestFailureCarriesRouteStatusCode tests that RequestFailure
// records the route, HTTP status, and Discord error code fields.
func TestRequestFailureCarriesRouteStatusCode(t *testing.T) {
	e := RequestFailure("POST /channels/1/messages", 429, 20016, "rate limited")
	if e.Kind != RequestFailed || e.Route != "POST /channels/1/messages" || e.Status != 429 || e.Code != 20016 {
		t.Fatalf("(fields): got %+v", e)
	}
}

// TestKindIgnorableAndCanResume tests the fixed policy table a handler's
// response is checked against.
func TestKindIgnorableAndCanResume(t *testing.T) {
	if IoError.Ignorable() {
		t.Fatalf("(IoError.Ignorable): got true, wanted false")
	}
	if DiscordBadResponse.Ignorable() {
		t.Fatalf("(DiscordBadResponse.Ignorable): got true, wanted false")
	}
	if !InternalError.Ignorable() {
		t.Fatalf("(InternalError.Ignorable): got false, wanted true")
	}

	if DiscordUnparsablePacket.CanResume() {
		t.Fatalf("(DiscordUnparsablePacket.CanResume): got true, wanted false")
	}
	if !IoError.CanResume() {
		t.Fatalf("(IoError.CanResume): got false, wanted true")
	}
}

// TestAuthenticationFailureNotIgnorable tests that an auth failure is one
// of the six situations a handler can never downgrade to Ignore.
func TestAuthenticationFailureNotIgnorable(t *testing.T) {
	if AuthenticationFailure.Ignorable() {
		t.Fatalf("(AuthenticationFailure.Ignorable): got true, wanted false")
	}
}

// TestUnknownAndUnexpectedOpcodeAreIgnorable tests that unrecognised or
// wrong-direction opcodes may be dropped rather than forcing a reconnect.
func TestUnknownAndUnexpectedOpcodeAreIgnorable(t *testing.T) {
	if !UnknownOpcode.Ignorable() {
		t.Fatalf("(UnknownOpcode.Ignorable): got false, wanted true")
	}
	if !UnexpectedPacket.Ignorable() {
		t.Fatalf("(UnexpectedPacket.Ignorable): got false, wanted true")
	}
}

// TestKindStringUnknown tests that an out-of-range Kind renders as a
// sentinel rather than panicking or silently printing a number.
func TestKindStringUnknown(t *testing.T) {
	if got := Kind(255).String(); got != "UnknownKind" {
		t.Fatalf("(unknown kind): got %q, wanted %q", got, "UnknownKind")
	}
}
