package gateway

import "github.com/corvidlabs/raven/errs"

// Response is a handler's verdict on how the shard should proceed after
// reporting an error.
type Response uint8

const (
	ResponseShutdown Response = iota
	ResponseReconnect
	ResponseIgnore
)

// Handler is the set of callbacks a Shard invokes while running.
type Handler interface {
	// OnEvent is invoked for every Dispatch payload, inside a panic
	// barrier. The returned error is surfaced through OnError with
	// EventHandlingFailed-equivalent semantics. data is only valid for
	// the duration of the call; its backing Envelope is recycled
	// immediately after OnEvent returns, so copy anything retained past it.
	OnEvent(eventType string, data []byte) error

	// OnError is invoked for every error the shard encounters and
	// returns how the shard should proceed.
	OnError(err *errs.Error) Response

	// CanResume overrides the default per-Kind resumability rule
	// (errs.Kind.CanResume) for a specific error, if the handler wants
	// to retain or discard the session differently than the default.
	CanResume(err *errs.Error) bool

	// IgnoresEvent lets the handler opt out of paying for
	// parsing/allocating events it doesn't care about.
	IgnoresEvent(eventType string) bool
}

// DefaultHandler embeds into a concrete handler to pick up sensible
// defaults for CanResume (falls through to errs.Kind.CanResume) and
// IgnoresEvent (ignores nothing), so a caller only needs to implement
// OnEvent/OnError without writing out every method.
type DefaultHandler struct{}

func (DefaultHandler) CanResume(err *errs.Error) bool     { return err.Kind.CanResume() }
func (DefaultHandler) IgnoresEvent(eventType string) bool { return false }

// resolveResponse enforces that an Ignore verdict on a non-ignorable
// error kind is escalated to Reconnect rather than honored verbatim.
func resolveResponse(kind errs.Kind, resp Response) Response {
	if resp == ResponseIgnore && !kind.Ignorable() {
		return ResponseReconnect
	}
	return resp
}
