// Package wire binds a single WebSocket stream to Discord's gateway wire
// format: URL construction, frame encode/decode, and streaming or
// per-packet zlib decompression.
package wire

import (
	"bytes"
	"context"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/switchupcb/websocket"

	"github.com/corvidlabs/raven/errs"
)

// ResponseKind tags what Receive observed, matching the Response<T> enum
// in original_source/src/ws.rs.
type ResponseKind uint8

const (
	ResponsePacket ResponseKind = iota
	ResponseParseError
	ResponseDisconnected
	ResponseTimeout
)

// Response is the result of one Receive call.
type Response struct {
	Kind       ResponseKind
	Data       []byte // raw decoded JSON, only set for ResponsePacket
	Err        error  // only set for ResponseParseError
	CloseFrame *websocket.CloseError // only set for ResponseDisconnected
}

// Conn wraps a single TLS WebSocket connection to the gateway, including
// its decompression state. Not safe for concurrent Send/Receive from
// multiple goroutines — a shard owns exactly one Conn and drives it from
// a single goroutine, including heartbeats.
type Conn struct {
	ws      *websocket.Conn
	decoder *Decoder
	mode    CompressionMode
}

// BuildGatewayURL appends the fixed query parameters Discord's gateway
// requires: API version, JSON encoding, and (if transport compression is
// selected) the zlib-stream flag. The scheme must already be wss; Dial
// rejects anything else.
func BuildGatewayURL(base string, mode CompressionMode) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errs.Wrap(errs.InvalidInput, err, "invalid gateway base url %q", base)
	}
	if u.Scheme != "wss" {
		return "", errs.New(errs.InvalidInput, "gateway url must use the wss scheme, got %q", u.Scheme)
	}
	q := "v=6&encoding=json"
	if mode == CompressionTransport {
		q += "&compress=zlib-stream"
	}
	u.RawQuery = q
	return u.String(), nil
}

// Dial opens a new gateway connection. mode selects the decompression
// strategy applied to inbound binary frames.
func Dial(ctx context.Context, gatewayURL string, mode CompressionMode) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, gatewayURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, err, "failed to dial gateway at %s", gatewayURL)
	}
	return &Conn{
		ws:      ws,
		decoder: NewDecoder(mode),
		mode:    mode,
	}, nil
}

// Send serializes v to JSON and sends it as a single text frame.
func (c *Conn) Send(ctx context.Context, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to marshal outbound packet")
	}
	w, err := c.ws.Writer(ctx, websocket.MessageText)
	if err != nil {
		return errs.Wrap(errs.IoError, err, "failed to open websocket writer")
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return errs.Wrap(errs.IoError, err, "failed to write outbound packet")
	}
	if err := w.Close(); err != nil {
		return errs.Wrap(errs.IoError, err, "failed to flush outbound packet")
	}
	return nil
}

// Receive waits up to timeout for one complete message. Text frames are
// rejected under transport compression, binary frames are always
// decompressed, and a deadline computed once up front (not re-derived
// per wakeup) prevents spurious
// wakeups from extending the wait.
func (c *Conn) Receive(ctx context.Context, timeout time.Duration) Response {
	deadline := time.Now().Add(timeout)
	rctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		messageType, r, err := c.ws.Reader(rctx)
		if err != nil {
			if rctx.Err() != nil && ctx.Err() == nil {
				return Response{Kind: ResponseTimeout}
			}
			var closeErr websocket.CloseError
			if asCloseError(err, &closeErr) {
				return Response{Kind: ResponseDisconnected, CloseFrame: &closeErr}
			}
			return Response{Kind: ResponseParseError, Err: errs.Wrap(errs.IoError, err, "websocket read failed")}
		}

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r); err != nil {
			return Response{Kind: ResponseParseError, Err: errs.Wrap(errs.IoError, err, "websocket frame read failed")}
		}

		switch messageType {
		case websocket.MessageText:
			if c.mode == CompressionTransport {
				return Response{Kind: ResponseParseError, Err: errs.New(errs.DiscordBadResponse, "text frame received on a transport-compressed connection")}
			}
			return Response{Kind: ResponsePacket, Data: buf.Bytes()}

		case websocket.MessageBinary:
			msg, err := c.decoder.DecodeBinary(buf.Bytes())
			if err != nil {
				return Response{Kind: ResponseParseError, Err: err}
			}
			if msg == nil {
				// Partial message: the zlib-stream suffix hasn't arrived
				// yet. Keep reading frames within the same deadline.
				continue
			}
			return Response{Kind: ResponsePacket, Data: msg}

		default:
			return Response{Kind: ResponseParseError, Err: errs.New(errs.InternalError, "unexpected websocket message type %v", messageType)}
		}
	}
}

// Close sends a close frame with the given status code and reason.
func (c *Conn) Close(code int, reason string) error {
	return c.ws.Close(websocket.StatusCode(code), reason)
}

func asCloseError(err error, out *websocket.CloseError) bool {
	ce, ok := err.(websocket.CloseError)
	if ok {
		*out = ce
		return true
	}
	if pce, ok := err.(*websocket.CloseError); ok && pce != nil {
		*out = *pce
		return true
	}
	return false
}
