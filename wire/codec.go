package wire

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/corvidlabs/raven/errs"
)

// bufferFloor is the size the reusable output buffer shrinks back to after
// a run of small frames, matching original_source/src/ws.rs's
// BUFFER_MIN_SIZE (16 KiB).
const bufferFloor = 16 * 1024

// shrinkAfter is how many consecutive frames must stay under the floor
// before the buffer is allowed to shrink back to it.
const shrinkAfter = 10

// zlibSyncSuffix is the 4-byte marker Z_SYNC_FLUSH appends to the end of
// every logical message on a zlib-stream transport. A binary frame is only
// a complete message once the accumulated compressed bytes end in this
// suffix; Discord never splits the suffix itself across frames.
var zlibSyncSuffix = [4]byte{0x00, 0x00, 0xff, 0xff}

// CompressionMode selects how inbound binary frames are decompressed.
type CompressionMode uint8

const (
	// CompressionNone negotiates no compression; a binary frame that still
	// arrives is inflated with a fresh inflater, as under CompressionPacket.
	CompressionNone CompressionMode = iota
	// CompressionPacket resets the inflater before every frame.
	CompressionPacket
	// CompressionTransport reuses a single inflater for the connection's
	// lifetime, per Discord's "zlib-stream" transport compression.
	CompressionTransport
)

// Decoder incrementally decompresses inbound binary frames. Under
// CompressionTransport a single zlib reader persists across frames and is
// fed raw bytes as they arrive; under CompressionPacket (and
// CompressionNone) a fresh reader is built per frame. The output buffer grows by doubling and shrinks back to
// bufferFloor after shrinkAfter consecutive small frames, mirroring
// StreamDecoder in original_source/src/ws.rs.
type Decoder struct {
	mode CompressionMode

	input  bytes.Buffer // accumulates compressed bytes for the current message
	output []byte       // reusable decompressed output buffer

	zr         io.ReadCloser // persistent inflater, CompressionTransport only
	sinceLarge int
}

// NewDecoder constructs a Decoder for the given compression mode.
func NewDecoder(mode CompressionMode) *Decoder {
	return &Decoder{
		mode:   mode,
		output: make([]byte, bufferFloor),
	}
}

// DecodeBinary decompresses one logical message. raw is the payload of a
// single inbound binary websocket frame. Because Discord never splits the
// zlib sync-flush suffix across frames, a frame whose accumulated bytes do
// not yet end in 00 00 ff ff is buffered internally and nil is returned;
// the caller should keep reading frames until a non-nil result appears.
func (d *Decoder) DecodeBinary(raw []byte) ([]byte, error) {
	d.input.Write(raw)

	buffered := d.input.Bytes()
	if len(buffered) < 4 || !bytes.Equal(buffered[len(buffered)-4:], zlibSyncSuffix[:]) {
		return nil, nil
	}

	var r io.Reader
	switch d.mode {
	case CompressionTransport:
		if d.zr == nil {
			zr, err := zlib.NewReader(&d.input)
			if err != nil {
				return nil, errs.Wrap(errs.DiscordBadResponse, err, "failed to initialize zlib-stream inflater")
			}
			d.zr = zr
		}
		r = d.zr
	case CompressionPacket, CompressionNone:
		zr, err := zlib.NewReader(bytes.NewReader(d.input.Bytes()))
		if err != nil {
			return nil, errs.Wrap(errs.DiscordBadResponse, err, "failed to initialize per-packet inflater")
		}
		defer zr.Close()
		r = zr
	default:
		return nil, errs.New(errs.DiscordBadResponse, "binary frame received without compression negotiated")
	}

	n, err := d.readAll(r)
	if err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.DiscordBadResponse, err, "zlib decompression failed")
	}
	d.input.Reset()

	msg := make([]byte, n)
	copy(msg, d.output[:n])
	d.trackSize(n)
	return msg, nil
}

// readAll drains r into d.output, doubling the buffer as needed, and
// returns the number of bytes read.
func (d *Decoder) readAll(r io.Reader) (int, error) {
	total := 0
	for {
		if total == len(d.output) {
			grown := make([]byte, len(d.output)*2)
			copy(grown, d.output)
			d.output = grown
		}
		n, err := r.Read(d.output[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		// Loop continues until the reader returns EOF or a short read;
		// a read that exactly filled the buffer may have more output
		// waiting, matching ws.rs's "not exactly full" termination rule.
		if total < len(d.output) {
			return total, nil
		}
	}
}

// trackSize shrinks the output buffer back to bufferFloor after a run of
// small frames, matching ws.rs's "ten consecutive small frames" rule.
func (d *Decoder) trackSize(n int) {
	if n > bufferFloor {
		d.sinceLarge = 0
		return
	}
	d.sinceLarge++
	if d.sinceLarge >= shrinkAfter && len(d.output) > bufferFloor {
		d.output = make([]byte, bufferFloor)
		d.sinceLarge = 0
	}
}

// Reset discards any partial message state and closes the persistent
// CompressionTransport inflater, so the next transport frame starts a
// fresh one. Called when the compression mode changes mid-connection (it
// otherwise never changes).
func (d *Decoder) Reset(mode CompressionMode) {
	d.mode = mode
	d.input.Reset()
	if d.zr != nil {
		d.zr.Close()
		d.zr = nil
	}
}
