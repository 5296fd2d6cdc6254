package gateway

import (
	"testing"

	"github.com/corvidlabs/raven/model"
)

// TestParseEnvelopeFieldOrder tests that the envelope decodes identically
// regardless of whether "d" arrives before or after "op"/"t".
func TestParseEnvelopeFieldOrder(t *testing.T) {
	conventional := []byte(`{"op":0,"s":3,"t":"READY","d":{"session_id":"abc"}}`)
	outOfOrder := []byte(`{"d":{"session_id":"abc"},"t":"READY","s":3,"op":0}`)

	a, err := ParseEnvelope(conventional, nil)
	if err != nil {
		t.Fatalf("(conventional order): got %v, wanted nil", err)
	}
	b, err := ParseEnvelope(outOfOrder, nil)
	if err != nil {
		t.Fatalf("(out of order): got %v, wanted nil", err)
	}

	if a.Op != b.Op || a.EventType != b.EventType || *a.Sequence != *b.Sequence {
		t.Fatalf("(mismatch): got %+v vs %+v", a, b)
	}
	if string(a.Data) != string(b.Data) {
		t.Fatalf("(data mismatch): got %s vs %s", a.Data, b.Data)
	}
}

// TestParseEnvelopeDuplicateField tests that a repeated top-level key is
// rejected rather than silently overwriting the first occurrence.
func TestParseEnvelopeDuplicateField(t *testing.T) {
	raw := []byte(`{"op":0,"op":1,"t":null,"d":null}`)
	if _, err := ParseEnvelope(raw, nil); err == nil {
		t.Fatalf("(duplicate field): got nil error, wanted one")
	}
}

// TestParseEnvelopeNotAnObject tests that a top-level JSON array is rejected.
func TestParseEnvelopeNotAnObject(t *testing.T) {
	if _, err := ParseEnvelope([]byte(`[1,2,3]`), nil); err == nil {
		t.Fatalf("(non-object): got nil error, wanted one")
	}
}

// TestParseEnvelopeIgnoredEventDropsData tests that a Dispatch event the
// handler has declared uninteresting is parsed but its Data is discarded.
func TestParseEnvelopeIgnoredEventDropsData(t *testing.T) {
	raw := []byte(`{"op":0,"t":"TYPING_START","d":{"user_id":"1"}}`)
	ignore := func(eventType string) bool { return eventType == "TYPING_START" }

	env, err := ParseEnvelope(raw, ignore)
	if err != nil {
		t.Fatalf("(parse): got %v, wanted nil", err)
	}
	if env.Data != nil {
		t.Fatalf("(ignored event): got non-nil Data %s, wanted nil", env.Data)
	}
	if env.EventType != "TYPING_START" {
		t.Fatalf("(EventType): got %q, wanted TYPING_START", env.EventType)
	}
}

// TestParseEnvelopeUnknownFieldSkipped tests that an envelope carrying an
// extra, unrecognised top-level field still parses successfully.
func TestParseEnvelopeUnknownFieldSkipped(t *testing.T) {
	raw := []byte(`{"op":11,"unexpected_field":{"nested":true}}`)
	env, err := ParseEnvelope(raw, nil)
	if err != nil {
		t.Fatalf("(unknown field): got %v, wanted nil", err)
	}
	if env.Op != OpHeartbeatAck {
		t.Fatalf("(Op): got %v, wanted OpHeartbeatAck", env.Op)
	}
}

// TestParsePresenceFallback tests that a malformed PRESENCE_UPDATE still
// yields the user id, flagged as Malformed.
func TestParsePresenceFallback(t *testing.T) {
	data := []byte(`{"user":{"id":"175928847299117063"},"status":123}`)
	p, err := ParsePresenceFallback(data)
	if err != nil {
		t.Fatalf("(fallback): got %v, wanted nil", err)
	}
	if !p.Malformed {
		t.Fatalf("(Malformed flag): got false, wanted true")
	}
	if p.UserID != model.Snowflake(175928847299117063) {
		t.Fatalf("(UserID): got %v, wanted 175928847299117063", p.UserID)
	}
	if p.Status != "" || p.Activities != nil {
		t.Fatalf("(other fields): got %+v, wanted zero values", p)
	}
}

// TestParsePresenceFallbackUnrecoverable tests that a payload missing even
// a user id surfaces an error rather than a zero-value PresenceEvent.
func TestParsePresenceFallbackUnrecoverable(t *testing.T) {
	if _, err := ParsePresenceFallback([]byte(`not json at all`)); err == nil {
		t.Fatalf("(unrecoverable): got nil error, wanted one")
	}
}
