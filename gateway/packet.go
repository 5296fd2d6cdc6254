package gateway

import (
	"bytes"
	"io"

	json "github.com/goccy/go-json"

	"github.com/corvidlabs/raven/errs"
	"github.com/corvidlabs/raven/model"
)

// IgnoreFunc reports whether the handler has declared an event type
// uninteresting. ParseEnvelope uses it to skip the `d` payload with an
// IgnoredAny sink — decoded into json.RawMessage and discarded rather than
// unmarshaled into a concrete event, so ignored events cost one token scan
// and no allocation of event-shaped structs.
type IgnoreFunc func(eventType string) bool

// ParseEnvelope decodes one `{op, s, t, d}` frame. It tolerates any field
// order — `d` may appear before `op`/`t` are known — by streaming tokens
// and buffering whichever fields arrive early, rather than requiring a
// fixed key order. Duplicate top-level fields are a DiscordBadResponse
// error.
func ParseEnvelope(raw []byte, ignore IgnoreFunc) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, errs.Wrap(errs.DiscordUnparsablePacket, err, "%s", string(raw))
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errs.New(errs.DiscordUnparsablePacket, "expected a JSON object: %s", string(raw))
	}

	env := getEnvelope()
	seen := map[string]bool{}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errs.Wrap(errs.DiscordUnparsablePacket, err, "%s", string(raw))
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errs.New(errs.DiscordUnparsablePacket, "non-string key in gateway envelope")
		}
		if seen[key] {
			return nil, errs.New(errs.DiscordBadResponse, "duplicate field %q in gateway envelope", key)
		}
		seen[key] = true

		switch key {
		case "op":
			var op int
			if err := dec.Decode(&op); err != nil {
				return nil, errs.Wrap(errs.DiscordUnparsablePacket, err, "decoding op")
			}
			env.Op = Opcode(op)
		case "s":
			var seq *int64
			if err := dec.Decode(&seq); err != nil {
				return nil, errs.Wrap(errs.DiscordUnparsablePacket, err, "decoding s")
			}
			env.Sequence = seq
		case "t":
			var t *string
			if err := dec.Decode(&t); err != nil {
				return nil, errs.Wrap(errs.DiscordUnparsablePacket, err, "decoding t")
			}
			if t != nil {
				env.EventType = *t
			}
		case "d":
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, errs.Wrap(errs.DiscordUnparsablePacket, err, "decoding d")
			}
			env.Data = raw
		default:
			// Unknown envelope field: skip its value without allocating
			// a concrete type for it.
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return nil, errs.Wrap(errs.DiscordUnparsablePacket, err, "decoding unknown field %q", key)
			}
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.DiscordUnparsablePacket, err, "%s", string(raw))
	}

	if env.Op == OpDispatch && ignore != nil && ignore(env.EventType) {
		env.Data = nil
	}

	return env, nil
}

// ParsePresenceFallback recovers from a malformed PRESENCE_UPDATE: when
// the normal event struct fails to decode, extract only `d.user.id` and
// return a PresenceEvent with Malformed=true and empty role/activity
// data, rather than discarding the packet. A payload with no user id at
// all is an error.
func ParsePresenceFallback(data json.RawMessage) (*PresenceEvent, error) {
	var shallow struct {
		User struct {
			ID *model.Snowflake `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &shallow); err != nil {
		return nil, errs.Wrap(errs.DiscordBadResponse, err, "malformed PRESENCE_UPDATE could not even be shallow-parsed")
	}
	if shallow.User.ID == nil {
		return nil, errs.New(errs.DiscordBadResponse, "malformed PRESENCE_UPDATE carries no user id")
	}
	return &PresenceEvent{
		UserID:    *shallow.User.ID,
		Malformed: true,
	}, nil
}
