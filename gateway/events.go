package gateway

import (
	json "github.com/goccy/go-json"

	"github.com/corvidlabs/raven/model"
)

// Envelope is the decoded `{op, s, t, d}` gateway frame, tolerant of
// field order.
type Envelope struct {
	Op       Opcode
	Sequence *int64
	EventType string
	Data      json.RawMessage
}

// Hello is the payload of opcode 10.
type Hello struct {
	HeartbeatIntervalMillis int64 `json:"heartbeat_interval"`
}

// Ready is the payload of the READY dispatch event.
type Ready struct {
	SessionID string          `json:"session_id"`
	Shard     [2]uint32       `json:"shard"`
	User      json.RawMessage `json:"user"`
}

// Identify is the outbound opcode 2 payload.
type Identify struct {
	Token           string                 `json:"token"`
	Properties      ConnectionProperties   `json:"properties"`
	Compress        bool                   `json:"compress,omitempty"`
	LargeThreshold  int                    `json:"large_threshold,omitempty"`
	Shard           *model.ShardID         `json:"shard,omitempty"`
	Presence        *model.PresenceUpdate  `json:"presence,omitempty"`
	Intents         uint64                 `json:"intents"`
}

// ConnectionProperties identifies the connecting client to Discord.
type ConnectionProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Resume is the outbound opcode 6 payload.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// GuildMembersRequest is the outbound opcode 8 payload.
type GuildMembersRequest struct {
	GuildID   model.Snowflake   `json:"guild_id"`
	Query     *string           `json:"query,omitempty"`
	Limit     int               `json:"limit"`
	UserIDs   []model.Snowflake `json:"user_ids,omitempty"`
	Presences bool              `json:"presences,omitempty"`
}

// PresenceEvent is the decoded PRESENCE_UPDATE dispatch payload. Malformed
// is set when the primary decode failed and the fallback extractor in
// packet.go had to settle for just the user id.
type PresenceEvent struct {
	UserID     model.Snowflake `json:"-"`
	Status     string          `json:"status"`
	Activities json.RawMessage `json:"activities"`
	Roles      json.RawMessage `json:"roles"`
	Malformed  bool            `json:"-"`
}
