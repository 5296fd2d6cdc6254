package gateway

import "time"

// ShardConfig holds the tunables a running shard consults on every
// connection attempt. It is read behind GatewayState's RWMutex since the
// Controller may update it (e.g. a new backoff policy) while shards are
// running.
type ShardConfig struct {
	Compression       CompressionModeOverride
	GuildSubscription bool
	Intents           uint64
	LargeThreshold    int

	BackoffInitial   time.Duration
	BackoffFactor    float64
	BackoffCap       time.Duration
	BackoffVariation time.Duration
}

// CompressionModeOverride is the user-facing compression selector
// (None/Packet/Transport); it maps 1:1 onto wire.CompressionMode but is
// named separately so gateway doesn't have to import wire just to expose
// a config field.
type CompressionModeOverride uint8

const (
	CompressionOverrideNone CompressionModeOverride = iota
	CompressionOverridePacket
	CompressionOverrideTransport
)

// DefaultShardConfig returns sensible zero-value defaults: transport-level
// compression negotiated by the Controller, guild subscriptions on, and a
// conservative exponential backoff.
func DefaultShardConfig() ShardConfig {
	return ShardConfig{
		Compression:       CompressionOverrideTransport,
		GuildSubscription: true,
		LargeThreshold:    150,
		BackoffInitial:    time.Second,
		BackoffFactor:     1.5,
		BackoffCap:        2 * time.Minute,
		BackoffVariation:  time.Second,
	}
}
