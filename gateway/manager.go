package gateway

// Predicate selects shards by index out of total.
// Controller.ReconnectShardsPartial uses it to choose which of the
// currently live shards to reconnect; it does not decide which shards
// Connect starts (that is ShardManager.Owns). The zero value (nil) is
// treated as AllShards.
type Predicate func(index, total uint32) bool

// AllShards matches every shard.
func AllShards(index, total uint32) bool { return true }

// RangeShards matches shards whose index falls in [lo, hi].
func RangeShards(lo, hi uint32) Predicate {
	return func(index, total uint32) bool { return index >= lo && index <= hi }
}

// SessionStartLimit mirrors Discord's `session_start_limit` object from
// GET /gateway/bot.
type SessionStartLimit struct {
	Total          int
	Remaining      int
	MaxConcurrency int
}

// ShardManager is a pluggable strategy for mapping the server-recommended
// shard count onto the shards this process runs. Splitting one bot's
// shards across multiple processes is out of scope for this client —
// InstanceShardManager, the only implementation, always runs every shard
// on this process and exists so Controller has a seam to override the
// recommended shard count without depending on a concrete struct.
type ShardManager interface {
	// NumShards returns how many shards to run, given the count Discord
	// recommends.
	NumShards(recommended int) int

	// Owns reports whether this process should run the given shard
	// index out of total. Always true for InstanceShardManager.
	Owns(index, total uint32) bool
}

// InstanceShardManager runs every shard of the bot on this process,
// optionally overriding the server-recommended shard count.
type InstanceShardManager struct {
	// Shards overrides the recommended shard count when > 0.
	Shards int
}

func (m InstanceShardManager) NumShards(recommended int) int {
	if m.Shards > 0 {
		return m.Shards
	}
	return recommended
}

func (m InstanceShardManager) Owns(index, total uint32) bool { return true }
