// Package model defines the wire-level data types shared by the gateway
// package and the root client: snowflakes, tokens, shard identifiers, and
// presence payloads.
package model

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"
	"unsafe"

	json "github.com/goccy/go-json"
)

// DiscordEpochMillis is the offset subtracted from Unix millis before
// encoding the timestamp component of a Snowflake.
const DiscordEpochMillis int64 = 1420070400000

// Snowflake is a 64-bit time-ordered identifier: 42 bits of millisecond
// timestamp (offset from DiscordEpochMillis), 5 bits worker, 5 bits
// process, 12 bits increment.
type Snowflake uint64

var snowflakeCounter uint32

// NewSnowflake mints a Snowflake using the current wall-clock time, the
// process id, a hash of the calling goroutine's stack pointer as a stand-in
// for a thread id, and a monotonic counter to break ties within the same
// millisecond.
func NewSnowflake() Snowflake {
	ts := time.Now().UnixMilli() - DiscordEpochMillis
	if ts < 0 {
		ts = 0
	}
	worker := uint64(threadHash()) & 0x1f
	process := uint64(os.Getpid()) & 0x1f
	increment := uint64(atomic.AddUint32(&snowflakeCounter, 1)) & 0xfff

	return Snowflake((uint64(ts) << 22) | (worker << 17) | (process << 12) | increment)
}

// threadHash derives a small pseudo-thread identifier from a stack address.
// Go has no stable thread/goroutine id, so this stands in as a worker
// component: a value that varies across concurrent callers without
// needing a syscall.
func threadHash() uint32 {
	var x int
	return uint32(uintptr(unsafe.Pointer(&x)))
}

// Timestamp returns the creation time encoded in the Snowflake.
func (s Snowflake) Timestamp() time.Time {
	ms := (uint64(s) >> 22) + uint64(DiscordEpochMillis)
	return time.UnixMilli(int64(ms))
}

// Worker returns the worker-id component.
func (s Snowflake) Worker() uint8 { return uint8((uint64(s) >> 17) & 0x1f) }

// Process returns the process-id component.
func (s Snowflake) Process() uint8 { return uint8((uint64(s) >> 12) & 0x1f) }

// Increment returns the per-millisecond increment component.
func (s Snowflake) Increment() uint16 { return uint16(uint64(s) & 0xfff) }

// String renders the Snowflake as a decimal string, Discord's wire format.
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// MarshalJSON emits the Snowflake as a quoted decimal string, matching
// Discord's convention of returning 64-bit IDs as strings to avoid
// precision loss in JSON number parsers.
func (s Snowflake) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON
// number, for robustness against non-conforming callers.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		v, err := strconv.ParseUint(str, 10, 64)
		if err != nil {
			return err
		}
		*s = Snowflake(v)
		return nil
	}

	var num uint64
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = Snowflake(num)
	return nil
}

// ShardForGuild computes the shard index handling a given guild under n
// total shards, per Discord's modulo-of-timestamp sharding rule.
func (s Snowflake) ShardForGuild(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return uint32((uint64(s) >> 22) % uint64(n))
}
