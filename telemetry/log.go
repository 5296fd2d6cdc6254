// Package telemetry holds the structured-logging helpers shared by the
// gateway and ratelimit packages and the root client. Pulled out for
// the same import-cycle reason as errs: both gateway and ratelimit log,
// and neither may import the other.
package telemetry

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// Logger is the package-wide structured logger. Disabled by default;
// callers enable it with zerolog.SetGlobalLevel.
var Logger = zerolog.New(os.Stdout)

// Log context keys used across every dictionary-style log event this
// package builds.
const (
	LogCtxCorrelation = "xid"
	LogCtxShard       = "shard"
	LogCtxSession     = "session"
	LogCtxRoute       = "route"
	LogCtxBucket      = "bucket"
	LogCtxOpcode      = "opcode"
	LogCtxEvent       = "event"
	LogCtxPhase       = "phase"
	LogCtxError       = "error"
)

// NewCorrelationID mints a correlation id for one outbound REST request.
func NewCorrelationID() string {
	return xid.New().String()
}

// LogShard starts a dictionary-style log event scoped to one shard.
func LogShard(log *zerolog.Event, shardIndex, shardTotal uint32) *zerolog.Event {
	return log.Timestamp().
		Str(LogCtxShard, shardLabel(shardIndex, shardTotal))
}

// LogSession attaches a session id to a shard-scoped log event.
func LogSession(log *zerolog.Event, sessionID string) *zerolog.Event {
	return log.Str(LogCtxSession, sessionID)
}

// LogPayload attaches an opcode and data blob to a log event.
func LogPayload(log *zerolog.Event, op int, data []byte) *zerolog.Event {
	return log.Dict("payload", zerolog.Dict().
		Int(LogCtxOpcode, op).
		Bytes("data", data),
	)
}

// LogRequest starts a dictionary-style log event scoped to one REST call.
func LogRequest(log *zerolog.Event, correlationID, route, method, endpoint string) *zerolog.Event {
	return log.Timestamp().
		Dict("request", zerolog.Dict().
			Str(LogCtxCorrelation, correlationID).
			Str(LogCtxRoute, route).
			Str("method", method).
			Str("endpoint", endpoint),
		)
}

// LogRateLimit attaches bucket/remaining/limit fields to a log event.
func LogRateLimit(log *zerolog.Event, bucket string, remaining, limit int) *zerolog.Event {
	return log.Dict("ratelimit", zerolog.Dict().
		Str(LogCtxBucket, bucket).
		Int("remaining", remaining).
		Int("limit", limit),
	)
}

func shardLabel(index, total uint32) string {
	return strconv.FormatUint(uint64(index), 10) + "/" + strconv.FormatUint(uint64(total), 10)
}
