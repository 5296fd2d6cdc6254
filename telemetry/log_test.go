package telemetry

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogShardFields tests that LogShard attaches the "shard" field as
// "index/total" and that the event is well-formed JSON once written.
func TestLogShardFields(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	LogShard(log.Info(), 2, 8).Msg("connecting")

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("(unmarshal): got %v, wanted nil; line was %s", err, buf.String())
	}
	if out[LogCtxShard] != "2/8" {
		t.Fatalf("(shard field): got %v, wanted %q", out[LogCtxShard], "2/8")
	}
}

// TestLogRequestNestsUnderRequestDict tests that LogRequest's fields are
// grouped under a "request" sub-object rather than flattened.
func TestLogRequestNestsUnderRequestDict(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	LogRequest(log.Debug(), "abc123", "GET /gateway/bot", "GET", "https://discord.com/api/v10/gateway/bot").Msg("sending")

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("(unmarshal): got %v, wanted nil", err)
	}
	req, ok := out["request"].(map[string]interface{})
	if !ok {
		t.Fatalf("(request dict): got %v, wanted a nested object", out["request"])
	}
	if req[LogCtxRoute] != "GET /gateway/bot" {
		t.Fatalf("(route): got %v, wanted %q", req[LogCtxRoute], "GET /gateway/bot")
	}
}

// TestNewCorrelationIDUnique tests that consecutive calls mint distinct ids.
func TestNewCorrelationIDUnique(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()
	if a == b {
		t.Fatalf("(uniqueness): got two identical correlation ids %q", a)
	}
}
