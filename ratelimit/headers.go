// Package ratelimit implements Discord's bucket-based HTTP rate limiting:
// a global lock, per-route buckets keyed by the server's reported bucket
// id, and 429 recovery, all driven entirely by response headers.
package ratelimit

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/corvidlabs/raven/errs"
)

const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerResetAfter = "X-RateLimit-Reset-After"
	headerBucket     = "X-RateLimit-Bucket"
	headerGlobal     = "X-RateLimit-Global"
	headerRetryAfter = "Retry-After"

	// HeaderPrecision is attached to every outbound request so Discord
	// reports reset times with millisecond precision.
	HeaderPrecision = "X-RateLimit-Precision"
	HeaderReason    = "X-Audit-Log-Reason"
)

// Headers is the parsed form of a 2xx response's rate limit headers.
type Headers struct {
	Limit              int
	Remaining          int
	ResetsAtInstant    time.Time // monotonic-ish deadline: now + ResetAfter
	FirstObservedReset float64   // raw X-RateLimit-Reset, used for window-equality comparisons
	EstimatedPeriod    time.Duration
	Bucket             string
}

// parseHeaders reads the five X-RateLimit-* response headers. Per
// Discord's contract they are all-or-none: any subset present without
// the rest is a protocol violation. X-RateLimit-Global must never
// appear alongside them on a successful response.
func parseHeaders(resp *fasthttp.Response) (*Headers, error) {
	global, _ := strconv.ParseBool(string(resp.Header.Peek(headerGlobal)))

	limitRaw := resp.Header.Peek(headerLimit)
	remainingRaw := resp.Header.Peek(headerRemaining)
	resetRaw := resp.Header.Peek(headerReset)
	resetAfterRaw := resp.Header.Peek(headerResetAfter)
	bucketRaw := resp.Header.Peek(headerBucket)

	any := len(limitRaw) > 0 || len(remainingRaw) > 0 || len(resetRaw) > 0 ||
		len(resetAfterRaw) > 0 || len(bucketRaw) > 0
	all := len(limitRaw) > 0 && len(remainingRaw) > 0 && len(resetRaw) > 0 &&
		len(resetAfterRaw) > 0 && len(bucketRaw) > 0

	if global {
		if any {
			return nil, errs.New(errs.DiscordBadResponse, "X-RateLimit-Global returned alongside route rate limit headers")
		}
		return nil, nil
	}
	if !any {
		return nil, nil
	}
	if !all {
		return nil, errs.New(errs.DiscordBadResponse, "incomplete X-RateLimit-* headers")
	}

	limit, err := strconv.Atoi(string(limitRaw))
	if err != nil {
		return nil, errs.Wrap(errs.DiscordBadResponse, err, "invalid %s", headerLimit)
	}
	remaining, err := strconv.Atoi(string(remainingRaw))
	if err != nil {
		return nil, errs.Wrap(errs.DiscordBadResponse, err, "invalid %s", headerRemaining)
	}
	reset, err := strconv.ParseFloat(string(resetRaw), 64)
	if err != nil {
		return nil, errs.Wrap(errs.DiscordBadResponse, err, "invalid %s", headerReset)
	}
	resetAfter, err := strconv.ParseFloat(string(resetAfterRaw), 64)
	if err != nil {
		return nil, errs.Wrap(errs.DiscordBadResponse, err, "invalid %s", headerResetAfter)
	}

	period := time.Duration(resetAfter * float64(time.Second))
	return &Headers{
		Limit:              limit,
		Remaining:          remaining,
		ResetsAtInstant:    time.Now().Add(period),
		FirstObservedReset: reset,
		EstimatedPeriod:    period,
		Bucket:             string(bucketRaw),
	}, nil
}

// parseRetryAfter reads the plain "Retry-After" header attached to a
// Cloudflare-level 429 (seconds, not milliseconds like Discord's own
// `retry_after` JSON field).
func parseRetryAfter(resp *fasthttp.Response) (time.Duration, error) {
	raw := resp.Header.Peek(headerRetryAfter)
	seconds, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, errs.Wrap(errs.DiscordBadResponse, err, "invalid %s", headerRetryAfter)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// RateLimitedBody is the JSON body Discord sends alongside a 429.
type RateLimitedBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}
