package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/corvidlabs/raven/errs"
	"github.com/corvidlabs/raven/telemetry"
)

// GlobalRequestsPerSecond is Discord's documented global request budget
// for a single bot, applied as a steady pacer ahead of the reactive
// global lock below so ordinary traffic never earns a global 429.
const GlobalRequestsPerSecond = 50

// route holds one named endpoint's current bucket assignment. Several
// distinct ids (e.g. per-guild or per-channel) may share a route, which
// is why the actual counters live one level down in a bucketMap keyed
// by id, not on the route itself.
type route struct {
	mu     sync.Mutex
	bucket *bucketMap // nil until the first response carries a bucket id
	key    string
}

// Limiter coordinates concurrent HTTP calls against Discord's global and
// per-route rate limits. One Limiter is shared across every request a
// Client issues.
type Limiter struct {
	store *BucketStore
	pacer *rate.Limiter

	globalMu    sync.Mutex
	globalUntil time.Time

	routesMu sync.Mutex
	routes   map[string]*route
}

// NewLimiter constructs a Limiter backed by a fresh BucketStore, paced
// at GlobalRequestsPerSecond with a burst of the same size.
func NewLimiter() *Limiter {
	return &Limiter{
		store:  NewBucketStore(),
		pacer:  rate.NewLimiter(rate.Limit(GlobalRequestsPerSecond), GlobalRequestsPerSecond),
		routes: make(map[string]*route),
	}
}

func (l *Limiter) routeFor(name string) *route {
	l.routesMu.Lock()
	defer l.routesMu.Unlock()
	r, ok := l.routes[name]
	if !ok {
		r = &route{}
		l.routes[name] = r
	}
	return r
}

// checkGlobalWait reports the instant a caller must wait until, clearing
// the deadline once it has passed so later callers don't keep paying
// for an exhausted global limit.
func (l *Limiter) checkGlobalWait() time.Time {
	l.globalMu.Lock()
	defer l.globalMu.Unlock()
	if l.globalUntil.IsZero() {
		return time.Time{}
	}
	if time.Now().After(l.globalUntil) {
		l.globalUntil = time.Time{}
		return time.Time{}
	}
	return l.globalUntil
}

// pushGlobalWait extends the global deadline, never shortening it —
// concurrent 429s racing each other must converge on the latest one.
func (l *Limiter) pushGlobalWait(until time.Time) {
	l.globalMu.Lock()
	defer l.globalMu.Unlock()
	if l.globalUntil.IsZero() || until.After(l.globalUntil) {
		l.globalUntil = until
	}
}

// RequestFunc builds and sends one HTTP attempt, writing into resp. It
// is re-invoked on every 429 retry, so it must be idempotent: callers
// typically reuse a *fasthttp.Request they mutate in place.
type RequestFunc func(ctx context.Context, resp *fasthttp.Response) error

// Do executes fn under rate-limit control for the named route and
// equivalence id (e.g. a guild or channel snowflake, or "" for routes
// with no resource scoping), retrying on 429 and alternating the global
// and per-route waits until a pass finds both satisfied at once.
func (l *Limiter) Do(ctx context.Context, routeName, id string, fn RequestFunc) (*fasthttp.Response, error) {
	r := l.routeFor(routeName)

	for {
		if err := l.awaitPermit(ctx, r, id); err != nil {
			return nil, err
		}

		resp := fasthttp.AcquireResponse()
		if err := fn(ctx, resp); err != nil {
			fasthttp.ReleaseResponse(resp)
			return nil, errs.Wrap(errs.IoError, err, "request failed for route %s", routeName)
		}

		switch resp.StatusCode() {
		case fasthttp.StatusTooManyRequests:
			retry, waitErr := l.handle429(ctx, r, id, resp)
			fasthttp.ReleaseResponse(resp)
			if waitErr != nil {
				return nil, waitErr
			}
			if retry {
				continue
			}
			return nil, errs.New(errs.DiscordBadResponse, "rate limited on route %s with no retry budget", routeName)
		default:
			headers, err := parseHeaders(resp)
			if err != nil {
				telemetry.Logger.Warn().Str(telemetry.LogCtxRoute, routeName).Err(err).Msg("rate limit header parse failure")
			} else {
				l.confirm(r, id, headers)
			}
			return resp, nil
		}
	}
}

// awaitPermit blocks until both the global limit and this route's
// per-id bucket currently permit a request, re-checking both in a loop
// since concurrent callers may reacquire a wait that just opened up.
func (l *Limiter) awaitPermit(ctx context.Context, r *route, id string) error {
	if err := l.pacer.Wait(ctx); err != nil {
		return errs.Wrap(errs.IoError, err, "global request pacer wait failed")
	}

	for {
		if wait := l.checkGlobalWait(); !wait.IsZero() {
			if err := sleepUntil(ctx, wait); err != nil {
				return err
			}
			continue
		}

		r.mu.Lock()
		bm := r.bucket
		r.mu.Unlock()
		if bm == nil {
			return nil
		}
		bucket := bm.get(id)
		bm.mu.Lock()
		wait := bucket.checkWait()
		bm.mu.Unlock()
		if wait.IsZero() {
			return nil
		}
		if err := sleepUntil(ctx, wait); err != nil {
			return err
		}
	}
}

// confirm applies parsed rate-limit headers to this route/id's bucket,
// reassigning the route to a different shared bucketMap if the server
// reports a new or changed bucket key.
func (l *Limiter) confirm(r *route, id string, headers *Headers) {
	if headers == nil {
		return
	}
	r.mu.Lock()
	if r.bucket == nil || r.key != headers.Bucket {
		r.key = headers.Bucket
		r.bucket = l.store.getOrCreate(headers.Bucket)
	}
	bm := r.bucket
	r.mu.Unlock()

	bucket := bm.get(id)
	bm.mu.Lock()
	bucket.push(headers)
	bm.mu.Unlock()
}

// handle429 applies a 429 response to the global or route state and
// reports whether the caller should retry.
func (l *Limiter) handle429(ctx context.Context, r *route, id string, resp *fasthttp.Response) (bool, error) {
	var body RateLimitedBody
	_ = jsonUnmarshal(resp.Body(), &body)

	var wait time.Duration
	if body.RetryAfter > 0 {
		wait = time.Duration(body.RetryAfter * float64(time.Millisecond))
	} else if d, err := parseRetryAfter(resp); err == nil {
		wait = d
	}
	until := time.Now().Add(wait)

	if body.Global {
		l.pushGlobalWait(until)
	} else if headers, err := parseHeaders(resp); err == nil && headers != nil {
		l.confirm(r, id, headers)
	} else {
		r.mu.Lock()
		bm := r.bucket
		r.mu.Unlock()
		if bm != nil {
			bucket := bm.get(id)
			bm.mu.Lock()
			bucket.forceExhausted(until)
			bm.mu.Unlock()
		}
	}

	if err := sleepUntil(ctx, until); err != nil {
		return false, err
	}
	return true, nil
}

// sleepUntil blocks until t, or returns ctx's error if it's cancelled
// first — every rate-limit wait is a designated suspension point that
// must be interruptible by shutdown.
func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
