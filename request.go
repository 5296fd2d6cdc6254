package raven

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/corvidlabs/raven/errs"
	"github.com/corvidlabs/raven/ratelimit"
	"github.com/corvidlabs/raven/telemetry"
)

// sendRequest executes one REST call under the client's rate limiter and
// parses a 2xx JSON body into dst; redirects are not followed. routeName
// identifies the endpoint for bucket bookkeeping (e.g. "GET /gateway/bot");
// id scopes per-resource buckets (e.g. a channel or guild snowflake, ""
// when the route has no such scoping). Retries run through
// ratelimit.Limiter's retry loop rather than a goto-based state machine.
func sendRequest(ctx context.Context, c *Client, routeName, id, method, uri string, body []byte, dst interface{}) error {
	correlationID := telemetry.NewCorrelationID()
	telemetry.LogRequest(telemetry.Logger.Debug(), correlationID, routeName, method, uri).Msg("sending request")

	fn := func(ctx context.Context, resp *fasthttp.Response) error {
		req := fasthttp.AcquireRequest()
		defer fasthttp.ReleaseRequest(req)

		req.Header.SetMethod(method)
		req.Header.Set("Authorization", c.Token.Header())
		req.Header.Set("User-Agent", c.Config.UserAgent)
		req.Header.Set(ratelimit.HeaderPrecision, "millisecond")
		if body != nil {
			req.Header.SetContentType("application/json")
			req.SetBodyRaw(body)
		}
		req.SetRequestURI(uri)

		return c.Config.HTTPClient.DoTimeout(req, resp, c.Config.Timeout)
	}

	resp, err := c.Config.RateLimiter.Do(ctx, routeName, id, fn)
	if err != nil {
		return err
	}
	defer fasthttp.ReleaseResponse(resp)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		var body struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(resp.Body(), &body)
		return errs.RequestFailure(routeName, resp.StatusCode(), body.Code, string(resp.Body()))
	}
	if dst == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), dst); err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to decode response from %s", routeName)
	}
	return nil
}
