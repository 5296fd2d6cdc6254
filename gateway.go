package raven

import (
	"context"

	"github.com/corvidlabs/raven/errs"
	"github.com/corvidlabs/raven/gateway"
	"github.com/corvidlabs/raven/model"
)

// GetGatewayResponse is the body of `GET /gateway`.
type GetGatewayResponse struct {
	URL string `json:"url"`
}

// GetGatewayBotResponse is the body of `GET /gateway/bot`.
type GetGatewayBotResponse struct {
	URL               string `json:"url"`
	Shards            int    `json:"shards"`
	SessionStartLimit struct {
		Total          int `json:"total"`
		Remaining      int `json:"remaining"`
		ResetAfter     int `json:"reset_after"`
		MaxConcurrency int `json:"max_concurrency"`
	} `json:"session_start_limit"`
}

// GetGateway fetches the gateway URL with no bot-specific information.
func (c *Client) GetGateway(ctx context.Context) (*GetGatewayResponse, error) {
	var dst GetGatewayResponse
	uri := c.Config.BaseURL + "/gateway"
	if err := sendRequest(ctx, c, "GET /gateway", "", "GET", uri, nil, &dst); err != nil {
		return nil, err
	}
	return &dst, nil
}

// GetGatewayBot fetches the gateway URL plus the bot's recommended
// shard count and session-start limit.
func (c *Client) GetGatewayBot(ctx context.Context) (*GetGatewayBotResponse, error) {
	var dst GetGatewayBotResponse
	uri := c.Config.BaseURL + "/gateway/bot"
	if err := sendRequest(ctx, c, "GET /gateway/bot", "", "GET", uri, nil, &dst); err != nil {
		return nil, err
	}
	return &dst, nil
}

// gatewayDiscoverer adapts Client.GetGatewayBot to gateway.Discoverer,
// keeping the gateway package free of any REST/ratelimit import.
type gatewayDiscoverer struct {
	client *Client
}

func (d gatewayDiscoverer) DiscoverGateway(ctx context.Context) (string, int, gateway.SessionStartLimit, error) {
	resp, err := d.client.GetGatewayBot(ctx)
	if err != nil {
		return "", 0, gateway.SessionStartLimit{}, errs.Wrap(errs.IoError, err, "failed to fetch /gateway/bot")
	}
	limit := gateway.SessionStartLimit{
		Total:          resp.SessionStartLimit.Total,
		Remaining:      resp.SessionStartLimit.Remaining,
		MaxConcurrency: resp.SessionStartLimit.MaxConcurrency,
	}
	return resp.URL, resp.Shards, limit, nil
}

// NewController builds a gateway.Controller wired to this Client's
// credentials and a Discoverer backed by GetGatewayBot. manager may be
// nil, in which case every shard runs on this process instance.
func (c *Client) NewController(manager gateway.ShardManager, newHandler func(model.ShardID) gateway.Handler) *gateway.Controller {
	return gateway.NewController(c.Token.Header(), manager, gatewayDiscoverer{client: c}, newHandler)
}
