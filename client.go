package raven

import (
	"github.com/corvidlabs/raven/model"
)

// Client is a handle to one Discord application: a credential plus the
// REST execution config every request and the Gateway Controller share.
type Client struct {
	Token  model.Token
	Config Config
}

// NewClient validates token and wraps it with DefaultConfig.
func NewClient(rawBotToken string) (*Client, error) {
	token, err := model.NewBotToken(rawBotToken)
	if err != nil {
		return nil, err
	}
	return &Client{Token: token, Config: DefaultConfig()}, nil
}
