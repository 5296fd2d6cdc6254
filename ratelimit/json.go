package ratelimit

import json "github.com/goccy/go-json"

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
