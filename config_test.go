package raven

import "testing"

// TestDefaultConfig tests that DefaultConfig wires a usable HTTP client
// and rate limiter, and the documented defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPClient == nil {
		t.Fatalf("(HTTPClient): got nil, wanted a client")
	}
	if cfg.RateLimiter == nil {
		t.Fatalf("(RateLimiter): got nil, wanted a limiter")
	}
	if cfg.Retries != 3 {
		t.Fatalf("(Retries): got %d, wanted 3", cfg.Retries)
	}
	if cfg.BaseURL != "https://discordapp.com/api/v6" {
		t.Fatalf("(BaseURL): got %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		t.Fatalf("(UserAgent): got empty string")
	}
}
