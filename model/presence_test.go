package model

import (
	"testing"
	"time"
)

// TestPresenceUpdateRoundTrip tests that a PresenceUpdate with Since set
// survives a marshal/unmarshal cycle through the epoch-millis wire form.
func TestPresenceUpdateRoundTrip(t *testing.T) {
	since := time.UnixMilli(time.Now().UnixMilli())
	p := PresenceUpdate{
		Since:      &since,
		Status:     StatusIdle,
		Game:       &Activity{Name: "testing", Type: 0},
		Activities: []Activity{{Name: "testing", Type: 0}},
		AFK:        true,
	}

	data, err := p.MarshalJSON()
	if err != nil {
		t.Fatalf("(MarshalJSON): got %v, wanted nil", err)
	}

	var out PresenceUpdate
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatalf("(UnmarshalJSON): got %v, wanted nil", err)
	}

	if out.Status != p.Status || out.AFK != p.AFK {
		t.Fatalf("(fields): got %+v, wanted %+v", out, p)
	}
	if out.Since == nil || !out.Since.Equal(since) {
		t.Fatalf("(Since): got %v, wanted %v", out.Since, since)
	}
}

// TestPresenceUpdateNilSinceMarshalsNull tests that an absent Since
// encodes as a JSON null rather than being omitted.
func TestPresenceUpdateNilSinceMarshalsNull(t *testing.T) {
	p := PresenceUpdate{Status: StatusOnline}

	data, err := p.MarshalJSON()
	if err != nil {
		t.Fatalf("(MarshalJSON): got %v, wanted nil", err)
	}

	var out PresenceUpdate
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatalf("(UnmarshalJSON): got %v, wanted nil", err)
	}
	if out.Since != nil {
		t.Fatalf("(Since): got %v, wanted nil", out.Since)
	}
}
