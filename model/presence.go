package model

import "time"

// PresenceStatus is the coarse online/offline status a shard presents to
// Discord in its Identify/StatusUpdate payloads.
type PresenceStatus string

const (
	StatusOnline    PresenceStatus = "online"
	StatusDND       PresenceStatus = "dnd"
	StatusIdle      PresenceStatus = "idle"
	StatusInvisible PresenceStatus = "invisible"
	StatusOffline   PresenceStatus = "offline"
	StatusUnknown   PresenceStatus = "unknown"
)

// Activity is the minimal "game" activity shape a client can set in its
// own presence. Discord's inbound PRESENCE_UPDATE event carries a much
// larger activity object (buttons, assets, party, ...) that belongs to the
// out-of-scope domain/resource model, not this client's own outbound
// presence.
type Activity struct {
	Name string `json:"name"`
	Type uint8  `json:"type"`
	URL  string `json:"url,omitempty"`
}

// PresenceUpdate is the payload a shard sends to declare its own presence,
// either inside Identify or as a standalone StatusUpdate (opcode 3).
type PresenceUpdate struct {
	// Since is the time the idle state began; zero means "not idle".
	Since *time.Time `json:"-"`

	Status     PresenceStatus `json:"status"`
	Game       *Activity      `json:"game,omitempty"`
	Activities []Activity     `json:"activities,omitempty"`
	AFK        bool           `json:"afk"`
}

// sinceMillis marshals Since as epoch-millis or null, matching Discord's
// wire format for opcode 3's "since" field.
func (p PresenceUpdate) sinceMillis() *int64 {
	if p.Since == nil {
		return nil
	}
	ms := p.Since.UnixMilli()
	return &ms
}

type presenceUpdateWire struct {
	Since      *int64         `json:"since"`
	Status     PresenceStatus `json:"status"`
	Game       *Activity      `json:"game,omitempty"`
	Activities []Activity     `json:"activities,omitempty"`
	AFK        bool           `json:"afk"`
}

// MarshalJSON renders Since as Discord's epoch-millis-or-null convention.
func (p PresenceUpdate) MarshalJSON() ([]byte, error) {
	return marshalJSON(presenceUpdateWire{
		Since:      p.sinceMillis(),
		Status:     p.Status,
		Game:       p.Game,
		Activities: p.Activities,
		AFK:        p.AFK,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON, for round-trip tests.
func (p *PresenceUpdate) UnmarshalJSON(data []byte) error {
	var w presenceUpdateWire
	if err := unmarshalJSON(data, &w); err != nil {
		return err
	}
	p.Status = w.Status
	p.Game = w.Game
	p.Activities = w.Activities
	p.AFK = w.AFK
	if w.Since != nil {
		t := time.UnixMilli(*w.Since)
		p.Since = &t
	} else {
		p.Since = nil
	}
	return nil
}
