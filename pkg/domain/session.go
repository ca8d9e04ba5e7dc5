package domain

import "time"

// CommitMode is how the owner declares their own contribution of resources.
type CommitMode string

const (
	CommitFull    CommitMode = "full"    // Owner supplies every resource
	CommitPartial CommitMode = "partial" // Owner declares per-resource quantities
	CommitNone    CommitMode = "none"    // Owner supplies nothing
)

// Valid reports whether the mode is known.
func (m CommitMode) Valid() bool {
	switch m {
	case CommitFull, CommitPartial, CommitNone:
		return true
	}
	return false
}

// Payload is the state carried forward between steps of one flow instance.
// It is JSON-serializable so that durable session stores can hold it.
type Payload struct {
	CharacterID   string         `json:"character_id,omitempty"`
	CharacterName string         `json:"character_name,omitempty"`
	Category      string         `json:"category,omitempty"`
	Subcategory   string         `json:"subcategory,omitempty"`
	Item          string         `json:"item,omitempty"`
	Requirements  []Requirement  `json:"requirements,omitempty"`
	Mode          CommitMode     `json:"mode,omitempty"`
	Provided      map[string]int `json:"provided,omitempty"`
	FormIndex     int            `json:"form_index,omitempty"`
}

// Clone returns a deep copy so callers can't mutate stored state through shared slices or maps.
func (p Payload) Clone() Payload {
	out := p
	if p.Requirements != nil {
		out.Requirements = append([]Requirement(nil), p.Requirements...)
	}
	if p.Provided != nil {
		out.Provided = make(map[string]int, len(p.Provided))
		for k, v := range p.Provided {
			out.Provided[k] = v
		}
	}
	return out
}

// Session is one live flow instance's carried-forward state.
// Only holders of Key can reach it.
type Session struct {
	Key       string    `json:"key"`
	OwnerID   string    `json:"owner_id"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Payload = s.Payload.Clone()
	return out
}

// Expired reports whether the session is older than ttl at the given instant.
// A non-positive ttl never expires.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.CreatedAt) > ttl
}
