package domain

// SurfaceKind distinguishes delivery targets.
type SurfaceKind string

const (
	SurfacePrivate   SurfaceKind = "private"   // 1:1 direct channel with the owner
	SurfaceEphemeral SurfaceKind = "ephemeral" // Per-owner group channel, deleted after inactivity
)

// Surface is an opaque handle to where fragments are sent.
type Surface struct {
	ID   string      `json:"id"`
	Kind SurfaceKind `json:"kind"`
}

// IsZero reports whether the surface is unset.
func (s Surface) IsZero() bool {
	return s.ID == ""
}

// EventContext carries the platform context an interaction arrived in.
// The ephemeral path provisions its surface next to the origin.
type EventContext struct {
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}
