package domain

import "fmt"

// Level is a tier of the per-owner UI hierarchy.
type Level int

const (
	LevelRoot    Level = iota // Long-lived home surface, never torn down
	LevelHeader               // Names the active top-level flow
	LevelAnchor               // Primary navigation the user returns to
	LevelSubmenu              // Action-specific prompt
	LevelOutput               // Results and confirmations
)

// LevelCount is the number of tiers in the hierarchy.
const LevelCount = 5

// Valid reports whether the level is one of the five known tiers.
func (l Level) Valid() bool {
	return l >= LevelRoot && l <= LevelOutput
}

func (l Level) String() string {
	switch l {
	case LevelRoot:
		return "root"
	case LevelHeader:
		return "header"
	case LevelAnchor:
		return "anchor"
	case LevelSubmenu:
		return "submenu"
	case LevelOutput:
		return "output"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}
