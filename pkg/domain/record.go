package domain

import (
	"fmt"
	"time"
)

// ResourceLine is one resource of a finalized request.
type ResourceLine struct {
	Resource string `json:"resource"`
	Required int    `json:"required"`
	Provided int    `json:"provided"`
}

// Record is the durable crafting request written on finalization.
type Record struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	CharacterID   string         `json:"character_id"`
	CharacterName string         `json:"character_name"`
	Category      string         `json:"category"`
	Subcategory   string         `json:"subcategory"`
	Item          string         `json:"item"`
	Mode          CommitMode     `json:"mode"`
	Resources     []ResourceLine `json:"resources"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EntityKey identifies a request for duplicate detection.
type EntityKey struct {
	OwnerID     string
	CharacterID string
	Category    string
	Item        string
}

func (k EntityKey) String() string {
	return k.OwnerID + "/" + k.CharacterID + "/" + k.Category + "/" + k.Item
}

// Key returns the duplicate-detection key of the record.
func (r Record) Key() EntityKey {
	return EntityKey{
		OwnerID:     r.OwnerID,
		CharacterID: r.CharacterID,
		Category:    r.Category,
		Item:        r.Item,
	}
}

// Validate checks the fields a store requires.
func (r Record) Validate() error {
	required := map[string]string{
		"owner_id":     r.OwnerID,
		"character_id": r.CharacterID,
		"category":     r.Category,
		"subcategory":  r.Subcategory,
		"item":         r.Item,
	}
	for _, name := range []string{"owner_id", "character_id", "category", "subcategory", "item"} {
		if required[name] == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: mode", ErrMissingField)
	}
	return nil
}

// FullyProvided reports whether the owner supplies every resource in full.
func (r Record) FullyProvided() bool {
	for _, line := range r.Resources {
		if line.Provided < line.Required {
			return false
		}
	}
	return true
}

// NothingProvided reports whether the owner supplies none of the resources.
func (r Record) NothingProvided() bool {
	for _, line := range r.Resources {
		if line.Provided > 0 {
			return false
		}
	}
	return true
}

// RecordFromPayload assembles a record from a completed payload.
func RecordFromPayload(ownerID string, p Payload, now time.Time) Record {
	lines := make([]ResourceLine, 0, len(p.Requirements))
	for _, req := range p.Requirements {
		lines = append(lines, ResourceLine{
			Resource: req.Resource,
			Required: req.Amount,
			Provided: p.Provided[req.Resource],
		})
	}
	return Record{
		OwnerID:       ownerID,
		CharacterID:   p.CharacterID,
		CharacterName: p.CharacterName,
		Category:      p.Category,
		Subcategory:   p.Subcategory,
		Item:          p.Item,
		Mode:          p.Mode,
		Resources:     lines,
		CreatedAt:     now,
	}
}
