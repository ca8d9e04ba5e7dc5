package domain_test

import (
	"testing"
	"time"

	"github.com/aretw0/forge/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestRecord_Validate(t *testing.T) {
	valid := domain.Record{
		OwnerID:     "u1",
		CharacterID: "c1",
		Category:    "Blacksmith",
		Subcategory: "Weapons",
		Item:        "Sword",
		Mode:        domain.CommitFull,
	}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.Item = ""
	err := missing.Validate()
	assert.ErrorIs(t, err, domain.ErrMissingField)
	assert.Contains(t, err.Error(), "item")

	badMode := valid
	badMode.Mode = "sometimes"
	assert.ErrorIs(t, badMode.Validate(), domain.ErrMissingField)
}

func TestRecordFromPayload(t *testing.T) {
	p := domain.Payload{
		CharacterID: "c1",
		Category:    "Alchemy",
		Subcategory: "Potions",
		Item:        "Elixir",
		Mode:        domain.CommitPartial,
		Requirements: []domain.Requirement{
			{Resource: "Herb", Amount: 3},
			{Resource: "Vial", Amount: 1},
		},
		Provided: map[string]int{"Herb": 2},
	}
	rec := domain.RecordFromPayload("u1", p, time.Unix(100, 0))

	assert.Equal(t, "u1", rec.OwnerID)
	assert.Equal(t, []domain.ResourceLine{
		{Resource: "Herb", Required: 3, Provided: 2},
		{Resource: "Vial", Required: 1, Provided: 0},
	}, rec.Resources)
	assert.False(t, rec.FullyProvided())
	assert.False(t, rec.NothingProvided())
}

func TestPayload_CloneIsolation(t *testing.T) {
	p := domain.Payload{
		Requirements: []domain.Requirement{{Resource: "Ore", Amount: 2}},
		Provided:     map[string]int{"Ore": 1},
	}
	c := p.Clone()
	c.Provided["Ore"] = 2
	c.Requirements[0].Amount = 9

	assert.Equal(t, 1, p.Provided["Ore"])
	assert.Equal(t, 2, p.Requirements[0].Amount)
}

func TestLevel_Valid(t *testing.T) {
	assert.True(t, domain.LevelRoot.Valid())
	assert.True(t, domain.LevelOutput.Valid())
	assert.False(t, domain.Level(5).Valid())
	assert.False(t, domain.Level(-1).Valid())
	assert.Equal(t, "anchor", domain.LevelAnchor.String())
}
