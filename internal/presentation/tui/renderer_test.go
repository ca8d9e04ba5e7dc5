package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/forge/pkg/catalog"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogMarkdown(t *testing.T) {
	md := CatalogMarkdown([]catalog.Category{{
		Name: "Blacksmith",
		Subcategories: []catalog.Subcategory{{
			Name: "Swords",
			Items: []domain.Item{
				{Name: "Iron Sword", Requirements: []domain.Requirement{{Resource: "Iron Ingot", Amount: 3}, {Resource: "Leather", Amount: 1}}},
				{Name: "Practice Stick"},
			},
		}},
	}})

	assert.Contains(t, md, "## Blacksmith")
	assert.Contains(t, md, "### Swords")
	assert.Contains(t, md, "| Iron Sword | 3× Iron Ingot, 1× Leather |")
	assert.Contains(t, md, "| Practice Stick | none |")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(60)
	require.NoError(t, err)
	out, err := render("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.0.0")
	assert.Contains(t, buf.String(), "1.0.0")
}
