package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/forge/pkg/catalog"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// Styles follow the terminal background; width wraps long lines.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// CatalogMarkdown formats the catalog as a markdown document: one section per
// category and a requirements table per subcategory.
func CatalogMarkdown(categories []catalog.Category) string {
	var b strings.Builder
	b.WriteString("# Crafting catalog\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "\n## %s\n", c.Name)
		for _, s := range c.Subcategories {
			fmt.Fprintf(&b, "\n### %s\n\n", s.Name)
			b.WriteString("| Item | Requirements |\n|---|---|\n")
			for _, item := range s.Items {
				reqs := make([]string, 0, len(item.Requirements))
				for _, r := range item.Requirements {
					reqs = append(reqs, fmt.Sprintf("%d× %s", r.Amount, r.Resource))
				}
				if len(reqs) == 0 {
					reqs = append(reqs, "none")
				}
				fmt.Fprintf(&b, "| %s | %s |\n", item.Name, strings.Join(reqs, ", "))
			}
		}
	}
	return b.String()
}
