// Package catalog loads the read-only description of craftable items.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/aretw0/forge/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned when a catalog document fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Subcategory groups items.
type Subcategory struct {
	Name  string        `yaml:"name"`
	Items []domain.Item `yaml:"items"`
}

// Category is a top-level crafting profession.
type Category struct {
	Name          string        `yaml:"name"`
	Subcategories []Subcategory `yaml:"subcategories"`
}

type document struct {
	Categories []Category `yaml:"categories"`
}

// Catalog is an immutable in-memory catalog. It implements ports.Catalog.
type Catalog struct {
	categories []Category
}

// New validates categories and builds a catalog.
func New(categories []Category) (*Catalog, error) {
	c := &Catalog{categories: categories}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(doc.Categories)
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Validate checks names are present and unique and amounts are positive.
// All problems are reported at once.
func (c *Catalog) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidCatalog}, args...)...))
	}

	if len(c.categories) == 0 {
		add("no categories")
	}
	seenCat := map[string]bool{}
	for _, cat := range c.categories {
		if cat.Name == "" {
			add("category without a name")
		}
		if seenCat[cat.Name] {
			add("duplicate category %q", cat.Name)
		}
		seenCat[cat.Name] = true

		seenSub := map[string]bool{}
		for _, sub := range cat.Subcategories {
			if sub.Name == "" {
				add("%s: subcategory without a name", cat.Name)
			}
			if seenSub[sub.Name] {
				add("%s: duplicate subcategory %q", cat.Name, sub.Name)
			}
			seenSub[sub.Name] = true

			seenItem := map[string]bool{}
			for _, it := range sub.Items {
				where := cat.Name + " › " + sub.Name
				if it.Name == "" {
					add("%s: item without a name", where)
				}
				if seenItem[it.Name] {
					add("%s: duplicate item %q", where, it.Name)
				}
				seenItem[it.Name] = true

				seenRes := map[string]bool{}
				for _, r := range it.Requirements {
					if r.Resource == "" {
						add("%s › %s: requirement without a resource", where, it.Name)
					}
					if r.Amount <= 0 {
						add("%s › %s: %s amount must be positive", where, it.Name, r.Resource)
					}
					if seenRes[r.Resource] {
						add("%s › %s: resource %q listed twice", where, it.Name, r.Resource)
					}
					seenRes[r.Resource] = true
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) category(name string) (Category, bool) {
	i := slices.IndexFunc(c.categories, func(cat Category) bool { return cat.Name == name })
	if i < 0 {
		return Category{}, false
	}
	return c.categories[i], true
}

func (c *Catalog) subcategory(category, name string) (Subcategory, bool) {
	cat, ok := c.category(category)
	if !ok {
		return Subcategory{}, false
	}
	i := slices.IndexFunc(cat.Subcategories, func(s Subcategory) bool { return s.Name == name })
	if i < 0 {
		return Subcategory{}, false
	}
	return cat.Subcategories[i], true
}

// Categories lists category names in document order.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat.Name)
	}
	return out
}

// Subcategories lists the subcategory names of category.
func (c *Catalog) Subcategories(category string) []string {
	cat, ok := c.category(category)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cat.Subcategories))
	for _, s := range cat.Subcategories {
		out = append(out, s.Name)
	}
	return out
}

// Items lists the items of a subcategory.
func (c *Catalog) Items(category, subcategory string) []domain.Item {
	sub, ok := c.subcategory(category, subcategory)
	if !ok {
		return nil
	}
	return slices.Clone(sub.Items)
}

// Item looks up one item of a subcategory.
func (c *Catalog) Item(category, subcategory, name string) (domain.Item, bool) {
	sub, ok := c.subcategory(category, subcategory)
	if !ok {
		return domain.Item{}, false
	}
	i := slices.IndexFunc(sub.Items, func(it domain.Item) bool { return it.Name == name })
	if i < 0 {
		return domain.Item{}, false
	}
	return sub.Items[i], true
}

// Tree returns the full category tree, for display.
func (c *Catalog) Tree() []Category {
	return slices.Clone(c.categories)
}
