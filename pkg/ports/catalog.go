package ports

import "github.com/aretw0/forge/pkg/domain"

// Catalog is the read-only description of craftable items.
type Catalog interface {
	Categories() []string
	Subcategories(category string) []string
	Items(category, subcategory string) []domain.Item
	// Item looks up a single item; ok is false when it does not belong to the subcategory.
	Item(category, subcategory, name string) (domain.Item, bool)
}
