package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"spendmillion/internal/models"
)

// Repository holds the immutable item catalog. It is loaded once at startup
// and is safe for concurrent reads.
type Repository struct {
	items  []models.Item
	byName map[string]models.Item
}

// NewRepository builds a catalog from the given items, validating that every
// item has a name and a positive price and that names are unique.
func NewRepository(items []models.Item) (*Repository, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one item")
	}

	byName := make(map[string]models.Item, len(items))
	for i, item := range items {
		if item.Name == "" {
			return nil, fmt.Errorf("catalog item %d has empty name", i)
		}
		if item.UnitPrice <= 0 {
			return nil, fmt.Errorf("catalog item %q has non-positive price %d", item.Name, item.UnitPrice)
		}
		if _, exists := byName[item.Name]; exists {
			return nil, fmt.Errorf("catalog item %q appears more than once", item.Name)
		}
		byName[item.Name] = item
	}

	return &Repository{
		items:  append([]models.Item(nil), items...),
		byName: byName,
	}, nil
}

// LoadFile reads a catalog from a YAML file of {name, price} entries.
func LoadFile(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var items []models.Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return NewRepository(items)
}

// Lookup returns the catalog item with the given name.
func (r *Repository) Lookup(name string) (models.Item, bool) {
	item, ok := r.byName[name]
	return item, ok
}

// Items returns a copy of the catalog in its original order.
func (r *Repository) Items() []models.Item {
	return append([]models.Item(nil), r.items...)
}

// Len returns the number of catalog items.
func (r *Repository) Len() int {
	return len(r.items)
}

// DefaultItems returns the built-in catalog used when no catalog file is
// configured.
func DefaultItems() []models.Item {
	return []models.Item{
		{Name: "Supercar", UnitPrice: 250_000},
		{Name: "Yacht for a day", UnitPrice: 120_000},
		{Name: "Steinway grand piano", UnitPrice: 180_000},
		{Name: "Private jet flight", UnitPrice: 150_000},
		{Name: "Luxury watch", UnitPrice: 90_000},
		{Name: "Diamonds", UnitPrice: 50_000},
		{Name: "VIP world tour", UnitPrice: 220_000},
		{Name: "Modern art piece", UnitPrice: 130_000},
		{Name: "Chef's table dinner", UnitPrice: 25_000},
		{Name: "Penthouse rental (week)", UnitPrice: 300_000},
		{Name: "Charity donation", UnitPrice: 10_000},
		{Name: "Gold club card", UnitPrice: 45_000},
	}
}
