// Package catalog provides the items a machine is stocked with at start.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

// Default returns the built-in seed catalog.
func Default() []domain.Item {
	return []domain.Item{
		{ID: "A1", Name: "Coca Cola", Price: 150, Stock: 10},
		{ID: "A2", Name: "Pepsi", Price: 150, Stock: 8},
		{ID: "A3", Name: "Water", Price: 100, Stock: 15},
		{ID: "B1", Name: "Chips", Price: 200, Stock: 12},
		{ID: "B2", Name: "Chocolate", Price: 250, Stock: 7},
		{ID: "B3", Name: "Candy", Price: 175, Stock: 20},
		{ID: "C1", Name: "Cookie", Price: 225, Stock: 5},
		{ID: "C2", Name: "Juice", Price: 200, Stock: 4},
		{ID: "C3", Name: "Energy Drink", Price: 300, Stock: 6},
	}
}

type file struct {
	Items []entry `yaml:"items"`
}

// Prices are decimal strings so "1.50" is never read through a float.
type entry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
}

// Load reads a YAML catalog. An empty path yields Default.
func Load(path string) ([]domain.Item, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) ([]domain.Item, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("%w: catalog has no items", domain.ErrInvalidItem)
	}

	items := make([]domain.Item, 0, len(f.Items))
	for _, e := range f.Items {
		price, err := domain.ParseMoney(e.Price)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", e.ID, err)
		}
		item := domain.Item{ID: e.ID, Name: e.Name, Price: price, Stock: e.Stock}
		if err := item.Validate(); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
