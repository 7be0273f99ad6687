package domain

import (
	"fmt"
	"sort"
)

// Inventory owns the item catalog and stock counts. It is not safe for
// concurrent use; the controller serializes every access.
type Inventory struct {
	items map[string]*Item
}

func NewInventory(items ...Item) (*Inventory, error) {
	inv := &Inventory{items: make(map[string]*Item, len(items))}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
		if _, dup := inv.items[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidItem, it.ID)
		}
		item := it
		inv.items[it.ID] = &item
	}
	return inv, nil
}

func (inv *Inventory) GetItem(id string) (Item, error) {
	item, ok := inv.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return *item, nil
}

// ListItems returns copies of every item ordered by id.
func (inv *Inventory) ListItems() []Item {
	out := make([]Item, 0, len(inv.items))
	for _, item := range inv.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (inv *Inventory) HasStock(id string) bool {
	item, ok := inv.items[id]
	return ok && item.Stock > 0
}

func (inv *Inventory) Decrement(id string) error {
	item, ok := inv.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if item.Stock == 0 {
		return fmt.Errorf("%w: %s", ErrOutOfStock, id)
	}
	item.Stock--
	return nil
}

// DecrementAll removes one unit per id, counting duplicates. Either every
// decrement is applied or none is.
func (inv *Inventory) DecrementAll(ids []string) error {
	need := make(map[string]int, len(ids))
	for _, id := range ids {
		need[id]++
	}
	for _, id := range ids {
		item, ok := inv.items[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		if item.Stock < need[id] {
			return fmt.Errorf("%w: %s", ErrOutOfStock, id)
		}
	}
	for _, id := range ids {
		inv.items[id].Stock--
	}
	return nil
}

func (inv *Inventory) Restock(id string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: restock quantity must be positive", ErrInvalidItem)
	}
	item, ok := inv.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	item.Stock += quantity
	return nil
}

func (inv *Inventory) SetPrice(id string, price Money) error {
	if price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidAmount)
	}
	item, ok := inv.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	item.Price = price
	return nil
}
