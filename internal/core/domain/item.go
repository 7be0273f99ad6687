package domain

import (
	"fmt"
	"time"
)

type Item struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
	Stock int    `json:"stock"`
}

func (i Item) Validate() error {
	switch {
	case i.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	case i.Name == "":
		return fmt.Errorf("%w: %s: name is required", ErrInvalidItem, i.ID)
	case i.Price < 0:
		return fmt.Errorf("%w: %s: price cannot be negative", ErrInvalidItem, i.ID)
	case i.Stock < 0:
		return fmt.Errorf("%w: %s: stock cannot be negative", ErrInvalidItem, i.ID)
	}
	return nil
}

// ItemSnapshot is the price-at-sale copy of an item stored on a transaction.
type ItemSnapshot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

func (i Item) Snapshot() ItemSnapshot {
	return ItemSnapshot{ID: i.ID, Name: i.Name, Price: i.Price}
}

type Transaction struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Items      []ItemSnapshot `json:"items"`
	TotalPrice Money          `json:"total_price"`
	Change     Money          `json:"change"`
}
