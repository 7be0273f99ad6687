package domain

// PriceLookup resolves an item by id. *Inventory satisfies it.
type PriceLookup interface {
	GetItem(id string) (Item, error)
}

// Cart is the ordered list of item ids selected in the current cycle.
// The same id may appear more than once.
type Cart struct {
	ids []string
}

func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) Add(id string) {
	c.ids = append(c.ids, id)
}

func (c *Cart) Items() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

func (c *Cart) Len() int {
	return len(c.ids)
}

func (c *Cart) Count(id string) int {
	n := 0
	for _, v := range c.ids {
		if v == id {
			n++
		}
	}
	return n
}

func (c *Cart) Clear() {
	c.ids = nil
}

// Total sums the current prices of the cart's items. Prices are looked up on
// every call so a price change between selection and purchase is honoured.
func (c *Cart) Total(prices PriceLookup) (Money, error) {
	var total Money
	for _, id := range c.ids {
		item, err := prices.GetItem(id)
		if err != nil {
			return 0, err
		}
		total += item.Price
	}
	return total, nil
}
