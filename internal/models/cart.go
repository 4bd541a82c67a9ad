package models

type CartItem struct {
	ProductID string  `json:"product_id"`
	Category  string  `json:"category"`
	UnitPrice float64 `json:"unit_price"`
	Qty       int     `json:"qty"`
}

type Cart struct {
	Items []CartItem `json:"items"`
}

// Value is the sum of unit price times quantity over all items; 0 for an
// empty cart.
func (c Cart) Value() float64 {
	total := 0.0
	for _, it := range c.Items {
		total += it.UnitPrice * float64(it.Qty)
	}
	return total
}

// ItemCount is the total quantity across all items.
func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Qty
	}
	return n
}
