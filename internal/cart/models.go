package cart

import "time"

type Cart struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Items     []Item    `json:"items"`
}

type Item struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	VariantID string    `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Variant   Variant   `json:"variant"`
}

// Variant is the slice of product_variants (plus its product) the cart and
// checkout need.
type Variant struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Price   int64          `json:"price"`
	Stock   int            `json:"stock"`
	Images  []string       `json:"images"`
	Product ProductSummary `json:"product"`
}

type ProductSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Slug   string   `json:"slug"`
	Images []string `json:"images"`
}

// Total is the sum of price * quantity over the cart lines, in cents.
func (c *Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.Variant.Price * int64(it.Quantity)
	}
	return total
}

// DisplayImages prefers the variant pictures and falls back to the product ones.
func (v Variant) DisplayImages() []string {
	if len(v.Images) > 0 {
		return v.Images
	}
	return v.Product.Images
}
