package catalog

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	Summary     *string   `json:"summary"`
	Images      []string  `json:"images"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant is a purchasable option of a product (size, finish, ...).
// Price is in cents.
type Variant struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"product_id"`
	Name       string            `json:"name"`
	Price      int64             `json:"price"`
	Stock      int               `json:"stock"`
	SKU        *string           `json:"sku"`
	Images     []string          `json:"images"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type ProductWithVariants struct {
	Product
	Variants []Variant `json:"variants"`
}

// IsSoldOut is true when the product has no variants or none in stock.
func IsSoldOut(variants []Variant) bool {
	for _, v := range variants {
		if v.Stock > 0 {
			return false
		}
	}
	return true
}

func PriceRange(variants []Variant) (min, max int64) {
	for i, v := range variants {
		if i == 0 || v.Price < min {
			min = v.Price
		}
		if i == 0 || v.Price > max {
			max = v.Price
		}
	}
	return min, max
}

// AllImages returns the product images followed by variant images not already
// present, in order.
func (p ProductWithVariants) AllImages() []string {
	seen := make(map[string]bool, len(p.Images))
	out := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		seen[img] = true
		out = append(out, img)
	}
	for _, v := range p.Variants {
		for _, img := range v.Images {
			if !seen[img] {
				seen[img] = true
				out = append(out, img)
			}
		}
	}
	return out
}
