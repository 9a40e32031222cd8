// Package catalog holds the product catalog: its record type, where products
// come from (bundled, remote or a store behind the catalog service), and the
// pure filtering and formatting helpers used to present it.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("invalid product")

// Product is immutable once loaded. Category is optional and empty when the
// listing omits it.
type Product struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Category string          `json:"category"`
}

type productJSON struct {
	ID       *int64           `json:"id"`
	Title    *string          `json:"title"`
	Price    *decimal.Decimal `json:"price"`
	Image    *string          `json:"image"`
	Category *string          `json:"category"`
}

// UnmarshalJSON rejects records without id, title, price or image, and
// records with a negative price.
func (p *Product) UnmarshalJSON(b []byte) error {
	var raw productJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch {
	case raw.ID == nil:
		return fmt.Errorf("%w: missing id", ErrInvalidProduct)
	case raw.Title == nil:
		return fmt.Errorf("%w: id=%d: missing title", ErrInvalidProduct, *raw.ID)
	case raw.Price == nil:
		return fmt.Errorf("%w: id=%d: missing price", ErrInvalidProduct, *raw.ID)
	case raw.Price.IsNegative():
		return fmt.Errorf("%w: id=%d: negative price", ErrInvalidProduct, *raw.ID)
	case raw.Image == nil:
		return fmt.Errorf("%w: id=%d: missing image", ErrInvalidProduct, *raw.ID)
	}

	*p = Product{
		ID:    *raw.ID,
		Title: *raw.Title,
		Price: *raw.Price,
		Image: *raw.Image,
	}
	if raw.Category != nil {
		p.Category = *raw.Category
	}
	return nil
}

// MarshalJSON writes the price as a JSON number, matching the listing format.
func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       int64       `json:"id"`
		Title    string      `json:"title"`
		Price    json.Number `json:"price"`
		Image    string      `json:"image"`
		Category string      `json:"category,omitempty"`
	}{p.ID, p.Title, json.Number(p.Price.String()), p.Image, p.Category})
}

// Index maps product ids to products for price lookups.
func Index(products []Product) map[int64]Product {
	m := make(map[int64]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}
