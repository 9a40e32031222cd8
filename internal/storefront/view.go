package storefront

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"MiniCart/internal/cart"
	"MiniCart/internal/catalog"
)

type itemView struct {
	ID       int64       `json:"id"`
	Quantity int         `json:"quantity"`
	Title    string      `json:"title,omitempty"`
	Image    string      `json:"image,omitempty"`
	Price    json.Number `json:"price,omitempty"`
	Subtotal json.Number `json:"subtotal,omitempty"`
}

type cartView struct {
	Items          []itemView  `json:"items"`
	TotalQuantity  int         `json:"total_quantity"`
	TotalPrice     json.Number `json:"total_price"`
	TotalFormatted string      `json:"total_formatted"`
	IsOpen         bool        `json:"is_open"`
	Persistent     bool        `json:"persistent"`
}

type quantityView struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// buildCartView joins cart lines with the catalog as it is right now. Lines
// for unknown products are listed without product details.
func buildCartView(c *cart.Cart, products []catalog.Product) cartView {
	byID := catalog.Index(products)
	v := c.View(products)

	items := make([]itemView, 0, len(v.Lines))
	for _, l := range v.Lines {
		it := itemView{ID: l.ProductID, Quantity: l.Quantity}
		if p, ok := byID[l.ProductID]; ok {
			it.Title = p.Title
			it.Image = p.Image
			it.Price = money(p.Price)
			it.Subtotal = money(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		items = append(items, it)
	}

	return cartView{
		Items:          items,
		TotalQuantity:  v.TotalQuantity,
		TotalPrice:     money(v.TotalPrice),
		TotalFormatted: catalog.FormatCurrency(v.TotalPrice),
		IsOpen:         v.IsOpen,
		Persistent:     v.Persistent,
	}
}
