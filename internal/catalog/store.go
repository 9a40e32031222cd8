package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
)

// Store backs the catalog service's product listing.
type Store interface {
	Ping(ctx context.Context) error
	ListSortedByID(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, bool, error)
}

//go:embed data/products.json
var bundled []byte

// Bundled returns the catalog compiled into the binary.
func Bundled() ([]Product, error) {
	var out []Product
	if err := json.Unmarshal(bundled, &out); err != nil {
		return nil, fmt.Errorf("bundled catalog: %w", err)
	}
	return out, nil
}

func MustBundled() []Product {
	p, err := Bundled()
	if err != nil {
		panic(err)
	}
	return p
}
