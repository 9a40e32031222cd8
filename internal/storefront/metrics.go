package storefront

import (
	"github.com/prometheus/client_golang/prometheus"

	"MiniCart/internal/cart"
	"MiniCart/internal/catalog"
)

// registerStateMetrics exports the cart size and catalog state. The cart
// gauge follows the cart through an observer.
func registerStateMetrics(reg prometheus.Registerer, c *cart.Cart, src catalog.Source) {
	quantity := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "cart_quantity",
		Help:      "Total number of items in the cart",
	})
	lines := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "cart_lines",
		Help:      "Number of distinct products in the cart",
	})
	state := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "catalog_state",
		Help:      "Catalog source state: 0 loading, 1 ready, 2 failed",
	}, func() float64 { return float64(src.State()) })

	reg.MustRegister(quantity, lines, state)

	snap := c.Snapshot()
	quantity.Set(float64(snap.TotalQuantity))
	lines.Set(float64(len(snap.Lines)))

	c.Subscribe(func(s cart.Snapshot) {
		quantity.Set(float64(s.TotalQuantity))
		lines.Set(float64(len(s.Lines)))
	})
}
