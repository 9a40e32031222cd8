package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"MiniCart/internal/cart"
	"MiniCart/internal/catalog"
	"MiniCart/internal/storage"
)

type fakeSource struct {
	state    catalog.State
	err      error
	products []catalog.Product
}

func (f *fakeSource) Products() []catalog.Product { return f.products }
func (f *fakeSource) State() catalog.State        { return f.state }
func (f *fakeSource) Err() error                  { return f.err }

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: 1, Title: "Blue Shirt", Price: decimal.RequireFromString("19.99"), Image: "a.png", Category: "men's clothing"},
		{ID: 2, Title: "Red Hat", Price: decimal.RequireFromString("5.50"), Image: "b.png", Category: "accessories"},
	}
}

type testEnv struct {
	ts      *httptest.Server
	cart    *cart.Cart
	backend *storage.MemStore
	reg     *prometheus.Registry
}

func newTestEnv(t *testing.T, src catalog.Source, deps HTTPDeps) testEnv {
	t.Helper()

	b := storage.NewMemStore()
	c := cart.New(context.Background(), b, zap.NewNop())

	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	deps.Service = "storefront"

	h := NewHandler(&Server{Cart: c, Catalog: src, Log: zap.NewNop()}, deps)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	return testEnv{ts: ts, cart: c, backend: b, reg: deps.Registry}
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode
}

func TestStorefront_CartFlow(t *testing.T) {
	env := newTestEnv(t, &fakeSource{state: catalog.StateReady, products: testProducts()}, HTTPDeps{})
	base := env.ts.URL

	var v cartView
	if code := do(t, http.MethodPost, base+"/cart/items/1/increase", "", &v); code != http.StatusOK {
		t.Fatalf("increase status=%d", code)
	}
	do(t, http.MethodPost, base+"/cart/items/1/increase", "", &v)
	do(t, http.MethodPut, base+"/cart/items/2", `{"quantity":3}`, &v)
	do(t, http.MethodPost, base+"/cart/items/99/increase", "", &v)

	if v.TotalQuantity != 6 || len(v.Items) != 3 {
		t.Fatalf("view=%+v", v)
	}
	if v.TotalPrice != "56.48" || v.TotalFormatted != "$56.48" {
		t.Fatalf("total=%s formatted=%s", v.TotalPrice, v.TotalFormatted)
	}
	if v.Items[0].Title != "Blue Shirt" || v.Items[0].Subtotal != "39.98" {
		t.Fatalf("item=%+v", v.Items[0])
	}
	if v.Items[2].Title != "" || v.Items[2].Price != "" {
		t.Fatalf("unknown product must carry no details: %+v", v.Items[2])
	}

	do(t, http.MethodDelete, base+"/cart/items/99", "", &v)
	do(t, http.MethodPost, base+"/cart/items/2/adjust", `{"delta":-1}`, &v)
	do(t, http.MethodPost, base+"/cart/items/1/decrease", "", &v)

	var q quantityView
	do(t, http.MethodGet, base+"/cart/items/2", "", &q)
	if q.Quantity != 2 {
		t.Fatalf("quantity=%d", q.Quantity)
	}

	raw, ok, _ := env.backend.Read(context.Background(), cart.SlotKey)
	if !ok || raw != `[{"id":1,"quantity":1},{"id":2,"quantity":2}]` {
		t.Fatalf("stored=%q", raw)
	}
}

func TestStorefront_OpenClose(t *testing.T) {
	env := newTestEnv(t, &fakeSource{state: catalog.StateReady}, HTTPDeps{})

	var v cartView
	do(t, http.MethodPost, env.ts.URL+"/cart/open", "", &v)
	if !v.IsOpen || !env.cart.IsOpen() {
		t.Fatalf("want open")
	}
	do(t, http.MethodPost, env.ts.URL+"/cart/close", "", &v)
	if v.IsOpen {
		t.Fatalf("want closed")
	}
	do(t, http.MethodGet, env.ts.URL+"/cart", "", &v)
	if v.IsOpen || v.TotalFormatted != "$0.00" || v.Items == nil {
		t.Fatalf("view=%+v", v)
	}
}

func TestStorefront_BadRequests(t *testing.T) {
	env := newTestEnv(t, &fakeSource{state: catalog.StateReady}, HTTPDeps{})
	base := env.ts.URL

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/cart/items/abc/increase", ""},
		{http.MethodGet, "/cart/items/1x", ""},
		{http.MethodPut, "/cart/items/1", `{"qty":1}`},
		{http.MethodPut, "/cart/items/1", `{}`},
		{http.MethodPost, "/cart/items/1/adjust", `nope`},
	}
	for _, tt := range tests {
		if code := do(t, tt.method, base+tt.path, tt.body, nil); code != http.StatusBadRequest {
			t.Fatalf("%s %s: status=%d", tt.method, tt.path, code)
		}
	}
	if n := env.cart.TotalQuantity(); n != 0 {
		t.Fatalf("bad requests changed the cart: %d", n)
	}
}

func TestStorefront_Products(t *testing.T) {
	env := newTestEnv(t, &fakeSource{state: catalog.StateReady, products: testProducts()}, HTTPDeps{})

	var got []catalog.Product
	if code := do(t, http.MethodGet, env.ts.URL+"/products?search=SHIRT&category=All", "", &got); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("got %+v", got)
	}

	do(t, http.MethodGet, env.ts.URL+"/products", "", &got)
	if len(got) != 2 {
		t.Fatalf("identity filter returned %d", len(got))
	}

	var cats []string
	do(t, http.MethodGet, env.ts.URL+"/categories", "", &cats)
	if len(cats) != 3 || cats[0] != "All" {
		t.Fatalf("categories=%v", cats)
	}
}

func TestStorefront_CatalogLoading(t *testing.T) {
	env := newTestEnv(t, &fakeSource{state: catalog.StateLoading}, HTTPDeps{})

	var e struct {
		Error string `json:"error"`
	}
	if code := do(t, http.MethodGet, env.ts.URL+"/products", "", &e); code != http.StatusServiceUnavailable || e.Error != "loading" {
		t.Fatalf("status=%d error=%q", code, e.Error)
	}
	if code := do(t, http.MethodGet, env.ts.URL+"/readyz", "", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", code)
	}

	var v cartView
	if code := do(t, http.MethodPost, env.ts.URL+"/cart/items/1/increase", "", &v); code != http.StatusOK {
		t.Fatalf("cart must work while loading: %d", code)
	}
	if v.TotalPrice != "0.00" {
		t.Fatalf("total=%s", v.TotalPrice)
	}
}

func TestStorefront_CatalogFailed(t *testing.T) {
	src := &fakeSource{state: catalog.StateFailed, err: errors.New("failed to load products: catalog unavailable")}
	env := newTestEnv(t, src, HTTPDeps{})

	var e struct {
		Error string `json:"error"`
	}
	if code := do(t, http.MethodGet, env.ts.URL+"/products", "", &e); code != http.StatusBadGateway {
		t.Fatalf("status=%d", code)
	}
	if e.Error != src.err.Error() {
		t.Fatalf("error=%q", e.Error)
	}
}

func TestStorefront_MutationRateLimit(t *testing.T) {
	env := newTestEnv(t, &fakeSource{state: catalog.StateReady}, HTTPDeps{MutationLimit: 2})

	for i := 0; i < 2; i++ {
		if code := do(t, http.MethodPost, env.ts.URL+"/cart/items/1/increase", "", nil); code != http.StatusOK {
			t.Fatalf("hit %d status=%d", i, code)
		}
	}
	if code := do(t, http.MethodPost, env.ts.URL+"/cart/items/1/increase", "", nil); code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", code)
	}
	if code := do(t, http.MethodGet, env.ts.URL+"/cart", "", nil); code != http.StatusOK {
		t.Fatalf("reads must not be limited: %d", code)
	}
	if env.cart.Quantity(1) != 2 {
		t.Fatalf("qty=%d", env.cart.Quantity(1))
	}
}

func TestStorefront_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, &fakeSource{state: catalog.StateReady}, HTTPDeps{
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   "secret",
	})

	do(t, http.MethodPost, env.ts.URL+"/cart/items/4/increase", "", nil)
	do(t, http.MethodPost, env.ts.URL+"/cart/items/4/increase", "", nil)

	if code := do(t, http.MethodGet, env.ts.URL+"/metrics", "", nil); code != http.StatusForbidden {
		t.Fatalf("unauthenticated metrics status=%d", code)
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range [][]byte{
		[]byte("storefront_cart_quantity 2"),
		[]byte("storefront_cart_lines 1"),
		[]byte("storefront_catalog_state 1"),
		[]byte(`storefront_http_requests_total{method="POST",path="/cart/items/{id}/increase",service="storefront",status="200"} 2`),
	} {
		if !bytes.Contains(body, want) {
			t.Fatalf("metrics missing %q\n%s", want, body)
		}
	}
}

func TestStorefront_QuantityOutOfRange(t *testing.T) {
	env := newTestEnv(t, &fakeSource{state: catalog.StateReady}, HTTPDeps{})
	base := env.ts.URL

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPut, "/cart/items/1", `{"quantity":9223372036854775807}`},
		{http.MethodPut, "/cart/items/1", `{"quantity":10000}`},
		{http.MethodPut, "/cart/items/1", `{"quantity":-10000}`},
		{http.MethodPost, "/cart/items/1/adjust", `{"delta":9223372036854775807}`},
		{http.MethodPost, "/cart/items/1/adjust", `{"delta":-9223372036854775808}`},
	}
	for _, tt := range tests {
		if code := do(t, tt.method, base+tt.path, tt.body, nil); code != http.StatusBadRequest {
			t.Fatalf("%s %s %s: status=%d", tt.method, tt.path, tt.body, code)
		}
	}

	var v cartView
	do(t, http.MethodPut, base+"/cart/items/1", `{"quantity":9999}`, &v)
	do(t, http.MethodPost, base+"/cart/items/1/increase", "", &v)
	if v.TotalQuantity != cart.MaxQuantity || v.Items[0].Quantity != cart.MaxQuantity {
		t.Fatalf("view=%+v", v)
	}

	raw, _, _ := env.backend.Read(context.Background(), cart.SlotKey)
	if raw != `[{"id":1,"quantity":9999}]` {
		t.Fatalf("stored=%q", raw)
	}
}

func TestStorefront_CartViewTotalsMatchItems(t *testing.T) {
	b := storage.NewMemStore()
	c := cart.New(context.Background(), b, zap.NewNop())
	products := testProducts()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.Increase(1)
				c.Decrease(1)
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i := 0; i < 20000; i++ {
		v := buildCartView(c, products)

		sum := decimal.Zero
		qty := 0
		for _, it := range v.Items {
			sum = sum.Add(decimal.RequireFromString(string(it.Subtotal)))
			qty += it.Quantity
		}
		if money(sum) != v.TotalPrice || qty != v.TotalQuantity {
			t.Fatalf("iteration %d: items=%+v total=%s quantity=%d", i, v.Items, v.TotalPrice, v.TotalQuantity)
		}
	}
}

type downBackend struct{ *storage.MemStore }

func (*downBackend) Ping(context.Context) error { return errors.New("disk gone") }

func TestStorefront_ReadyzReportsStorage(t *testing.T) {
	var rv readyView

	env := newTestEnv(t, &fakeSource{state: catalog.StateReady}, HTTPDeps{})
	if code := do(t, http.MethodGet, env.ts.URL+"/readyz", "", &rv); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if rv.Catalog != "ready" || rv.Storage != "ok" {
		t.Fatalf("ready=%+v", rv)
	}

	c := cart.New(context.Background(), &downBackend{MemStore: storage.NewMemStore()}, zap.NewNop())
	ts := httptest.NewServer(NewHandler(&Server{Cart: c, Catalog: &fakeSource{state: catalog.StateReady}}, HTTPDeps{}))
	t.Cleanup(ts.Close)

	rv = readyView{}
	if code := do(t, http.MethodGet, ts.URL+"/readyz", "", &rv); code != http.StatusOK {
		t.Fatalf("storage outage must not make the storefront unready: %d", code)
	}
	if rv.Storage != "unavailable" {
		t.Fatalf("ready=%+v", rv)
	}
}
