//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"
)

var baseURL = getenv("E2E_BASE_URL", "http://localhost:8080")

type cartLine struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type cartResp struct {
	Items         []cartLine  `json:"items"`
	TotalQuantity int         `json:"total_quantity"`
	TotalPrice    json.Number `json:"total_price"`
}

func TestSystem_E2E_CartSurvivesRestart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	waitReady(t, ctx, baseURL+"/readyz")

	var products []map[string]any
	doJSON(t, http.MethodGet, baseURL+"/products", nil, &products, 200)
	if len(products) == 0 {
		t.Fatalf("expected non-empty products")
	}

	pid, _ := products[0]["id"].(float64)
	if pid == 0 {
		t.Fatalf("product id missing in response: %#v", products[0])
	}
	id := int64(pid)

	var before cartResp
	doJSON(t, http.MethodPut, itemURL(id), map[string]any{"quantity": 2}, &before, 200)
	doJSON(t, http.MethodPost, itemURL(id)+"/increase", nil, &before, 200)
	if qty := quantityOf(before, id); qty != 3 {
		t.Fatalf("quantity=%d want 3", qty)
	}

	if os.Getenv("E2E_RESTART_STOREFRONT") == "1" {
		restartContainer(t, ctx, "storefront")
		waitReady(t, ctx, baseURL+"/readyz")
	}

	var after cartResp
	doJSON(t, http.MethodGet, baseURL+"/cart", nil, &after, 200)
	if quantityOf(after, id) != 3 || after.TotalPrice != before.TotalPrice {
		t.Fatalf("cart changed across restart: before=%+v after=%+v", before, after)
	}

	doJSON(t, http.MethodDelete, itemURL(id), nil, &after, 200)
	if quantityOf(after, id) != 0 {
		t.Fatalf("line not removed: %+v", after)
	}
}

func itemURL(id int64) string {
	return baseURL + "/cart/items/" + strconv.FormatInt(id, 10)
}

func quantityOf(c cartResp, id int64) int {
	for _, l := range c.Items {
		if l.ID == id {
			return l.Quantity
		}
	}
	return 0
}

func waitReady(t *testing.T, ctx context.Context, url string) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode == 200 {
			_ = resp.Body.Close()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("service not ready: %s", url)
}

func doJSON(t *testing.T, method, url string, body any, out any, want int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("%s %s: status=%d want=%d", method, url, resp.StatusCode, want)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
