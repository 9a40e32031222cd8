package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCatalogBadStatus   = errors.New("catalog bad status")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

const defaultClientTimeout = 5 * time.Second

// Client reads the product listing from a catalog endpoint.
type Client struct {
	BaseURL string
	Client  *http.Client
	Log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: defaultClientTimeout},
		Log:     log,
	}
}

// ListProducts fetches GET {BaseURL}/products. Invalid records are skipped
// and logged rather than failing the whole listing.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/products", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status=%d", ErrCatalogBadStatus, resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	out := make([]Product, 0, len(raw))
	for i, r := range raw {
		var p Product
		if err := json.Unmarshal(r, &p); err != nil {
			c.Log.Warn("skipping product record", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
