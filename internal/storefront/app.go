package storefront

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MiniCart/internal/cart"
	"MiniCart/internal/catalog"
	"MiniCart/pkg/kit"
)

// Server exposes the cart and the catalog to presentation clients. It never
// touches cart state except through cart.Cart's methods.
type Server struct {
	Cart    *cart.Cart
	Catalog catalog.Source
	Log     *zap.Logger
}

const readyTimeout = 1 * time.Second

type setQuantityReq struct {
	Quantity *int `json:"quantity"`
}

type adjustReq struct {
	Delta *int `json:"delta"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type readyView struct {
	Catalog string `json:"catalog"`
	Storage string `json:"storage"`
}

// readyz gates on the catalog only. Cart storage is reported but never makes
// the storefront unready: the cart keeps working in memory without it.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	v := readyView{Catalog: s.Catalog.State().String(), Storage: "ok"}
	if err := s.Cart.Ping(ctx); err != nil {
		s.Log.Warn("readyz: cart storage unavailable", zap.Error(err))
		v.Storage = "unavailable"
	}

	if s.Catalog.State() != catalog.StateReady {
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", v)
		return
	}
	kit.WriteJSON(w, http.StatusOK, v)
}

// catalogReady writes the loading or failed response and reports false when
// the catalog cannot be shown yet.
func (s *Server) catalogReady(w http.ResponseWriter, r *http.Request) bool {
	switch s.Catalog.State() {
	case catalog.StateReady:
		return true
	case catalog.StateLoading:
		kit.WriteError(w, r, http.StatusServiceUnavailable, "loading", nil)
	default:
		kit.WriteError(w, r, http.StatusBadGateway, errMessage(s.Catalog.Err()), nil)
	}
	return false
}

func errMessage(err error) string {
	if err == nil {
		return "failed to load products"
	}
	return err.Error()
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	if !s.catalogReady(w, r) {
		return
	}
	q := r.URL.Query()
	kit.WriteJSON(w, http.StatusOK, catalog.Filter(s.Catalog.Products(), q.Get("search"), q.Get("category")))
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	if !s.catalogReady(w, r) {
		return
	}
	kit.WriteJSON(w, http.StatusOK, catalog.Categories(s.Catalog.Products()))
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.writeCart(w)
}

func (s *Server) getQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, quantityView{ID: id, Quantity: s.Cart.Quantity(id)})
}

func (s *Server) increase(w http.ResponseWriter, r *http.Request) {
	s.withID(w, r, s.Cart.Increase)
}

func (s *Server) decrease(w http.ResponseWriter, r *http.Request) {
	s.withID(w, r, s.Cart.Decrease)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	s.withID(w, r, s.Cart.Remove)
}

func (s *Server) setQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req setQuantityReq
	if err := kit.DecodeJSON(w, r, &req); err != nil || req.Quantity == nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if !inRange(*req.Quantity) {
		kit.WriteError(w, r, http.StatusBadRequest, "quantity out of range", map[string]any{"max": cart.MaxQuantity})
		return
	}

	s.Cart.SetQuantity(id, *req.Quantity)
	s.writeCart(w)
}

func (s *Server) adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req adjustReq
	if err := kit.DecodeJSON(w, r, &req); err != nil || req.Delta == nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if !inRange(*req.Delta) {
		kit.WriteError(w, r, http.StatusBadRequest, "delta out of range", map[string]any{"max": cart.MaxQuantity})
		return
	}

	s.Cart.Adjust(id, *req.Delta)
	s.writeCart(w)
}

func (s *Server) openCart(w http.ResponseWriter, r *http.Request) {
	s.Cart.Open()
	s.writeCart(w)
}

func (s *Server) closeCart(w http.ResponseWriter, r *http.Request) {
	s.Cart.Close()
	s.writeCart(w)
}

func (s *Server) withID(w http.ResponseWriter, r *http.Request, op func(id int64)) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	op(id)
	s.writeCart(w)
}

// writeCart prices against whatever the catalog holds; while it is loading
// that is nothing, and totals read zero.
func (s *Server) writeCart(w http.ResponseWriter) {
	kit.WriteJSON(w, http.StatusOK, buildCartView(s.Cart, s.Catalog.Products()))
}

func inRange(n int) bool {
	return n >= -cart.MaxQuantity && n <= cart.MaxQuantity
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}
