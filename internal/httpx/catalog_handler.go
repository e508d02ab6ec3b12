package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/merchkart/storefront/internal/orders"
)

type ProductStore interface {
	ListProducts(ctx context.Context, inStockOnly bool, search string) ([]orders.Product, error)
	GetProduct(ctx context.Context, id string) (*orders.Product, error)
}

type CatalogHandler struct {
	Products ProductStore
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inStock := r.URL.Query().Get("in_stock") == "true"
	search := r.URL.Query().Get("q")

	ps, err := h.Products.ListProducts(ctx, inStock, search)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "error fetching products")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "products": ps})
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Products.GetProduct(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrNotFound) {
		writeFail(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "error fetching product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "product": p})
}
