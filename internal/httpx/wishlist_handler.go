package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/merchkart/storefront/internal/auth"
	"github.com/merchkart/storefront/internal/orders"
)

type WishlistStore interface {
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]orders.Product, error)
}

type WishlistHandler struct {
	Wishlist WishlistStore
}

func (h *WishlistHandler) Register(r chi.Router) {
	r.Get("/wishlist", h.list)
	r.Post("/wishlist/{productId}", h.add)
	r.Delete("/wishlist/{productId}", h.remove)
}

func (h *WishlistHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ps, err := h.Wishlist.List(ctx, auth.UserID(r.Context()))
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "error fetching wishlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "products": ps})
}

func (h *WishlistHandler) add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Wishlist.Add(ctx, auth.UserID(r.Context()), chi.URLParam(r, "productId")); err != nil {
		writeFail(w, http.StatusInternalServerError, "error updating wishlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Added to wishlist"})
}

func (h *WishlistHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Wishlist.Remove(ctx, auth.UserID(r.Context()), chi.URLParam(r, "productId")); err != nil {
		writeFail(w, http.StatusInternalServerError, "error updating wishlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Removed from wishlist"})
}
