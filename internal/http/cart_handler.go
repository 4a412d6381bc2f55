package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CartService is the subset of the cart service the handlers need.
type CartService interface {
	View(ctx context.Context, userID string) (*domain.CartView, error)
	Add(ctx context.Context, userID string, productID int64, quantity int) (*domain.LineItem, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) (*domain.LineItem, error)
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context, userID string) error
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
}

func NewCartHandler(cart CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

// GetCart returns the user's line items joined with their products.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.View(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, view.Items)
}

// GetSummary returns the cart view including totals.
func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.View(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeRequest(r, &req); err != nil {
		respondDecodeError(ctx, w, err)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	item, err := h.cart.Add(ctx, string(req.UserID), req.ProductID, quantity)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, item)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := decodeRequest(r, &req); err != nil {
		respondDecodeError(ctx, w, err)
		return
	}

	item, err := h.cart.UpdateQuantity(ctx, chi.URLParam(r, "id"), *req.Quantity)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Remove(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Clear(ctx, chi.URLParam(r, "userId")); err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		respondError(ctx, w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		return
	}
	respondError(ctx, w, http.StatusBadRequest, "invalid_request", err.Error())
}
