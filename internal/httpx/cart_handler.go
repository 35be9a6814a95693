package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/cart"
	"github.com/go-chi/chi/v5"
)

const (
	cartCookie       = "cartId"
	cartCookieMaxAge = 30 * 24 * 60 * 60
)

type addItemReq struct {
	VariantID string `json:"variant_id"`
	Quantity  *int   `json:"quantity"`
}

type setQuantityReq struct {
	Quantity *int `json:"quantity"`
}

func cartCookieValue(r *http.Request) string {
	c, err := r.Cookie(cartCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handlers) setCartCookie(w http.ResponseWriter, cartID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cartCookie,
		Value:    cartID,
		Path:     "/",
		MaxAge:   cartCookieMaxAge,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, created, err := h.Carts.Get(ctx, cartCookieValue(r))
	h.respondCart(w, c, created, err)
}

func (h *Handlers) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "variant_id is required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, created, err := h.Carts.Add(ctx, cartCookieValue(r), req.VariantID, qty)
	h.respondCart(w, c, created, err)
}

func (h *Handlers) setCartItem(w http.ResponseWriter, r *http.Request) {
	var req setQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, created, err := h.Carts.SetQuantity(ctx, cartCookieValue(r), chi.URLParam(r, "variantID"), *req.Quantity)
	h.respondCart(w, c, created, err)
}

func (h *Handlers) removeCartItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, created, err := h.Carts.Remove(ctx, cartCookieValue(r), chi.URLParam(r, "variantID"))
	h.respondCart(w, c, created, err)
}

// respondCart resets the cookie whenever the service had to open a new cart.
func (h *Handlers) respondCart(w http.ResponseWriter, c *cart.Cart, created bool, err error) {
	if created && c != nil {
		h.setCartCookie(w, c.ID)
	}
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrUnknownVariant):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Printf("[cart] %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update cart")
	default:
		writeJSON(w, http.StatusOK, c)
	}
}
