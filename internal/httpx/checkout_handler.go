package httpx

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/payment"
)

const defaultOrigin = "http://localhost:3000"

func (h *Handlers) checkout(w http.ResponseWriter, r *http.Request) {
	if h.Payments == nil {
		log.Printf("[checkout] payment gateway not configured")
		writeError(w, http.StatusInternalServerError, "Stripe not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	c, created, err := h.Carts.Get(ctx, cartCookieValue(r))
	if err != nil {
		log.Printf("[checkout] load cart: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}
	if created {
		h.setCartCookie(w, c.ID)
	}
	if c == nil || len(c.Items) == 0 {
		writeError(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	total := c.Total()
	if total <= 0 {
		log.Printf("[checkout] cart %s has invalid total %d", c.ID, total)
		writeError(w, http.StatusBadRequest, "Invalid cart total")
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = defaultOrigin
	}
	sess, err := h.Payments.CreateCheckoutSession(ctx, payment.RequestFromCart(c, origin))
	if err != nil {
		log.Printf("[checkout] create session for cart %s: %v", c.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}
	log.Printf("[checkout] session %s created for cart %s (%d items, total %d)", sess.ID, c.ID, len(c.Items), total)
	writeJSON(w, http.StatusOK, map[string]string{"url": sess.URL})
}
