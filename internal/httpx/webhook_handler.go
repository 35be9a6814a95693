package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/orders"
	"github.com/ariefcatur/go-jewelry-storefront/internal/payment"
	"github.com/ariefcatur/go-jewelry-storefront/internal/redisx"
	"github.com/go-chi/chi/v5/middleware"
)

// Stripe never sends more than this.
const maxWebhookBody = 65536

func (h *Handlers) webhookPing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Webhook endpoint is accessible",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"url":       h.RootURL,
	})
}

func (h *Handlers) webhook(w http.ResponseWriter, r *http.Request) {
	if h.Webhooks == nil || !h.Webhooks.Configured() {
		log.Printf("[webhook] signing secret not configured")
		writeError(w, http.StatusInternalServerError, "Stripe webhook not configured")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		writeError(w, http.StatusBadRequest, "Missing signature")
		return
	}
	ev, err := h.Webhooks.VerifyWebhook(body, sig)
	if errors.Is(err, payment.ErrMalformedEvent) {
		log.Printf("[webhook] undecodable event: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err != nil {
		log.Printf("[webhook] verification failed: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}
	log.Printf("[webhook] verified %s %s", ev.Type, ev.ID)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	trace := middleware.GetReqID(r.Context())

	switch {
	case ev.CheckoutCompleted != nil:
		if code, msg := h.onCheckoutCompleted(ctx, ev.ID, trace, *ev.CheckoutCompleted); code != http.StatusOK {
			writeError(w, code, msg)
			return
		}
	case ev.PaymentSucceeded != nil:
		h.onPaymentSucceeded(ctx, trace, ev.PaymentSucceeded.PaymentIntentID)
	case ev.ChargeRefunded != nil:
		h.onChargeRefunded(ctx, trace, ev.ChargeRefunded.PaymentIntentID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// onCheckoutCompleted turns the paid cart into an order. The event id is
// claimed in Redis first; the claim is dropped again on failure so Stripe's
// retry gets a fresh attempt.
func (h *Handlers) onCheckoutCompleted(ctx context.Context, eventID, trace string, s payment.CheckoutCompleted) (int, string) {
	cartID := s.CartID()
	if cartID == "" {
		log.Printf("[webhook] session %s has no cart_id metadata", s.SessionID)
		return http.StatusBadRequest, "Missing cart_id"
	}

	dedupKey := fmt.Sprintf(redisx.KeyWebhookEvent, eventID)
	first, err := redisx.Claim(ctx, h.Redis, dedupKey, redisx.TTLDedup)
	if err != nil {
		// the unique session id on orders still protects us
		log.Printf("[webhook] dedup claim %s: %v", eventID, err)
		first = true
	}
	if !first {
		log.Printf("[webhook] duplicate delivery %s ignored", eventID)
		return http.StatusOK, ""
	}
	release := func() { _ = h.Redis.Del(context.WithoutCancel(ctx), dedupKey).Err() }

	o, existed, err := h.Orders.CreateFromCart(ctx, orders.Checkout{
		SessionID:       s.SessionID,
		PaymentIntentID: s.PaymentIntentID,
		CartID:          cartID,
		Email:           s.Email(),
		ShippingAddress: s.ShippingJSON(),
		BillingAddress:  s.BillingJSON(),
	})
	switch {
	case errors.Is(err, orders.ErrCartNotFound):
		release()
		log.Printf("[webhook] cart %s not found", cartID)
		return http.StatusNotFound, "Cart not found"
	case errors.Is(err, orders.ErrCartEmpty):
		log.Printf("[webhook] cart %s is empty, no order created for session %s", cartID, s.SessionID)
		return http.StatusOK, ""
	case err != nil:
		release()
		log.Printf("[webhook] create order for cart %s: %v", cartID, err)
		return http.StatusInternalServerError, "Failed to create order"
	}
	if existed {
		log.Printf("[webhook] order %s already exists for session %s", o.ID, s.SessionID)
		return http.StatusOK, ""
	}
	log.Printf("[webhook] order %s created from cart %s (%d items, total %d)", o.ID, cartID, len(o.Items), o.Total)

	h.publish(h.Events.Created, orders.EventOrderCreated, trace, o.ID, orders.CreatedPayload(o))
	h.cacheStatus(ctx, o.ID, o.Status)

	// payment_intent.succeeded may have been delivered before this event
	if s.PaymentIntentID != "" {
		seen, err := redisx.Take(ctx, h.Redis, fmt.Sprintf(redisx.KeyPaymentSucceeded, s.PaymentIntentID))
		if err != nil {
			log.Printf("[webhook] payment marker %s: %v", s.PaymentIntentID, err)
		}
		if seen {
			h.complete(ctx, trace, o.ID, s.PaymentIntentID)
		}
	}
	return http.StatusOK, ""
}

func (h *Handlers) complete(ctx context.Context, trace, orderID, paymentIntentID string) {
	ok, err := h.Orders.MarkCompleted(ctx, orderID)
	if err != nil {
		log.Printf("[webhook] complete order %s: %v", orderID, err)
		return
	}
	if !ok {
		return
	}
	h.publish(h.Events.Completed, orders.EventOrderCompleted, trace, orderID,
		orders.OrderCompletedPayload{OrderID: orderID, PaymentIntentID: paymentIntentID})
	h.cacheStatus(ctx, orderID, orders.StatusCompleted)
}

// onPaymentSucceeded completes the orders of a payment intent. When none is
// open yet it leaves a marker for onCheckoutCompleted and then looks again, so
// an order committed in between is completed by one side or the other.
func (h *Handlers) onPaymentSucceeded(ctx context.Context, trace, paymentIntentID string) {
	ids, err := h.Orders.MarkCompletedByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		log.Printf("[webhook] complete orders for %s: %v", paymentIntentID, err)
		return
	}
	if len(ids) == 0 {
		key := fmt.Sprintf(redisx.KeyPaymentSucceeded, paymentIntentID)
		if err := h.Redis.Set(ctx, key, "1", redisx.TTLPaymentSucceeded).Err(); err != nil {
			log.Printf("[webhook] remember payment %s: %v", paymentIntentID, err)
		}
		ids, err = h.Orders.MarkCompletedByPaymentIntent(ctx, paymentIntentID)
		if err != nil {
			log.Printf("[webhook] complete orders for %s: %v", paymentIntentID, err)
			return
		}
		if len(ids) == 0 {
			log.Printf("[webhook] no open order for %s yet", paymentIntentID)
			return
		}
		if _, err := redisx.Take(ctx, h.Redis, key); err != nil {
			log.Printf("[webhook] payment marker %s: %v", paymentIntentID, err)
		}
	}
	for _, id := range ids {
		log.Printf("[webhook] order %s completed", id)
		h.publish(h.Events.Completed, orders.EventOrderCompleted, trace, id,
			orders.OrderCompletedPayload{OrderID: id, PaymentIntentID: paymentIntentID})
		h.cacheStatus(ctx, id, orders.StatusCompleted)
	}
}

func (h *Handlers) onChargeRefunded(ctx context.Context, trace, paymentIntentID string) {
	if paymentIntentID == "" {
		return
	}
	ids, err := h.Orders.MarkCancelledByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		log.Printf("[webhook] cancel orders for %s: %v", paymentIntentID, err)
		return
	}
	for _, id := range ids {
		log.Printf("[webhook] order %s cancelled (refund)", id)
		h.publish(h.Events.Cancelled, orders.EventOrderCancelled, trace, id,
			orders.OrderCancelledPayload{OrderID: id, PaymentIntentID: paymentIntentID, Reason: "REFUNDED"})
		h.cacheStatus(ctx, id, orders.StatusCancelled)
	}
}
