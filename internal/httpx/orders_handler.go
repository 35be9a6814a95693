package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/orders"
	"github.com/ariefcatur/go-jewelry-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
)

type orderStatusView struct {
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (h *Handlers) cacheStatus(ctx context.Context, orderID string, s orders.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	v := orderStatusView{OrderID: orderID, Status: s, UpdatedAt: time.Now().UTC()}
	if err := redisx.SetJSON(ctx, h.Redis, key, v, redisx.TTLStatusCache); err != nil {
		log.Printf("[orders] cache status %s: %v", orderID, err)
	}
}

func (h *Handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	var cached json.RawMessage
	if hit, err := redisx.GetJSON(ctx, h.Redis, key, &cached); err == nil && hit {
		writeRaw(w, http.StatusOK, cached)
		return
	}

	// 2) fallback DB
	status, err := h.Orders.GetOrderStatus(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		log.Printf("[orders] status %s: %v", orderID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch order")
		return
	}
	h.cacheStatus(ctx, orderID, status)
	writeJSON(w, http.StatusOK, orderStatusView{OrderID: orderID, Status: status, UpdatedAt: time.Now().UTC()})
}
