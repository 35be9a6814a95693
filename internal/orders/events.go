package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCompleted = "OrderCompleted"
	EventOrderCancelled = "OrderCancelled"
	EventStockReserved  = "StockReserved"
	EventStockRejected  = "StockRejected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a v1 envelope correlated to orderID.
func NewEnvelope(eventType, producer, traceID, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

// ---- payloads ----

type ItemQty struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
	Price     int64  `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID         string      `json:"order_id"`
	CartID          string      `json:"cart_id"`
	CheckoutSession string      `json:"checkout_session"`
	Email           string      `json:"email"`
	Items           []ItemPrice `json:"items"`
	Total           int64       `json:"total"`
}

type OrderCompletedPayload struct {
	OrderID         string `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type OrderCancelledPayload struct {
	OrderID         string `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Reason          string `json:"reason"` // REFUNDED
}

type StockReservedPayload struct {
	OrderID string    `json:"order_id"`
	Items   []ItemQty `json:"items"`
}

type StockRejectedDetail struct {
	VariantID string `json:"variant_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type StockRejectedPayload struct {
	OrderID string                `json:"order_id"`
	Reason  string                `json:"reason"` // OUT_OF_STOCK
	Details []StockRejectedDetail `json:"details,omitempty"`
}

// CreatedPayload builds the OrderCreated payload from a materialized order.
func CreatedPayload(o Order) OrderCreatedPayload {
	p := OrderCreatedPayload{OrderID: o.ID, Email: o.Email, Total: o.Total, Items: make([]ItemPrice, 0, len(o.Items))}
	if o.CartID != nil {
		p.CartID = *o.CartID
	}
	if o.StripeCheckoutSessionID != nil {
		p.CheckoutSession = *o.StripeCheckoutSessionID
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, ItemPrice{VariantID: it.VariantID, Qty: it.Quantity, Price: it.Price})
	}
	return p
}
