package orders

import (
	"encoding/json"
	"time"
)

// GuestEmail is stored when the payment session carries no e-mail at all.
const GuestEmail = "guest@example.com"

type Order struct {
	ID                      string          `json:"id"`
	UserID                  *string         `json:"user_id"`
	CartID                  *string         `json:"cart_id"`
	Email                   string          `json:"email"`
	Total                   int64           `json:"total"`
	Status                  Status          `json:"status"`
	StripePaymentIntentID   *string         `json:"stripe_payment_intent_id"`
	StripeCheckoutSessionID *string         `json:"stripe_checkout_session_id"`
	ShippingAddress         json.RawMessage `json:"shipping_address"`
	BillingAddress          json.RawMessage `json:"billing_address"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
	Items                   []OrderItem     `json:"items,omitempty"`
}

// OrderItem is a snapshot of a cart line at checkout time; price and names
// do not follow later catalog edits.
type OrderItem struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	VariantID   string    `json:"variant_id"`
	Quantity    int       `json:"quantity"`
	Price       int64     `json:"price"`
	ProductName string    `json:"product_name"`
	VariantName string    `json:"variant_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Checkout is what a completed payment session tells us.
type Checkout struct {
	SessionID       string
	PaymentIntentID string
	CartID          string
	Email           string
	ShippingAddress json.RawMessage
	BillingAddress  json.RawMessage
}

// ResolveEmail picks the first non-empty address, else GuestEmail.
func ResolveEmail(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return GuestEmail
}

type Reservation struct {
	OrderID   string
	VariantID string
	Qty       int
	Status    string // RESERVED | RELEASED
	CreatedAt time.Time
}
