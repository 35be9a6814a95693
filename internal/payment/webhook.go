package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventChargeRefunded    = "charge.refunded"
)

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
}

type CustomerDetails struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Address *Address `json:"address,omitempty"`
}

type ShippingDetails struct {
	Name    string   `json:"name,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// CheckoutCompleted is the part of a checkout.session.completed payload
// order creation needs.
type CheckoutCompleted struct {
	SessionID       string            `json:"id"`
	PaymentIntentID string            `json:"payment_intent"`
	CustomerEmail   string            `json:"customer_email"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *CustomerDetails  `json:"customer_details"`
	ShippingDetails *ShippingDetails  `json:"shipping_details"`
}

// CartID is the cart the session was opened for, "" when missing.
func (c CheckoutCompleted) CartID() string { return c.Metadata["cart_id"] }

// Email follows session e-mail, then customer-details e-mail.
func (c CheckoutCompleted) Email() string {
	if c.CustomerEmail != "" {
		return c.CustomerEmail
	}
	if c.CustomerDetails != nil {
		return c.CustomerDetails.Email
	}
	return ""
}

// ShippingJSON is {name, address} or nil.
func (c CheckoutCompleted) ShippingJSON() json.RawMessage {
	if c.ShippingDetails == nil {
		return nil
	}
	b, _ := json.Marshal(c.ShippingDetails)
	return b
}

// BillingJSON is {name, email, address} or nil.
func (c CheckoutCompleted) BillingJSON() json.RawMessage {
	if c.CustomerDetails == nil {
		return nil
	}
	b, _ := json.Marshal(c.CustomerDetails)
	return b
}

type PaymentSucceeded struct {
	PaymentIntentID string `json:"id"`
}

type ChargeRefunded struct {
	ChargeID        string `json:"id"`
	PaymentIntentID string `json:"payment_intent"`
}

// Event is a verified webhook event. At most one of the typed payloads is set.
type Event struct {
	ID   string
	Type string

	CheckoutCompleted *CheckoutCompleted
	PaymentSucceeded  *PaymentSucceeded
	ChargeRefunded    *ChargeRefunded
}

// Verifier checks the Stripe-Signature header against the endpoint secret.
type Verifier struct {
	Secret string
}

func (v Verifier) Configured() bool { return v.Secret != "" }

func (v Verifier) VerifyWebhook(payload []byte, signature string) (Event, error) {
	if !v.Configured() {
		return Event{}, ErrNotConfigured
	}
	if err := webhook.ValidatePayload(payload, signature, v.Secret); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	// signed by Stripe from here on; failures are about the body
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}
	switch out.Type {
	case EventCheckoutCompleted:
		var c CheckoutCompleted
		if err := json.Unmarshal(ev.Data.Raw, &c); err != nil {
			return Event{}, fmt.Errorf("%w: decode %s: %v", ErrMalformedEvent, out.Type, err)
		}
		out.CheckoutCompleted = &c
	case EventPaymentSucceeded:
		var p PaymentSucceeded
		if err := json.Unmarshal(ev.Data.Raw, &p); err != nil {
			return Event{}, fmt.Errorf("%w: decode %s: %v", ErrMalformedEvent, out.Type, err)
		}
		out.PaymentSucceeded = &p
	case EventChargeRefunded:
		var c ChargeRefunded
		if err := json.Unmarshal(ev.Data.Raw, &c); err != nil {
			return Event{}, fmt.Errorf("%w: decode %s: %v", ErrMalformedEvent, out.Type, err)
		}
		out.ChargeRefunded = &c
	}
	return out, nil
}
