package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-jewelry-storefront/internal/cart"
)

const Currency = "eur"

var (
	ErrNotConfigured    = errors.New("payment gateway not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// LineItem is one row of the hosted checkout page. Amounts are in cents.
type LineItem struct {
	Name        string
	Description string
	Images      []string
	UnitAmount  int64
	Quantity    int64
}

type CheckoutRequest struct {
	CartID string
	Origin string
	Items  []LineItem
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Gateway creates hosted checkout sessions.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
}

// RequestFromCart maps every cart line to a line item. Variant pictures win
// over the product ones.
func RequestFromCart(c *cart.Cart, origin string) CheckoutRequest {
	req := CheckoutRequest{CartID: c.ID, Origin: origin}
	for _, it := range c.Items {
		req.Items = append(req.Items, LineItem{
			Name:        it.Variant.Product.Name,
			Description: it.Variant.Name,
			Images:      it.Variant.DisplayImages(),
			UnitAmount:  it.Variant.Price,
			Quantity:    int64(it.Quantity),
		})
	}
	return req
}

func SuccessURL(origin string) string {
	return fmt.Sprintf("%s/checkout/success?session_id={CHECKOUT_SESSION_ID}", origin)
}

func CancelURL(origin string) string {
	return origin + "/cart"
}
