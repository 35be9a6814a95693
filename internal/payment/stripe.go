package payment

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Stripe is the Gateway backed by Stripe Checkout.
type Stripe struct {
	sessions          sessionCreator
	shippingCountries []string
}

func NewStripe(secretKey string, shippingCountries []string) *Stripe {
	sc := client.New(secretKey, nil)
	return &Stripe{sessions: sc.CheckoutSessions, shippingCountries: shippingCountries}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	cs, err := s.sessions.New(s.params(ctx, req))
	if err != nil {
		return Session{}, err
	}
	return Session{ID: cs.ID, URL: cs.URL}, nil
}

func (s *Stripe) params(ctx context.Context, req CheckoutRequest) *stripe.CheckoutSessionParams {
	p := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(s.shippingCountries),
		},
		SuccessURL: stripe.String(SuccessURL(req.Origin)),
		CancelURL:  stripe.String(CancelURL(req.Origin)),
	}
	p.Context = ctx
	p.AddMetadata("cart_id", req.CartID)

	for _, it := range req.Items {
		p.LineItems = append(p.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(it.Name),
					Description: stripe.String(it.Description),
					Images:      stripe.StringSlice(it.Images),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}
	return p
}
