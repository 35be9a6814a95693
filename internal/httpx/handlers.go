package httpx

import (
	"context"
	"log"

	"github.com/ariefcatur/go-jewelry-storefront/internal/cart"
	"github.com/ariefcatur/go-jewelry-storefront/internal/catalog"
	kafkax "github.com/ariefcatur/go-jewelry-storefront/internal/kafka"
	"github.com/ariefcatur/go-jewelry-storefront/internal/orders"
	"github.com/ariefcatur/go-jewelry-storefront/internal/payment"
	"github.com/ariefcatur/go-jewelry-storefront/internal/reviews"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type ProductStore interface {
	ListProducts(ctx context.Context, opts catalog.ListOptions) ([]catalog.ProductWithVariants, error)
	GetProductBySlug(ctx context.Context, slug string) (catalog.ProductWithVariants, error)
}

type CartService interface {
	Get(ctx context.Context, cookieID string) (*cart.Cart, bool, error)
	Add(ctx context.Context, cookieID, variantID string, qty int) (*cart.Cart, bool, error)
	SetQuantity(ctx context.Context, cookieID, variantID string, qty int) (*cart.Cart, bool, error)
	Remove(ctx context.Context, cookieID, variantID string) (*cart.Cart, bool, error)
}

type OrderStore interface {
	CreateFromCart(ctx context.Context, ck orders.Checkout) (orders.Order, bool, error)
	MarkCompletedByPaymentIntent(ctx context.Context, paymentIntentID string) ([]string, error)
	MarkCancelledByPaymentIntent(ctx context.Context, paymentIntentID string) ([]string, error)
	MarkCompleted(ctx context.Context, orderID string) (bool, error)
	GetOrderStatus(ctx context.Context, orderID string) (orders.Status, error)
}

type ReviewStore interface {
	List(ctx context.Context, productID string) ([]reviews.Review, error)
	Create(ctx context.Context, n reviews.NewReview) (reviews.Review, error)
}

type WebhookVerifier interface {
	Configured() bool
	VerifyWebhook(payload []byte, signature string) (payment.Event, error)
}

var (
	_ ProductStore    = (*catalog.Repo)(nil)
	_ CartService     = (*cart.Service)(nil)
	_ OrderStore      = (*orders.Repo)(nil)
	_ ReviewStore     = (*reviews.Repo)(nil)
	_ WebhookVerifier = payment.Verifier{}
)

// Events holds one producer per order topic. Nil producers are skipped.
type Events struct {
	Created   kafkax.Publisher
	Completed kafkax.Publisher
	Cancelled kafkax.Publisher
}

type Handlers struct {
	Products ProductStore
	Carts    CartService
	Orders   OrderStore
	Reviews  ReviewStore
	Payments payment.Gateway // nil when no secret key is configured
	Webhooks WebhookVerifier
	Events   Events
	Redis    redis.Cmdable

	Service       string
	RootURL       string
	SecureCookies bool
}

func (h *Handlers) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{slug}", h.getProduct)

		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addCartItem)
		r.Put("/cart/items/{variantID}", h.setCartItem)
		r.Delete("/cart/items/{variantID}", h.removeCartItem)

		r.Post("/stripe/checkout", h.checkout)
		r.Get("/stripe/webhook", h.webhookPing)
		r.Post("/stripe/webhook", h.webhook)

		r.Get("/orders/{id}", h.getOrder)

		r.Get("/reviews", h.listReviews)
		r.Post("/reviews", h.createReview)
	})
}

// publish wraps payload in an envelope and queues it keyed by order id.
func (h *Handlers) publish(pub kafkax.Publisher, eventType, traceID, orderID string, payload any) {
	if pub == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, h.Service, traceID, orderID, payload)
	if err != nil {
		log.Printf("[events] build %s for order %s: %v", eventType, orderID, err)
		return
	}
	pub.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
