package httpx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-jewelry-storefront/internal/cart"
	"github.com/ariefcatur/go-jewelry-storefront/internal/catalog"
	"github.com/ariefcatur/go-jewelry-storefront/internal/orders"
	"github.com/ariefcatur/go-jewelry-storefront/internal/payment"
	"github.com/ariefcatur/go-jewelry-storefront/internal/redisx"
	"github.com/ariefcatur/go-jewelry-storefront/internal/reviews"
	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
)

const webhookSecret = "whsec_test"

type fakeProducts struct {
	items     []catalog.ProductWithVariants
	listCalls int
	lastOpts  catalog.ListOptions
}

func (f *fakeProducts) ListProducts(_ context.Context, opts catalog.ListOptions) ([]catalog.ProductWithVariants, error) {
	f.listCalls++
	f.lastOpts = opts
	return f.items, nil
}

func (f *fakeProducts) GetProductBySlug(_ context.Context, slug string) (catalog.ProductWithVariants, error) {
	for _, p := range f.items {
		if p.Slug == slug {
			return p, nil
		}
	}
	return catalog.ProductWithVariants{}, catalog.ErrNotFound
}

type fakeCarts struct {
	mu     sync.Mutex
	seq    int
	carts  map[string]*cart.Cart
	prices map[string]int64
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[string]*cart.Cart{}, prices: map[string]int64{"v1": 4500, "v2": 8000}}
}

func (f *fakeCarts) resolve(cookieID string) (*cart.Cart, bool) {
	if c, ok := f.carts[cookieID]; ok {
		return c, false
	}
	f.seq++
	c := &cart.Cart{ID: fmt.Sprintf("cart-%d", f.seq), Items: []cart.Item{}}
	f.carts[c.ID] = c
	return c, true
}

func (f *fakeCarts) Get(_ context.Context, cookieID string) (*cart.Cart, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cookieID == "" {
		return nil, false, nil
	}
	c, created := f.resolve(cookieID)
	return c, created, nil
}

func (f *fakeCarts) Add(_ context.Context, cookieID, variantID string, qty int) (*cart.Cart, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if qty <= 0 {
		return nil, false, cart.ErrInvalidQuantity
	}
	c, created := f.resolve(cookieID)
	price, ok := f.prices[variantID]
	if !ok {
		if created {
			return &cart.Cart{ID: c.ID, Items: []cart.Item{}}, true, cart.ErrUnknownVariant
		}
		return nil, false, cart.ErrUnknownVariant
	}
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items[i].Quantity += qty
			return c, created, nil
		}
	}
	c.Items = append(c.Items, cart.Item{CartID: c.ID, VariantID: variantID, Quantity: qty,
		Variant: cart.Variant{ID: variantID, Name: "Or 52", Price: price, Product: cart.ProductSummary{Name: "Bague Lune"}}})
	return c, created, nil
}

func (f *fakeCarts) SetQuantity(ctx context.Context, cookieID, variantID string, qty int) (*cart.Cart, bool, error) {
	if qty <= 0 {
		return f.Remove(ctx, cookieID, variantID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, created := f.resolve(cookieID)
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items[i].Quantity = qty
		}
	}
	return c, created, nil
}

func (f *fakeCarts) Remove(_ context.Context, cookieID, variantID string) (*cart.Cart, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, created := f.resolve(cookieID)
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.VariantID != variantID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	return c, created, nil
}

type fakeOrders struct {
	mu          sync.Mutex
	createCalls int
	createErr   error
	checkouts   []orders.Checkout
	bySession   map[string]orders.Order
	byIntent    map[string][]string
	status      map[string]orders.Status
	statusCalls int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		bySession: map[string]orders.Order{},
		byIntent:  map[string][]string{},
		status:    map[string]orders.Status{},
	}
}

func (f *fakeOrders) CreateFromCart(_ context.Context, ck orders.Checkout) (orders.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.checkouts = append(f.checkouts, ck)
	if f.createErr != nil {
		return orders.Order{}, false, f.createErr
	}
	if o, ok := f.bySession[ck.SessionID]; ok {
		return o, true, nil
	}
	cartID, pi := ck.CartID, ck.PaymentIntentID
	o := orders.Order{
		ID: fmt.Sprintf("order-%d", len(f.bySession)+1), CartID: &cartID, StripePaymentIntentID: &pi,
		Email: orders.ResolveEmail(ck.Email), Status: orders.StatusProcessing, Total: 9000,
		Items: []orders.OrderItem{{VariantID: "v1", Quantity: 2, Price: 4500}},
	}
	f.bySession[ck.SessionID] = o
	f.byIntent[pi] = append(f.byIntent[pi], o.ID)
	f.status[o.ID] = o.Status
	return o, false, nil
}

func (f *fakeOrders) transition(pi string, to orders.Status) []string {
	var out []string
	for _, id := range f.byIntent[pi] {
		if orders.CanTransition(f.status[id], to) {
			f.status[id] = to
			out = append(out, id)
		}
	}
	return out
}

func (f *fakeOrders) MarkCompletedByPaymentIntent(_ context.Context, pi string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(pi, orders.StatusCompleted), nil
}

func (f *fakeOrders) MarkCancelledByPaymentIntent(_ context.Context, pi string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(pi, orders.StatusCancelled), nil
}

func (f *fakeOrders) MarkCompleted(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !orders.CanTransition(f.status[id], orders.StatusCompleted) {
		return false, nil
	}
	f.status[id] = orders.StatusCompleted
	return true, nil
}

func (f *fakeOrders) GetOrderStatus(_ context.Context, id string) (orders.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	s, ok := f.status[id]
	if !ok {
		return "", orders.ErrNotFound
	}
	return s, nil
}

type fakeReviews struct {
	created []reviews.NewReview
}

func (f *fakeReviews) List(_ context.Context, productID string) ([]reviews.Review, error) {
	return []reviews.Review{{ID: "r1", ProductID: productID, AuthorName: "Lola", Content: "Superbe", Stars: 5}}, nil
}

func (f *fakeReviews) Create(_ context.Context, n reviews.NewReview) (reviews.Review, error) {
	if err := n.Validate(); err != nil {
		return reviews.Review{}, err
	}
	f.created = append(f.created, n)
	return reviews.Review{ID: "r2", ProductID: n.ProductID, AuthorName: n.AuthorName, Content: n.Content, Stars: *n.Stars}, nil
}

type fakeGateway struct {
	got payment.CheckoutRequest
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.Session, error) {
	f.got = req
	return payment.Session{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (p *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type testEnv struct {
	router    *chi.Mux
	h         *Handlers
	mr        *miniredis.Miniredis
	products  *fakeProducts
	carts     *fakeCarts
	orders    *fakeOrders
	reviews   *fakeReviews
	gateway   *fakeGateway
	created   *fakePublisher
	completed *fakePublisher
	cancelled *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	env := &testEnv{
		mr:        mr,
		products:  &fakeProducts{},
		carts:     newFakeCarts(),
		orders:    newFakeOrders(),
		reviews:   &fakeReviews{},
		gateway:   &fakeGateway{},
		created:   &fakePublisher{},
		completed: &fakePublisher{},
		cancelled: &fakePublisher{},
	}
	env.h = &Handlers{
		Products: env.products,
		Carts:    env.carts,
		Orders:   env.orders,
		Reviews:  env.reviews,
		Payments: env.gateway,
		Webhooks: payment.Verifier{Secret: webhookSecret},
		Events:   Events{Created: env.created, Completed: env.completed, Cancelled: env.cancelled},
		Redis:    redisx.New(mr.Addr()),
		Service:  "storefront-api",
		RootURL:  "https://shop.example",
	}
	env.router = NewRouter()
	env.h.Register(env.router)
	return env
}

func (e *testEnv) do(method, path, body string, mod ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mod {
		m(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func withCookie(id string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: cartCookie, Value: id}) }
}

func withHeader(k, v string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func stripeSignature(payload, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
