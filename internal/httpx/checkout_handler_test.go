package httpx

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.h.Payments = nil

	rec := env.do(http.MethodPost, "/api/stripe/checkout", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Stripe not configured"}`, rec.Body.String())
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/stripe/checkout", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Cart is empty"}`, rec.Body.String())
}

func TestCheckout_ZeroTotal(t *testing.T) {
	env := newTestEnv(t)
	env.carts.prices["free"] = 0
	rec := env.do(http.MethodPost, "/api/cart/items", `{"variant_id":"free"}`)
	id := rec.Result().Cookies()[0].Value

	rec = env.do(http.MethodPost, "/api/stripe/checkout", "", withCookie(id))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid cart total"}`, rec.Body.String())
}

func TestCheckout_CreatesSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/cart/items", `{"variant_id":"v1","quantity":2}`)
	id := rec.Result().Cookies()[0].Value

	rec = env.do(http.MethodPost, "/api/stripe/checkout", "", withCookie(id), withHeader("Origin", "https://shop.example"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.com/c/pay/cs_1"}`, rec.Body.String())

	got := env.gateway.got
	assert.Equal(t, id, got.CartID)
	assert.Equal(t, "https://shop.example", got.Origin)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(4500), got.Items[0].UnitAmount)
	assert.Equal(t, int64(2), got.Items[0].Quantity)
}

func TestCheckout_DefaultOrigin(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/cart/items", `{"variant_id":"v1"}`)
	id := rec.Result().Cookies()[0].Value

	rec = env.do(http.MethodPost, "/api/stripe/checkout", "", withCookie(id))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", env.gateway.got.Origin)
}
