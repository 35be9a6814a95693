package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-jewelry-storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrCartNotFound = errors.New("cart not found")
	ErrCartEmpty    = errors.New("cart is empty")
)

type Repo struct{ DB postgres.DB }

const orderColumns = `id, user_id, cart_id, email, total, status, stripe_payment_intent_id,
	stripe_checkout_session_id, shipping_address, billing_address, created_at, updated_at`

// CreateFromCart turns the cart referenced by ck into an order inside one
// transaction: snapshot the lines with their current prices, insert the order
// and its items, then empty the cart.
//
// Idempotent per checkout session: deliveries for the same session are
// serialized by an advisory lock and a second one returns the first order
// with existed=true.
func (r *Repo) CreateFromCart(ctx context.Context, ck Checkout) (o Order, existed bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ck.SessionID); err != nil {
		return Order{}, false, fmt.Errorf("lock checkout session: %w", err)
	}

	o, err = scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE stripe_checkout_session_id=$1`, ck.SessionID))
	if err == nil {
		return o, true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, err
	}

	// lock the cart so a concurrent edit can't slip between snapshot and clear
	var cartID string
	if err = tx.QueryRow(ctx, `SELECT id FROM carts WHERE id=$1 FOR UPDATE`, ck.CartID).Scan(&cartID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return Order{}, false, ErrCartNotFound
		}
		return Order{}, false, err
	}

	rows, err := tx.Query(ctx, `
		SELECT ci.variant_id, ci.quantity, v.price, v.name, p.name
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id=$1
		ORDER BY ci.created_at`, cartID)
	if err != nil {
		return Order{}, false, fmt.Errorf("snapshot cart: %w", err)
	}
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.VariantID, &it.Quantity, &it.Price, &it.VariantName, &it.ProductName); err != nil {
			rows.Close()
			return Order{}, false, err
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, false, err
	}
	if len(items) == 0 {
		return Order{}, false, ErrCartEmpty
	}

	o = Order{
		ID:                      uuid.NewString(),
		CartID:                  &cartID,
		Email:                   ResolveEmail(ck.Email),
		Status:                  StatusProcessing,
		StripeCheckoutSessionID: &ck.SessionID,
		ShippingAddress:         ck.ShippingAddress,
		BillingAddress:          ck.BillingAddress,
	}
	if ck.PaymentIntentID != "" {
		pi := ck.PaymentIntentID
		o.StripePaymentIntentID = &pi
	}
	for _, it := range items {
		o.Total += it.Price * int64(it.Quantity)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, cart_id, email, total, status, stripe_payment_intent_id,
		                   stripe_checkout_session_id, shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		o.ID, cartID, o.Email, o.Total, string(o.Status), o.StripePaymentIntentID,
		ck.SessionID, o.ShippingAddress, o.BillingAddress,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, false, fmt.Errorf("insert order: %w", err)
	}

	for i := range items {
		it := &items[i]
		it.ID = uuid.NewString()
		it.OrderID = o.ID
		if _, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, variant_id, quantity, price, product_name, variant_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, o.ID, it.VariantID, it.Quantity, it.Price, it.ProductName, it.VariantName,
		); err != nil {
			return Order{}, false, fmt.Errorf("insert order item: %w", err)
		}
		it.CreatedAt = o.CreatedAt
	}
	o.Items = items

	if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return Order{}, false, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return o, false, nil
}

// MarkCompletedByPaymentIntent completes every open order paid by the given
// payment intent and returns the ids that changed.
func (r *Repo) MarkCompletedByPaymentIntent(ctx context.Context, paymentIntentID string) ([]string, error) {
	return r.transitionByPaymentIntent(ctx, paymentIntentID, StatusCompleted)
}

// MarkCancelledByPaymentIntent is used when the payment is refunded.
func (r *Repo) MarkCancelledByPaymentIntent(ctx context.Context, paymentIntentID string) ([]string, error) {
	return r.transitionByPaymentIntent(ctx, paymentIntentID, StatusCancelled)
}

func (r *Repo) transitionByPaymentIntent(ctx context.Context, paymentIntentID string, to Status) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE stripe_payment_intent_id=$1 AND status = ANY($3)
		RETURNING id`, paymentIntentID, string(to), sourcesOf(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkCompleted completes one order; false when it was not in a state that
// allows completion.
func (r *Repo) MarkCompleted(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 AND status = ANY($3)`,
		orderID, string(StatusCompleted), sourcesOf(StatusCompleted))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, variant_id, quantity, price, product_name, variant_name, created_at
		FROM order_items WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	o.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Quantity, &it.Price, &it.ProductName, &it.VariantName, &it.CreatedAt); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return Status(s), nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.Email, &o.Total, &status, &o.StripePaymentIntentID,
		&o.StripeCheckoutSessionID, &o.ShippingAddress, &o.BillingAddress, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
