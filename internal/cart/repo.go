package cart

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
	ErrCartNotFound    = errors.New("cart not found")
	ErrUnknownVariant  = errors.New("unknown variant")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

type Repo struct{ DB postgres.DB }

func (r *Repo) Create(ctx context.Context) (Cart, error) {
	c := Cart{ID: uuid.NewString(), Items: []Item{}}
	err := r.DB.QueryRow(ctx, `INSERT INTO carts(id) VALUES ($1) RETURNING created_at, updated_at`, c.ID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cart{}, fmt.Errorf("insert cart: %w", err)
	}
	return c, nil
}

func (r *Repo) Get(ctx context.Context, cartID string) (Cart, error) {
	var c Cart
	err := r.DB.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE id=$1`, cartID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, err
	}
	return c, nil
}

// Items returns the cart lines joined with their variant and product.
func (r *Repo) Items(ctx context.Context, cartID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.variant_id, ci.quantity, ci.created_at, ci.updated_at,
		       v.name, v.price, v.stock, v.images,
		       p.id, p.name, p.slug, p.images
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id=$1
		ORDER BY ci.created_at`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt,
			&it.Variant.Name, &it.Variant.Price, &it.Variant.Stock, &it.Variant.Images,
			&it.Variant.Product.ID, &it.Variant.Product.Name, &it.Variant.Product.Slug, &it.Variant.Product.Images); err != nil {
			return nil, err
		}
		it.Variant.ID = it.VariantID
		out = append(out, it)
	}
	return out, rows.Err()
}

// AddItem adds qty to the line for variantID, creating it when absent.
func (r *Repo) AddItem(ctx context.Context, cartID, variantID string, qty int) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(id, cart_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`,
		uuid.NewString(), cartID, variantID, qty)
	return mapWriteErr(err)
}

// SetQuantity sets the line for variantID to exactly qty.
func (r *Repo) SetQuantity(ctx context.Context, cartID, variantID string, qty int) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(id, cart_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`,
		uuid.NewString(), cartID, variantID, qty)
	return mapWriteErr(err)
}

func (r *Repo) RemoveItem(ctx context.Context, cartID, variantID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND variant_id=$2`, cartID, variantID)
	return err
}

func (r *Repo) Clear(ctx context.Context, cartID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return err
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503", "22P02": // foreign_key_violation, invalid_text_representation
			return ErrUnknownVariant
		case "23514": // check_violation
			return ErrInvalidQuantity
		}
	}
	return err
}
