package orders

import (
	"context"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-jewelry-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// ReservationRepo holds stock for orders in stock_reservations, one row per
// (order, variant).
type ReservationRepo struct{ DB postgres.DB }

// AlreadyReserved is true when the order holds a live reservation for each of
// its itemCount lines.
func (r *ReservationRepo) AlreadyReserved(ctx context.Context, orderID string, itemCount int) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM stock_reservations
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return itemCount > 0 && n == itemCount, nil
}

// ReserveAll takes stock for every line or for none. When a line is short the
// transaction is rolled back and every short line is reported.
func (r *ReservationRepo) ReserveAll(ctx context.Context, orderID string, items []ItemQty) (bool, []StockRejectedDetail, error) {
	// same lock order for every order, so two checkouts sharing variants never deadlock
	lines := append([]ItemQty(nil), items...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].VariantID < lines[j].VariantID })

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var short []StockRejectedDetail
	for _, l := range lines {
		var available int
		err := tx.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id=$1 FOR UPDATE`, l.VariantID).Scan(&available)
		if err != nil {
			return false, nil, fmt.Errorf("lock variant %s: %w", l.VariantID, err)
		}
		if available < l.Qty {
			short = append(short, StockRejectedDetail{VariantID: l.VariantID, Required: l.Qty, Available: available})
			continue
		}
		if len(short) > 0 {
			continue
		}
		if err := reserveLine(ctx, tx, orderID, l); err != nil {
			return false, nil, err
		}
	}
	if len(short) > 0 {
		return false, short, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

func reserveLine(ctx context.Context, tx pgx.Tx, orderID string, l ItemQty) error {
	if _, err := tx.Exec(ctx, `UPDATE product_variants SET stock = stock - $2, updated_at = now() WHERE id=$1`, l.VariantID, l.Qty); err != nil {
		return fmt.Errorf("take stock %s: %w", l.VariantID, err)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_reservations(order_id, variant_id, quantity, status)
		VALUES ($1, $2, $3, 'RESERVED')
		ON CONFLICT (order_id, variant_id) DO NOTHING`, orderID, l.VariantID, l.Qty)
	if err != nil {
		return fmt.Errorf("record reservation %s: %w", l.VariantID, err)
	}
	return nil
}

// ReleaseAll marks the order's live reservations released and puts their
// quantities back on the variants. Released rows stay for history.
func (r *ReservationRepo) ReleaseAll(ctx context.Context, orderID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE stock_reservations SET status='RELEASED'
		WHERE order_id=$1 AND status='RESERVED'
		RETURNING variant_id, quantity`, orderID)
	if err != nil {
		return err
	}
	released, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ItemQty, error) {
		var l ItemQty
		err := row.Scan(&l.VariantID, &l.Qty)
		return l, err
	})
	if err != nil {
		return fmt.Errorf("release order %s: %w", orderID, err)
	}

	for _, l := range released {
		if _, err := tx.Exec(ctx, `UPDATE product_variants SET stock = stock + $2, updated_at = now() WHERE id=$1`, l.VariantID, l.Qty); err != nil {
			return fmt.Errorf("return stock %s: %w", l.VariantID, err)
		}
	}
	return tx.Commit(ctx)
}
