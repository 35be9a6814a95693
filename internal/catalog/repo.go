package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-jewelry-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("product not found")

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

type ListOptions struct {
	Active *bool
	Search string
	Limit  int
	Offset int
}

type Repo struct{ DB postgres.DB }

const productColumns = `id, name, slug, description, summary, images, active, created_at, updated_at`

const variantColumns = `id, product_id, name, price, stock, sku, images, attributes, created_at, updated_at`

func (r *Repo) ListProducts(ctx context.Context, opts ListOptions) ([]ProductWithVariants, error) {
	var (
		where []string
		args  []any
	)
	if opts.Active != nil {
		args = append(args, *opts.Active)
		where = append(where, fmt.Sprintf("active = $%d", len(args)))
	}
	if s := strings.TrimSpace(opts.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []ProductWithVariants
	ids := make([]string, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ProductWithVariants{Product: p, Variants: []Variant{}})
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []ProductWithVariants{}, nil
	}

	variants, err := r.variantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if vs, ok := variants[out[i].ID]; ok {
			out[i].Variants = vs
		}
	}
	return out, nil
}

// GetProductBySlug only returns active products that still have stock.
func (r *Repo) GetProductBySlug(ctx context.Context, slug string) (ProductWithVariants, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug=$1 AND active=true`, slug)
	p, err := r.loadOne(ctx, row)
	if err != nil {
		return ProductWithVariants{}, err
	}
	if IsSoldOut(p.Variants) {
		return ProductWithVariants{}, ErrNotFound
	}
	return p, nil
}

func (r *Repo) GetProductByID(ctx context.Context, id string) (ProductWithVariants, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	return r.loadOne(ctx, row)
}

func (r *Repo) GetVariant(ctx context.Context, id string) (Variant, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id=$1`, id)
	v, err := scanVariant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, ErrNotFound
	}
	return v, err
}

func (r *Repo) loadOne(ctx context.Context, row pgx.Row) (ProductWithVariants, error) {
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductWithVariants{}, ErrNotFound
		}
		return ProductWithVariants{}, err
	}
	variants, err := r.variantsFor(ctx, []string{p.ID})
	if err != nil {
		return ProductWithVariants{}, err
	}
	vs := variants[p.ID]
	if vs == nil {
		vs = []Variant{}
	}
	return ProductWithVariants{Product: p, Variants: vs}, nil
}

func (r *Repo) variantsFor(ctx context.Context, productIDs []string) (map[string][]Variant, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+variantColumns+` FROM product_variants
		WHERE product_id = ANY($1::uuid[]) ORDER BY price, name`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Variant, len(productIDs))
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Summary, &p.Images, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if p.Images == nil {
		p.Images = []string{}
	}
	return p, err
}

func scanVariant(row pgx.Row) (Variant, error) {
	var v Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.Stock, &v.SKU, &v.Images, &v.Attributes, &v.CreatedAt, &v.UpdatedAt)
	if v.Images == nil {
		v.Images = []string{}
	}
	return v, err
}
