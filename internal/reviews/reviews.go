package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	MinStars = 0
	MaxStars = 5

	listCap = 1000
)

var (
	ErrMissingFields  = errors.New("missing required fields: product_id, author_name, content, stars")
	ErrStarsRange     = errors.New("stars must be a number between 0 and 5")
	ErrUnknownProduct = errors.New("unknown product")
)

type Review struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	AuthorName  string    `json:"author_name"`
	Content     string    `json:"content"`
	AuthorImage *string   `json:"author_image"`
	Stars       int       `json:"stars"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewReview is the client payload. Stars is a pointer so a missing value can
// be told apart from a zero-star review.
type NewReview struct {
	ProductID   string `json:"product_id"`
	AuthorName  string `json:"author_name"`
	Content     string `json:"content"`
	AuthorImage string `json:"author_image"`
	Stars       *int   `json:"stars"`
}

func (n NewReview) Validate() error {
	// presence only: whitespace counts as a value
	if n.ProductID == "" || n.AuthorName == "" || n.Content == "" || n.Stars == nil {
		return ErrMissingFields
	}
	if *n.Stars < MinStars || *n.Stars > MaxStars {
		return ErrStarsRange
	}
	return nil
}

type Repo struct{ DB postgres.DB }

// List returns the product's reviews, newest first.
func (r *Repo) List(ctx context.Context, productID string) ([]Review, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, author_name, content, author_image, stars, created_at, updated_at
		FROM reviews WHERE product_id=$1
		ORDER BY created_at DESC
		LIMIT $2`, productID, listCap)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.AuthorName, &rv.Content, &rv.AuthorImage, &rv.Stars, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, n NewReview) (Review, error) {
	if err := n.Validate(); err != nil {
		return Review{}, err
	}
	rv := Review{
		ID:         uuid.NewString(),
		ProductID:  n.ProductID,
		AuthorName: n.AuthorName,
		Content:    n.Content,
		Stars:      *n.Stars,
	}
	if n.AuthorImage != "" {
		img := n.AuthorImage
		rv.AuthorImage = &img
	}

	err := r.DB.QueryRow(ctx, `
		INSERT INTO reviews(id, product_id, author_name, content, author_image, stars)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		rv.ID, rv.ProductID, rv.AuthorName, rv.Content, rv.AuthorImage, rv.Stars,
	).Scan(&rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "22P02") {
			return Review{}, ErrUnknownProduct
		}
		return Review{}, fmt.Errorf("insert review: %w", err)
	}
	return rv, nil
}
