package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/reviews"
	"github.com/google/uuid"
)

const reviewsCacheControl = "public, s-maxage=60, stale-while-revalidate=120"

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	// not a product id, so no reviews
	if _, err := uuid.Parse(productID); err != nil {
		w.Header().Set("Cache-Control", reviewsCacheControl)
		writeJSON(w, http.StatusOK, []reviews.Review{})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rs, err := h.Reviews.List(ctx, productID)
	if err != nil {
		log.Printf("[reviews] list %s: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch reviews")
		return
	}
	if rs == nil {
		rs = []reviews.Review{}
	}
	w.Header().Set("Cache-Control", reviewsCacheControl)
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var req reviews.NewReview
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "stars" {
			writeError(w, http.StatusBadRequest, reviews.ErrStarsRange.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rv, err := h.Reviews.Create(ctx, req)
	switch {
	case errors.Is(err, reviews.ErrMissingFields), errors.Is(err, reviews.ErrStarsRange),
		errors.Is(err, reviews.ErrUnknownProduct):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Printf("[reviews] create: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create review")
	default:
		writeJSON(w, http.StatusCreated, rv)
	}
}
