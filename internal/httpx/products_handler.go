package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/catalog"
	"github.com/ariefcatur/go-jewelry-storefront/internal/money"
	"github.com/ariefcatur/go-jewelry-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
)

const productsCacheControl = "public, s-maxage=300, stale-while-revalidate=600"

type priceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type productView struct {
	catalog.ProductWithVariants
	PriceRange priceRange    `json:"price_range"`
	Display    money.Display `json:"display"`
	SoldOut    bool          `json:"sold_out"`
}

func newProductView(p catalog.ProductWithVariants) productView {
	if p.Variants == nil {
		p.Variants = []catalog.Variant{}
	}
	lo, hi := catalog.PriceRange(p.Variants)
	return productView{
		ProductWithVariants: p,
		PriceRange:          priceRange{Min: lo, Max: hi},
		Display:             money.DisplayRange(lo, hi),
		SoldOut:             catalog.IsSoldOut(p.Variants),
	}
}

func (h *Handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	active := true
	opts := catalog.ListOptions{
		Active: &active,
		Search: strings.TrimSpace(q.Get("search")),
		Limit:  queryInt(q.Get("limit"), catalog.DefaultLimit),
		Offset: queryInt(q.Get("offset"), 0),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyProductList, strings.ToLower(opts.Search), opts.Limit, opts.Offset)
	var cached json.RawMessage
	if hit, err := redisx.GetJSON(ctx, h.Redis, key, &cached); err == nil && hit {
		w.Header().Set("Cache-Control", productsCacheControl)
		writeRaw(w, http.StatusOK, cached)
		return
	}

	ps, err := h.Products.ListProducts(ctx, opts)
	if err != nil {
		log.Printf("[products] list: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, newProductView(p))
	}
	if err := redisx.SetJSON(ctx, h.Redis, key, out, redisx.TTLProductList); err != nil {
		log.Printf("[products] cache set: %v", err)
	}
	w.Header().Set("Cache-Control", productsCacheControl)
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.GetProductBySlug(ctx, chi.URLParam(r, "slug"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		log.Printf("[products] get %s: %v", chi.URLParam(r, "slug"), err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch product")
		return
	}
	writeJSON(w, http.StatusOK, newProductView(p))
}

func queryInt(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}
