package cart

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
)

// Store is the persistence the Service needs; *Repo implements it.
type Store interface {
	Create(ctx context.Context) (Cart, error)
	Get(ctx context.Context, cartID string) (Cart, error)
	Items(ctx context.Context, cartID string) ([]Item, error)
	AddItem(ctx context.Context, cartID, variantID string, qty int) error
	SetQuantity(ctx context.Context, cartID, variantID string, qty int) error
	RemoveItem(ctx context.Context, cartID, variantID string) error
}

var _ Store = (*Repo)(nil)

// Service manages carts identified by the browser cookie. Every method takes
// the raw cookie value ("" when absent) and reports whether a new cart had to
// be created, in which case the caller must reset the cookie to the new id.
type Service struct {
	Store Store
}

// Resolve returns the cart id to operate on, creating a cart when the cookie
// is missing, malformed or points to a cart that no longer exists.
func (s *Service) Resolve(ctx context.Context, cookieID string) (string, bool, error) {
	if validID(cookieID) {
		_, err := s.Store.Get(ctx, cookieID)
		if err == nil {
			return cookieID, false, nil
		}
		if !errors.Is(err, ErrCartNotFound) {
			return "", false, err
		}
		log.Printf("[cart] cookie cart %s not found, creating a new one", cookieID)
	}
	c, err := s.Store.Create(ctx)
	if err != nil {
		return "", false, err
	}
	return c.ID, true, nil
}

// Get returns nil without a cookie. A stale cookie yields a fresh empty cart.
func (s *Service) Get(ctx context.Context, cookieID string) (*Cart, bool, error) {
	if cookieID == "" {
		return nil, false, nil
	}
	if validID(cookieID) {
		c, err := s.Store.Get(ctx, cookieID)
		if err == nil {
			items, err := s.Store.Items(ctx, c.ID)
			if err != nil {
				return nil, false, err
			}
			c.Items = items
			return &c, false, nil
		}
		if !errors.Is(err, ErrCartNotFound) {
			return nil, false, err
		}
	}
	c, err := s.Store.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	c.Items = []Item{}
	return &c, true, nil
}

// Add increments the line for variantID by qty.
func (s *Service) Add(ctx context.Context, cookieID, variantID string, qty int) (*Cart, bool, error) {
	if qty <= 0 {
		return nil, false, ErrInvalidQuantity
	}
	if !validID(variantID) {
		return nil, false, ErrUnknownVariant
	}
	return s.mutate(ctx, cookieID, func(cartID string) error {
		return s.Store.AddItem(ctx, cartID, variantID, qty)
	})
}

// SetQuantity sets the line to qty; qty <= 0 removes it.
func (s *Service) SetQuantity(ctx context.Context, cookieID, variantID string, qty int) (*Cart, bool, error) {
	if qty <= 0 {
		return s.Remove(ctx, cookieID, variantID)
	}
	if !validID(variantID) {
		return nil, false, ErrUnknownVariant
	}
	return s.mutate(ctx, cookieID, func(cartID string) error {
		return s.Store.SetQuantity(ctx, cartID, variantID, qty)
	})
}

func (s *Service) Remove(ctx context.Context, cookieID, variantID string) (*Cart, bool, error) {
	return s.mutate(ctx, cookieID, func(cartID string) error {
		if !validID(variantID) {
			return nil
		}
		return s.Store.RemoveItem(ctx, cartID, variantID)
	})
}

// mutate applies op to the resolved cart. When op fails on a cart created by
// this call, that cart is still returned so the caller can set the cookie and
// the next request reuses it.
func (s *Service) mutate(ctx context.Context, cookieID string, op func(cartID string) error) (*Cart, bool, error) {
	cartID, created, err := s.Resolve(ctx, cookieID)
	if err != nil {
		return nil, false, err
	}
	if err := op(cartID); err != nil {
		if created {
			return &Cart{ID: cartID, Items: []Item{}}, true, err
		}
		return nil, false, err
	}
	c, _, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, created, err
	}
	return c, created, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
