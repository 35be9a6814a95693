package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	kafkax "github.com/ariefcatur/go-jewelry-storefront/internal/kafka"
	"github.com/ariefcatur/go-jewelry-storefront/internal/orders"
	"github.com/ariefcatur/go-jewelry-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

const RejectOutOfStock = "OUT_OF_STOCK"

// Reserver is the stock side of the order lifecycle; *orders.ReservationRepo implements it.
type Reserver interface {
	AlreadyReserved(ctx context.Context, orderID string, itemCount int) (bool, error)
	ReserveAll(ctx context.Context, orderID string, items []orders.ItemQty) (bool, []orders.StockRejectedDetail, error)
	ReleaseAll(ctx context.Context, orderID string) error
}

var _ Reserver = (*orders.ReservationRepo)(nil)

type Service struct {
	Repo           Reserver
	Redis          redis.Cmdable
	ProducerOK     kafkax.Publisher // order.stock.reserved
	ProducerReject kafkax.Publisher // order.stock.rejected
	ServiceName    string
}

// HandleOrderCreated reserves stock for every line of a new order.
// Wired as the order.created consumer handler.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	env, ok, err := s.claim(ctx, m, orders.EventOrderCreated, "reserve")
	if err != nil || !ok {
		return err
	}

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		// a retry cannot fix it; ack so the partition moves on
		log.Printf("[inventory] event %s at offset %d: %v", env.EventID, m.Offset, err)
		return nil
	}
	items := make([]orders.ItemQty, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, orders.ItemQty{VariantID: it.VariantID, Qty: it.Qty})
	}

	// a redelivered event: publish reserved again, it is harmless downstream
	if done, _ := s.Repo.AlreadyReserved(ctx, p.OrderID, len(items)); done {
		s.publishReserved(p.OrderID, items, env.TraceID)
		return nil
	}

	reserved, details, err := s.Repo.ReserveAll(ctx, p.OrderID, items)
	if err != nil {
		s.unclaim(ctx, env.EventID, "reserve")
		return err
	}
	if reserved {
		log.Printf("[inventory] order %s reserved (%d lines)", p.OrderID, len(items))
		s.publishReserved(p.OrderID, items, env.TraceID)
		return nil
	}
	log.Printf("[inventory] order %s rejected: %d lines short", p.OrderID, len(details))
	s.publishRejected(p.OrderID, details, env.TraceID)
	return nil
}

// HandleOrderCancelled gives reserved stock back. Wired on order.cancelled.
func (s *Service) HandleOrderCancelled(ctx context.Context, m kafkago.Message) error {
	env, ok, err := s.claim(ctx, m, orders.EventOrderCancelled, "release")
	if err != nil || !ok {
		return err
	}
	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	if err != nil {
		log.Printf("[inventory] event %s at offset %d: %v", env.EventID, m.Offset, err)
		return nil
	}
	if err := s.Repo.ReleaseAll(ctx, p.OrderID); err != nil {
		s.unclaim(ctx, env.EventID, "release")
		return err
	}
	log.Printf("[inventory] order %s released (%s)", p.OrderID, p.Reason)
	return nil
}

// claim decodes the envelope and dedups it on event id. ok is false for
// foreign event types and for events already handled.
func (s *Service) claim(ctx context.Context, m kafkago.Message, eventType, phase string) (orders.Envelope, bool, error) {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and let the offset move on
		log.Printf("[inventory] undecodable message at offset %d: %v", m.Offset, err)
		return env, false, nil
	}
	if env.EventType != eventType {
		return env, false, nil
	}
	first, err := redisx.Claim(ctx, s.Redis, s.dedupKey(env.EventID, phase), redisx.TTLDedup)
	if err != nil {
		return env, false, fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	return env, first, nil
}

func (s *Service) unclaim(ctx context.Context, eventID, phase string) {
	_ = s.Redis.Del(context.WithoutCancel(ctx), s.dedupKey(eventID, phase)).Err()
}

func (s *Service) dedupKey(eventID, phase string) string {
	return fmt.Sprintf(redisx.KeyDedup, "inventory", eventID+":"+phase)
}

func (s *Service) publishReserved(orderID string, items []orders.ItemQty, trace string) {
	s.publish(s.ProducerOK, orders.EventStockReserved, orderID, trace,
		orders.StockReservedPayload{OrderID: orderID, Items: items})
}

func (s *Service) publishRejected(orderID string, details []orders.StockRejectedDetail, trace string) {
	s.publish(s.ProducerReject, orders.EventStockRejected, orderID, trace,
		orders.StockRejectedPayload{OrderID: orderID, Reason: RejectOutOfStock, Details: details})
}

func (s *Service) publish(pub kafkax.Publisher, eventType, orderID, trace string, payload any) {
	env, err := orders.NewEnvelope(eventType, s.ServiceName, trace, orderID, payload)
	if err != nil {
		log.Printf("[inventory] build %s: %v", eventType, err)
		return
	}
	pub.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
