package redisx

import "time"

const (
	// Webhook dedup: dedup:webhook:{stripe_event_id} -> "1"
	KeyWebhookEvent = "dedup:webhook:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id or order_id:phase)
	KeyDedup = "dedup:%s:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Payment seen before its order existed: payment_succeeded:{payment_intent_id} -> "1"
	KeyPaymentSucceeded = "payment_succeeded:%s"

	// Product list cache: products:{search}:{limit}:{offset} -> JSON body
	KeyProductList = "products:%s:%d:%d"
)

var (
	TTLDedup            = 48 * time.Hour
	TTLStatusCache      = 5 * time.Minute
	TTLPaymentSucceeded = 24 * time.Hour
	TTLProductList      = 5 * time.Minute
)
