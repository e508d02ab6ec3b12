// Package tracker consumes order.placed events and backfills shipment state:
// it polls the fulfillment provider for tracking info, caches the tracking
// link, and records the AWB number on the order once one is assigned.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/merchkart/storefront/internal/kafka"
	"github.com/merchkart/storefront/internal/orders"
	"github.com/merchkart/storefront/internal/qikink"
	"github.com/merchkart/storefront/internal/redisx"
)

type FulfillmentReader interface {
	GetOrder(ctx context.Context, qikinkOrderID string) (qikink.OrderStatus, error)
}

type OrderLedger interface {
	UpdateTracking(ctx context.Context, qikinkOrderID, awb string) error
}

type Service struct {
	Orders      OrderLedger
	Qikink      FulfillmentReader
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderPlaced is wired as the consumer handler for orders.placed.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil // ignore
	}

	// dedup by event_id so redelivery does not hammer the provider
	dkey := fmt.Sprintf(redisx.KeyDedup, "tracker", env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}
	if p.QikinkOrderID == "" {
		return nil
	}

	st, err := s.Qikink.GetOrder(ctx, p.QikinkOrderID)
	if errors.Is(err, qikink.ErrOrderNotFound) {
		// provider has not indexed the order yet; leave the event uncommitted
		// so a later delivery retries
		return err
	}
	if err != nil {
		return err
	}

	if st.TrackingLink != "" {
		key := fmt.Sprintf(redisx.KeyTrackOrder, p.QikinkOrderID)
		cached, _ := json.Marshal(map[string]any{
			"success":      true,
			"trackingLink": st.TrackingLink,
			"status":       st.Status,
		})
		_ = s.Redis.Set(ctx, key, cached, redisx.TTLTrackCache).Err()
	}

	if st.AWB != "" {
		if err := s.Orders.UpdateTracking(ctx, p.QikinkOrderID, st.AWB); err != nil &&
			!errors.Is(err, orders.ErrNotFound) {
			return err
		}
		log.Printf("tracking recorded: order=%s qikink_order_id=%s awb=%s", p.OrderID, p.QikinkOrderID, st.AWB)
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
