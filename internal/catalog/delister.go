package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/go-unique-checkout/internal/kafka"
	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/ariefcatur/go-unique-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type ProductDelister interface {
	DelistProducts(ctx context.Context, ids []string) (int, error)
}

// Delister removes sold one-of-a-kind listings from the storefront once an
// order is approved. It is cleanup only: the ledger already says sold.
type Delister struct {
	Products    ProductDelister
	Redis       *redis.Client // optional dedup
	ServiceName string
	Log         zerolog.Logger
}

// HandleOrderSettled is installed as the consumer handler for order.settled.
func (d *Delister) HandleOrderSettled(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		d.Log.Error().Err(err).Int64("offset", m.Offset).Msg("skip malformed event")
		return nil // poison message, commit and move on
	}
	if env.EventType != orders.EventOrderSettled {
		return nil
	}

	// 2) dedup by event id
	dkey := fmt.Sprintf(redisx.KeyDedup, d.ServiceName, env.EventID)
	if d.Redis != nil {
		if done, _ := redisx.Exists(ctx, d.Redis, dkey); done {
			return nil
		}
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[orders.OrderSettledPayload](env.Payload)
	if err != nil {
		d.Log.Error().Err(err).Str("event_id", env.EventID).Msg("skip malformed payload")
		return nil
	}

	if p.Sold() {
		n, err := d.Products.DelistProducts(ctx, p.ProductIDs)
		if err != nil {
			return fmt.Errorf("delist products of %s: %w", p.OrderID, err)
		}
		d.Log.Info().Str("order_id", p.OrderID).Int("delisted", n).Msg("sold products delisted")
	}

	if d.Redis != nil {
		_ = d.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}
