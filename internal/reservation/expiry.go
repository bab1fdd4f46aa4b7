package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/orders"
)

type expireResult struct {
	order orders.Order
	ok    bool
}

// expire runs the locked -> expired check-and-set for one order. Concurrent
// callers for the same order share one store call. Failures are logged:
// expiry is retried by the next read or sweep.
func (s *Service) expire(ctx context.Context, orderID string, now time.Time) (orders.Order, bool) {
	o, ok, _ := s.expireOwned(ctx, orderID, now)
	return o, ok
}

// expireOwned is expire that also reports whether this caller ran the
// store call, as opposed to joining another caller's.
func (s *Service) expireOwned(ctx context.Context, orderID string, now time.Time) (orders.Order, bool, bool) {
	owner := false
	v, err, _ := s.expiring.Do(orderID, func() (any, error) {
		owner = true
		o, ok, err := s.Store.ExpireOrder(ctx, orderID, now)
		if err != nil || !ok {
			return expireResult{o, ok}, err
		}
		s.invalidate(ctx, o)
		s.Log.Info().Str("order_id", orderID).Strs("product_ids", o.LockedProductIDs).Msg("reservation expired")
		s.publish(ctx, orders.EventReservationExpired, orderID, orders.ReservationExpiredPayload{
			OrderID:    orderID,
			ProductIDs: o.LockedProductIDs,
		})
		return expireResult{o, true}, nil
	})
	if err != nil {
		if !errors.Is(err, orders.ErrNotFound) {
			s.Log.Error().Err(err).Str("order_id", orderID).Msg("expire reservation failed")
		}
		return orders.Order{}, false, owner
	}
	res := v.(expireResult)
	return res.order, res.ok, owner
}

// expireHolders is the opportunistic sweep: release lapsed holds on the
// given products before reading or locking them.
func (s *Service) expireHolders(ctx context.Context, productIDs []string, now time.Time) {
	holders, err := s.Store.ExpiredHolders(ctx, productIDs, now)
	if err != nil {
		s.Log.Warn().Err(err).Msg("lookup of lapsed holds failed")
		return
	}
	for _, id := range holders {
		s.expire(ctx, id, now)
	}
}

// ExpireDue expires up to limit lapsed reservations and returns how many
// this call released. An order released by a concurrent caller is not
// counted here.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := s.Clock()
	ids, err := s.Store.DueForExpiry(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("due for expiry: %w", err)
	}
	n := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if _, ok, owner := s.expireOwned(ctx, id, now); ok && owner {
			n++
		}
	}
	return n, nil
}
