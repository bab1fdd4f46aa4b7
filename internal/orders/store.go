package orders

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/inventory"
)

// Store persists orders and the inventory ledger together. Every mutating
// method is a single atomic check-and-set: order row first (when one is
// involved), then product rows in ascending id order.
type Store interface {
	// Reserve locks every product in o.LockedProductIDs to o and inserts o,
	// or changes nothing and returns the products that were not available.
	Reserve(ctx context.Context, o Order) (Order, []UnavailableProduct, error)

	// ExpireOrder releases a lapsed locked order. ok is false when the order
	// was no longer locked or its hold had not elapsed at now.
	ExpireOrder(ctx context.Context, orderID string, now time.Time) (o Order, ok bool, err error)

	// ExpiredHolders lists locked orders with an elapsed hold that currently
	// lock any of productIDs.
	ExpiredHolders(ctx context.Context, productIDs []string, now time.Time) ([]string, error)

	// DueForExpiry lists up to limit locked orders whose hold elapsed, oldest first.
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]string, error)

	SubmitPayment(ctx context.Context, orderID, phone string, p Payment, now time.Time) (Order, error)
	Settle(ctx context.Context, orderID string, d Decision, now time.Time) (Order, error)

	// GetOrder returns ErrNotFound both for unknown ids and phone mismatch.
	GetOrder(ctx context.Context, orderID, phone string) (Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, error)

	ProductStates(ctx context.Context, ids []string) ([]inventory.ProductState, error)
}

// sortedUnique returns ids ascending without duplicates: the lock order.
func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
