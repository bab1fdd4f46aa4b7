package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/inventory"
)

type productRow struct {
	mu     sync.Mutex
	state  inventory.ProductState
	listed bool
}

type orderRow struct {
	mu    sync.Mutex
	order Order
}

// MemoryStore is an in-process Store with row-level locking: one mutex per
// product and per order. mu only guards the index maps and is never held
// while waiting for a row lock.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*productRow
	orders   map[string]*orderRow
	seq      atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*productRow),
		orders:   make(map[string]*orderRow),
	}
}

// SeedProduct registers an available product, as the catalog would.
func (s *MemoryStore) SeedProduct(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = &productRow{
		state:  inventory.ProductState{ProductID: id, State: inventory.StateAvailable, UpdatedAt: now},
		listed: true,
	}
}

// SeedOrder imports an existing order row (legacy data, fixtures). Products
// it holds are locked to it when they are still available.
func (s *MemoryStore) SeedOrder(o Order) {
	if o.Number == 0 {
		o.Number = s.seq.Add(1)
	}
	o = cloneOrder(o)
	s.mu.Lock()
	s.orders[o.ID] = &orderRow{order: o}
	s.mu.Unlock()

	if !o.Status.HoldsInventory() {
		return
	}
	for _, r := range s.productRows(sortedUnique(o.LockedProductIDs)) {
		if r == nil {
			continue
		}
		r.mu.Lock()
		if r.state.State == inventory.StateAvailable {
			r.state.State = inventory.StateLocked
			r.state.LockedBy = o.ID
			r.state.UpdatedAt = o.UpdatedAt
		}
		r.mu.Unlock()
	}
}

func (s *MemoryStore) productRows(ids []string) []*productRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]*productRow, len(ids))
	for i, id := range ids {
		rows[i] = s.products[id]
	}
	return rows
}

func (s *MemoryStore) orderRow(id string) *orderRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders[id]
}

func (s *MemoryStore) Reserve(_ context.Context, o Order) (Order, []UnavailableProduct, error) {
	ids := sortedUnique(o.LockedProductIDs)
	if len(ids) == 0 {
		return Order{}, nil, &ValidationError{Field: "product_ids", Reason: "required"}
	}
	rows := s.productRows(ids)

	var unavailable []UnavailableProduct
	for i, r := range rows {
		if r == nil {
			unavailable = append(unavailable, UnavailableProduct{ID: ids[i]})
			continue
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.state.State != inventory.StateAvailable {
			unavailable = append(unavailable, UnavailableProduct{ID: ids[i]})
		}
	}
	if len(unavailable) > 0 {
		return Order{}, unavailable, nil
	}

	o = cloneOrder(o)
	o.LockedProductIDs = ids
	o.Status = StatusLocked
	o.CreatedAt, o.UpdatedAt = o.ReservedAt, o.ReservedAt

	s.mu.Lock()
	if _, dup := s.orders[o.ID]; dup {
		s.mu.Unlock()
		return Order{}, nil, fmt.Errorf("insert order %s: duplicate order id", o.ID)
	}
	o.Number = s.seq.Add(1)
	s.orders[o.ID] = &orderRow{order: o}
	s.mu.Unlock()

	for _, r := range rows {
		r.state.State = inventory.StateLocked
		r.state.LockedBy = o.ID
		r.state.UpdatedAt = o.ReservedAt
	}
	return cloneOrder(o), nil, nil
}

// moveProducts flips the products still locked by orderID to sold or back
// to available. The caller holds the order row lock.
func (s *MemoryStore) moveProducts(orderID string, ids []string, sell bool, now time.Time) {
	for _, r := range s.productRows(sortedUnique(ids)) {
		if r == nil {
			continue
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.state.State != inventory.StateLocked || r.state.LockedBy != orderID {
			continue
		}
		r.state.LockedBy = ""
		if sell {
			r.state.State = inventory.StateSold
			r.state.SoldTo = orderID
		} else {
			r.state.State = inventory.StateAvailable
		}
		r.state.UpdatedAt = now
	}
}

func (s *MemoryStore) ExpireOrder(_ context.Context, orderID string, now time.Time) (Order, bool, error) {
	row := s.orderRow(orderID)
	if row == nil {
		return Order{}, false, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()

	next, err := row.order.Status.Expire(now, row.order.ReservationExpiresAt)
	if errors.Is(err, ErrNotLocked) || errors.Is(err, ErrNotExpired) {
		return cloneOrder(row.order), false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	s.moveProducts(orderID, row.order.LockedProductIDs, false, now)
	row.order.Status = next
	row.order.UpdatedAt = now
	return cloneOrder(row.order), true, nil
}

func (s *MemoryStore) ExpiredHolders(_ context.Context, productIDs []string, now time.Time) ([]string, error) {
	var holders []string
	seen := map[string]bool{}
	for _, r := range s.productRows(sortedUnique(productIDs)) {
		if r == nil {
			continue
		}
		r.mu.Lock()
		holder := ""
		if r.state.State == inventory.StateLocked {
			holder = r.state.LockedBy
		}
		r.mu.Unlock()
		if holder == "" || seen[holder] {
			continue
		}
		seen[holder] = true

		// product lock released before taking the order lock: order first, always
		if o := s.orderRow(holder); o != nil {
			o.mu.Lock()
			lapsed := o.order.HoldLapsed(now)
			o.mu.Unlock()
			if lapsed {
				holders = append(holders, holder)
			}
		}
	}
	return holders, nil
}

func (s *MemoryStore) snapshot() []*orderRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]*orderRow, 0, len(s.orders))
	for _, r := range s.orders {
		rows = append(rows, r)
	}
	return rows
}

func (s *MemoryStore) DueForExpiry(_ context.Context, now time.Time, limit int) ([]string, error) {
	type due struct {
		id string
		at time.Time
	}
	var list []due
	for _, r := range s.snapshot() {
		r.mu.Lock()
		if r.order.HoldLapsed(now) {
			list = append(list, due{r.order.ID, r.order.ReservationExpiresAt})
		}
		r.mu.Unlock()
	}
	sort.Slice(list, func(i, j int) bool { return list[i].at.Before(list[j].at) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.id)
	}
	return out, nil
}

func (s *MemoryStore) SubmitPayment(_ context.Context, orderID, phone string, p Payment, now time.Time) (Order, error) {
	row := s.orderRow(orderID)
	if row == nil {
		return Order{}, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	if row.order.Customer.Phone != phone {
		return Order{}, ErrNotFound
	}

	next, err := row.order.Status.Submit(now, row.order.ReservationExpiresAt)
	if err != nil {
		return cloneOrder(row.order), err
	}
	p.SubmittedAt = &now
	row.order.Payment = p
	row.order.Status = next
	row.order.UpdatedAt = now
	return cloneOrder(row.order), nil
}

func (s *MemoryStore) Settle(_ context.Context, orderID string, d Decision, now time.Time) (Order, error) {
	row := s.orderRow(orderID)
	if row == nil {
		return Order{}, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()

	next, err := row.order.Status.Settle(d)
	if err != nil {
		return cloneOrder(row.order), err
	}
	s.moveProducts(orderID, row.order.LockedProductIDs, next.Sells(), now)
	row.order.Status = next
	row.order.SettledAt = &now
	row.order.UpdatedAt = now
	return cloneOrder(row.order), nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID, phone string) (Order, error) {
	row := s.orderRow(orderID)
	if row == nil {
		return Order{}, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	if row.order.Customer.Phone != phone {
		return Order{}, ErrNotFound
	}
	return cloneOrder(row.order), nil
}

func (s *MemoryStore) ListOrders(_ context.Context, f ListFilter) ([]Order, error) {
	var out []Order
	for _, r := range s.snapshot() {
		r.mu.Lock()
		if f.Status == "" || r.order.Status == f.Status {
			out = append(out, cloneOrder(r.order))
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ProductStates(_ context.Context, ids []string) ([]inventory.ProductState, error) {
	uniq := sortedUnique(ids)
	out := make([]inventory.ProductState, 0, len(uniq))
	for _, r := range s.productRows(uniq) {
		if r == nil {
			continue
		}
		r.mu.Lock()
		out = append(out, r.state)
		r.mu.Unlock()
	}
	return out, nil
}

// DelistProducts hides sold products from the catalog listing.
func (s *MemoryStore) DelistProducts(_ context.Context, ids []string) (int, error) {
	n := 0
	for _, r := range s.productRows(sortedUnique(ids)) {
		if r == nil {
			continue
		}
		r.mu.Lock()
		if r.listed && r.state.State == inventory.StateSold {
			r.listed = false
			n++
		}
		r.mu.Unlock()
	}
	return n, nil
}

// Listed reports whether the catalog still shows the product.
func (s *MemoryStore) Listed(id string) bool {
	rows := s.productRows([]string{id})
	if rows[0] == nil {
		return false
	}
	rows[0].mu.Lock()
	defer rows[0].mu.Unlock()
	return rows[0].listed
}

func cloneOrder(o Order) Order {
	o.LockedProductIDs = append([]string(nil), o.LockedProductIDs...)
	o.Items = append([]Item(nil), o.Items...)
	return o
}
