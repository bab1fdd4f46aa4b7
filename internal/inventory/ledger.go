package inventory

import (
	"context"
	"errors"
	"time"
)

type State string

const (
	StateAvailable State = "available"
	StateLocked    State = "locked" // held by exactly one order
	StateSold      State = "sold"
)

func (s State) Valid() bool {
	switch s {
	case StateAvailable, StateLocked, StateSold:
		return true
	}
	return false
}

var ErrProductNotFound = errors.New("product not found")

// ProductState is the ledger row for a single one-of-a-kind product.
// LockedBy is set iff State is locked, SoldTo iff State is sold.
type ProductState struct {
	ProductID string    `json:"product_id"`
	State     State     `json:"state"`
	LockedBy  string    `json:"locked_by,omitempty"`
	SoldTo    string    `json:"sold_to,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p ProductState) Available() bool { return p.State == StateAvailable }

// Availability is the storefront view of a product. It never exposes the
// holding order id.
type Availability struct {
	ProductID   string `json:"product_id"`
	IsAvailable bool   `json:"is_available"`
	IsLocked    bool   `json:"is_locked"`
	IsSold      bool   `json:"is_sold"`
}

func (p ProductState) Availability() Availability {
	return Availability{
		ProductID:   p.ProductID,
		IsAvailable: p.State == StateAvailable,
		IsLocked:    p.State == StateLocked,
		IsSold:      p.State == StateSold,
	}
}

type StateReader interface {
	ProductStates(ctx context.Context, ids []string) ([]ProductState, error)
}

// Ledger is the read side of product availability. Mutations only happen
// inside the reserve, expire and settle transactions of the order store.
type Ledger struct {
	Reader StateReader
}

func (l *Ledger) GetState(ctx context.Context, productID string) (ProductState, error) {
	states, err := l.Reader.ProductStates(ctx, []string{productID})
	if err != nil {
		return ProductState{}, err
	}
	for _, s := range states {
		if s.ProductID == productID {
			return s, nil
		}
	}
	return ProductState{}, ErrProductNotFound
}

// States returns the known states keyed by product id; unknown ids are absent.
func (l *Ledger) States(ctx context.Context, ids []string) (map[string]ProductState, error) {
	states, err := l.Reader.ProductStates(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ProductState, len(states))
	for _, s := range states {
		out[s.ProductID] = s
	}
	return out, nil
}
