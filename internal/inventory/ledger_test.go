package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticReader struct {
	states []ProductState
	err    error
	asked  [][]string
}

func (r *staticReader) ProductStates(_ context.Context, ids []string) ([]ProductState, error) {
	r.asked = append(r.asked, ids)
	if r.err != nil {
		return nil, r.err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []ProductState
	for _, s := range r.states {
		if want[s.ProductID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestLedger_GetState(t *testing.T) {
	now := time.Now()
	l := &Ledger{Reader: &staticReader{states: []ProductState{
		{ProductID: "a", State: StateLocked, LockedBy: "ORD-1", UpdatedAt: now},
	}}}

	st, err := l.GetState(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", st.LockedBy)

	_, err = l.GetState(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestLedger_States(t *testing.T) {
	l := &Ledger{Reader: &staticReader{states: []ProductState{
		{ProductID: "a", State: StateAvailable},
		{ProductID: "b", State: StateSold, SoldTo: "ORD-9"},
	}}}

	got, err := l.States(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got["a"].Available())
	assert.Equal(t, StateSold, got["b"].State)

	l = &Ledger{Reader: &staticReader{err: errors.New("boom")}}
	_, err = l.States(context.Background(), []string{"a"})
	assert.Error(t, err)
}

func TestProductState_Availability(t *testing.T) {
	locked := ProductState{ProductID: "a", State: StateLocked, LockedBy: "ORD-1"}
	assert.Equal(t, Availability{ProductID: "a", IsLocked: true}, locked.Availability())

	sold := ProductState{ProductID: "b", State: StateSold, SoldTo: "ORD-2"}
	assert.Equal(t, Availability{ProductID: "b", IsSold: true}, sold.Availability())

	assert.True(t, StateSold.Valid())
	assert.False(t, State("reserved").Valid())
}
