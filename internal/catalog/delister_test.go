package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	kafkax "github.com/ariefcatur/go-unique-checkout/internal/kafka"
	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/ariefcatur/go-unique-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDelister struct {
	calls [][]string
	err   error
}

func (f *fakeDelister) DelistProducts(_ context.Context, ids []string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.calls = append(f.calls, ids)
	return len(ids), nil
}

func settledMessage(eventID string, p orders.OrderSettledPayload) kafkago.Message {
	env := orders.Envelope{
		EventID:      eventID,
		EventType:    orders.EventOrderSettled,
		EventVersion: 1,
		Payload:      kafkax.MustMarshal(p),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func newTestDelister(t *testing.T) (*Delister, *fakeDelister, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	fake := &fakeDelister{}
	return &Delister{
		Products:    fake,
		Redis:       rdb,
		ServiceName: "delister",
		Log:         zerolog.Nop(),
	}, fake, mr
}

func TestHandleOrderSettled_DelistsSoldProducts(t *testing.T) {
	d, fake, mr := newTestDelister(t)
	msg := settledMessage("ev-1", orders.OrderSettledPayload{
		OrderID:     "ORD-1",
		Decision:    orders.DecisionApprove,
		FinalStatus: orders.StatusPaid,
		ProductIDs:  []string{"p1", "p2"},
	})

	require.NoError(t, d.HandleOrderSettled(context.Background(), msg))
	assert.Equal(t, [][]string{{"p1", "p2"}}, fake.calls)
	assert.True(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "delister", "ev-1")))

	// redelivery is a no-op
	require.NoError(t, d.HandleOrderSettled(context.Background(), msg))
	assert.Len(t, fake.calls, 1)
}

func TestHandleOrderSettled_RejectedKeepsListing(t *testing.T) {
	d, fake, _ := newTestDelister(t)
	msg := settledMessage("ev-2", orders.OrderSettledPayload{
		OrderID:     "ORD-2",
		Decision:    orders.DecisionReject,
		FinalStatus: orders.StatusCancelled,
		ProductIDs:  []string{"p1"},
	})

	require.NoError(t, d.HandleOrderSettled(context.Background(), msg))
	assert.Empty(t, fake.calls)
}

func TestHandleOrderSettled_SkipsPoisonMessages(t *testing.T) {
	d, fake, _ := newTestDelister(t)

	require.NoError(t, d.HandleOrderSettled(context.Background(), kafkago.Message{Value: []byte("not json")}))

	env := orders.Envelope{EventID: "ev-3", EventType: orders.EventOrderSettled, Payload: []byte(`"oops"`)}
	require.NoError(t, d.HandleOrderSettled(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)}))

	other := orders.Envelope{EventID: "ev-4", EventType: orders.EventOrderReserved, Payload: []byte(`{}`)}
	require.NoError(t, d.HandleOrderSettled(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(other)}))

	assert.Empty(t, fake.calls)
}

func TestHandleOrderSettled_StoreErrorLeavesEventPending(t *testing.T) {
	d, fake, mr := newTestDelister(t)
	fake.err = errors.New("db down")

	err := d.HandleOrderSettled(context.Background(), settledMessage("ev-5", orders.OrderSettledPayload{
		OrderID:     "ORD-5",
		FinalStatus: orders.StatusVerified,
		ProductIDs:  []string{"p9"},
	}))
	require.Error(t, err)
	assert.False(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "delister", "ev-5")), "failed events are not marked done")
}
