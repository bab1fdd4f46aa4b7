package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-unique-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeExpirer hands out pending expiries in batches.
type fakeExpirer struct {
	mu      sync.Mutex
	pending int
	calls   int
	err     error
}

func (f *fakeExpirer) ExpireDue(_ context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	n := min(limit, f.pending)
	f.pending -= n
	return n, nil
}

func (f *fakeExpirer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newLease(t *testing.T, owner string) (*redisx.Lease, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return &redisx.Lease{RDB: rdb, Key: redisx.KeySweeperLease, Owner: owner}, mr
}

func TestSweepOnce_DrainsInBatches(t *testing.T) {
	exp := &fakeExpirer{pending: 250}
	s := &Sweeper{Expirer: exp, Batch: 100, Log: zerolog.Nop()}

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, 3, exp.Calls())
}

func TestSweepOnce_ExactBatchNeedsOneMoreCall(t *testing.T) {
	exp := &fakeExpirer{pending: 100}
	s := &Sweeper{Expirer: exp, Batch: 100, Log: zerolog.Nop()}

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, 2, exp.Calls())
}

func TestSweepOnce_PropagatesError(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("db down")}
	s := &Sweeper{Expirer: exp, Log: zerolog.Nop()}

	_, err := s.SweepOnce(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestSweepOnce_SkipsWhenLeaseHeldElsewhere(t *testing.T) {
	lease, mr := newLease(t, "api-a")
	require.NoError(t, mr.Set(redisx.KeySweeperLease, "api-b"))

	exp := &fakeExpirer{pending: 5}
	s := &Sweeper{Expirer: exp, Lease: lease, Log: zerolog.Nop()}

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, exp.Calls())

	got, _ := mr.Get(redisx.KeySweeperLease)
	assert.Equal(t, "api-b", got, "foreign lease untouched")
}

func TestSweepOnce_ReleasesLease(t *testing.T) {
	lease, mr := newLease(t, "api-a")
	exp := &fakeExpirer{pending: 5}
	s := &Sweeper{Expirer: exp, Lease: lease, Log: zerolog.Nop()}

	n, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, mr.Exists(redisx.KeySweeperLease))
}

func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	exp := &fakeExpirer{pending: 3}
	s := &Sweeper{Expirer: exp, Interval: 5 * time.Millisecond, Log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return exp.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
