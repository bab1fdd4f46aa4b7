package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultBatch    = 100
)

// Expirer releases up to limit lapsed reservations per call.
type Expirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// Lease keeps concurrent api instances from sweeping the same tick. A nil
// Lease always sweeps.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// Sweeper bounds how long a lapsed hold can stay locked when nobody reads
// the product: at most one Interval plus the sweep itself.
type Sweeper struct {
	Expirer  Expirer
	Lease    Lease
	Interval time.Duration
	Batch    int
	Log      zerolog.Logger
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

func (s *Sweeper) batch() int {
	if s.Batch > 0 {
		return s.Batch
	}
	return DefaultBatch
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Log.Info().Dur("interval", s.interval()).Int("batch", s.batch()).Msg("expiry sweeper starting")
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info().Msg("expiry sweeper shutting down")
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.Log.Error().Err(err).Int("expired", n).Msg("sweep failed")
			} else if n > 0 {
				s.Log.Info().Int("expired", n).Msg("sweep released lapsed reservations")
			}
		}
	}
}

// SweepOnce drains lapsed reservations batch by batch. It returns 0 without
// sweeping when another instance holds the lease.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.Lease != nil {
		ok, err := s.Lease.Acquire(ctx, s.interval())
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		defer func() {
			if err := s.Lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.Log.Warn().Err(err).Msg("lease release failed")
			}
		}()
	}

	total := 0
	for {
		n, err := s.Expirer.ExpireDue(ctx, s.batch())
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batch() {
			return total, nil
		}
	}
}
