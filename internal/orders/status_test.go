package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Submit(t *testing.T) {
	expires := time.Date(2025, 1, 1, 10, 10, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    Status
		now     time.Time
		want    Status
		wantErr error
	}{
		{"live hold", StatusLocked, expires.Add(-time.Second), StatusPaymentSubmitted, nil},
		{"exactly at expiry", StatusLocked, expires, StatusLocked, ErrExpired},
		{"after expiry, not swept", StatusLocked, expires.Add(time.Minute), StatusLocked, ErrExpired},
		{"already expired", StatusExpired, expires, StatusExpired, ErrExpired},
		{"resubmit", StatusPaymentSubmitted, expires.Add(-time.Minute), StatusPaymentSubmitted, ErrAlreadySubmitted},
		{"paid", StatusPaid, expires.Add(-time.Minute), StatusPaid, ErrAlreadySubmitted},
		{"legacy pending", StatusPending, expires.Add(-time.Minute), StatusPending, ErrAlreadySubmitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.Submit(tt.now, expires)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_Expire(t *testing.T) {
	expires := time.Date(2025, 1, 1, 10, 10, 0, 0, time.UTC)

	got, err := StatusLocked.Expire(expires, expires)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got)

	_, err = StatusLocked.Expire(expires.Add(-time.Nanosecond), expires)
	assert.ErrorIs(t, err, ErrNotExpired)

	for _, s := range []Status{StatusPaymentSubmitted, StatusPaid, StatusCancelled, StatusExpired, StatusPending} {
		_, err := s.Expire(expires.Add(time.Hour), expires)
		assert.ErrorIs(t, err, ErrNotLocked, s)
	}
}

func TestStatus_Settle(t *testing.T) {
	tests := []struct {
		from    Status
		d       Decision
		want    Status
		wantErr error
	}{
		{StatusPaymentSubmitted, DecisionApprove, StatusPaid, nil},
		{StatusPaymentSubmitted, DecisionReject, StatusCancelled, nil},
		{StatusPending, DecisionApprove, StatusVerified, nil},
		{StatusPending, DecisionReject, StatusFailed, nil},
		{StatusPaid, DecisionApprove, StatusPaid, ErrAlreadySettled},
		{StatusCancelled, DecisionApprove, StatusCancelled, ErrAlreadySettled},
		{StatusVerified, DecisionReject, StatusVerified, ErrAlreadySettled},
		{StatusExpired, DecisionApprove, StatusExpired, ErrExpired},
		{StatusLocked, DecisionApprove, StatusLocked, ErrNotSubmitted},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.d), func(t *testing.T) {
			got, err := tt.from.Settle(tt.d)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_Predicates(t *testing.T) {
	assert.True(t, StatusPending.Legacy())
	assert.False(t, StatusLocked.Legacy())

	assert.True(t, StatusLocked.HoldsInventory())
	assert.True(t, StatusPaymentSubmitted.HoldsInventory())
	assert.False(t, StatusExpired.HoldsInventory())

	assert.True(t, StatusPaid.Sells())
	assert.True(t, StatusVerified.Sells())
	assert.False(t, StatusCancelled.Sells())

	assert.False(t, StatusPaymentSubmitted.Terminal())
	assert.True(t, StatusExpired.Terminal())
}

func TestParseStatusAndDecision(t *testing.T) {
	s, err := ParseStatus("payment_submitted")
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentSubmitted, s)

	_, err = ParseStatus("shipped")
	assert.ErrorIs(t, err, ErrValidation)

	d, err := ParseDecision("reject")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, d)

	_, err = ParseDecision("maybe")
	assert.ErrorIs(t, err, ErrValidation)
}
