package orders

import (
	"fmt"
	"time"
)

// Status is the order payment_status. The set is closed: reservation flow
// values plus the legacy pending/verified/failed values kept for old rows.
type Status string

const (
	StatusLocked           Status = "locked"
	StatusPaymentSubmitted Status = "payment_submitted"
	StatusPaid             Status = "paid"
	StatusCancelled        Status = "cancelled"
	StatusExpired          Status = "expired"

	// legacy flow, never created by Reserve
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

var allStatuses = []Status{
	StatusLocked, StatusPaymentSubmitted, StatusPaid, StatusCancelled, StatusExpired,
	StatusPending, StatusVerified, StatusFailed,
}

func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

func (s Status) Legacy() bool {
	return s == StatusPending || s == StatusVerified || s == StatusFailed
}

func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusCancelled, StatusExpired, StatusVerified, StatusFailed:
		return true
	}
	return false
}

// HoldsInventory reports whether products locked by an order in this status
// are still claimed by it.
func (s Status) HoldsInventory() bool {
	return s == StatusLocked || s == StatusPaymentSubmitted || s == StatusPending
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	}
	return "", &ValidationError{Field: "decision", Reason: "must be approve or reject"}
}

// Submit moves a live reservation to payment_submitted. The hold must not
// have elapsed at now.
func (s Status) Submit(now, expiresAt time.Time) (Status, error) {
	switch s {
	case StatusLocked:
		if !now.Before(expiresAt) {
			return s, ErrExpired
		}
		return StatusPaymentSubmitted, nil
	case StatusExpired:
		return s, ErrExpired
	default:
		return s, ErrAlreadySubmitted
	}
}

// Expire moves a lapsed reservation to expired. Only locked orders expire.
func (s Status) Expire(now, expiresAt time.Time) (Status, error) {
	if s != StatusLocked {
		return s, ErrNotLocked
	}
	if now.Before(expiresAt) {
		return s, ErrNotExpired
	}
	return StatusExpired, nil
}

// Settle applies the operator decision. Returns the new status; the caller
// turns held products sold on approve and available on reject.
func (s Status) Settle(d Decision) (Status, error) {
	switch s {
	case StatusPaymentSubmitted:
		if d == DecisionApprove {
			return StatusPaid, nil
		}
		return StatusCancelled, nil
	case StatusPending:
		if d == DecisionApprove {
			return StatusVerified, nil
		}
		return StatusFailed, nil
	case StatusPaid, StatusCancelled, StatusVerified, StatusFailed:
		return s, ErrAlreadySettled
	case StatusExpired:
		return s, ErrExpired
	default:
		return s, ErrNotSubmitted
	}
}

// Sells reports whether reaching s means the held products are sold.
func (s Status) Sells() bool { return s == StatusPaid || s == StatusVerified }
