package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderReserved       = "OrderReserved"
	EventReservationConflict = "ReservationConflict"
	EventPaymentSubmitted    = "PaymentSubmitted"
	EventReservationExpired  = "ReservationExpired"
	EventOrderSettled        = "OrderSettled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "checkout-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type OrderReservedPayload struct {
	OrderID     string          `json:"order_id"`
	OrderNumber int64           `json:"order_number"`
	ProductIDs  []string        `json:"product_ids"`
	Total       decimal.Decimal `json:"total"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

type ReservationConflictPayload struct {
	ProductIDs  []string             `json:"product_ids"`
	Unavailable []UnavailableProduct `json:"unavailable_products"`
}

type PaymentSubmittedPayload struct {
	OrderID   string `json:"order_id"`
	Reference string `json:"payment_reference"`
	PayerName string `json:"payer_name"`
	ProofURL  string `json:"proof_url"`
}

type ReservationExpiredPayload struct {
	OrderID    string   `json:"order_id"`
	ProductIDs []string `json:"product_ids"`
}

type OrderSettledPayload struct {
	OrderID     string   `json:"order_id"`
	Decision    Decision `json:"decision"`
	FinalStatus Status   `json:"final_status"` // paid | cancelled | verified | failed
	ProductIDs  []string `json:"product_ids"`
}

// Sold reports whether the settled products left the inventory for good.
func (p OrderSettledPayload) Sold() bool { return p.FinalStatus.Sells() }
