package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldDuration is how long a reservation keeps its products locked while
// the customer pays.
const HoldDuration = 10 * time.Minute

type Customer struct {
	Name    string `json:"customer_name"`
	Phone   string `json:"customer_phone"`
	Address string `json:"customer_address"`
	Pincode string `json:"customer_pincode"`
}

// Item is the priced snapshot of one cart line taken at reservation time.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

func (it Item) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Payment struct {
	Reference   string     `json:"payment_reference,omitempty"`
	PayerName   string     `json:"payment_payer_name,omitempty"`
	ProofURL    string     `json:"payment_proof_url,omitempty"`
	SubmittedAt *time.Time `json:"payment_submitted_at,omitempty"`
}

type Order struct {
	ID                   string
	Number               int64
	Customer             Customer
	LockedProductIDs     []string
	Items                []Item
	Subtotal             decimal.Decimal
	Shipping             decimal.Decimal
	Total                decimal.Decimal
	Status               Status
	ReservedAt           time.Time
	ReservationExpiresAt time.Time
	Payment              Payment
	SettledAt            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ReservationValid reports whether the hold is live at now. Legacy orders
// never had a hold.
func (o Order) ReservationValid(now time.Time) bool {
	return o.Status == StatusLocked && now.Before(o.ReservationExpiresAt)
}

// HoldLapsed is true for a locked order whose hold ran out but that has not
// been swept yet.
func (o Order) HoldLapsed(now time.Time) bool {
	return o.Status == StatusLocked && !now.Before(o.ReservationExpiresAt)
}

type OrderSummary struct {
	OrderID              string          `json:"order_id"`
	OrderNumber          int64           `json:"order_number"`
	Status               Status          `json:"status"`
	CustomerName         string          `json:"customer_name"`
	Items                []Item          `json:"items"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	Shipping             decimal.Decimal `json:"shipping"`
	Total                decimal.Decimal `json:"total"`
	ReservedAt           time.Time       `json:"reserved_at"`
	ReservationExpiresAt time.Time       `json:"reservation_expires_at"`
	ReservationValid     bool            `json:"reservation_valid"`
	PaymentReference     string          `json:"payment_reference,omitempty"`
	SettledAt            *time.Time      `json:"settled_at,omitempty"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (o Order) Summary(now time.Time) OrderSummary {
	return OrderSummary{
		OrderID:              o.ID,
		OrderNumber:          o.Number,
		Status:               o.Status,
		CustomerName:         o.Customer.Name,
		Items:                o.Items,
		Subtotal:             o.Subtotal,
		Shipping:             o.Shipping,
		Total:                o.Total,
		ReservedAt:           o.ReservedAt,
		ReservationExpiresAt: o.ReservationExpiresAt,
		ReservationValid:     o.ReservationValid(now),
		PaymentReference:     o.Payment.Reference,
		SettledAt:            o.SettledAt,
		UpdatedAt:            o.UpdatedAt,
	}
}

type ListFilter struct {
	Status Status // empty = all
	Limit  int
}
