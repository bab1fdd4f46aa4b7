package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/inventory"
	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// MaxAvailabilityBatch caps one availability query.
const MaxAvailabilityBatch = 200

// StatusCache is satisfied by *redisx.StatusCache. Set must refuse to write
// once Invalidate has run since the caller read Version.
type StatusCache interface {
	Get(ctx context.Context, orderID, phone string) ([]byte, bool, error)
	Version(ctx context.Context, orderID string) (int64, error)
	Set(ctx context.Context, orderID, phone string, version int64, b []byte, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, orderID, phone string) error
}

// Service runs every state transition of the checkout: reserve, submit
// payment, expire and settle, plus the availability reads that trigger lazy
// expiry. Events and Cache are optional.
type Service struct {
	Store    orders.Store
	Ledger   *inventory.Ledger // defaults to a ledger over Store
	Events   Publisher
	Cache    StatusCache
	Hold     time.Duration    // defaults to orders.HoldDuration
	Now      func() time.Time // defaults to time.Now
	Producer string           // envelope producer name
	Log      zerolog.Logger

	expiring singleflight.Group
}

type Reservation struct {
	OrderID     string    `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ReservationCheck struct {
	OrderID          string        `json:"order_id"`
	Status           orders.Status `json:"status"`
	Valid            bool          `json:"valid"`
	ExpiresAt        time.Time     `json:"expires_at"`
	SecondsRemaining int64         `json:"seconds_remaining"`
}

// Clock returns now at microsecond precision, the resolution Postgres keeps.
func (s *Service) Clock() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().UTC().Truncate(time.Microsecond)
}

func (s *Service) hold() time.Duration {
	if s.Hold > 0 {
		return s.Hold
	}
	return orders.HoldDuration
}

func (s *Service) ledger() *inventory.Ledger {
	if s.Ledger != nil {
		return s.Ledger
	}
	return &inventory.Ledger{Reader: s.Store}
}

// Reserve locks every requested product to a new order, or none of them.
// A conflict returns *orders.ConflictError naming the products that were
// not available, in request order.
func (s *Service) Reserve(ctx context.Context, req orders.ReserveRequest) (Reservation, error) {
	req.Items = append([]orders.Item(nil), req.Items...)
	req.ProductIDs = append([]string(nil), req.ProductIDs...)
	req.Normalize()
	if err := req.Validate(); err != nil {
		return Reservation{}, err
	}

	now := s.Clock()
	s.expireHolders(ctx, req.ProductIDs, now)

	o := orders.Order{
		ID:                   orders.NewOrderID(),
		Customer:             req.Customer,
		LockedProductIDs:     req.ProductIDs,
		Items:                req.Items,
		Subtotal:             req.Subtotal,
		Shipping:             req.Shipping,
		Total:                req.Total,
		ReservedAt:           now,
		ReservationExpiresAt: now.Add(s.hold()),
	}
	created, unavailable, err := s.Store.Reserve(ctx, o)
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve: %w", err)
	}
	if len(unavailable) > 0 {
		conflict := &orders.ConflictError{Unavailable: inRequestOrder(req, unavailable)}
		s.Log.Info().Strs("product_ids", req.ProductIDs).Err(conflict).Msg("reservation conflict")
		s.publish(ctx, orders.EventReservationConflict, req.ProductIDs[0], orders.ReservationConflictPayload{
			ProductIDs: req.ProductIDs, Unavailable: conflict.Unavailable,
		})
		return Reservation{}, conflict
	}

	s.Log.Info().Str("order_id", created.ID).Int64("order_number", created.Number).
		Strs("product_ids", created.LockedProductIDs).Time("expires_at", created.ReservationExpiresAt).
		Msg("order reserved")
	s.publish(ctx, orders.EventOrderReserved, created.ID, orders.OrderReservedPayload{
		OrderID:     created.ID,
		OrderNumber: created.Number,
		ProductIDs:  created.LockedProductIDs,
		Total:       created.Total,
		ExpiresAt:   created.ReservationExpiresAt,
	})
	return Reservation{OrderID: created.ID, OrderNumber: created.Number, ExpiresAt: created.ReservationExpiresAt}, nil
}

func inRequestOrder(req orders.ReserveRequest, unavailable []orders.UnavailableProduct) []orders.UnavailableProduct {
	missing := make(map[string]bool, len(unavailable))
	for _, u := range unavailable {
		missing[u.ID] = true
	}
	out := make([]orders.UnavailableProduct, 0, len(unavailable))
	for _, id := range req.ProductIDs {
		if missing[id] {
			out = append(out, orders.UnavailableProduct{ID: id, Name: req.ItemName(id)})
		}
	}
	return out
}

// SubmitPayment attaches proof of payment to a live reservation. A
// submission after the hold elapsed fails with orders.ErrExpired even if no
// sweeper ran, and the reservation is released right away.
func (s *Service) SubmitPayment(ctx context.Context, req orders.PaymentRequest) (orders.Order, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return orders.Order{}, err
	}

	now := s.Clock()
	o, err := s.Store.SubmitPayment(ctx, req.OrderID, req.Phone, orders.Payment{
		Reference: req.Reference,
		PayerName: req.PayerName,
		ProofURL:  req.ProofURL,
	}, now)
	if errors.Is(err, orders.ErrExpired) {
		s.expire(ctx, req.OrderID, now)
		return orders.Order{}, err
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("submit payment: %w", err)
	}

	s.invalidate(ctx, o)
	s.Log.Info().Str("order_id", o.ID).Str("payment_reference", o.Payment.Reference).Msg("payment submitted")
	s.publish(ctx, orders.EventPaymentSubmitted, o.ID, orders.PaymentSubmittedPayload{
		OrderID:   o.ID,
		Reference: o.Payment.Reference,
		PayerName: o.Payment.PayerName,
		ProofURL:  o.Payment.ProofURL,
	})
	return o, nil
}

// Settle is the operator decision on a payment_submitted (or legacy
// pending) order. Settling twice returns orders.ErrAlreadySettled and does
// not touch inventory.
func (s *Service) Settle(ctx context.Context, orderID string, d orders.Decision) (orders.Order, error) {
	orderID = orders.NormalizeOrderID(orderID)
	if orderID == "" {
		return orders.Order{}, &orders.ValidationError{Field: "order_id", Reason: "required"}
	}
	if _, err := orders.ParseDecision(string(d)); err != nil {
		return orders.Order{}, err
	}

	o, err := s.Store.Settle(ctx, orderID, d, s.Clock())
	if err != nil {
		return orders.Order{}, fmt.Errorf("settle %s: %w", orderID, err)
	}

	s.invalidate(ctx, o)
	s.Log.Info().Str("order_id", o.ID).Str("decision", string(d)).Str("status", string(o.Status)).Msg("order settled")
	s.publish(ctx, orders.EventOrderSettled, o.ID, orders.OrderSettledPayload{
		OrderID:     o.ID,
		Decision:    d,
		FinalStatus: o.Status,
		ProductIDs:  o.LockedProductIDs,
	})
	return o, nil
}

// GetAvailability answers per product in request order. Lapsed holds on the
// requested products are released first so a free product never reads as
// locked. Unknown products are reported as not available.
func (s *Service) GetAvailability(ctx context.Context, productIDs []string) ([]inventory.Availability, error) {
	ids := cleanIDs(productIDs)
	if len(ids) == 0 {
		return nil, &orders.ValidationError{Field: "product_ids", Reason: "required"}
	}
	if len(ids) > MaxAvailabilityBatch {
		return nil, &orders.ValidationError{Field: "product_ids", Reason: fmt.Sprintf("at most %d per request", MaxAvailabilityBatch)}
	}

	s.expireHolders(ctx, ids, s.Clock())
	states, err := s.ledger().States(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("availability: %w", err)
	}

	out := make([]inventory.Availability, 0, len(ids))
	for _, id := range ids {
		st, ok := states[id]
		if !ok {
			out = append(out, inventory.Availability{ProductID: id})
			continue
		}
		out = append(out, st.Availability())
	}
	return out, nil
}

// ProductState is the ledger view of one product after lazy expiry.
func (s *Service) ProductState(ctx context.Context, productID string) (inventory.ProductState, error) {
	productID = strings.TrimSpace(productID)
	s.expireHolders(ctx, []string{productID}, s.Clock())
	return s.ledger().GetState(ctx, productID)
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// TrackOrder is the customer self-service lookup, gated by the phone number.
// Unknown order and wrong phone are the same orders.ErrNotFound.
func (s *Service) TrackOrder(ctx context.Context, orderID, phone string) (orders.OrderSummary, error) {
	orderID = orders.NormalizeOrderID(orderID)
	phone = orders.NormalizePhone(phone)
	if orderID == "" || phone == "" {
		return orders.OrderSummary{}, orders.ErrNotFound
	}
	now := s.Clock()

	if sum, ok := s.cachedSummary(ctx, orderID, phone, now); ok {
		return sum, nil
	}
	version, cacheable := s.cacheVersion(ctx, orderID)

	o, err := s.Store.GetOrder(ctx, orderID, phone)
	if err != nil {
		return orders.OrderSummary{}, fmt.Errorf("track order: %w", err)
	}
	if o.HoldLapsed(now) {
		if expired, ok := s.expire(ctx, o.ID, now); ok {
			o = expired
		} else if o, err = s.Store.GetOrder(ctx, orderID, phone); err != nil {
			return orders.OrderSummary{}, fmt.Errorf("track order: %w", err)
		}
	}

	sum := o.Summary(now)
	if cacheable {
		s.cacheSummary(ctx, o, sum, version, now)
	}
	return sum, nil
}

// CheckReservation tells whether the order's hold is still live.
func (s *Service) CheckReservation(ctx context.Context, orderID, phone string) (ReservationCheck, error) {
	sum, err := s.TrackOrder(ctx, orderID, phone)
	if err != nil {
		return ReservationCheck{}, err
	}
	check := ReservationCheck{
		OrderID:   sum.OrderID,
		Status:    sum.Status,
		Valid:     sum.ReservationValid,
		ExpiresAt: sum.ReservationExpiresAt,
	}
	if check.Valid {
		check.SecondsRemaining = int64(sum.ReservationExpiresAt.Sub(s.Clock()) / time.Second)
	}
	return check, nil
}

func (s *Service) ListOrders(ctx context.Context, f orders.ListFilter) ([]orders.Order, error) {
	return s.Store.ListOrders(ctx, f)
}

func (s *Service) cachedSummary(ctx context.Context, orderID, phone string, now time.Time) (orders.OrderSummary, bool) {
	if s.Cache == nil {
		return orders.OrderSummary{}, false
	}
	b, ok, err := s.Cache.Get(ctx, orderID, phone)
	if err != nil {
		s.Log.Warn().Err(err).Str("order_id", orderID).Msg("status cache read failed")
		return orders.OrderSummary{}, false
	}
	if !ok {
		return orders.OrderSummary{}, false
	}
	var sum orders.OrderSummary
	if err := json.Unmarshal(b, &sum); err != nil {
		return orders.OrderSummary{}, false
	}
	// a cached live hold that has since lapsed must go through expiry
	if sum.Status == orders.StatusLocked && !now.Before(sum.ReservationExpiresAt) {
		return orders.OrderSummary{}, false
	}
	sum.ReservationValid = sum.Status == orders.StatusLocked && now.Before(sum.ReservationExpiresAt)
	return sum, true
}

// cacheVersion must be read before the order is loaded.
func (s *Service) cacheVersion(ctx context.Context, orderID string) (int64, bool) {
	if s.Cache == nil {
		return 0, false
	}
	v, err := s.Cache.Version(ctx, orderID)
	if err != nil {
		s.Log.Warn().Err(err).Str("order_id", orderID).Msg("status cache version read failed")
		return 0, false
	}
	return v, true
}

func (s *Service) cacheSummary(ctx context.Context, o orders.Order, sum orders.OrderSummary, version int64, now time.Time) {
	var ttl time.Duration
	if o.Status == orders.StatusLocked {
		ttl = o.ReservationExpiresAt.Sub(now)
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return
	}
	stored, err := s.Cache.Set(ctx, o.ID, o.Customer.Phone, version, b, ttl)
	if err != nil {
		s.Log.Warn().Err(err).Str("order_id", o.ID).Msg("status cache write failed")
		return
	}
	if !stored {
		s.Log.Debug().Str("order_id", o.ID).Msg("order changed while loading, summary not cached")
	}
}

func (s *Service) invalidate(ctx context.Context, o orders.Order) {
	if s.Cache == nil || o.ID == "" {
		return
	}
	if err := s.Cache.Invalidate(ctx, o.ID, o.Customer.Phone); err != nil {
		s.Log.Warn().Err(err).Str("order_id", o.ID).Msg("status cache invalidate failed")
	}
}
