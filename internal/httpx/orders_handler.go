package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/ariefcatur/go-unique-checkout/internal/reservation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type OrdersHandler struct {
	Svc     *reservation.Service
	Limiter Limiter // optional, guards POST /orders
	Log     zerolog.Logger
}

type ReserveReq struct {
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	CustomerPincode string          `json:"customer_pincode"`
	Items           []orders.Item   `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
	ProductIDs      []string        `json:"product_ids"`
}

type ReserveResp struct {
	Success             bool                        `json:"success"`
	OrderID             string                      `json:"order_id,omitempty"`
	OrderNumber         int64                       `json:"order_number,omitempty"`
	ExpiresAt           *time.Time                  `json:"expires_at,omitempty"`
	ErrorMessage        string                      `json:"error_message,omitempty"`
	UnavailableProducts []orders.UnavailableProduct `json:"unavailable_products,omitempty"`
}

type PaymentReq struct {
	CustomerPhone    string `json:"customer_phone"`
	PaymentReference string `json:"payment_reference"`
	PayerName        string `json:"payer_name"`
	ProofURL         string `json:"proof_url"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.With(rateLimit(h.Limiter, h.Log)).Post("/orders", h.reserve)
	r.Post("/orders/{id}/payment", h.submitPayment)
	r.Get("/orders/{id}", h.trackOrder)
	r.Get("/orders/{id}/reservation", h.checkReservation)
}

func (h *OrdersHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	res, err := h.Svc.Reserve(r.Context(), orders.ReserveRequest{
		Customer: orders.Customer{
			Name:    req.CustomerName,
			Phone:   req.CustomerPhone,
			Address: req.CustomerAddress,
			Pincode: req.CustomerPincode,
		},
		Items:      req.Items,
		Subtotal:   req.Subtotal,
		Shipping:   req.Shipping,
		Total:      req.Total,
		ProductIDs: req.ProductIDs,
	})
	var conflict *orders.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, ReserveResp{
			ErrorMessage:        orders.ErrConflict.Error(),
			UnavailableProducts: conflict.Unavailable,
		})
		return
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, ReserveResp{
		Success:     true,
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
		ExpiresAt:   &res.ExpiresAt,
	})
}

func (h *OrdersHandler) submitPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	o, err := h.Svc.SubmitPayment(r.Context(), orders.PaymentRequest{
		OrderID:   chi.URLParam(r, "id"),
		Phone:     req.CustomerPhone,
		Reference: req.PaymentReference,
		PayerName: req.PayerName,
		ProofURL:  req.ProofURL,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order_id": o.ID, "status": o.Status})
}

func (h *OrdersHandler) trackOrder(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Svc.TrackOrder(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("phone"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *OrdersHandler) checkReservation(w http.ResponseWriter, r *http.Request) {
	check, err := h.Svc.CheckReservation(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("phone"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
