package httpx

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/ariefcatur/go-unique-checkout/internal/reservation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const operatorTokenHeader = "X-Operator-Token"

type Sweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

// AdminHandler is the operator surface: payment settlement, order listing
// and an on-demand expiry sweep. Mounted under /admin.
type AdminHandler struct {
	Svc     *reservation.Service
	Sweeper Sweeper
	Token   string // empty disables every admin route
	Log     zerolog.Logger
}

type SettleReq struct {
	Decision string `json:"decision"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireOperator)
		r.Post("/orders/{id}/settle", h.settle)
		r.Get("/orders", h.listOrders)
		r.Post("/sweep", h.sweep)
	})
}

func (h *AdminHandler) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Token == "" {
			writeJSON(w, http.StatusForbidden, errorResp{ErrorMessage: "admin api disabled"})
			return
		}
		got := r.Header.Get(operatorTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorResp{ErrorMessage: "invalid operator token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) settle(w http.ResponseWriter, r *http.Request) {
	var req SettleReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	d, err := orders.ParseDecision(req.Decision)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	o, err := h.Svc.Settle(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order_id": o.ID, "status": o.Status})
}

type adminOrder struct {
	orders.OrderSummary
	CustomerPhone    string   `json:"customer_phone"`
	CustomerAddress  string   `json:"customer_address"`
	CustomerPincode  string   `json:"customer_pincode"`
	LockedProductIDs []string `json:"locked_product_ids"`
	PayerName        string   `json:"payment_payer_name,omitempty"`
	ProofURL         string   `json:"payment_proof_url,omitempty"`
}

// GET /admin/orders?status=payment_submitted&limit=50
func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	var f orders.ListFilter
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		f.Status = st
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, r, h.Log, &orders.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		f.Limit = n
	}

	list, err := h.Svc.ListOrders(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]adminOrder, 0, len(list))
	for _, o := range list {
		// ReservationValid is evaluated at listing time
		out = append(out, adminOrder{
			OrderSummary:     o.Summary(h.Svc.Clock()),
			CustomerPhone:    o.Customer.Phone,
			CustomerAddress:  o.Customer.Address,
			CustomerPincode:  o.Customer.Pincode,
			LockedProductIDs: o.LockedProductIDs,
			PayerName:        o.Payment.PayerName,
			ProofURL:         o.Payment.ProofURL,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.Sweeper.SweepOnce(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "expired": n})
}
