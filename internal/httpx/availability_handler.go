package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/go-unique-checkout/internal/reservation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AvailabilityHandler serves the storefront's best-effort availability
// checks. Reserve is the only authoritative answer.
type AvailabilityHandler struct {
	Svc *reservation.Service
	Log zerolog.Logger
}

func (h *AvailabilityHandler) Register(r chi.Router) {
	r.Get("/availability", h.queryAvailability)
	r.Post("/availability", h.postAvailability)
	r.Get("/products/{id}/state", h.productState)
}

// GET /availability?ids=a,b
func (h *AvailabilityHandler) queryAvailability(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, strings.Split(r.URL.Query().Get("ids"), ","))
}

// POST /availability {"product_ids": [...]}
func (h *AvailabilityHandler) postAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductIDs []string `json:"product_ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.respond(w, r, req.ProductIDs)
}

func (h *AvailabilityHandler) respond(w http.ResponseWriter, r *http.Request, ids []string) {
	avail, err := h.Svc.GetAvailability(r.Context(), ids)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": avail})
}

func (h *AvailabilityHandler) productState(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.ProductState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	// the storefront never learns which order holds a product
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": st.ProductID,
		"state":      st.State,
		"updated_at": st.UpdatedAt,
	})
}
