package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/inventory"
	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func NewRouter(log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// requestLogger writes one access log line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				ev := log.Info()
				if ww.Status() >= http.StatusInternalServerError {
					ev = log.Error()
				}
				ev.Str("req_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResp struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message"`
	Field        string `json:"field,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, inventory.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrExpired):
		return http.StatusGone
	case errors.Is(err, orders.ErrConflict),
		errors.Is(err, orders.ErrAlreadySubmitted),
		errors.Is(err, orders.ErrAlreadySettled),
		errors.Is(err, orders.ErrNotSubmitted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and never echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	code := statusFor(err)
	resp := errorResp{ErrorMessage: err.Error()}
	switch {
	case code == http.StatusInternalServerError:
		log.Error().Err(err).Str("req_id", middleware.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		resp.ErrorMessage = "internal error"
	case code == http.StatusNotFound:
		resp.ErrorMessage = "not found"
	}
	var ve *orders.ValidationError
	if errors.As(err, &ve) {
		resp.ErrorMessage = ve.Error()
		resp.Field = ve.Field
	}
	// sentinel text without the wrapping context
	for _, s := range []error{orders.ErrExpired, orders.ErrAlreadySubmitted, orders.ErrAlreadySettled, orders.ErrNotSubmitted} {
		if errors.Is(err, s) {
			resp.ErrorMessage = s.Error()
		}
	}
	writeJSON(w, code, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return &orders.ValidationError{Field: "body", Reason: "invalid json"}
	}
	return nil
}
