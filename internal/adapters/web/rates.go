package web

import (
	"net/http"
	"strconv"

	"yourobc-billing/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// apiListRates handles GET /api/exchange-rates?from=&to=&active=.
func (h *Handler) apiListRates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	activeOnly := true
	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, "active must be a boolean", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		activeOnly = b
	}

	result, err := h.svc.ListRates(r.Context(), q.Get("from"), q.Get("to"), activeOnly)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateRate handles POST /api/exchange-rates.
// Body: { from_currency, to_currency, rate, date?, source? }
func (h *Handler) apiCreateRate(w http.ResponseWriter, r *http.Request) {
	var body app.CreateRateRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	rate, err := h.svc.CreateRate(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, rate)
}

// apiResolveRate handles GET /api/exchange-rates/resolve?from=&to=&date=.
func (h *Handler) apiResolveRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	asOf, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, r, "date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ResolveRate(r.Context(), app.RateRequest{From: q.Get("from"), To: q.Get("to"), AsOf: asOf})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiConvert handles GET /api/exchange-rates/convert?amount=&from=&to=&date=.
func (h *Handler) apiConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		writeError(w, r, "amount must be a decimal number", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	asOf, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, r, "date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Convert(r.Context(), app.ConvertRequest{Amount: amount, From: q.Get("from"), To: q.Get("to"), AsOf: asOf})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiDeactivateRate handles POST /api/exchange-rates/{id}/deactivate.
func (h *Handler) apiDeactivateRate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateRate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
