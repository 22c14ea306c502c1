package web

import (
	"net/http"
	"strconv"
	"time"
)

// apiPreviewNumber handles GET /api/invoice-numbers/preview.
func (h *Handler) apiPreviewNumber(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.PreviewInvoiceNumber(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiValidateNumber handles GET /api/invoice-numbers/validate?number=.
func (h *Handler) apiValidateNumber(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if number == "" {
		writeError(w, r, "number is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.svc.ValidateInvoiceNumber(number))
}

// periodParams reads ?year=&month=, defaulting to the current UTC month.
func periodParams(r *http.Request) (int, int, bool) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		month = n
	}
	return year, month, true
}

// apiCounterStats handles GET /api/invoice-numbers/counter.
func (h *Handler) apiCounterStats(w http.ResponseWriter, r *http.Request) {
	year, month, ok := periodParams(r)
	if !ok {
		writeError(w, r, "year and month must be integers", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	stats, err := h.svc.GetCounterStats(r.Context(), year, month)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// apiResetCounter handles POST /api/invoice-numbers/counter/reset.
// Body: { year, month, value }
func (h *Handler) apiResetCounter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Year  int  `json:"year"`
		Month int  `json:"month"`
		Value *int `json:"value"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Value == nil {
		writeError(w, r, "value is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	counter, err := h.svc.ResetCounter(r.Context(), body.Year, body.Month, *body.Value)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, counter)
}
