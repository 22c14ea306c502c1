package web

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"yourobc-billing/internal/app"
	"yourobc-billing/internal/export"

	"github.com/go-chi/chi/v5"
)

func listRequest(r *http.Request) (app.ListInvoicesRequest, bool) {
	q := r.URL.Query()
	req := app.ListInvoicesRequest{
		Type:       q.Get("type"),
		Status:     q.Get("status"),
		CustomerID: q.Get("customer_id"),
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return req, false
		}
		req.Limit = n
	}
	return req, true
}

// apiListInvoices handles GET /api/invoices.
func (h *Handler) apiListInvoices(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(r)
	if !ok {
		writeError(w, r, "limit must be a non-negative integer", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.ListInvoices(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateInvoice handles POST /api/invoices.
func (h *Handler) apiCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var body app.CreateInvoiceRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Currency == "" {
		writeError(w, r, "currency is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.CreateInvoice(r.Context(), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeCreated(w, result.Invoice)
}

// apiExportInvoices handles GET /api/invoices/export.
func (h *Handler) apiExportInvoices(w http.ResponseWriter, r *http.Request) {
	req, ok := listRequest(r)
	if !ok {
		writeError(w, r, "limit must be a non-negative integer", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	h.writeXLSX(w, r, "invoices.xlsx", func(w io.Writer) error {
		return h.svc.ExportInvoices(r.Context(), req, w)
	})
}

// apiGetInvoice handles GET /api/invoices/{id}.
func (h *Handler) apiGetInvoice(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Invoice)
}

// apiInvoiceHistory handles GET /api/invoices/{id}/history.
func (h *Handler) apiInvoiceHistory(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetInvoiceHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiUpdateInvoiceStatus handles POST /api/invoices/{id}/status.
// Body: { status }
func (h *Handler) apiUpdateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status == "" {
		writeError(w, r, "status is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.UpdateInvoiceStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Invoice)
}

// apiRecordCollectionAttempt handles POST /api/invoices/{id}/collection-attempts.
func (h *Handler) apiRecordCollectionAttempt(w http.ResponseWriter, r *http.Request) {
	var body app.CollectionAttemptRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.RecordCollectionAttempt(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Invoice)
}

// apiOverdueSweep handles POST /api/invoices/overdue-sweep.
func (h *Handler) apiOverdueSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.MarkOverdueInvoices(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiPODInvoice handles POST /api/shipments/{id}/pod-invoice.
// Body (optional): { pod_received_at }
// A repeated call answers 200 with success=false.
func (h *Handler) apiPODInvoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PODReceivedAt *time.Time `json:"pod_received_at"`
	}
	if !decodeOptionalJSON(w, r, &body) {
		return
	}

	result, err := h.svc.CreateInvoiceFromPOD(r.Context(), chi.URLParam(r, "id"), body.PODReceivedAt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result.Success {
		writeCreated(w, result)
		return
	}
	writeJSON(w, result)
}

// apiAutoGenNotified handles POST /api/auto-gen-log/{id}/notified.
// Body: { recipients: [..] }
func (h *Handler) apiAutoGenNotified(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Recipients []string `json:"recipients"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	entry, err := h.svc.MarkAutoGenNotificationSent(r.Context(), chi.URLParam(r, "id"), body.Recipients)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// writeXLSX renders into memory first so a failed export still gets a
// JSON error instead of a truncated file.
func (h *Handler) writeXLSX(w http.ResponseWriter, r *http.Request, filename string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}
