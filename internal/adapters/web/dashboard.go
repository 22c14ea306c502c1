package web

import (
	"io"
	"net/http"
)

// apiGetDashboard handles GET /api/dashboard.
func (h *Handler) apiGetDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetDashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRefreshDashboard handles POST /api/dashboard/refresh.
func (h *Handler) apiRefreshDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RefreshDashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiExportDashboard handles GET /api/dashboard/export.
func (h *Handler) apiExportDashboard(w http.ResponseWriter, r *http.Request) {
	h.writeXLSX(w, r, "dashboard.xlsx", func(w io.Writer) error {
		return h.svc.ExportDashboard(r.Context(), w)
	})
}
