package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"yourobc-billing/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc           app.ApplicationService
	router        chi.Router
	log           *zap.Logger
	jwtSecret     string
	tokenTTL      time.Duration
	secureCookies bool
}

// Options configures NewHandler.
type Options struct {
	AllowedOrigins string
	JWTSecret      string
	TokenTTL       time.Duration
	SecureCookies  bool
	Logger         *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}

	h := &Handler{
		svc:           svc,
		log:           opts.Logger,
		jwtSecret:     opts.JWTSecret,
		tokenTTL:      opts.TokenTTL,
		secureCookies: opts.SecureCookies,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(opts.Logger))
	r.Use(Recoverer(opts.Logger))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.With(RequestBodyLimit(1<<16)).Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// ── Invoices ──────────────────────────────────────────────────────────
		r.Get("/api/invoices", h.apiListInvoices)
		r.Post("/api/invoices", h.apiCreateInvoice)
		r.Get("/api/invoices/export", h.apiExportInvoices)
		r.Post("/api/invoices/overdue-sweep", h.apiOverdueSweep)
		r.Get("/api/invoices/{id}", h.apiGetInvoice)
		r.Get("/api/invoices/{id}/history", h.apiInvoiceHistory)
		r.Post("/api/invoices/{id}/status", h.apiUpdateInvoiceStatus)
		r.Post("/api/invoices/{id}/collection-attempts", h.apiRecordCollectionAttempt)
		r.Post("/api/shipments/{id}/pod-invoice", h.apiPODInvoice)
		r.Post("/api/auto-gen-log/{id}/notified", h.apiAutoGenNotified)

		// ── Invoice numbers ───────────────────────────────────────────────────
		r.Get("/api/invoice-numbers/preview", h.apiPreviewNumber)
		r.Get("/api/invoice-numbers/validate", h.apiValidateNumber)
		r.Get("/api/invoice-numbers/counter", h.apiCounterStats)
		r.Post("/api/invoice-numbers/counter/reset", h.apiResetCounter)

		// ── Exchange rates ────────────────────────────────────────────────────
		r.Get("/api/exchange-rates", h.apiListRates)
		r.Post("/api/exchange-rates", h.apiCreateRate)
		r.Get("/api/exchange-rates/resolve", h.apiResolveRate)
		r.Get("/api/exchange-rates/convert", h.apiConvert)
		r.Post("/api/exchange-rates/{id}/deactivate", h.apiDeactivateRate)

		// ── Dashboard ─────────────────────────────────────────────────────────
		r.Get("/api/dashboard", h.apiGetDashboard)
		r.Post("/api/dashboard/refresh", h.apiRefreshDashboard)
		r.Get("/api/dashboard/export", h.apiExportDashboard)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string    `json:"status"`
		Time   time.Time `json:"time"`
	}
	writeJSON(w, response{Status: "ok", Time: time.Now().UTC()})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDecodeError(w, r, err)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
// An empty body leaves v untouched, whatever the request's Content-Length says.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeDecodeError(w, r, err)
	return false
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
		return
	}
	writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
}

// parseDateParam parses an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
