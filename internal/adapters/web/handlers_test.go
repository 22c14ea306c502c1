package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"yourobc-billing/internal/app"
	"yourobc-billing/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// fakeService overrides the methods a test exercises; anything else panics
// through the nil embedded interface.
type fakeService struct {
	app.ApplicationService

	podCalls    map[string]int
	podReceived *time.Time
	lastActor   core.Actor
	statusErr   error
	invoiceErr  error
}

func (f *fakeService) AuthenticateUser(_ context.Context, username, password string) (*app.UserSession, error) {
	if username == "anna" && password == "correct-horse" {
		return &app.UserSession{UserID: "u-1", Username: "anna", Role: core.RoleAccounting}, nil
	}
	return nil, core.ErrNotAuthenticated
}

func (f *fakeService) GetUser(_ context.Context, id string) (*app.UserResult, error) {
	if id != "u-1" {
		return nil, fmt.Errorf("user id=%s: %w", id, core.ErrNotFound)
	}
	return &app.UserResult{ID: "u-1", Username: "anna", Role: core.RoleAccounting}, nil
}

func (f *fakeService) CreateInvoiceFromPOD(ctx context.Context, shipmentID string, podReceived *time.Time) (*core.AutoInvoiceResult, error) {
	f.lastActor, _ = core.ActorFromContext(ctx)
	f.podReceived = podReceived
	if f.podCalls == nil {
		f.podCalls = map[string]int{}
	}
	f.podCalls[shipmentID]++
	if f.podCalls[shipmentID] > 1 {
		return &core.AutoInvoiceResult{Success: false, Reason: core.ReasonInvoiceExists, InvoiceNumber: "25030013"}, nil
	}
	return &core.AutoInvoiceResult{Success: true, InvoiceID: "inv-1", InvoiceNumber: "25030013", LogID: "log-1"}, nil
}

func (f *fakeService) GetInvoice(_ context.Context, id string) (*app.InvoiceResult, error) {
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	return &app.InvoiceResult{Invoice: &core.Invoice{ID: id, InvoiceNumber: "25030013"}}, nil
}

func (f *fakeService) UpdateInvoiceStatus(_ context.Context, id, status string) (*app.InvoiceResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &app.InvoiceResult{Invoice: &core.Invoice{ID: id, Status: core.InvoiceStatus(status)}}, nil
}

func (f *fakeService) ValidateInvoiceNumber(number string) *app.InvoiceNumberCheckResult {
	return &app.InvoiceNumberCheckResult{InvoiceNumber: number, Valid: number == "25030013"}
}

func newTestServer(t *testing.T, svc app.ApplicationService) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(svc, Options{JWTSecret: testSecret}))
	t.Cleanup(srv.Close)
	return srv
}

func bearer(t *testing.T) string {
	t.Helper()
	h := &Handler{jwtSecret: testSecret, tokenTTL: time.Hour}
	tok, err := h.signToken(userSession{UserID: "u-1", Username: "anna", Role: core.RoleAccounting}, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, srv *httptest.Server, method, path, auth, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	resp := do(t, srv, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	resp := do(t, srv, http.MethodGet, "/api/invoices/inv-1", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	assert.Equal(t, "UNAUTHORIZED", body.Code)
	assert.Equal(t, resp.Header.Get("X-Request-ID"), body.RequestID)
}

func TestLoginThenMe(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	resp := do(t, srv, http.MethodPost, "/api/auth/login", "", `{"username":"anna","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/auth/login", "", `{"username":"anna","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[struct {
		Token string `json:"token"`
	}](t, resp)
	require.NotEmpty(t, login.Token)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == authCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp = do(t, srv, http.MethodGet, "/api/auth/me", "Bearer "+login.Token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[app.UserResult](t, resp)
	assert.Equal(t, "anna", me.Username)
}

func TestPODInvoiceIsIdempotentOverHTTP(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)
	auth := bearer(t)

	resp := do(t, srv, http.MethodPost, "/api/shipments/sh-1/pod-invoice", auth, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[core.AutoInvoiceResult](t, resp)
	assert.True(t, first.Success)
	assert.Equal(t, "u-1", svc.lastActor.ID)

	resp = do(t, srv, http.MethodPost, "/api/shipments/sh-1/pod-invoice", auth, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[core.AutoInvoiceResult](t, resp)
	assert.False(t, second.Success)
	assert.Equal(t, core.ReasonInvoiceExists, second.Reason)
}

func TestPODInvoiceReadsChunkedBody(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	// A reader of unknown length makes the client send Transfer-Encoding: chunked.
	body := io.MultiReader(strings.NewReader(`{"pod_received_at":"2025-03-14T16:00:00Z"}`))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/shipments/sh-2/pod-invoice", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", bearer(t))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, svc.podReceived)
	assert.True(t, svc.podReceived.Equal(time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)))
}

func TestPODInvoiceRejectsMalformedBody(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	resp := do(t, srv, http.MethodPost, "/api/shipments/sh-3/pod-invoice", bearer(t), `{"pod_received_at":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, svc.podCalls["sh-3"])
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("invoice x: %w", core.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", fmt.Errorf("role viewer: %w", core.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{"validation", fmt.Errorf("bad: %w", core.ErrValidation), http.StatusBadRequest, "BAD_REQUEST"},
		{"transition", fmt.Errorf("paid -> draft: %w", core.ErrInvalidTransition), http.StatusConflict, "INVALID_TRANSITION"},
		{"already invoiced", fmt.Errorf("shipment s-1: %w", core.ErrAlreadyInvoiced), http.StatusConflict, "ALREADY_INVOICED"},
		{"unclassified", fmt.Errorf("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeService{statusErr: tt.err})
			resp := do(t, srv, http.MethodPost, "/api/invoices/inv-1/status", bearer(t), `{"status":"sent"}`)
			require.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[errorResponse](t, resp).Code)
		})
	}
}

func TestUnclassifiedErrorDoesNotLeakDetail(t *testing.T) {
	srv := newTestServer(t, &fakeService{invoiceErr: fmt.Errorf("dial tcp 10.0.0.5:5432: refused")})
	resp := do(t, srv, http.MethodGet, "/api/invoices/inv-1", bearer(t), "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, decode[errorResponse](t, resp).Error, "10.0.0.5")
}

func TestValidateNumber(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	resp := do(t, srv, http.MethodGet, "/api/invoice-numbers/validate?number=25030013", bearer(t), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[app.InvoiceNumberCheckResult](t, resp).Valid)

	resp = do(t, srv, http.MethodGet, "/api/invoice-numbers/validate", bearer(t), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	resp := do(t, srv, http.MethodPost, "/api/invoices/inv-1/status", bearer(t), `{"status":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", decode[errorResponse](t, resp).Code)
}
