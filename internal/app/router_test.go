package app_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/po-console/internal/app"
	"github.com/odyssey-erp/po-console/internal/auth"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/observability"
	"github.com/odyssey-erp/po-console/internal/po"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
	"github.com/odyssey-erp/po-console/jobs"
	_ "github.com/odyssey-erp/po-console/testing"
)

type stubReference struct {
	tokens []string
}

func (s *stubReference) PurchaseOrders(ctx context.Context, t shared.Tenant) ([]backend.PurchaseOrder, error) {
	s.tokens = append(s.tokens, t.Token)
	return []backend.PurchaseOrder{{ID: 1, PONumber: "PO-001", Currency: "USD", Amount: decimal.NewFromInt(1000)}}, nil
}

func (s *stubReference) PurchaseOrder(ctx context.Context, t shared.Tenant, poID int64) (backend.PurchaseOrder, error) {
	return backend.PurchaseOrder{}, shared.ErrNotFound
}

func (s *stubReference) Milestones(ctx context.Context, t shared.Tenant, poID int64, scope reference.MilestoneScope) ([]backend.Milestone, error) {
	return nil, nil
}

type client struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
	csrf    string
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:1234"
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if c.csrf != "" {
		req.Header.Set(app.CSRFHeader, c.csrf)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	if cookies := rr.Result().Cookies(); len(cookies) > 0 {
		c.cookies = cookies
	}
	return rr
}

func (c *client) readToken(rr *httptest.ResponseRecorder) {
	c.t.Helper()
	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(c.t, body.CSRFToken)
	c.csrf = body.CSRFToken
}

func newConsole(t *testing.T) (*client, *stubReference) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionManager(redisClient, "console_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	ref := &stubReference{}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         &app.Config{AppEnv: "test", RateLimitPerMin: 1000, AppRequestTimeout: 5 * time.Second},
		SessionManager: sessions,
		CSRFManager:    csrf,
		Metrics:        observability.NewMetrics(),
		JobHandler:     jobs.NewHandler(nil, logger),
		AuthHandler:    auth.NewHandler(logger, auth.NewService(nil, logger), sessions, csrf),
		POHandler:      po.NewHandler(logger, po.NewService(ref, nil)),
	})
	return &client{t: t, handler: router}, ref
}

const handOff = `{"token":"upstream-token","email":"asha@acme.test","tenantId":"17","userId":"4","tenantName":"Acme"}`

func TestHealthAndSecurityHeaders(t *testing.T) {
	c, _ := newConsole(t)
	rr := c.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestConsoleRoutesRequireTenant(t *testing.T) {
	c, ref := newConsole(t)
	rr := c.do(http.MethodGet, "/api/console/pos", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, ref.tokens)
}

func TestHandOffNeedsCSRFToken(t *testing.T) {
	c, _ := newConsole(t)
	rr := c.do(http.MethodPost, "/api/console/session", handOff)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "application/problem+json")
}

func TestSessionFlowReachesDomainRoutes(t *testing.T) {
	c, ref := newConsole(t)

	c.readToken(c.do(http.MethodGet, "/api/console/session", ""))
	first := c.csrf

	rr := c.do(http.MethodPost, "/api/console/session", handOff)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	c.readToken(rr)
	require.NotEqual(t, first, c.csrf)
	require.NotContains(t, rr.Body.String(), "upstream-token")

	rr = c.do(http.MethodGet, "/api/console/pos", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), "PO-001")
	require.Equal(t, []string{"upstream-token"}, ref.tokens)

	c.csrf = ""
	rr = c.do(http.MethodDelete, "/api/console/session", "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	metrics := c.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), "po_console_http_requests_total")
}

func TestJobsHealthMounted(t *testing.T) {
	c, _ := newConsole(t)
	rr := c.do(http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"queue":"default"`)
}
