package po

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

type fakeRef struct {
	pos []backend.PurchaseOrder
}

func (f *fakeRef) PurchaseOrders(ctx context.Context, t shared.Tenant) ([]backend.PurchaseOrder, error) {
	return f.pos, nil
}

func (f *fakeRef) PurchaseOrder(ctx context.Context, t shared.Tenant, poID int64) (backend.PurchaseOrder, error) {
	for _, p := range f.pos {
		if p.ID == poID {
			return p, nil
		}
	}
	return backend.PurchaseOrder{}, shared.ErrNotFound
}

func (f *fakeRef) Milestones(ctx context.Context, t shared.Tenant, poID int64, scope reference.MilestoneScope) ([]backend.Milestone, error) {
	return []backend.Milestone{{ID: 5, POID: poID, Name: string(scope)}}, nil
}

type fakeBalances struct{}

func (fakeBalances) POBalance(ctx context.Context, token string, poID int64) (backend.Balance, error) {
	return backend.Balance{Amount: decimal.NewFromInt(800)}, nil
}

func (fakeBalances) POBalanceForConsumption(ctx context.Context, token string, poID int64) (backend.Balance, error) {
	return backend.Balance{Amount: decimal.NewFromInt(1000)}, nil
}

func (fakeBalances) MilestoneBalance(ctx context.Context, token string, poID, msID int64) (backend.Balance, error) {
	return backend.Balance{Amount: decimal.NewFromInt(2500)}, nil
}

func (fakeBalances) MilestoneBalanceForConsumption(ctx context.Context, token string, poID, msID int64) (backend.Balance, error) {
	return backend.Balance{Amount: decimal.NewFromInt(300)}, nil
}

func newRouter() http.Handler {
	ref := &fakeRef{pos: []backend.PurchaseOrder{
		{ID: 1, PONumber: "PO-001", Currency: "USD", Amount: decimal.NewFromInt(5000), CustomerName: "Acme"},
		{ID: 2, PONumber: "PO-002", Currency: "EUR", Amount: decimal.NewFromInt(100), CustomerName: "Globex"},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(ref, balance.NewChecker(fakeBalances{}, time.Second)))
	h.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			tenant := shared.Tenant{Token: "tok", TenantID: "t1"}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithTenant(req.Context(), tenant)))
		})
	})
	h.MountRoutes(r)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestBalanceOverAmountIsRejected(t *testing.T) {
	rec := get(t, newRouter(), "/pos/1/balance?purpose=consumption&amount=1500")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "$1000.00")
	require.Contains(t, rec.Body.String(), `"clearAfterMs":1000`)
}

func TestBalanceMilestoneForSRN(t *testing.T) {
	rec := get(t, newRouter(), "/pos/1/balance?purpose=srn&milestoneId=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"formatted":"$2,500.00"`)
}

func TestBalanceRejectsBadPurpose(t *testing.T) {
	rec := get(t, newRouter(), "/pos/1/balance?purpose=refund")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDetailAndListing(t *testing.T) {
	router := newRouter()

	rec := get(t, router, "/pos/2?scope=srn")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"currencySymbol":"€"`)
	require.Contains(t, rec.Body.String(), `"msName":"srn"`)

	rec = get(t, router, "/pos/9")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, router, "/pos?q=globex")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "PO-002")
	require.NotContains(t, rec.Body.String(), "PO-001")

	rec = get(t, router, "/pos/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "purchase_orders_2024-01-02.csv")
}
