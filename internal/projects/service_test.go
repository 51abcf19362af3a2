package projects

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

type fakeBackend struct {
	codeErr error
	created []backend.ProjectRequest
	tenants []string
}

func (f *fakeBackend) GenerateProjectCode(ctx context.Context, token string) (string, error) {
	if f.codeErr != nil {
		return "", f.codeErr
	}
	return "PRJ-0042", nil
}

func (f *fakeBackend) CreateProject(ctx context.Context, token, tenantID string, in backend.ProjectRequest) (backend.Project, error) {
	f.created = append(f.created, in)
	f.tenants = append(f.tenants, tenantID)
	return backend.Project{ID: 42, Name: in.Name, Code: in.Code}, nil
}

type fakeRef struct {
	invalidated int
}

func (f *fakeRef) LoadForm(ctx context.Context, t shared.Tenant, req reference.FormRequest) (reference.FormData, error) {
	return reference.FormData{
		Users:   []backend.User{{ID: 1, Name: "Asha"}},
		Systems: []backend.System{{ID: 7, Name: "Billing"}},
	}, nil
}

func (f *fakeRef) Systems(ctx context.Context, t shared.Tenant) ([]backend.System, error) {
	return []backend.System{{ID: 7, Name: "Billing"}, {ID: 8, Name: "CRM"}}, nil
}

func (f *fakeRef) Projects(ctx context.Context, t shared.Tenant) ([]backend.Project, error) {
	return []backend.Project{{ID: 1, Name: "Atlas"}}, nil
}

func (f *fakeRef) Invalidate(ctx context.Context, t shared.Tenant) {
	f.invalidated++
}

type memoryIdempotency map[string]bool

func (m memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m[module+":"+key] = true
	return nil
}

func (m memoryIdempotency) Delete(ctx context.Context, key, module string) error {
	delete(m, module+":"+key)
	return nil
}

var tenant = shared.Tenant{Token: "tok", TenantID: "t1", UserID: "u1"}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validInput() Input {
	return Input{
		Name:            "Data platform",
		ManagerID:       1,
		Currency:        "usd",
		Cost:            decimal.RequireFromString("12500.456"),
		TeamMemberIDs:   []int64{2, 3, 2, 0},
		ImpactedSystems: []string{"billing", " Warehouse ", "BILLING", ""},
		StartDate:       "2024-01-01",
		EndDate:         "2024-06-30",
	}
}

func TestResolveSystems(t *testing.T) {
	got := ResolveSystems([]backend.System{{ID: 7, Name: "Billing"}}, []string{"billing", "Warehouse", "BILLING", " "})
	require.Equal(t, []SystemChoice{
		{Name: "Billing", ID: 7},
		{Name: "Warehouse", Created: true},
	}, got)
}

func TestCreateProject(t *testing.T) {
	b := &fakeBackend{}
	ref := &fakeRef{}
	svc := NewService(b, ref, nil, nil, discard())

	res, err := svc.Create(context.Background(), tenant, validInput(), "")
	require.NoError(t, err)
	require.Equal(t, int64(42), res.Project.ID)
	require.Equal(t, []string{"t1"}, b.tenants)

	req := b.created[0]
	require.Equal(t, "PRJ-0042", req.Code)
	require.Equal(t, "USD", req.Currency)
	require.Equal(t, "12500.46", req.Cost.StringFixed(2))
	require.Equal(t, []int64{2, 3}, req.TeamMemberIDs)
	require.Equal(t, []string{"Billing", "Warehouse"}, req.ImpactedSystems)
	require.True(t, res.Systems[1].Created)
	require.Equal(t, 1, ref.invalidated)
}

func TestCreateProjectValidation(t *testing.T) {
	svc := NewService(&fakeBackend{}, &fakeRef{}, nil, nil, discard())

	in := validInput()
	in.EndDate = "2023-12-31"
	_, err := svc.Create(context.Background(), tenant, in, "")
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "endDate")

	in = validInput()
	in.ManagerID = 0
	_, err = svc.Create(context.Background(), tenant, in, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFormKeepsWorkingWithoutCode(t *testing.T) {
	svc := NewService(&fakeBackend{codeErr: errors.New("boom")}, &fakeRef{}, nil, nil, discard())
	form, err := svc.Form(context.Background(), tenant)
	require.NoError(t, err)
	require.Empty(t, form.Code)
	require.Len(t, form.Users, 1)
	require.Len(t, form.Systems, 1)
}

func TestHandlerRejectsReplayedSubmission(t *testing.T) {
	b := &fakeBackend{}
	h := NewHandler(discard(), NewService(b, &fakeRef{}, memoryIdempotency{}, nil, discard()))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithTenant(req.Context(), tenant)))
		})
	})
	h.MountRoutes(r)

	body := `{"projectName":"Atlas","projectManagerId":1,"currency":"EUR","projectCost":"10","startDate":"2024-01-01","endDate":"2024-02-01","impactedSystems":["CRM"]}`
	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "k-1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	require.Equal(t, http.StatusCreated, post().Code)
	require.Equal(t, http.StatusConflict, post().Code)
	require.Len(t, b.created, 1)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/form", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "PRJ-0042")
}
