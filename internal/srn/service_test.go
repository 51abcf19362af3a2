package srn

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

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/balance"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

type fakeBackend struct {
	poBalance decimal.Decimal
	msBalance decimal.Decimal
	srns      []backend.SRN
	checkErr  error
	created   []backend.SRN
	updated   []backend.SRN
	deleted   []int64
	uploads   []string
	listErr   error
}

func (f *fakeBackend) CreateSRN(ctx context.Context, token string, in backend.SRN) (backend.SRN, error) {
	in.ID = int64(100 + len(f.created))
	f.created = append(f.created, in)
	return in, nil
}

func (f *fakeBackend) UpdateSRN(ctx context.Context, token string, id int64, in backend.SRN) (backend.SRN, error) {
	f.updated = append(f.updated, in)
	return in, nil
}

func (f *fakeBackend) DeleteSRN(ctx context.Context, token string, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) SRN(ctx context.Context, token string, id int64) (backend.SRN, error) {
	for _, s := range f.srns {
		if s.ID == id {
			return s, nil
		}
	}
	return backend.SRN{}, shared.ErrNotFound
}

func (f *fakeBackend) SRNs(ctx context.Context, token string) ([]backend.SRN, error) {
	return f.srns, nil
}

func (f *fakeBackend) SRNsByPO(ctx context.Context, token string, poID int64) ([]backend.SRN, error) {
	var out []backend.SRN
	for _, s := range f.srns {
		if s.POID == poID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeBackend) SRNExists(ctx context.Context, token string, poID int64, msID *int64) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	target := balance.Target{POID: poID, MilestoneID: msID}
	for _, s := range f.srns {
		if target.Same(balance.Target{POID: s.POID, MilestoneID: s.MilestoneID}) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBackend) LinkedAmounts(ctx context.Context, token string, id int64) (backend.LinkedAmounts, error) {
	return backend.LinkedAmounts{SRNID: id, SRNAmount: decimal.NewFromInt(10)}, nil
}

func (f *fakeBackend) POBalance(ctx context.Context, token string, poID int64) (backend.Balance, error) {
	return backend.Balance{Amount: f.poBalance}, nil
}

func (f *fakeBackend) POBalanceForConsumption(ctx context.Context, token string, poID int64) (backend.Balance, error) {
	return backend.Balance{}, errors.New("consumption balance must not be used for SRNs")
}

func (f *fakeBackend) MilestoneBalance(ctx context.Context, token string, poID, msID int64) (backend.Balance, error) {
	return backend.Balance{Amount: f.msBalance}, nil
}

func (f *fakeBackend) MilestoneBalanceForConsumption(ctx context.Context, token string, poID, msID int64) (backend.Balance, error) {
	return backend.Balance{}, errors.New("consumption balance must not be used for SRNs")
}

func (f *fakeBackend) UploadAttachment(ctx context.Context, token, level string, referenceID int64, file backend.FilePart) (backend.AttachmentMeta, error) {
	f.uploads = append(f.uploads, file.Name)
	return backend.AttachmentMeta{ID: int64(len(f.uploads)), FileName: file.Name}, nil
}

func (f *fakeBackend) Attachments(ctx context.Context, token, level string, referenceID int64) ([]backend.AttachmentMeta, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return nil, nil
}

func (f *fakeBackend) DownloadAttachment(ctx context.Context, token string, id int64) (*backend.Download, error) {
	return nil, shared.ErrNotFound
}

func (f *fakeBackend) DeleteAttachment(ctx context.Context, token string, id int64) error {
	return nil
}

type fakePOs struct{}

func (fakePOs) PurchaseOrder(ctx context.Context, t shared.Tenant, poID int64) (backend.PurchaseOrder, error) {
	return backend.PurchaseOrder{ID: poID, PONumber: "PO-7", Currency: "INR"}, nil
}

type fakeForms struct{}

func (fakeForms) LoadForm(ctx context.Context, t shared.Tenant, req reference.FormRequest) (reference.FormData, error) {
	return reference.FormData{}, nil
}

var tenant = shared.Tenant{Token: "tok", TenantID: "t1", UserID: "u1"}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(b *fakeBackend) *Service {
	checker := balance.NewChecker(b, 0)
	return NewService(b, fakePOs{}, checker, attachments.NewService(b, nil, discard()), nil, nil, discard())
}

func ms(v int64) *int64 { return &v }

func input(srnType string, amount int64) Input {
	return Input{
		POID:        7,
		MilestoneID: ms(3),
		Name:        "April payment",
		Amount:      decimal.NewFromInt(amount),
		Type:        srnType,
		Date:        "2024-04-30",
	}
}

func TestFullTypeFillsMilestoneBalance(t *testing.T) {
	b := &fakeBackend{msBalance: decimal.NewFromInt(2500)}
	sel, err := newService(b).ChooseType(context.Background(), tenant, TypeRequest{Type: TypeFull, POID: 7, MilestoneID: ms(3)})
	require.NoError(t, err)
	require.Equal(t, "2500", sel.Amount.String())
	require.True(t, sel.ReadOnly)
	require.Equal(t, "INR", sel.Currency)
}

func TestFullTypeRejectedWhenSRNsExist(t *testing.T) {
	b := &fakeBackend{
		msBalance: decimal.NewFromInt(2500),
		srns:      []backend.SRN{{ID: 1, POID: 7, MilestoneID: ms(3), Amount: decimal.NewFromInt(100)}},
	}
	_, err := newService(b).ChooseType(context.Background(), tenant, TypeRequest{Type: TypeFull, POID: 7, MilestoneID: ms(3)})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "srnType")

	sel, err := newService(b).ChooseType(context.Background(), tenant, TypeRequest{Type: TypeFull, POID: 7, MilestoneID: ms(4)})
	require.NoError(t, err)
	require.True(t, sel.ReadOnly)
}

func TestExistingCheckFallsBackToPOList(t *testing.T) {
	b := &fakeBackend{
		poBalance: decimal.NewFromInt(900),
		checkErr:  errors.New("check endpoint down"),
		srns:      []backend.SRN{{ID: 1, POID: 7}},
	}
	_, err := newService(b).ChooseType(context.Background(), tenant, TypeRequest{Type: TypeFull, POID: 7})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPartialTypeLeavesAmountEditable(t *testing.T) {
	b := &fakeBackend{poBalance: decimal.NewFromInt(900)}
	sel, err := newService(b).ChooseType(context.Background(), tenant, TypeRequest{Type: TypePartial, POID: 7})
	require.NoError(t, err)
	require.False(t, sel.ReadOnly)
	require.True(t, sel.Amount.IsZero())
	require.Equal(t, "900", sel.Available.String())
}

func TestCreateFullUsesBalance(t *testing.T) {
	b := &fakeBackend{msBalance: decimal.NewFromInt(2500)}
	res, err := newService(b).Create(context.Background(), tenant, input(TypeFull, 1), nil, "")
	require.NoError(t, err)
	require.Equal(t, "2500.00", res.SRN.Amount.StringFixed(2))
	require.Equal(t, "INR", b.created[0].Currency)
}

func TestCreatePartialOverBalancePersistsError(t *testing.T) {
	b := &fakeBackend{msBalance: decimal.NewFromInt(100)}
	_, err := newService(b).Create(context.Background(), tenant, input(TypePartial, 150), nil, "")
	var exceeded *balance.ExceededError
	require.True(t, errors.As(err, &exceeded))
	require.Zero(t, exceeded.ClearAfterMillis())
	require.Contains(t, exceeded.FieldErrors()["srnAmount"], "₹100.00")
	require.Empty(t, b.created)
}

func TestCreateDropsDuplicateFiles(t *testing.T) {
	b := &fakeBackend{msBalance: decimal.NewFromInt(100)}
	file := attachments.File{Name: "receipt.pdf", Size: 8, LastModified: 42, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
	res, err := newService(b).Create(context.Background(), tenant, input(TypePartial, 50), []attachments.File{file, file}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"receipt.pdf"}, b.uploads)
	require.Equal(t, []string{"receipt.pdf"}, res.Duplicates)
}

func TestUpdateFullExcludesItself(t *testing.T) {
	b := &fakeBackend{
		msBalance: decimal.NewFromInt(0),
		srns:      []backend.SRN{{ID: 5, POID: 7, MilestoneID: ms(3), Amount: decimal.NewFromInt(2500), Type: TypeFull}},
	}
	res, err := newService(b).Update(context.Background(), tenant, 5, input(TypeFull, 0), nil, "")
	require.NoError(t, err)
	require.Equal(t, "2500", res.SRN.Amount.String())
	require.Equal(t, int64(5), res.SRN.ID)
}

func TestUpdateWithFilesFailsWhenAttachmentsUnknown(t *testing.T) {
	b := &fakeBackend{
		msBalance: decimal.NewFromInt(1000),
		srns:      []backend.SRN{{ID: 5, POID: 7, MilestoneID: ms(3), Amount: decimal.NewFromInt(100), Type: TypePartial}},
		listErr:   errors.New("attachments unavailable"),
	}
	file := attachments.File{Name: "receipt.pdf", Size: 8, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}

	_, err := newService(b).Update(context.Background(), tenant, 5, input(TypePartial, 50), []attachments.File{file}, "")
	require.Error(t, err)
	require.Empty(t, b.updated)
	require.Empty(t, b.uploads)
}

func TestHandlerRoutes(t *testing.T) {
	b := &fakeBackend{
		poBalance: decimal.NewFromInt(100),
		srns: []backend.SRN{
			{ID: 1, POID: 7, Name: "Alpha, advance", Amount: decimal.NewFromInt(10), Currency: "USD", Date: "2024-01-01"},
			{ID: 2, POID: 8, Name: "Beta", Amount: decimal.NewFromInt(20), Currency: "USD", Date: "2024-02-01"},
		},
	}
	h := NewHandler(discard(), newService(b), fakeForms{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithTenant(req.Context(), tenant)))
		})
	})
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/srns?poId=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Alpha, advance")
	require.NotContains(t, rec.Body.String(), "Beta")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/srns/export.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"Alpha, advance"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/srns/type", strings.NewReader(`{"srnType":"full","poId":7}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/srns/2", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []int64{2}, b.deleted)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/srns/1/linked-amounts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"srnId":1`)
}
