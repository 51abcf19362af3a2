package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/po-console/internal/attachments"
	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/reference"
	"github.com/odyssey-erp/po-console/internal/shared"
)

type fakeBackend struct {
	tasks      []backend.TimesheetTask
	tasksByID  map[int64][]backend.TimesheetTask
	taskCalls  [][2]string
	generated  []backend.InvoiceRequest
	withFiles  [][]backend.FilePart
	previewed  []backend.InvoiceRequest
	invoices   []backend.Invoice
	failCreate error
}

func (f *fakeBackend) Invoices(ctx context.Context, token string) ([]backend.Invoice, error) {
	return f.invoices, nil
}

func (f *fakeBackend) GenerateInvoice(ctx context.Context, token string, in backend.InvoiceRequest) (backend.Invoice, error) {
	if f.failCreate != nil {
		return backend.Invoice{}, f.failCreate
	}
	f.generated = append(f.generated, in)
	return backend.Invoice{ID: 11, InvoiceNumber: "INV-11", TotalAmount: in.TotalAmount}, nil
}

func (f *fakeBackend) GenerateInvoiceWithAttachments(ctx context.Context, token string, in backend.InvoiceRequest, files []backend.FilePart) (backend.Invoice, error) {
	f.generated = append(f.generated, in)
	f.withFiles = append(f.withFiles, files)
	return backend.Invoice{ID: 12, InvoiceNumber: "INV-12", TotalAmount: in.TotalAmount}, nil
}

func (f *fakeBackend) PreviewInvoice(ctx context.Context, token string, in backend.InvoiceRequest) (*backend.Download, error) {
	f.previewed = append(f.previewed, in)
	return &backend.Download{Body: io.NopCloser(strings.NewReader("%PDF-1.4 preview")), ContentType: "application/pdf"}, nil
}

func (f *fakeBackend) DownloadInvoice(ctx context.Context, token string, id int64) (*backend.Download, error) {
	return &backend.Download{Body: io.NopCloser(strings.NewReader("%PDF-1.4")), ContentType: "application/pdf", Filename: "INV-11.pdf"}, nil
}

func (f *fakeBackend) DownloadInvoiceAttachment(ctx context.Context, token string, invoiceID int64, n int) (*backend.Download, error) {
	return nil, shared.ErrNotFound
}

func (f *fakeBackend) TimesheetTasks(ctx context.Context, token string, userID int64, start, end string) ([]backend.TimesheetTask, error) {
	f.taskCalls = append(f.taskCalls, [2]string{start, end})
	if f.tasksByID != nil {
		return f.tasksByID[userID], nil
	}
	return f.tasks, nil
}

type fakeRoster struct {
	users []backend.User
}

func (f fakeRoster) Users(ctx context.Context, t shared.Tenant) ([]backend.User, error) {
	return f.users, nil
}

func (f fakeRoster) InvoiceProjects(ctx context.Context, t shared.Tenant) ([]backend.Project, error) {
	return []backend.Project{{ID: 1, Name: "Atlas"}}, nil
}

type fakeForms struct{}

func (fakeForms) LoadForm(ctx context.Context, t shared.Tenant, req reference.FormRequest) (reference.FormData, error) {
	return reference.FormData{}, nil
}

var tenant = shared.Tenant{Token: "tok", TenantID: "t1", UserID: "u1"}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBlobs(t *testing.T) (*attachments.BlobStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return attachments.NewBlobStore(client, time.Hour), client
}

func filledState() State {
	s := NewState()
	s.Form = FormData{
		InvoiceType:  TypeDomestic,
		CustomerName: "Acme",
		SupplierName: "Globex",
		FromDate:     "2024-04-01",
		ToDate:       "2024-04-07",
		Currency:     "USD",
	}
	s.Employees = []backend.InvoiceEmployee{{UserID: 4, Rate: d("50"), Quantity: d("10")}}
	s.Items = []backend.InvoiceItem{{Description: "Licences", Rate: d("20"), Quantity: d("5")}}
	return s
}

func TestRecomputeFetchesTimesheet(t *testing.T) {
	b := &fakeBackend{tasks: []backend.TimesheetTask{{TaskDate: "2024-04-01", HoursSpent: 7, MinutesSpent: 45}}}
	blobs, _ := newBlobs(t)
	svc := NewService(b, fakeRoster{users: []backend.User{{ID: 4, Name: "Asha"}}}, blobs, nil, nil, discard())

	s := filledState()
	s.AttachTimesheet = true
	view, err := svc.Recompute(context.Background(), tenant, s)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"2024-03-31", "2024-04-07"}}, b.taskCalls)
	require.Equal(t, "7.75", view.State.Form.Hours.StringFixed(2))
	require.Equal(t, "Asha", view.State.Employees[0].Name)
	require.Equal(t, "7", view.State.Employees[0].Quantity.String())
	require.Equal(t, "450.00", view.Totals.Total.StringFixed(2))
}

func TestRecomputeClearsHoursWhenNewEmployeeLoggedNothing(t *testing.T) {
	b := &fakeBackend{tasksByID: map[int64][]backend.TimesheetTask{
		4: {{TaskDate: "2024-04-01", HoursSpent: 40}},
		5: {},
	}}
	blobs, _ := newBlobs(t)
	roster := fakeRoster{users: []backend.User{{ID: 4, Name: "Asha"}, {ID: 5, Name: "Ben"}}}
	svc := NewService(b, roster, blobs, nil, nil, discard())

	s := filledState()
	s.AttachTimesheet = true
	view, err := svc.Recompute(context.Background(), tenant, s)
	require.NoError(t, err)
	require.Equal(t, "40.00", view.State.Form.Hours.StringFixed(2))

	next := view.State
	next.Employees[0].UserID = 5
	next.Employees[0].Name = ""
	view, err = svc.Recompute(context.Background(), tenant, next)
	require.NoError(t, err)
	require.Equal(t, "0.00", view.State.Form.Hours.StringFixed(2))
	require.True(t, view.State.Employees[0].Quantity.IsZero())
	require.Equal(t, "Ben", view.State.Employees[0].Name)
	require.Equal(t, "100.00", view.Totals.Total.StringFixed(2))
}

func TestRecomputeSkipsTimesheetWithoutRoster(t *testing.T) {
	b := &fakeBackend{tasks: []backend.TimesheetTask{{TaskDate: "2024-04-01", HoursSpent: 1}}}
	blobs, _ := newBlobs(t)
	svc := NewService(b, fakeRoster{}, blobs, nil, nil, discard())

	view, err := svc.Recompute(context.Background(), tenant, filledState())
	require.NoError(t, err)
	require.Empty(t, b.taskCalls)
	require.Equal(t, "600.00", view.Totals.Total.StringFixed(2))
}

func TestRecomputeRejectsTooManyRows(t *testing.T) {
	blobs, _ := newBlobs(t)
	svc := NewService(&fakeBackend{}, fakeRoster{}, blobs, nil, nil, discard())
	s := filledState()
	s.Items = make([]backend.InvoiceItem, MaxItems+1)
	_, err := svc.Recompute(context.Background(), tenant, s)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSubmitBlocksZeroTotal(t *testing.T) {
	b := &fakeBackend{}
	blobs, _ := newBlobs(t)
	svc := NewService(b, fakeRoster{}, blobs, nil, nil, discard())
	s := filledState()
	s.Employees = []backend.InvoiceEmployee{{UserID: 4, Rate: d("50")}}
	s.Items = nil

	_, err := svc.Submit(context.Background(), tenant, "sess", s, "")
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "totalAmount")
	require.Empty(t, b.generated)
}

func TestSubmitRequiresBillableRow(t *testing.T) {
	b := &fakeBackend{}
	blobs, _ := newBlobs(t)
	svc := NewService(b, fakeRoster{}, blobs, nil, nil, discard())
	s := filledState()
	s.Items = nil
	s.Employees = nil
	s.Form.Rate = d("50")
	s.Form.Hours = d("10")

	_, err := svc.Preview(context.Background(), tenant, s)
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "totalAmount")

	_, err = svc.Submit(context.Background(), tenant, "sess", s, "")
	require.True(t, errors.As(err, &verr))
	require.Empty(t, b.generated)
}

func TestSubmitSendsDerivedTotals(t *testing.T) {
	b := &fakeBackend{}
	blobs, _ := newBlobs(t)
	svc := NewService(b, fakeRoster{}, blobs, nil, nil, discard())

	res, err := svc.Submit(context.Background(), tenant, "sess", filledState(), "")
	require.NoError(t, err)
	require.Equal(t, int64(11), res.Invoice.ID)
	require.Len(t, b.generated, 1)
	req := b.generated[0]
	require.Equal(t, "t1", req.TenantID)
	require.Equal(t, "600.00", req.TotalAmount.StringFixed(2))
	require.Equal(t, "50.00", req.Rate.StringFixed(2))
	require.Equal(t, "10.00", req.Hours.StringFixed(2))
	require.Nil(t, req.Timesheet)
}

func TestSubmitWithStagedFiles(t *testing.T) {
	b := &fakeBackend{}
	blobs, client := newBlobs(t)
	svc := NewService(b, fakeRoster{}, blobs, nil, nil, discard())
	ctx := context.Background()

	s, res, err := svc.StageFiles(ctx, "sess", filledState(), []attachments.File{
		{Name: "po.pdf", Size: 8, ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		{Name: "big.pdf", Size: 12 << 20, ContentType: "application/pdf"},
	})
	require.NoError(t, err)
	require.Len(t, s.Attachments, 1)
	require.Len(t, res.Rejected, 1)
	require.Contains(t, res.Rejected[0].Reason, "10MB limit")

	// The draft only carries descriptors; content comes back from redis.
	s.Attachments[0].Data = nil
	out, err := svc.Submit(ctx, tenant, "sess", s, "")
	require.NoError(t, err)
	require.Equal(t, 1, out.Attached)
	require.Len(t, b.withFiles, 1)
	require.Equal(t, "attachments", b.withFiles[0][0].Field)
	require.Equal(t, []byte("%PDF-1.4"), b.withFiles[0][0].Data)

	keys, err := client.Keys(ctx, "console:staged:*").Result()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestSubmitAttachesTimesheet(t *testing.T) {
	b := &fakeBackend{}
	blobs, _ := newBlobs(t)
	svc := NewService(b, fakeRoster{}, blobs, nil, nil, discard())
	s := filledState()
	s.Items = nil
	s.AttachTimesheet = true
	s.Employees[0].Name = "Asha"
	s.Tasks = []backend.TimesheetTask{{TaskDate: "2024-04-02", HoursSpent: 8}}

	_, err := svc.Submit(context.Background(), tenant, "sess", s, "")
	require.NoError(t, err)
	summary := b.generated[0].Timesheet
	require.NotNil(t, summary)
	require.Equal(t, "Asha", summary.EmployeeName)
	require.Equal(t, 40, summary.TargetHours)
	require.Equal(t, "Tuesday", summary.Entries[0].Day)
}

func TestRemoveStagedFileStaysLocal(t *testing.T) {
	blobs, client := newBlobs(t)
	svc := NewService(&fakeBackend{}, fakeRoster{}, blobs, nil, nil, discard())
	ctx := context.Background()
	s, _, err := svc.StageFiles(ctx, "sess", NewState(), []attachments.File{
		{Name: "notes.txt", Size: 5, ContentType: "text/plain", Data: []byte("hello")},
	})
	require.NoError(t, err)

	s, err = svc.RemoveFile(ctx, "sess", s, s.Attachments[0].ID)
	require.NoError(t, err)
	require.Empty(t, s.Attachments)
	keys, err := client.Keys(ctx, "console:staged:*").Result()
	require.NoError(t, err)
	require.Empty(t, keys)

	_, err = svc.RemoveFile(ctx, "sess", s, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDraftRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	sessions := shared.NewSessionManager(client, "console_session", "secret", time.Hour, false)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(ctx, req)
	require.NoError(t, err)

	saved := filledState()
	saved.AttachTimesheet = true
	saved.Tasks = []backend.TimesheetTask{{ID: 3, TaskDate: "2024-04-01", HoursSpent: 2, Description: "Review"}}
	SaveDraft(sess, saved, discard())
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Commit(ctx, rec, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	reloaded, err := sessions.Load(ctx, next)
	require.NoError(t, err)
	restored, ok := LoadDraft(reloaded)
	require.True(t, ok)

	want, err := json.Marshal(saved)
	require.NoError(t, err)
	got, err := json.Marshal(restored)
	require.NoError(t, err)
	require.JSONEq(t, string(want), string(got))
	require.True(t, restored.AttachTimesheet)
	require.True(t, restored.Employees[0].Rate.Equal(d("50")))

	// A second pass changes nothing.
	SaveDraft(reloaded, restored, discard())
	again, ok := LoadDraft(reloaded)
	require.True(t, ok)
	again2, err := json.Marshal(again)
	require.NoError(t, err)
	require.JSONEq(t, string(got), string(again2))
}

func TestLoadDraftResetsOnGarbage(t *testing.T) {
	sessions := shared.NewSessionManager(nil, "console_session", "secret", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	sess.Set(DraftKey, "{not json")
	s, ok := LoadDraft(sess)
	require.False(t, ok)
	require.Equal(t, TypeDomestic, s.Form.InvoiceType)
	require.Empty(t, s.Items)

	ClearDraft(sess)
	_, ok = LoadDraft(sess)
	require.False(t, ok)
}

func newRouter(t *testing.T, b *fakeBackend) (chi.Router, *shared.Session) {
	t.Helper()
	blobs, _ := newBlobs(t)
	svc := NewService(b, fakeRoster{}, blobs, nil, nil, discard())
	h := NewHandler(discard(), svc, fakeForms{})
	sessions := shared.NewSessionManager(nil, "console_session", "secret", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithSession(req.Context(), sess)
			ctx = shared.ContextWithTenant(ctx, tenant)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r, sess
}

func TestHandlerDraftLifecycle(t *testing.T) {
	b := &fakeBackend{}
	r, sess := newRouter(t, b)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/draft", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"restored":false`)

	body, err := json.Marshal(filledState())
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/invoices/draft", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, sess.Get(DraftKey))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(attachments.FormField, "scan.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/invoices/draft/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "scan.png")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/draft", nil))
	require.Contains(t, rec.Body.String(), `"restored":true`)
	require.Contains(t, rec.Body.String(), "scan.png")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, b.withFiles, 1)
	require.Equal(t, "image/png", b.withFiles[0][0].ContentType)
	require.Empty(t, sess.Get(DraftKey))
}

func TestHandlerPreviewAndList(t *testing.T) {
	b := &fakeBackend{invoices: []backend.Invoice{
		{ID: 1, InvoiceNumber: "INV-1", CustomerName: "Acme", Currency: "USD", TotalAmount: d("1200"), FromDate: "2024-01-01"},
		{ID: 2, InvoiceNumber: "INV-2", CustomerName: "Globex", Currency: "EUR", TotalAmount: d("80"), FromDate: "2024-02-01"},
	}}
	r, _ := newRouter(t, b)

	body, err := json.Marshal(filledState())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices/preview", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Len(t, b.previewed, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices?q=acme", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "INV-1")
	require.NotContains(t, rec.Body.String(), "INV-2")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/export.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "$1,200.00")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/1/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "INV-11.pdf")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices/1/attachments/0", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
