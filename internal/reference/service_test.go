package reference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/shared"
)

type fakeUpstream struct {
	poCalls    atomic.Int32
	orgCalls   atomic.Int32
	usersErr   error
	gate       chan struct{}
	pos        []backend.PurchaseOrder
	orgsByType map[string][]backend.Organization
	orgTypeErr error
	tenantOrgs []backend.Organization
}

func (f *fakeUpstream) PurchaseOrders(ctx context.Context, token string) ([]backend.PurchaseOrder, error) {
	f.poCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.pos, nil
}

func (f *fakeUpstream) PurchaseOrder(ctx context.Context, token string, poID int64) (backend.PurchaseOrder, error) {
	for _, po := range f.pos {
		if po.ID == poID {
			return po, nil
		}
	}
	return backend.PurchaseOrder{}, shared.ErrNotFound
}

func (f *fakeUpstream) Milestones(ctx context.Context, token string, poID int64) ([]backend.Milestone, error) {
	return []backend.Milestone{{ID: 1, POID: poID, Name: "all"}}, nil
}

func (f *fakeUpstream) MilestonesForPO(ctx context.Context, token string, poID int64) ([]backend.Milestone, error) {
	return []backend.Milestone{{ID: 2, POID: poID, Name: "srn"}}, nil
}

func (f *fakeUpstream) MilestonesForConsumption(ctx context.Context, token string, poID int64) ([]backend.Milestone, error) {
	return []backend.Milestone{{ID: 3, POID: poID, Name: "consumption"}}, nil
}

func (f *fakeUpstream) Users(ctx context.Context, token, tenantID string) ([]backend.User, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return []backend.User{{ID: 1, Name: "Asha"}}, nil
}

func (f *fakeUpstream) Projects(ctx context.Context, token, tenantID string) ([]backend.Project, error) {
	return []backend.Project{{ID: 1, Name: "Atlas"}}, nil
}

func (f *fakeUpstream) InvoiceProjects(ctx context.Context, token string) ([]backend.Project, error) {
	return nil, nil
}

func (f *fakeUpstream) OrganizationsByType(ctx context.Context, token, orgType string) ([]backend.Organization, error) {
	f.orgCalls.Add(1)
	if f.orgTypeErr != nil {
		return nil, f.orgTypeErr
	}
	return f.orgsByType[orgType], nil
}

func (f *fakeUpstream) Organizations(ctx context.Context, token string) ([]backend.Organization, error) {
	return f.tenantOrgs, nil
}

func (f *fakeUpstream) Systems(ctx context.Context, token string) ([]backend.System, error) {
	return []backend.System{{ID: 1, Name: "SAP"}}, nil
}

func newTestService(t *testing.T, up Upstream) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(up, NewCache(client, time.Minute), nil), mr
}

var tenant = shared.Tenant{Token: "tok", TenantID: "t1", UserID: "u1"}

func TestPurchaseOrdersCachedPerTenant(t *testing.T) {
	up := &fakeUpstream{pos: []backend.PurchaseOrder{{ID: 1, PONumber: "PO-1"}}}
	svc, mr := newTestService(t, up)
	ctx := context.Background()

	first, err := svc.PurchaseOrders(ctx, tenant)
	require.NoError(t, err)
	second, err := svc.PurchaseOrders(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, up.poCalls.Load())
	require.True(t, mr.Exists("reference:t1:purchase_orders:1"))

	other := tenant
	other.TenantID = "t2"
	_, err = svc.PurchaseOrders(ctx, other)
	require.NoError(t, err)
	require.EqualValues(t, 2, up.poCalls.Load())
}

func TestInvalidateBumpsVersion(t *testing.T) {
	up := &fakeUpstream{pos: []backend.PurchaseOrder{{ID: 1}}}
	svc, _ := newTestService(t, up)
	ctx := context.Background()

	_, err := svc.PurchaseOrders(ctx, tenant)
	require.NoError(t, err)
	svc.Invalidate(ctx, tenant)
	_, err = svc.PurchaseOrders(ctx, tenant)
	require.NoError(t, err)
	require.EqualValues(t, 2, up.poCalls.Load())
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	up := &fakeUpstream{pos: []backend.PurchaseOrder{{ID: 1}}, gate: make(chan struct{})}
	svc, _ := newTestService(t, up)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PurchaseOrders(context.Background(), tenant)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return up.poCalls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(up.gate)
	wg.Wait()
	require.LessOrEqual(t, up.poCalls.Load(), int32(2))
}

func TestSharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	up := &fakeUpstream{pos: []backend.PurchaseOrder{{ID: 1}}, gate: make(chan struct{})}
	svc, _ := newTestService(t, up)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.PurchaseOrders(ctxA, tenant)
		errA <- err
	}()
	require.Eventually(t, func() bool { return up.poCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		pos []backend.PurchaseOrder
		err error
	}
	resB := make(chan result, 1)
	go func() {
		pos, err := svc.PurchaseOrders(context.Background(), tenant)
		resB <- result{pos, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(up.gate)
	b := <-resB
	require.NoError(t, b.err)
	require.Len(t, b.pos, 1)
	require.EqualValues(t, 1, up.poCalls.Load())
}

func TestMilestoneScopes(t *testing.T) {
	svc, _ := newTestService(t, &fakeUpstream{})
	ctx := context.Background()

	got, err := svc.Milestones(ctx, tenant, 4, MilestonesConsumption)
	require.NoError(t, err)
	require.Equal(t, "consumption", got[0].Name)

	got, err = svc.Milestones(ctx, tenant, 4, MilestonesSRN)
	require.NoError(t, err)
	require.Equal(t, "srn", got[0].Name)

	got, err = svc.Milestones(ctx, tenant, 4, "")
	require.NoError(t, err)
	require.Equal(t, "all", got[0].Name)
}

func TestLoadFormFallsBackToEmptyLists(t *testing.T) {
	up := &fakeUpstream{
		usersErr:   errors.New("upstream down"),
		pos:        []backend.PurchaseOrder{{ID: 1}},
		orgsByType: map[string][]backend.Organization{"CUSTOMER": {{Name: "Acme"}}},
	}
	svc, _ := newTestService(t, up)

	data, err := svc.LoadForm(context.Background(), tenant, FormRequest{
		PurchaseOrders:    true,
		Users:             true,
		Systems:           true,
		InvoiceProjects:   true,
		OrganizationTypes: []string{"CUSTOMER", "SUPPLIER"},
	})
	require.NoError(t, err)
	require.Len(t, data.PurchaseOrders, 1)
	require.NotNil(t, data.Users)
	require.Empty(t, data.Users)
	require.NotNil(t, data.InvoiceProjects)
	require.Len(t, data.Systems, 1)
	require.Len(t, data.Organizations["CUSTOMER"], 1)
	require.NotNil(t, data.Organizations["SUPPLIER"])
}

func TestLoadFormOrganizationsFallBackToTenantList(t *testing.T) {
	up := &fakeUpstream{
		orgTypeErr: errors.New("typed lookup down"),
		tenantOrgs: []backend.Organization{{Name: "Globex"}},
	}
	svc, _ := newTestService(t, up)

	data, err := svc.LoadForm(context.Background(), tenant, FormRequest{OrganizationTypes: []string{"CUSTOMER"}})
	require.NoError(t, err)
	require.Equal(t, []backend.Organization{{Name: "Globex"}}, data.Organizations["CUSTOMER"])
}

func TestServiceWithoutRedis(t *testing.T) {
	up := &fakeUpstream{pos: []backend.PurchaseOrder{{ID: 1}}}
	svc := NewService(up, nil, nil)

	_, err := svc.PurchaseOrders(context.Background(), tenant)
	require.NoError(t, err)
	_, err = svc.PurchaseOrders(context.Background(), tenant)
	require.NoError(t, err)
	require.EqualValues(t, 2, up.poCalls.Load())
	svc.Invalidate(context.Background(), tenant)
}
