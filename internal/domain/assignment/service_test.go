package assignment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/security"
	"fieldops/internal/core/tx"
	"fieldops/internal/core/types"
	"fieldops/internal/domain/assignment"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/fulfillmenttest"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/domain/order"
)

type stubRecorder struct {
	calls int
	err   error
}

func (r *stubRecorder) RecordCommissions(context.Context, id.ID) (*commission.Summary, error) {
	r.calls++
	return &commission.Summary{}, r.err
}

type txCounter struct{ runs int }

func (c *txCounter) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	c.runs++
	return tx.Passthrough.RunInTransaction(ctx, fn)
}

type setup struct {
	store    *fulfillmenttest.Store
	recorder *stubRecorder
	txm      *txCounter
	service  *assignment.Service
}

func newSetup() *setup {
	store := fulfillmenttest.New()
	rec := &stubRecorder{}
	txm := &txCounter{}
	return &setup{
		store:    store,
		recorder: rec,
		txm:      txm,
		service:  assignment.NewService(lineitem.NewResolver(store), store, store, store, rec, txm),
	}
}

func (s *setup) nestedService(orderStatus order.Status, price int64, status lineitem.Status) (orderID, serviceID id.ID) {
	orderID = s.store.AddOrder(order.Order{Code: "ORD-1", Status: orderStatus})
	containerID := s.store.AddContainer(lineitem.ProductContainer{OrderID: orderID, ProductName: "Split unit"})
	serviceID = s.store.AddNested(lineitem.NestedService{
		ContainerID: containerID, ServiceName: "Mounting", UnitPrice: types.NewMoney(price), Status: status,
	})
	return orderID, serviceID
}

func in(staff id.ID, pct int64) assignment.Input {
	return assignment.Input{StaffID: staff, CommissionPercent: types.NewMoney(pct)}
}

func TestAssignTechnicians_ReplacesPriorSet(t *testing.T) {
	s := newSetup()
	_, svc := s.nestedService(order.StatusInProgress, 1000000, lineitem.StatusPending)
	a, b, c := id.New(), id.New(), id.New()

	_, err := s.service.AssignTechnicians(context.Background(), svc, []assignment.Input{in(a, 10), in(b, 5)})
	require.NoError(t, err)
	_, err = s.service.AssignTechnicians(context.Background(), svc, []assignment.Input{in(c, 8)})
	require.NoError(t, err)

	rows, err := s.service.ListByItem(context.Background(), svc)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, c, rows[0].StaffID)
	assert.Equal(t, lineitem.RoleTechnician, rows[0].Role)
	assert.Equal(t, 2, s.txm.runs)
}

func TestAssignTechnicians_MirrorsPrimaryAndPromotes(t *testing.T) {
	s := newSetup()
	_, svc := s.nestedService(order.StatusConfirmed, 2000000, lineitem.StatusPending)
	tech := id.New()
	ctx := security.WithUserID(context.Background(), "manager-1")

	res, err := s.service.AssignTechnicians(ctx, svc, []assignment.Input{in(tech, 10), in(id.New(), 20)})

	require.NoError(t, err)
	stored := s.store.Nested[svc]
	require.NotNil(t, stored.TechnicianID)
	assert.Equal(t, tech, *stored.TechnicianID)
	assert.True(t, types.NewMoney(200000).Equal(stored.CommissionAmount), stored.CommissionAmount.String())
	assert.Equal(t, lineitem.StatusAssigned, stored.Status)
	assert.NotNil(t, stored.AssignedAt)
	assert.Equal(t, lineitem.StatusAssigned, res.Item.Status)
	assert.Equal(t, "manager-1", res.Assignments[0].AssignedBy)
	assert.Zero(t, s.recorder.calls)
}

func TestAssignTechnicians_DoesNotDemote(t *testing.T) {
	s := newSetup()
	_, svc := s.nestedService(order.StatusInProgress, 100, lineitem.StatusStep2)

	_, err := s.service.AssignTechnicians(context.Background(), svc, []assignment.Input{in(id.New(), 10)})

	require.NoError(t, err)
	assert.Equal(t, lineitem.StatusStep2, s.store.Nested[svc].Status)
}

func TestAssign_Validation(t *testing.T) {
	s := newSetup()
	_, svc := s.nestedService(order.StatusInProgress, 100, lineitem.StatusPending)

	tests := []struct {
		name   string
		inputs []assignment.Input
	}{
		{"empty", nil},
		{"nil staff", []assignment.Input{in(id.ID{}, 10)}},
		{"negative percent", []assignment.Input{in(id.New(), -1)}},
		{"over 100 percent", []assignment.Input{in(id.New(), 101)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.service.AssignTechnicians(context.Background(), svc, tt.inputs)
			assert.True(t, apperror.IsCode(err, apperror.CodeInvalidAssignment), err)
		})
	}
	assert.Zero(t, s.txm.runs)
}

func TestAssign_NotFound(t *testing.T) {
	s := newSetup()

	_, err := s.service.AssignSales(context.Background(), id.New(), []assignment.Input{in(id.New(), 5)})

	assert.True(t, apperror.IsNotFound(err))
}

func TestAssignTechnicians_ContainerRejected(t *testing.T) {
	s := newSetup()
	orderID := s.store.AddOrder(order.Order{Code: "ORD-2", Status: order.StatusConfirmed})
	containerID := s.store.AddContainer(lineitem.ProductContainer{OrderID: orderID, ProductName: "Split unit"})

	_, err := s.service.AssignTechnicians(context.Background(), containerID, []assignment.Input{in(id.New(), 10)})

	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidAssignment))
}

func TestAssignSales_ContainerSkipsMirror(t *testing.T) {
	s := newSetup()
	orderID := s.store.AddOrder(order.Order{Code: "ORD-3", Status: order.StatusConfirmed})
	containerID := s.store.AddContainer(lineitem.ProductContainer{OrderID: orderID, ProductName: "Split unit"})
	s.store.FailMirror = errors.New("must not be called")

	res, err := s.service.AssignSales(context.Background(), containerID, []assignment.Input{in(id.New(), 3)})

	require.NoError(t, err)
	assert.Len(t, res.Assignments, 1)
	assert.Len(t, s.store.Assignments, 1)
}

func TestAssignSales_MirrorsSalesFields(t *testing.T) {
	s := newSetup()
	orderID := s.store.AddOrder(order.Order{Code: "ORD-4", Status: order.StatusConfirmed})
	itemID := s.store.AddFlat(lineitem.FlatItem{OrderID: orderID, ItemName: "Install", ItemType: lineitem.TypeService,
		UnitPrice: types.NewMoney(1000), Status: lineitem.StatusPending})
	sales := id.New()

	_, err := s.service.AssignSales(context.Background(), itemID, []assignment.Input{in(sales, 4)})

	require.NoError(t, err)
	item := s.store.Flat[itemID]
	require.NotNil(t, item.SalesID)
	assert.Equal(t, sales, *item.SalesID)
	assert.Nil(t, item.TechnicianID)
	assert.Equal(t, lineitem.StatusPending, item.Status, "sales assignment never promotes")
}

func TestAssign_MirrorFailureAborts(t *testing.T) {
	s := newSetup()
	_, svc := s.nestedService(order.StatusInProgress, 100, lineitem.StatusPending)
	s.store.FailMirror = errors.New("connection reset")

	_, err := s.service.AssignTechnicians(context.Background(), svc, []assignment.Input{in(id.New(), 10)})

	assert.True(t, apperror.IsCode(err, apperror.CodeStoreFailure))
	assert.Empty(t, s.store.Assignments)
}

func TestAssign_JunctionFailureIsSwallowed(t *testing.T) {
	s := newSetup()
	_, svc := s.nestedService(order.StatusInProgress, 1000, lineitem.StatusPending)
	tech := id.New()
	s.store.FailInsertAssignments = errors.New("unique violation")

	res, err := s.service.AssignTechnicians(context.Background(), svc, []assignment.Input{in(tech, 10)})

	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, tech, *s.store.Nested[svc].TechnicianID, "mirror is kept")
}

func TestAssign_PostCompletionReRecordsLedger(t *testing.T) {
	for _, st := range []order.Status{order.StatusDone, order.StatusAfterSale} {
		t.Run(string(st), func(t *testing.T) {
			s := newSetup()
			_, svc := s.nestedService(st, 1000, lineitem.StatusCompleted)
			s.recorder.err = errors.New("ledger down")

			_, err := s.service.AssignTechnicians(context.Background(), svc, []assignment.Input{in(id.New(), 10)})

			require.NoError(t, err, "recorder failure is logged only")
			assert.Equal(t, 1, s.recorder.calls)
		})
	}
}

func TestNormalize_LegacyShorthand(t *testing.T) {
	staff := id.New()
	legacy := in(staff, 12)

	list, err := assignment.Normalize(nil, &legacy)

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, staff, list[0].StaffID)

	_, err = assignment.Normalize([]assignment.Input{in(staff, 1), in(staff, 2)}, nil)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidAssignment))
}
