package completion_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/completion"
	"fieldops/internal/domain/events"
	"fieldops/internal/domain/fulfillmenttest"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/domain/order"
)

type countingRecorder struct {
	mu    sync.Mutex
	calls []id.ID
}

func (r *countingRecorder) RecordCommissions(_ context.Context, orderID id.ID) (*commission.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, orderID)
	return &commission.Summary{}, nil
}

type fixture struct {
	store     *fulfillmenttest.Store
	recorder  *countingRecorder
	events    *fulfillmenttest.Collector
	evaluator *completion.Evaluator
}

func newFixture() *fixture {
	store := fulfillmenttest.New()
	rec := &countingRecorder{}
	col := &fulfillmenttest.Collector{}
	return &fixture{
		store:     store,
		recorder:  rec,
		events:    col,
		evaluator: completion.NewEvaluator(store, store, rec, col),
	}
}

func (f *fixture) order(total, paid int64, status order.Status) id.ID {
	return f.store.AddOrder(order.Order{
		Code:          "ORD-1",
		TotalAmount:   types.NewMoney(total),
		PaidAmount:    types.NewMoney(paid),
		RemainingDebt: types.NewMoney(total - paid),
		Status:        status,
	})
}

func (f *fixture) service(orderID id.ID, status lineitem.Status) id.ID {
	return f.store.AddFlat(lineitem.FlatItem{
		OrderID: orderID, ItemName: "Install", ItemType: lineitem.TypeService,
		UnitPrice: types.NewMoney(100000), Status: status,
	})
}

func TestEvaluate_PaidAndCompletedBecomesDone(t *testing.T) {
	f := newFixture()
	orderID := f.order(1000000, 1000000, order.StatusInProgress)
	f.service(orderID, lineitem.StatusCompleted)

	st, err := f.evaluator.Evaluate(context.Background(), orderID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusDone, st)
	stored := f.store.Order(orderID)
	assert.Equal(t, order.StatusDone, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, []id.ID{orderID}, f.recorder.calls)
	require.Len(t, f.events.StatusChanges(), 1)
	assert.Equal(t, events.EntityOrder, f.events.StatusChanges()[0].EntityType)
}

func TestEvaluate_UnpaidUnchanged(t *testing.T) {
	f := newFixture()
	orderID := f.order(1000000, 500000, order.StatusInProgress)
	f.service(orderID, lineitem.StatusCompleted)

	st, err := f.evaluator.Evaluate(context.Background(), orderID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusInProgress, st)
	assert.Zero(t, f.store.MarkDoneCalls)
	assert.Empty(t, f.recorder.calls)
}

func TestEvaluate_OpenWorkUnchanged(t *testing.T) {
	f := newFixture()
	orderID := f.order(1000000, 1000000, order.StatusInProgress)
	f.service(orderID, lineitem.StatusCompleted)
	f.service(orderID, lineitem.StatusInProgress)

	st, err := f.evaluator.Evaluate(context.Background(), orderID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusInProgress, st)
	assert.Zero(t, f.store.MarkDoneCalls)
}

func TestEvaluate_TerminalOrdersUntouched(t *testing.T) {
	for _, status := range []order.Status{order.StatusDone, order.StatusAfterSale, order.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			orderID := f.order(1000000, 0, status)
			f.service(orderID, lineitem.StatusPending)

			st, err := f.evaluator.Evaluate(context.Background(), orderID)

			require.NoError(t, err)
			assert.Equal(t, status, st)
			assert.Zero(t, f.store.MarkDoneCalls)
			assert.Empty(t, f.recorder.calls)
		})
	}
}

func TestEvaluate_ProductItemsIgnoredAndEmptyWorkPasses(t *testing.T) {
	f := newFixture()
	orderID := f.order(500, 500, order.StatusConfirmed)
	f.store.AddFlat(lineitem.FlatItem{OrderID: orderID, ItemName: "Cable", ItemType: lineitem.TypeProduct, Status: lineitem.StatusPending})

	st, err := f.evaluator.Evaluate(context.Background(), orderID)

	require.NoError(t, err)
	assert.Equal(t, order.StatusDone, st)
}

func TestEvaluate_NestedServicesGate(t *testing.T) {
	f := newFixture()
	orderID := f.order(500, 500, order.StatusInProgress)
	containerID := f.store.AddContainer(lineitem.ProductContainer{OrderID: orderID, ProductName: "Split unit"})
	f.store.AddNested(lineitem.NestedService{ContainerID: containerID, ServiceName: "Mounting", Status: lineitem.StatusSkipped})
	open := f.store.AddNested(lineitem.NestedService{ContainerID: containerID, ServiceName: "Piping", Status: lineitem.StatusStep2})
	f.store.Steps = append(f.store.Steps,
		fulfillmenttest.Step{ID: id.New(), ServiceID: open, Status: lineitem.StatusCompleted},
		fulfillmenttest.Step{ID: id.New(), ServiceID: open, Status: lineitem.StatusPending},
	)

	ev, err := f.evaluator.Explain(context.Background(), orderID)

	require.NoError(t, err)
	assert.True(t, ev.Paid)
	assert.False(t, ev.WorkDone)
	require.Len(t, ev.Blocking, 1)
	assert.Equal(t, open, ev.Blocking[0].ID)
	assert.Equal(t, 1, ev.Blocking[0].OpenSteps)
	assert.False(t, ev.Eligible())

	st, err := f.evaluator.Evaluate(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusInProgress, st)
}

func TestEvaluate_SecondCallIsNoop(t *testing.T) {
	f := newFixture()
	orderID := f.order(1000, 1000, order.StatusInProgress)
	f.service(orderID, lineitem.StatusCancelled)

	first, err := f.evaluator.Evaluate(context.Background(), orderID)
	require.NoError(t, err)
	completedAt := f.store.Order(orderID).CompletedAt

	second, err := f.evaluator.Evaluate(context.Background(), orderID)
	require.NoError(t, err)

	assert.Equal(t, order.StatusDone, first)
	assert.Equal(t, order.StatusDone, second)
	assert.Equal(t, completedAt, f.store.Order(orderID).CompletedAt)
	assert.Len(t, f.recorder.calls, 1)
}

func TestEvaluate_ConcurrentCallsCompleteOnce(t *testing.T) {
	f := newFixture()
	orderID := f.order(1000, 1000, order.StatusInProgress)
	f.service(orderID, lineitem.StatusCompleted)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := f.evaluator.Evaluate(context.Background(), orderID)
			assert.NoError(t, err)
			assert.Equal(t, order.StatusDone, st)
		}()
	}
	wg.Wait()

	assert.Len(t, f.recorder.calls, 1)
}

func TestEvaluate_NotifiesSalesOwner(t *testing.T) {
	f := newFixture()
	owner := id.New()
	orderID := f.store.AddOrder(order.Order{
		Code: "ORD-9", TotalAmount: types.NewMoney(10), PaidAmount: types.NewMoney(10),
		Status: order.StatusInProgress, SalesOwnerID: &owner,
	})

	_, err := f.evaluator.Evaluate(context.Background(), orderID)

	require.NoError(t, err)
	notes := f.events.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, owner, notes[0].UserID)
	assert.Equal(t, events.NotifyOrderCompleted, notes[0].Type)
}

func TestExplain_UnpaidStillListsWork(t *testing.T) {
	f := newFixture()
	orderID := f.order(1000, 0, order.StatusInProgress)
	f.service(orderID, lineitem.StatusAssigned)

	ev, err := f.evaluator.Explain(context.Background(), orderID)

	require.NoError(t, err)
	assert.False(t, ev.Paid)
	assert.Len(t, ev.Blocking, 1)
}
