package lineitem

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
)

type fakeRepo struct {
	flat       map[id.ID]*FlatItem
	nested     map[id.ID]*NestedService
	containers map[id.ID]*ProductContainer
	failFlat   error
	probes     []Shape
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		flat:       map[id.ID]*FlatItem{},
		nested:     map[id.ID]*NestedService{},
		containers: map[id.ID]*ProductContainer{},
	}
}

func (f *fakeRepo) FindFlat(_ context.Context, itemID id.ID) (*FlatItem, error) {
	f.probes = append(f.probes, ShapeFlat)
	if f.failFlat != nil {
		return nil, f.failFlat
	}
	if it, ok := f.flat[itemID]; ok {
		return it, nil
	}
	return nil, apperror.NewNotFound("order item", itemID)
}

func (f *fakeRepo) FindNestedService(_ context.Context, itemID id.ID) (*NestedService, error) {
	f.probes = append(f.probes, ShapeNested)
	if it, ok := f.nested[itemID]; ok {
		return it, nil
	}
	return nil, apperror.NewNotFound("order product service", itemID)
}

func (f *fakeRepo) FindContainer(_ context.Context, itemID id.ID) (*ProductContainer, error) {
	f.probes = append(f.probes, ShapeContainer)
	if it, ok := f.containers[itemID]; ok {
		return it, nil
	}
	return nil, apperror.NewNotFound("order product", itemID)
}

func TestResolve_FlatItem(t *testing.T) {
	repo := newFakeRepo()
	item := &FlatItem{ID: id.New(), OrderID: id.New(), ItemName: "AC install", ItemType: TypeService,
		UnitPrice: types.NewMoney(500000), Status: StatusAssigned}
	repo.flat[item.ID] = item

	d, err := NewResolver(repo).Resolve(context.Background(), item.ID)

	require.NoError(t, err)
	assert.Equal(t, ShapeFlat, d.Shape)
	assert.Equal(t, item.OrderID, d.OrderID)
	assert.Equal(t, "AC install", d.Name)
	assert.Equal(t, []Shape{ShapeFlat}, repo.probes)
}

func TestResolve_NestedServiceResolvesOrderThroughContainer(t *testing.T) {
	repo := newFakeRepo()
	container := &ProductContainer{ID: id.New(), OrderID: id.New(), ProductName: "Split unit"}
	svc := &NestedService{ID: id.New(), ContainerID: container.ID, ServiceName: "Mounting",
		UnitPrice: types.NewMoney(2000000), Status: StatusPending}
	repo.containers[container.ID] = container
	repo.nested[svc.ID] = svc

	d, err := NewResolver(repo).Resolve(context.Background(), svc.ID)

	require.NoError(t, err)
	assert.Equal(t, ShapeNested, d.Shape)
	assert.Equal(t, container.OrderID, d.OrderID)
	require.NotNil(t, d.ContainerID)
	assert.Equal(t, container.ID, *d.ContainerID)
	assert.Equal(t, TypeService, d.ItemType)
	assert.Equal(t, []Shape{ShapeFlat, ShapeNested, ShapeContainer}, repo.probes)
}

func TestResolve_Container(t *testing.T) {
	repo := newFakeRepo()
	container := &ProductContainer{ID: id.New(), OrderID: id.New(), ProductName: "Split unit", Status: StatusPending}
	repo.containers[container.ID] = container

	d, err := NewResolver(repo).Resolve(context.Background(), container.ID)

	require.NoError(t, err)
	assert.Equal(t, ShapeContainer, d.Shape)
	assert.Equal(t, TypeProduct, d.ItemType)
	assert.False(t, d.HasPrimaryFields())
	assert.Len(t, repo.probes, 3)
}

func TestResolve_NotFound(t *testing.T) {
	_, err := NewResolver(newFakeRepo()).Resolve(context.Background(), id.New())

	assert.True(t, apperror.IsNotFound(err))
}

func TestResolve_StoreErrorStopsProbing(t *testing.T) {
	repo := newFakeRepo()
	repo.failFlat = errors.New("connection refused")

	_, err := NewResolver(repo).Resolve(context.Background(), id.New())

	assert.True(t, apperror.IsCode(err, apperror.CodeStoreFailure))
	assert.Equal(t, []Shape{ShapeFlat}, repo.probes)
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusAssigned, true},
		{StatusPending, StatusCompleted, true},
		{StatusAssigned, StatusInProgress, true},
		{StatusInProgress, StatusStep1, true},
		{StatusStep3, StatusStep4, true},
		{StatusStep5, StatusCompleted, true},
		{StatusStep2, StatusCancelled, true},
		{StatusPending, StatusSkipped, true},
		{StatusAssigned, StatusAssigned, true},
		{StatusInProgress, StatusAssigned, false},
		{StatusStep4, StatusStep2, false},
		{StatusCompleted, StatusAssigned, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusInProgress, false},
		{StatusSkipped, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))
		})
	}
}

func TestParseSettable(t *testing.T) {
	st, err := ParseSettable("step3")
	require.NoError(t, err)
	assert.Equal(t, StatusStep3, st)

	for _, bad := range []string{"", "step6", "done", "skipped"} {
		_, err := ParseSettable(bad)
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStatus), bad)
	}
}
