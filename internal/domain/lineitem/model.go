// Package lineitem normalizes the two historical line-item storage shapes into a
// single descriptor and owns the item status partial order.
package lineitem

import (
	"context"
	"time"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
)

// Shape tags the storage shape an identifier resolved to.
type Shape string

const (
	ShapeFlat      Shape = "flat"
	ShapeNested    Shape = "nested_service"
	ShapeContainer Shape = "product_container"
)

// ItemType classifies the work a line item represents.
type ItemType string

const (
	TypeProduct ItemType = "product"
	TypeService ItemType = "service"
	TypePackage ItemType = "package"
)

// IsWork reports whether items of this type take part in the order work gate.
func (t ItemType) IsWork() bool {
	return t == TypeService || t == TypePackage
}

// Status is the line-item lifecycle status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusStep1      Status = "step1"
	StatusStep2      Status = "step2"
	StatusStep3      Status = "step3"
	StatusStep4      Status = "step4"
	StatusStep5      Status = "step5"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusSkipped    Status = "skipped"
)

// StatusAwaitingApproval is the approval sub-path stage that waits for a manager.
const StatusAwaitingApproval = StatusStep4

// rank is the forward order. Cancelled and skipped are exits outside it.
var rank = map[Status]int{
	StatusPending:    0,
	StatusAssigned:   1,
	StatusInProgress: 2,
	StatusStep1:      3,
	StatusStep2:      4,
	StatusStep3:      5,
	StatusStep4:      6,
	StatusStep5:      7,
	StatusCompleted:  8,
}

// settable lists what callers may request through SetStatus.
var settable = map[Status]struct{}{
	StatusPending: {}, StatusAssigned: {}, StatusInProgress: {}, StatusCompleted: {}, StatusCancelled: {},
	StatusStep1: {}, StatusStep2: {}, StatusStep3: {}, StatusStep4: {}, StatusStep5: {},
}

// ParseSettable validates a requested status against the fixed enumeration.
func ParseSettable(s string) (Status, error) {
	st := Status(s)
	if _, ok := settable[st]; !ok {
		return "", apperror.NewInvalidStatus(s)
	}
	return st, nil
}

// IsAbsorbing reports whether no further transition may leave s.
func (s Status) IsAbsorbing() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusSkipped
}

// CheckTransition enforces monotonic progress: forward along the rank, or out to
// cancelled/skipped, never out of an absorbing status. A completed item cannot be
// re-opened. Equal statuses are accepted; callers treat them as no-ops.
func CheckTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if from.IsAbsorbing() {
		return apperror.NewInvalidTransition("line item", string(from), string(to))
	}
	if to == StatusCancelled || to == StatusSkipped {
		return nil
	}
	fromRank, okFrom := rank[from]
	toRank, okTo := rank[to]
	if !okFrom || !okTo || toRank <= fromRank {
		return apperror.NewInvalidTransition("line item", string(from), string(to))
	}
	return nil
}

// Role distinguishes the two kinds of staff attached to an item.
type Role string

const (
	RoleTechnician Role = "technician"
	RoleSales      Role = "sales"
)

// Ref addresses a line item in a known shape.
type Ref struct {
	ID    id.ID `json:"id"`
	Shape Shape `json:"shape"`
}

// Descriptor is the shape-independent view every other component works with.
type Descriptor struct {
	Ref
	OrderID        id.ID         `json:"orderId"`
	ContainerID    *id.ID        `json:"containerId,omitempty"`
	Name           string        `json:"name"`
	ItemType       ItemType      `json:"itemType"`
	Price          types.Money   `json:"price"`
	Status         Status        `json:"status"`
	TechnicianID   *id.ID        `json:"technicianId,omitempty"`
	CommissionRate types.Percent `json:"commissionRate"`
	AssignedAt     *time.Time    `json:"assignedAt,omitempty"`
	StartedAt      *time.Time    `json:"startedAt,omitempty"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
}

// HasPrimaryFields reports whether the shape stores a mirrored primary assignee.
func (d *Descriptor) HasPrimaryFields() bool {
	return d.Shape != ShapeContainer
}

// --- storage shapes ---

// FlatItem is the legacy shape: owned directly by an order.
type FlatItem struct {
	ID                  id.ID         `db:"id"`
	OrderID             id.ID         `db:"order_id"`
	ItemName            string        `db:"item_name"`
	ItemType            ItemType      `db:"item_type"`
	UnitPrice           types.Money   `db:"unit_price"`
	Status              Status        `db:"status"`
	TechnicianID        *id.ID        `db:"technician_id"`
	CommissionRate      types.Percent `db:"commission_rate"`
	CommissionAmount    types.Money   `db:"commission_amount"`
	SalesID             *id.ID        `db:"sales_id"`
	SalesCommissionRate types.Percent `db:"sales_commission_rate"`
	AssignedAt          *time.Time    `db:"assigned_at"`
	StartedAt           *time.Time    `db:"started_at"`
	CompletedAt         *time.Time    `db:"completed_at"`
	Notes               *string       `db:"notes"`
}

// Descriptor normalizes the flat item.
func (f *FlatItem) Descriptor() *Descriptor {
	return &Descriptor{
		Ref:            Ref{ID: f.ID, Shape: ShapeFlat},
		OrderID:        f.OrderID,
		Name:           f.ItemName,
		ItemType:       f.ItemType,
		Price:          f.UnitPrice,
		Status:         f.Status,
		TechnicianID:   f.TechnicianID,
		CommissionRate: f.CommissionRate,
		AssignedAt:     f.AssignedAt,
		StartedAt:      f.StartedAt,
		CompletedAt:    f.CompletedAt,
	}
}

// ProductContainer is the current shape for a physical product owning nested services.
type ProductContainer struct {
	ID          id.ID       `db:"id"`
	OrderID     id.ID       `db:"order_id"`
	ProductName string      `db:"product_name"`
	UnitPrice   types.Money `db:"unit_price"`
	Status      Status      `db:"status"`
	CompletedAt *time.Time  `db:"completed_at"`
}

// Descriptor normalizes the container.
func (p *ProductContainer) Descriptor() *Descriptor {
	return &Descriptor{
		Ref:         Ref{ID: p.ID, Shape: ShapeContainer},
		OrderID:     p.OrderID,
		Name:        p.ProductName,
		ItemType:    TypeProduct,
		Price:       p.UnitPrice,
		Status:      p.Status,
		CompletedAt: p.CompletedAt,
	}
}

// NestedService is a service owned by a product container.
type NestedService struct {
	ID                  id.ID         `db:"id"`
	ContainerID         id.ID         `db:"order_product_id"`
	ServiceName         string        `db:"service_name"`
	UnitPrice           types.Money   `db:"unit_price"`
	Status              Status        `db:"status"`
	TechnicianID        *id.ID        `db:"technician_id"`
	CommissionRate      types.Percent `db:"commission_rate"`
	CommissionAmount    types.Money   `db:"commission_amount"`
	SalesID             *id.ID        `db:"sales_id"`
	SalesCommissionRate types.Percent `db:"sales_commission_rate"`
	AssignedAt          *time.Time    `db:"assigned_at"`
	StartedAt           *time.Time    `db:"started_at"`
	CompletedAt         *time.Time    `db:"completed_at"`
	Notes               *string       `db:"notes"`
}

// Descriptor normalizes the nested service; the owning order comes from its container.
func (n *NestedService) Descriptor(orderID id.ID) *Descriptor {
	containerID := n.ContainerID
	return &Descriptor{
		Ref:            Ref{ID: n.ID, Shape: ShapeNested},
		OrderID:        orderID,
		ContainerID:    &containerID,
		Name:           n.ServiceName,
		ItemType:       TypeService,
		Price:          n.UnitPrice,
		Status:         n.Status,
		TechnicianID:   n.TechnicianID,
		CommissionRate: n.CommissionRate,
		AssignedAt:     n.AssignedAt,
		StartedAt:      n.StartedAt,
		CompletedAt:    n.CompletedAt,
	}
}

// WorkItem is one entry of an order's work gate.
type WorkItem struct {
	Ref
	Name     string   `db:"name" json:"name"`
	ItemType ItemType `db:"item_type" json:"itemType"`
	Status   Status   `db:"status" json:"status"`
	// OpenSteps counts workflow steps not yet completed or skipped (nested services only).
	OpenSteps int `db:"open_steps" json:"openSteps"`
}

// --- writes ---

// StatusChange is a status write with the timestamp to stamp.
type StatusChange struct {
	From  Status
	To    Status
	At    time.Time
	Notes *string
}

// PrimaryAssignee mirrors the first assignee onto the item's own columns for
// single-assignee readers.
type PrimaryAssignee struct {
	Role    Role
	StaffID id.ID
	Rate    types.Percent
	// Amount is floor(price × rate / 100); only stored for technicians.
	Amount types.Money
	At     time.Time
	// PromoteFrom, when set, moves the item to assigned if it is still in that status.
	PromoteFrom *Status
}

// Repository reads each storage shape. Every Find returns apperror NotFound on a miss.
type Repository interface {
	FindFlat(ctx context.Context, itemID id.ID) (*FlatItem, error)
	FindNestedService(ctx context.Context, itemID id.ID) (*NestedService, error)
	FindContainer(ctx context.Context, itemID id.ID) (*ProductContainer, error)
}

// Lookup resolves identifiers to descriptors. Implemented by Resolver.
type Lookup interface {
	Resolve(ctx context.Context, itemID id.ID) (*Descriptor, error)
}

// Writer mutates a resolved item in whichever table its shape lives in.
type Writer interface {
	// UpdateStatus writes the new status guarded by the expected current one.
	// Returns false when the row no longer had change.From.
	UpdateStatus(ctx context.Context, ref Ref, change StatusChange) (bool, error)
	SetPrimaryAssignee(ctx context.Context, ref Ref, assignee PrimaryAssignee) error
}
