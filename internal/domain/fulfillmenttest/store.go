// Package fulfillmenttest provides an in-memory implementation of every store
// interface of the fulfillment core, for use in tests.
package fulfillmenttest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
	"fieldops/internal/domain/assignment"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/events"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/domain/notification"
	"fieldops/internal/domain/order"
)

// Staff is a user known to the store.
type Staff struct {
	ID       id.ID
	Role     string
	Active   bool
	Percent  *types.Percent
	FullName string
}

// Step is a workflow step of a nested service.
type Step struct {
	ID        id.ID
	ServiceID id.ID
	Status    lineitem.Status
}

// Store holds all rows in maps. Zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	Orders        map[id.ID]*order.Order
	Flat          map[id.ID]*lineitem.FlatItem
	Containers    map[id.ID]*lineitem.ProductContainer
	Nested        map[id.ID]*lineitem.NestedService
	Assignments   []assignment.Assignment
	Commissions   []commission.Entry
	Staff         map[id.ID]*Staff
	Steps         []Step
	Notifications []notification.Notification
	Transitions   []events.StatusChanged

	// Failure injection.
	FailInsertAssignments error
	FailCommissionInsert  func(e *commission.Entry) error
	FailMirror            error

	MarkDoneCalls int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		Orders:     map[id.ID]*order.Order{},
		Flat:       map[id.ID]*lineitem.FlatItem{},
		Containers: map[id.ID]*lineitem.ProductContainer{},
		Nested:     map[id.ID]*lineitem.NestedService{},
		Staff:      map[id.ID]*Staff{},
	}
}

// --- seeding helpers ---

// AddOrder stores a copy of o and returns its id.
func (s *Store) AddOrder(o order.Order) id.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(o.ID) {
		o.ID = id.New()
	}
	s.Orders[o.ID] = &o
	return o.ID
}

// AddFlat stores a flat item.
func (s *Store) AddFlat(it lineitem.FlatItem) id.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(it.ID) {
		it.ID = id.New()
	}
	s.Flat[it.ID] = &it
	return it.ID
}

// AddContainer stores a product container.
func (s *Store) AddContainer(c lineitem.ProductContainer) id.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(c.ID) {
		c.ID = id.New()
	}
	s.Containers[c.ID] = &c
	return c.ID
}

// AddNested stores a nested service.
func (s *Store) AddNested(n lineitem.NestedService) id.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(n.ID) {
		n.ID = id.New()
	}
	s.Nested[n.ID] = &n
	return n.ID
}

// AddStaff stores a user.
func (s *Store) AddStaff(st Staff) id.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNil(st.ID) {
		st.ID = id.New()
	}
	s.Staff[st.ID] = &st
	return st.ID
}

// Order returns a copy of the stored order.
func (s *Store) Order(orderID id.ID) order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.Orders[orderID]
}

// CommissionsOf returns the ledger rows of an order.
func (s *Store) CommissionsOf(orderID id.ID) []commission.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []commission.Entry
	for _, e := range s.Commissions {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

// --- order.Repository ---

func (s *Store) GetByID(_ context.Context, orderID id.ID) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.Orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("order", orderID)
	}
	cp := *o
	return &cp, nil
}

func (s *Store) AdvanceStatus(_ context.Context, orderID id.ID, from []order.Status, target order.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.Orders[orderID]
	if !ok || !slices.Contains(from, o.Status) {
		return false, nil
	}
	o.Status = target
	return true, nil
}

func (s *Store) MarkDone(_ context.Context, orderID id.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MarkDoneCalls++
	o, ok := s.Orders[orderID]
	if !ok || o.Status.IsTerminal() {
		return false, nil
	}
	o.Status = order.StatusDone
	o.CompletedAt = &at
	return true, nil
}

// --- lineitem.Repository ---

func (s *Store) FindFlat(_ context.Context, itemID id.ID) (*lineitem.FlatItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.Flat[itemID]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, apperror.NewNotFound("order item", itemID)
}

func (s *Store) FindNestedService(_ context.Context, itemID id.ID) (*lineitem.NestedService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.Nested[itemID]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, apperror.NewNotFound("order product service", itemID)
}

func (s *Store) FindContainer(_ context.Context, itemID id.ID) (*lineitem.ProductContainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.Containers[itemID]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, apperror.NewNotFound("order product", itemID)
}

// --- lineitem.Writer ---

func (s *Store) UpdateStatus(_ context.Context, ref lineitem.Ref, ch lineitem.StatusChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := func(assigned, started, completed **time.Time) {
		at := ch.At
		switch ch.To {
		case lineitem.StatusAssigned:
			*assigned = &at
		case lineitem.StatusInProgress:
			*started = &at
		case lineitem.StatusCompleted:
			*completed = &at
		}
	}

	switch ref.Shape {
	case lineitem.ShapeFlat:
		it, ok := s.Flat[ref.ID]
		if !ok || it.Status != ch.From {
			return false, nil
		}
		it.Status = ch.To
		stamp(&it.AssignedAt, &it.StartedAt, &it.CompletedAt)
		if ch.Notes != nil {
			it.Notes = ch.Notes
		}
	case lineitem.ShapeNested:
		it, ok := s.Nested[ref.ID]
		if !ok || it.Status != ch.From {
			return false, nil
		}
		it.Status = ch.To
		stamp(&it.AssignedAt, &it.StartedAt, &it.CompletedAt)
		if ch.Notes != nil {
			it.Notes = ch.Notes
		}
	case lineitem.ShapeContainer:
		it, ok := s.Containers[ref.ID]
		if !ok || it.Status != ch.From {
			return false, nil
		}
		it.Status = ch.To
		if ch.To == lineitem.StatusCompleted {
			at := ch.At
			it.CompletedAt = &at
		}
	}
	return true, nil
}

func (s *Store) SetPrimaryAssignee(_ context.Context, ref lineitem.Ref, p lineitem.PrimaryAssignee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailMirror != nil {
		return s.FailMirror
	}

	apply := func(status *lineitem.Status, tech, sales **id.ID, rate, amount, salesRate *types.Percent, assignedAt **time.Time) {
		staff := p.StaffID
		if p.Role == lineitem.RoleTechnician {
			*tech = &staff
			*rate = p.Rate
			*amount = p.Amount
		} else {
			*sales = &staff
			*salesRate = p.Rate
		}
		if p.PromoteFrom != nil && *status == *p.PromoteFrom {
			*status = lineitem.StatusAssigned
			at := p.At
			*assignedAt = &at
		}
	}

	switch ref.Shape {
	case lineitem.ShapeFlat:
		it := s.Flat[ref.ID]
		apply(&it.Status, &it.TechnicianID, &it.SalesID, &it.CommissionRate, &it.CommissionAmount, &it.SalesCommissionRate, &it.AssignedAt)
	case lineitem.ShapeNested:
		it := s.Nested[ref.ID]
		apply(&it.Status, &it.TechnicianID, &it.SalesID, &it.CommissionRate, &it.CommissionAmount, &it.SalesCommissionRate, &it.AssignedAt)
	default:
		return errors.New("container has no primary assignee")
	}
	return nil
}

// --- assignment.Repository ---

func (s *Store) DeleteByItemRole(_ context.Context, itemID id.ID, role lineitem.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Assignments = slices.DeleteFunc(s.Assignments, func(a assignment.Assignment) bool {
		return a.LineItemID == itemID && a.Role == role
	})
	return nil
}

func (s *Store) InsertBatch(_ context.Context, rows []assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertAssignments != nil {
		return s.FailInsertAssignments
	}
	s.Assignments = append(s.Assignments, rows...)
	return nil
}

func (s *Store) ListByItem(_ context.Context, itemID id.ID) ([]assignment.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []assignment.Assignment
	for _, a := range s.Assignments {
		if a.LineItemID == itemID {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- commission.Repository ---

// Commission is the commission.Repository view of the store. It is a separate
// type because ListByOrder would otherwise clash with other interfaces.
type Commission struct{ *Store }

func (c Commission) ListByOrder(_ context.Context, orderID id.ID) ([]commission.Entry, error) {
	return c.CommissionsOf(orderID), nil
}

func (c Commission) Insert(_ context.Context, e *commission.Entry) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailCommissionInsert != nil {
		if err := c.FailCommissionInsert(e); err != nil {
			return false, err
		}
	}
	for _, ex := range c.Commissions {
		if ex.OrderID == e.OrderID && ex.UserID == e.UserID && ex.Type == e.Type &&
			ex.SourceReference != nil && e.SourceReference != nil && *ex.SourceReference == *e.SourceReference {
			return false, nil
		}
	}
	c.Commissions = append(c.Commissions, *e)
	return true, nil
}

// --- commission.ShareSource ---

func (s *Store) containersOf(orderID id.ID) map[id.ID]*lineitem.ProductContainer {
	out := map[id.ID]*lineitem.ProductContainer{}
	for cid, c := range s.Containers {
		if c.OrderID == orderID {
			out[cid] = c
		}
	}
	return out
}

func (s *Store) ServiceShares(_ context.Context, orderID id.ID) ([]commission.ServiceShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	containers := s.containersOf(orderID)
	var out []commission.ServiceShare
	for _, a := range s.Assignments {
		if a.Role != lineitem.RoleTechnician || a.LineItemShape != lineitem.ShapeNested {
			continue
		}
		svc, ok := s.Nested[a.LineItemID]
		if !ok {
			continue
		}
		if _, ok := containers[svc.ContainerID]; !ok {
			continue
		}
		out = append(out, commission.ServiceShare{
			ServiceID:    svc.ID,
			ServiceName:  svc.ServiceName,
			Price:        svc.UnitPrice,
			TechnicianID: a.StaffID,
			Percent:      a.CommissionPercent,
		})
	}
	return out, nil
}

func (s *Store) LegacyItemShares(_ context.Context, orderID id.ID) ([]commission.ItemShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []commission.ItemShare
	for _, it := range s.Flat {
		if it.OrderID != orderID || it.TechnicianID == nil || !it.CommissionAmount.IsPositive() {
			continue
		}
		out = append(out, commission.ItemShare{
			ItemID:       it.ID,
			ItemName:     it.ItemName,
			Price:        it.UnitPrice,
			TechnicianID: *it.TechnicianID,
			Rate:         it.CommissionRate,
			Amount:       it.CommissionAmount,
		})
	}
	return out, nil
}

// --- commission.StaffDirectory / notification.StaffDirectory ---

func (s *Store) CommissionPercents(_ context.Context, userIDs []id.ID) (map[id.ID]types.Percent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[id.ID]types.Percent{}
	for _, uid := range userIDs {
		if st, ok := s.Staff[uid]; ok && st.Percent != nil {
			out[uid] = *st.Percent
		}
	}
	return out, nil
}

func (s *Store) ListActiveByRoles(_ context.Context, roles []string) ([]id.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []id.ID
	for _, st := range s.Staff {
		if st.Active && slices.Contains(roles, st.Role) {
			out = append(out, st.ID)
		}
	}
	return out, nil
}

// --- completion.WorkSource ---

func (s *Store) ListWorkItems(_ context.Context, orderID id.ID) ([]lineitem.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []lineitem.WorkItem
	for _, it := range s.Flat {
		if it.OrderID == orderID && it.ItemType.IsWork() {
			out = append(out, lineitem.WorkItem{
				Ref:      lineitem.Ref{ID: it.ID, Shape: lineitem.ShapeFlat},
				Name:     it.ItemName,
				ItemType: it.ItemType,
				Status:   it.Status,
			})
		}
	}
	containers := s.containersOf(orderID)
	for _, svc := range s.Nested {
		if _, ok := containers[svc.ContainerID]; !ok {
			continue
		}
		open := 0
		for _, st := range s.Steps {
			if st.ServiceID == svc.ID && st.Status != lineitem.StatusCompleted && st.Status != lineitem.StatusSkipped {
				open++
			}
		}
		out = append(out, lineitem.WorkItem{
			Ref:       lineitem.Ref{ID: svc.ID, Shape: lineitem.ShapeNested},
			Name:      svc.ServiceName,
			ItemType:  lineitem.TypeService,
			Status:    svc.Status,
			OpenSteps: open,
		})
	}
	return out, nil
}

// --- itemstatus.WorkflowSteps ---

func (s *Store) CompleteOpen(_ context.Context, serviceID id.ID, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.Steps {
		st := &s.Steps[i]
		if st.ServiceID == serviceID && st.Status != lineitem.StatusCompleted && st.Status != lineitem.StatusSkipped {
			st.Status = lineitem.StatusCompleted
			n++
		}
	}
	return n, nil
}

// --- notification.AuditLog ---

func (s *Store) RecordTransition(_ context.Context, ch events.StatusChanged) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Transitions = append(s.Transitions, ch)
	return nil
}

// Notifier is the notification.Repository view of the store.
type Notifier struct{ *Store }

func (n Notifier) InsertBatch(_ context.Context, items []notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notifications = append(n.Notifications, items...)
	return nil
}

// --- events ---

// Collector is a synchronous events.Publisher that records everything.
type Collector struct {
	mu     sync.Mutex
	Events []events.Event
}

// Publish implements events.Publisher.
func (c *Collector) Publish(_ context.Context, ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, ev)
}

// StatusChanges returns the published transition records.
func (c *Collector) StatusChanges() []events.StatusChanged {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.StatusChanged
	for _, ev := range c.Events {
		if sc, ok := ev.(events.StatusChanged); ok {
			out = append(out, sc)
		}
	}
	return out
}

// Notifications returns the published direct notifications.
func (c *Collector) Notifications() []events.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Notification
	for _, ev := range c.Events {
		if n, ok := ev.(events.Notification); ok {
			out = append(out, n)
		}
	}
	return out
}

// Compile-time checks.
var (
	_ order.Repository            = (*Store)(nil)
	_ lineitem.Repository         = (*Store)(nil)
	_ lineitem.Writer             = (*Store)(nil)
	_ assignment.Repository       = (*Store)(nil)
	_ commission.Repository       = Commission{}
	_ commission.ShareSource      = (*Store)(nil)
	_ commission.StaffDirectory   = (*Store)(nil)
	_ notification.StaffDirectory = (*Store)(nil)
	_ notification.AuditLog       = (*Store)(nil)
	_ notification.Repository     = Notifier{}
	_ events.Publisher            = (*Collector)(nil)
)
