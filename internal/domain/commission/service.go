package commission

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
	"fieldops/internal/domain/order"
	"fieldops/pkg/logger"
)

var tracer = otel.Tracer("fieldops/commission")

// DefaultSalesPercent applies when the sales owner has no profile percent.
var DefaultSalesPercent = types.NewPercent(5)

// Recorder computes and appends commission entries for an order.
// Safe to call any number of times: existing entries are detected and skipped.
type Recorder struct {
	orders       order.Repository
	entries      Repository
	shares       ShareSource
	staff        StaffDirectory
	salesDefault types.Percent
	now          func() time.Time
}

// NewRecorder creates a new ledger recorder.
// A non-positive salesDefault falls back to DefaultSalesPercent.
func NewRecorder(
	orders order.Repository,
	entries Repository,
	shares ShareSource,
	staff StaffDirectory,
	salesDefault types.Percent,
) *Recorder {
	if !salesDefault.IsPositive() {
		salesDefault = DefaultSalesPercent
	}
	return &Recorder{
		orders:       orders,
		entries:      entries,
		shares:       shares,
		staff:        staff,
		salesDefault: salesDefault,
		now:          time.Now,
	}
}

// run carries per-call state through the three passes.
type run struct {
	order   *order.Order
	ledger  *ledger
	summary Summary
}

// RecordCommissions runs the sales, nested-service and legacy flat-item passes.
// Only loading the order or its existing entries aborts; every later failure is
// logged, counted and the run continues.
func (r *Recorder) RecordCommissions(ctx context.Context, orderID id.ID) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "commission.Record")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	o, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		span.SetStatus(codes.Error, "load order")
		return nil, apperror.StoreFailure("get order", err)
	}

	existing, err := r.entries.ListByOrder(ctx, orderID)
	if err != nil {
		span.SetStatus(codes.Error, "load ledger")
		return nil, apperror.StoreFailure("list commissions", err)
	}

	rn := &run{order: o, ledger: newLedger(existing)}

	r.recordSales(ctx, rn)
	r.recordServices(ctx, rn)
	r.recordLegacyItems(ctx, rn)

	span.SetAttributes(
		attribute.Int("commission.created", rn.summary.Created),
		attribute.Int("commission.skipped", rn.summary.Skipped),
		attribute.Int("commission.failed", rn.summary.Failed),
	)

	logger.Info(ctx, "commissions recorded",
		"order_id", orderID,
		"created", rn.summary.Created,
		"skipped", rn.summary.Skipped,
		"failed", rn.summary.Failed)

	return &rn.summary, nil
}

// ListByOrder returns the ledger of an order.
func (r *Recorder) ListByOrder(ctx context.Context, orderID id.ID) ([]Entry, error) {
	if _, err := r.orders.GetByID(ctx, orderID); err != nil {
		return nil, apperror.StoreFailure("get order", err)
	}
	entries, err := r.entries.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.StoreFailure("list commissions", err)
	}
	return entries, nil
}

func (r *Recorder) recordSales(ctx context.Context, rn *run) {
	o := rn.order
	if o.SalesOwnerID == nil {
		return
	}
	owner := *o.SalesOwnerID

	note := SalesNote(o.Code)
	if rn.ledger.has(owner, TypeProduct, SalesReference, note) {
		rn.summary.Skipped++
		return
	}

	percents, err := r.staff.CommissionPercents(ctx, []id.ID{owner})
	if err != nil {
		logger.Warn(ctx, "sales commission skipped: staff lookup failed",
			"order_id", o.ID, "user_id", owner, "error", err)
		rn.summary.Failed++
		return
	}
	rate, ok := percents[owner]
	if !ok {
		rate = r.salesDefault
	}

	amount := types.FloorPercent(o.TotalAmount, rate)
	if !amount.IsPositive() {
		return
	}

	r.insert(ctx, rn, &Entry{
		UserID:          owner,
		Type:            TypeProduct,
		Amount:          amount,
		Percentage:      rate,
		BaseAmount:      o.TotalAmount,
		Note:            note,
		SourceReference: strPtr(SalesReference),
	})
}

func (r *Recorder) recordServices(ctx context.Context, rn *run) {
	o := rn.order
	shares, err := r.shares.ServiceShares(ctx, o.ID)
	if err != nil {
		logger.Warn(ctx, "technician pass skipped: load service assignments failed",
			"order_id", o.ID, "error", err)
		rn.summary.Failed++
		return
	}
	if len(shares) == 0 {
		return
	}

	var (
		profiles       map[id.ID]types.Percent
		profilesFailed bool
		needProfiles   []id.ID
	)
	for _, s := range shares {
		if !s.Percent.IsPositive() {
			needProfiles = append(needProfiles, s.TechnicianID)
		}
	}
	if len(needProfiles) > 0 {
		profiles, err = r.staff.CommissionPercents(ctx, needProfiles)
		if err != nil {
			// Shares with their own percent can still be recorded.
			logger.Warn(ctx, "technician profile lookup failed",
				"order_id", o.ID, "error", err)
			profilesFailed = true
		}
	}

	for _, s := range shares {
		ref := ServiceReference(s.ServiceID)
		note := TechnicianNote(s.ServiceName, o.Code)
		if rn.ledger.has(s.TechnicianID, TypeService, ref, note) {
			rn.summary.Skipped++
			continue
		}

		rate := s.Percent
		if !rate.IsPositive() {
			if profilesFailed {
				rn.summary.Failed++
				continue
			}
			rate = profiles[s.TechnicianID]
		}
		if !rate.IsPositive() {
			continue
		}

		amount := types.FloorPercent(s.Price, rate)
		if !amount.IsPositive() {
			continue
		}

		r.insert(ctx, rn, &Entry{
			UserID:          s.TechnicianID,
			Type:            TypeService,
			Amount:          amount,
			Percentage:      rate,
			BaseAmount:      s.Price,
			Note:            note,
			SourceReference: &ref,
		})
	}
}

func (r *Recorder) recordLegacyItems(ctx context.Context, rn *run) {
	o := rn.order
	items, err := r.shares.LegacyItemShares(ctx, o.ID)
	if err != nil {
		logger.Warn(ctx, "legacy technician pass skipped: load flat items failed",
			"order_id", o.ID, "error", err)
		rn.summary.Failed++
		return
	}

	for _, it := range items {
		if !it.Amount.IsPositive() {
			continue
		}
		ref := ItemReference(it.ItemID)
		note := TechnicianNote(it.ItemName, o.Code)
		if rn.ledger.has(it.TechnicianID, TypeService, ref, note) {
			rn.summary.Skipped++
			continue
		}

		r.insert(ctx, rn, &Entry{
			UserID:          it.TechnicianID,
			Type:            TypeService,
			Amount:          it.Amount,
			Percentage:      it.Rate,
			BaseAmount:      it.Price,
			Note:            note,
			SourceReference: &ref,
		})
	}
}

func (r *Recorder) insert(ctx context.Context, rn *run, e *Entry) {
	e.ID = id.New()
	e.OrderID = rn.order.ID
	e.Status = StatusPending
	e.CreatedAt = r.now().UTC()

	inserted, err := r.entries.Insert(ctx, e)
	if err != nil {
		logger.Warn(ctx, "commission insert failed",
			"order_id", e.OrderID,
			"user_id", e.UserID,
			"type", e.Type,
			"source_reference", *e.SourceReference,
			"error", apperror.NewSideEffectFailure("commission insert", err))
		rn.summary.Failed++
		return
	}

	rn.ledger.add(e)
	if !inserted {
		// A concurrent run got there first.
		rn.summary.Skipped++
		return
	}
	rn.summary.Created++
}

func strPtr(s string) *string {
	return &s
}
