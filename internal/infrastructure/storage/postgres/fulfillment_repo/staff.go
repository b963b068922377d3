package fulfillment_repo

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/notification"
	"fieldops/internal/infrastructure/storage/postgres"
)

const usersTable = "users"

// StaffRepo reads staff profiles.
type StaffRepo struct{ base }

// NewStaffRepo creates a staff repository.
func NewStaffRepo(txm *postgres.TxManager) *StaffRepo {
	return &StaffRepo{base{txm: txm}}
}

var (
	_ commission.StaffDirectory   = (*StaffRepo)(nil)
	_ notification.StaffDirectory = (*StaffRepo)(nil)
)

type profilePercent struct {
	ID      id.ID         `db:"id"`
	Percent types.Percent `db:"commission_percent"`
}

// CommissionPercents returns the profile percent of every listed user that has one.
func (r *StaffRepo) CommissionPercents(ctx context.Context, userIDs []id.ID) (map[id.ID]types.Percent, error) {
	out := make(map[id.ID]types.Percent, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := list[profilePercent](ctx, r.querier(ctx), "commission percents", commissionPercentsQuery(userIDs))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Percent
	}
	return out, nil
}

// ListActiveByRoles returns the ids of active users holding any of roles.
func (r *StaffRepo) ListActiveByRoles(ctx context.Context, roles []string) ([]id.ID, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	return list[id.ID](ctx, r.querier(ctx), "staff by role", activeByRolesQuery(roles))
}

func commissionPercentsQuery(userIDs []id.ID) sq.SelectBuilder {
	return psql.Select("id", "commission_percent").
		From(usersTable).
		Where(sq.Eq{"id": userIDs}).
		Where(sq.NotEq{"commission_percent": nil})
}

func activeByRolesQuery(roles []string) sq.SelectBuilder {
	return psql.Select("id").
		From(usersTable).
		Where(sq.Eq{"role": roles, "is_active": true}).
		OrderBy("id")
}
