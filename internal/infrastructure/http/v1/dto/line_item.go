package dto

import (
	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
	"fieldops/internal/domain/assignment"
)

// Assignee is one entry of an assignment list.
type Assignee struct {
	StaffID           string        `json:"staffId"`
	CommissionPercent types.Percent `json:"commissionPercent"`
}

// AssignTechniciansRequest accepts either a technicians list or the legacy
// technicianId + commissionPercent shorthand. The list wins when both are sent.
type AssignTechniciansRequest struct {
	Technicians       []Assignee     `json:"technicians"`
	TechnicianID      string         `json:"technicianId"`
	CommissionPercent *types.Percent `json:"commissionPercent"`
}

// Inputs converts the request into normalized assignment inputs.
func (r *AssignTechniciansRequest) Inputs() ([]assignment.Input, error) {
	return toInputs(r.Technicians, r.TechnicianID, r.CommissionPercent)
}

// AssignSalesRequest accepts either a sales list or the legacy
// salesId + commissionPercent shorthand.
type AssignSalesRequest struct {
	Sales             []Assignee     `json:"sales"`
	SalesID           string         `json:"salesId"`
	CommissionPercent *types.Percent `json:"commissionPercent"`
}

// Inputs converts the request into normalized assignment inputs.
func (r *AssignSalesRequest) Inputs() ([]assignment.Input, error) {
	return toInputs(r.Sales, r.SalesID, r.CommissionPercent)
}

// StatusRequest sets an item status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CompleteRequest carries optional completion notes.
type CompleteRequest struct {
	Notes string `json:"notes"`
}

func toInputs(list []Assignee, legacyID string, legacyPercent *types.Percent) ([]assignment.Input, error) {
	inputs := make([]assignment.Input, 0, len(list))
	for i, a := range list {
		staffID, err := parseStaffID(a.StaffID)
		if err != nil {
			return nil, err.WithDetail("index", i)
		}
		inputs = append(inputs, assignment.Input{StaffID: staffID, CommissionPercent: a.CommissionPercent})
	}

	var legacy *assignment.Input
	if len(inputs) == 0 && legacyID != "" {
		staffID, err := parseStaffID(legacyID)
		if err != nil {
			return nil, err
		}
		legacy = &assignment.Input{StaffID: staffID, CommissionPercent: types.Zero()}
		if legacyPercent != nil {
			legacy.CommissionPercent = *legacyPercent
		}
	}
	return assignment.Normalize(inputs, legacy)
}

func parseStaffID(s string) (id.ID, *apperror.AppError) {
	staffID, err := id.Parse(s)
	if err != nil {
		return id.ID{}, apperror.NewInvalidAssignment("invalid assignee id").WithDetail("staff_id", s)
	}
	return staffID, nil
}
