package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project is a tracked initiative with a budget, a schedule and a manager.
type Project struct {
	ID             string
	Name           string
	StartDate      time.Time
	PlannedEndDate time.Time
	ActualEndDate  *time.Time
	TotalBudget    decimal.Decimal
	Description    *string
	Manager        Member
	Status         ProjectStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Risk recomputes the risk tier from the current budget and schedule.
func (p Project) Risk() RiskLevel {
	return ClassifyRisk(p.TotalBudget, p.StartDate, p.PlannedEndDate)
}

// BudgetByStatus is the summed budget of all projects sharing a status.
type BudgetByStatus struct {
	Status ProjectStatus
	Total  decimal.Decimal
}
