package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel is the derived risk tier of a project. It is never persisted.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

var (
	lowRiskBudget  = decimal.NewFromInt(100_000)
	highRiskBudget = decimal.NewFromInt(500_000)
)

const (
	lowRiskMonths  = 3
	highRiskMonths = 6
)

// ClassifyRisk derives the risk tier from budget and planned duration.
func ClassifyRisk(budget decimal.Decimal, start, plannedEnd time.Time) RiskLevel {
	months := monthsBetweenCeil(start, plannedEnd)
	if budget.GreaterThan(highRiskBudget) || months > highRiskMonths {
		return RiskHigh
	}
	if budget.LessThanOrEqual(lowRiskBudget) && months <= lowRiskMonths {
		return RiskLow
	}
	return RiskMedium
}

// monthsBetweenCeil counts whole calendar months from start to end and adds
// one when the anchor (start plus those months) still falls before end.
func monthsBetweenCeil(start, end time.Time) int {
	m := monthsBetween(start, end)
	if plusMonths(start, m).Before(dateOnly(end)) {
		return m + 1
	}
	return m
}

// monthsBetween truncates toward zero: a month only counts once the day of
// month has been reached again.
func monthsBetween(start, end time.Time) int {
	return (packedDate(end) - packedDate(start)) / 32
}

func packedDate(t time.Time) int {
	y, m, d := t.Date()
	return (y*12+int(m)-1)*32 + d
}

// plusMonths adds months and clamps the day to the end of the target month.
func plusMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := y*12 + int(m) - 1 + months
	ny, nm := floorDiv(total, 12), time.Month(floorMod(total, 12)+1)
	if last := daysIn(ny, nm); d > last {
		d = last
	}
	return time.Date(ny, nm, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
