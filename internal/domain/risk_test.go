package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifyRisk(t *testing.T) {
	cases := []struct {
		name   string
		budget int64
		start  time.Time
		end    time.Time
		want   RiskLevel
	}{
		{"budget above high threshold", 600_000, date(2024, 1, 1), date(2024, 2, 1), RiskHigh},
		{"exactly three months", 50_000, date(2024, 1, 1), date(2024, 4, 1), RiskLow},
		{"three months and a day ceils to four", 50_000, date(2024, 1, 1), date(2024, 4, 2), RiskMedium},
		{"low threshold is inclusive", 100_000, date(2024, 1, 1), date(2024, 2, 1), RiskLow},
		{"just over low threshold", 100_001, date(2024, 1, 1), date(2024, 2, 1), RiskMedium},
		{"high threshold is exclusive", 500_000, date(2024, 1, 1), date(2024, 2, 1), RiskMedium},
		{"six months is not high", 200_000, date(2024, 1, 1), date(2024, 7, 1), RiskMedium},
		{"over six months is high", 10_000, date(2024, 1, 1), date(2024, 7, 2), RiskHigh},
		{"same day", 0, date(2024, 3, 10), date(2024, 3, 10), RiskLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyRisk(decimal.NewFromInt(tc.budget), tc.start, tc.end)
			if got != tc.want {
				t.Fatalf("ClassifyRisk = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMonthsBetweenCeil(t *testing.T) {
	cases := []struct {
		start, end time.Time
		want       int
	}{
		{date(2024, 1, 31), date(2024, 2, 29), 1},
		{date(2024, 1, 31), date(2024, 3, 1), 2},
		{date(2024, 1, 15), date(2024, 1, 20), 1},
		{date(2023, 11, 1), date(2024, 2, 1), 3},
		{date(2024, 5, 1), date(2024, 3, 1), -2},
	}
	for _, tc := range cases {
		if got := monthsBetweenCeil(tc.start, tc.end); got != tc.want {
			t.Fatalf("monthsBetweenCeil(%s, %s) = %d, want %d", tc.start.Format(time.DateOnly), tc.end.Format(time.DateOnly), got, tc.want)
		}
	}
}

func TestPlusMonthsClampsDay(t *testing.T) {
	got := plusMonths(date(2023, 1, 31), 1)
	if !got.Equal(date(2023, 2, 28)) {
		t.Fatalf("unexpected date %s", got)
	}
	got = plusMonths(date(2024, 3, 15), -4)
	if !got.Equal(date(2023, 11, 15)) {
		t.Fatalf("unexpected date %s", got)
	}
}
