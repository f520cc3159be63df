package usage

import (
	"context"
	"testing"
	"time"
)

// --- Mock ---

type mockBudgetReader struct {
	dailyLimit       int64
	monthlyLimit     int64
	dailyUsed        int64
	monthlyUsed      int64
	remainingDaily   int64
	remainingMonthly int64
}

func (m *mockBudgetReader) DailyLimit() int64       { return m.dailyLimit }
func (m *mockBudgetReader) MonthlyLimit() int64     { return m.monthlyLimit }
func (m *mockBudgetReader) DailyUsed() int64        { return m.dailyUsed }
func (m *mockBudgetReader) MonthlyUsed() int64      { return m.monthlyUsed }
func (m *mockBudgetReader) RemainingDaily() int64   { return m.remainingDaily }
func (m *mockBudgetReader) RemainingMonthly() int64 { return m.remainingMonthly }

func fixedService(br BudgetReader, now time.Time) *Service {
	s := New(br)
	s.now = func() time.Time { return now }
	return s
}

// --- Tests ---

func TestGetReport_DailyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		dailyLimit: 10000, dailyUsed: 3000, remainingDaily: 7000,
		monthlyLimit: 100000, monthlyUsed: 50000, remainingMonthly: 50000,
	}
	now := time.Date(2026, 3, 15, 13, 45, 0, 0, time.UTC)
	r := fixedService(br, now).GetReport(context.Background(), PeriodDay)

	if r.Period != PeriodDay {
		t.Errorf("expected period %q, got %q", PeriodDay, r.Period)
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC); !r.PeriodStart.Equal(want) {
		t.Errorf("expected period start %v, got %v", want, r.PeriodStart)
	}
	if want := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC); !r.PeriodEnd.Equal(want) {
		t.Errorf("expected period end %v, got %v", want, r.PeriodEnd)
	}
	if r.Limit != 10000 || r.Used != 3000 || r.Remaining != 7000 {
		t.Errorf("unexpected counters %+v", r)
	}
	if r.Exhausted {
		t.Error("budget should not be exhausted")
	}
}

func TestGetReport_MonthlyExhausted(t *testing.T) {
	br := &mockBudgetReader{monthlyLimit: 100000, monthlyUsed: 120000, remainingMonthly: 0}
	now := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)
	r := fixedService(br, now).GetReport(context.Background(), PeriodMonth)

	if want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC); !r.PeriodEnd.Equal(want) {
		t.Errorf("expected period end %v, got %v", want, r.PeriodEnd)
	}
	if !r.Exhausted {
		t.Error("budget should be exhausted")
	}
}

func TestGetReport_NoBudget(t *testing.T) {
	r := New(nil).GetReport(context.Background(), PeriodDay)

	if r.Limit != 0 || r.Remaining != -1 || r.Exhausted {
		t.Errorf("expected unlimited report, got %+v", r)
	}
}

func TestGetReport_UnlimitedWindow(t *testing.T) {
	br := &mockBudgetReader{monthlyUsed: 42, remainingMonthly: -1}
	r := New(br).GetReport(context.Background(), PeriodMonth)

	if r.Used != 42 || r.Exhausted {
		t.Errorf("unexpected report %+v", r)
	}
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]Period{"": PeriodMonth, "month": PeriodMonth, "day": PeriodDay} {
		got, err := ParsePeriod(in)
		if err != nil || got != want {
			t.Errorf("ParsePeriod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePeriod("total"); err == nil {
		t.Error("expected error for unsupported period")
	}
}
