package service

import (
	"testing"

	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
)

func TestAggregate(t *testing.T) {
	d := ymd(2026, 2, 2)
	records := []model.AttendanceRecord{
		rec("MA1201", d, model.StatusPresent),
		rec("PH1201", d, model.StatusAbsent),
		rec("HU1201", d, model.StatusCancelled),
		rec(catalog.BreakSubject, d, model.StatusAbsent),
		rec("CS1271", d, "late"),
	}

	got := Aggregate(records)
	want := Totals{Present: 1, Absent: 1, Cancelled: 1}
	if got != want {
		t.Errorf("期望 %+v，实际 %+v", want, got)
	}
}

func TestAggregate_BreakOnly(t *testing.T) {
	got := Aggregate([]model.AttendanceRecord{rec(catalog.BreakSubject, ymd(2026, 2, 2), model.StatusAbsent)})
	if got != (Totals{}) {
		t.Errorf("空堂记录不应计入，实际 %+v", got)
	}
}

func TestTotals_Percentage(t *testing.T) {
	tests := []struct {
		name   string
		totals Totals
		want   float64
	}{
		{"尚未开课", Totals{}, 100},
		{"只有停课", Totals{Cancelled: 3}, 100},
		{"全部出勤", Totals{Present: 4}, 100},
		{"三分之二", Totals{Present: 2, Absent: 1}, 66.67},
		{"停课不计入分母", Totals{Present: 3, Absent: 1, Cancelled: 5}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.totals.Percentage(); got != tt.want {
				t.Errorf("期望 %.2f，实际 %.2f", tt.want, got)
			}
		})
	}
}

func TestAggregateBySubject(t *testing.T) {
	records := []model.AttendanceRecord{
		rec("PH1201", ymd(2026, 1, 6), model.StatusPresent),
		rec("PH1201", ymd(2026, 1, 13), model.StatusPresent),
		rec("PH1201", ymd(2026, 1, 20), model.StatusAbsent),
		rec("PH1201", ymd(2026, 1, 27), model.StatusPresent),
		rec("MA1201", ymd(2026, 1, 5), model.StatusAbsent),
		rec("MA1201", ymd(2026, 1, 7), model.StatusPresent),
		rec(catalog.BreakSubject, ymd(2026, 1, 5), model.StatusAbsent),
		rec("HU1201", ymd(2026, 1, 5), "unknown"),
	}

	result := AggregateBySubject(records, 75)
	if len(result) != 2 {
		t.Fatalf("期望 2 个科目，实际 %d: %+v", len(result), result)
	}

	ma, ph := result[0], result[1]
	if ma.SubjectCode != "MA1201" || ph.SubjectCode != "PH1201" {
		t.Fatalf("应按科目代码排序，实际 %s, %s", ma.SubjectCode, ph.SubjectCode)
	}
	if ma.Percentage != 50 || !ma.BelowThreshold {
		t.Errorf("MA1201 期望 50%% 且低于警戒线，实际 %+v", ma)
	}
	if ph.Percentage != 75 || ph.BelowThreshold {
		t.Errorf("PH1201 期望 75%% 且不低于警戒线，实际 %+v", ph)
	}
}
