package service

import (
	"math"
	"sort"

	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
)

// Totals 出勤 / 缺勤 / 停课 计数
type Totals struct {
	Present   int `json:"present"`
	Absent    int `json:"absent"`
	Cancelled int `json:"cancelled"`
}

func (t *Totals) add(status string) {
	switch status {
	case model.StatusPresent:
		t.Present++
	case model.StatusAbsent:
		t.Absent++
	case model.StatusCancelled:
		t.Cancelled++
	}
}

// Held 实际开课次数（不含停课）
func (t Totals) Held() int { return t.Present + t.Absent }

// Percentage 出勤率（百分比，保留两位小数）
// 尚无开课记录时视为 100
func (t Totals) Percentage() float64 {
	held := t.Held()
	if held == 0 {
		return 100
	}
	return math.Round(float64(t.Present)/float64(held)*10000) / 100
}

// Aggregate 汇总全部记录；空堂记录与未知状态不计入
func Aggregate(records []model.AttendanceRecord) Totals {
	var t Totals
	for i := range records {
		if records[i].SubjectCode == catalog.BreakSubject {
			continue
		}
		t.add(records[i].Status)
	}
	return t
}

// SubjectTotals 单科汇总
type SubjectTotals struct {
	SubjectCode    string
	Totals         Totals
	Percentage     float64
	BelowThreshold bool
}

// AggregateBySubject 按科目汇总，结果按科目代码排序
// threshold 为出勤率警戒线（百分比）
func AggregateBySubject(records []model.AttendanceRecord, threshold float64) []SubjectTotals {
	bySubject := make(map[string]*Totals)
	for i := range records {
		r := &records[i]
		if r.SubjectCode == catalog.BreakSubject || !model.ValidStatus(r.Status) {
			continue
		}
		t, ok := bySubject[r.SubjectCode]
		if !ok {
			t = &Totals{}
			bySubject[r.SubjectCode] = t
		}
		t.add(r.Status)
	}

	result := make([]SubjectTotals, 0, len(bySubject))
	for code, t := range bySubject {
		pct := t.Percentage()
		result = append(result, SubjectTotals{
			SubjectCode:    code,
			Totals:         *t,
			Percentage:     pct,
			BelowThreshold: pct < threshold,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubjectCode < result[j].SubjectCode })
	return result
}
