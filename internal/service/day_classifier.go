package service

import (
	"time"

	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
)

// DayLabel 日历上某一天的着色标签
type DayLabel string

const (
	DayAllPresent   DayLabel = "all-present"
	DayAllAbsent    DayLabel = "all-absent"
	DayAllCancelled DayLabel = "all-cancelled"
	DayMixed        DayLabel = "mixed"
)

var uniformLabels = map[string]DayLabel{
	model.StatusPresent:   DayAllPresent,
	model.StatusAbsent:    DayAllAbsent,
	model.StatusCancelled: DayAllCancelled,
}

// ClassifyDays 为出现在记录中的每个日期计算标签
//
// 以下情况不出标签（日历改用节假日 / 考试 / 周末样式或留空）：
//   - 节假日、考试周、周末
//   - 该生当天没有应到课程
//   - 当天没有带状态的记录
//   - 全部记录为同一个未知状态
//
// 已标记数 >= 应到数且只有一种状态时为 all-<status>，否则为 mixed。
// 已标记数多于应到数（课表调整过）时照常判定。
func ClassifyDays(records []model.AttendanceRecord, cat *catalog.Catalog, branch, group string) map[time.Time]DayLabel {
	byDay := make(map[time.Time][]string)
	for i := range records {
		r := &records[i]
		if r.SubjectCode == catalog.BreakSubject {
			continue
		}
		d := catalog.Truncate(r.ClassDate)
		byDay[d] = append(byDay[d], r.Status)
	}

	labels := make(map[time.Time]DayLabel, len(byDay))
	for day, statuses := range byDay {
		if label, ok := classifyDay(day, statuses, cat, branch, group); ok {
			labels[day] = label
		}
	}
	return labels
}

func classifyDay(day time.Time, statuses []string, cat *catalog.Catalog, branch, group string) (DayLabel, bool) {
	if cat.IsExcluded(day) {
		return "", false
	}
	expected := len(cat.ExpectedClasses(day.Weekday(), branch, group))
	if expected == 0 {
		return "", false
	}

	marked := 0
	distinct := make(map[string]struct{}, 3)
	for _, s := range statuses {
		if s == "" {
			continue
		}
		marked++
		distinct[s] = struct{}{}
	}
	if marked == 0 {
		return "", false
	}

	if marked >= expected && len(distinct) == 1 {
		for s := range distinct {
			label, known := uniformLabels[s]
			return label, known
		}
	}
	return DayMixed, true
}
