package catalog

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ── 静态课表目录 ──────────────────────────────────────────────
//
// 目录在启动时加载一次，之后只读，可被多个 goroutine 并发访问。
// 日期一律使用 UTC 零点的 time.Time 表示"日历日"，与时区无关。
// ─────────────────────────────────────────────────────────────

const (
	// BreakSubject 课表中的"空堂"占位，不计入任何统计
	BreakSubject = "BREAK"
	// All 班级 / 分组通配
	All = "ALL"

	GroupA = "A"
	GroupB = "B"

	// DateLayout 日历日的字符串格式
	DateLayout = "2006-01-02"
)

// 排除原因
const (
	ExcludedHoliday = "holiday"
	ExcludedExam    = "exam"
	ExcludedWeekend = "weekend"
)

var ErrInvalidCatalog = errors.New("课表目录数据无效")

// ScheduledClass 周课表中的一节课
type ScheduledClass struct {
	Day         time.Weekday
	SubjectCode string
	SubjectName string
	StartTime   string
	EndTime     string
	Room        string
	Type        string // lecture | lab | tutorial
	Branch      string // 具体班级或 ALL
	Group       string // A | B | ALL
}

// IsBreak 是否为空堂占位
func (c ScheduledClass) IsBreak() bool { return c.SubjectCode == BreakSubject }

// AppliesTo 是否适用于指定班级与分组
func (c ScheduledClass) AppliesTo(branch, group string) bool {
	return (c.Branch == branch || c.Branch == All) &&
		(c.Group == group || c.Group == All)
}

// HolidayEntry 节假日
type HolidayEntry struct {
	Date time.Time
	Name string
}

// ExamPeriod 考试周（首尾均包含）
type ExamPeriod struct {
	Start time.Time
	End   time.Time
	Name  string
}

// Contains 日期是否落在考试周内
func (p ExamPeriod) Contains(d time.Time) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Subject 科目（去重后的课表科目）
type Subject struct {
	Code string
	Name string
}

// Catalog 静态课表目录
type Catalog struct {
	SemesterStart time.Time
	SemesterEnd   time.Time
	Classes       []ScheduledClass
	Holidays      []HolidayEntry
	ExamPeriods   []ExamPeriod

	holidays map[time.Time]HolidayEntry
	byDay    map[time.Weekday][]ScheduledClass
}

// New 校验并构建目录索引
func New(start, end time.Time, classes []ScheduledClass, holidays []HolidayEntry, exams []ExamPeriod) (*Catalog, error) {
	start, end = Truncate(start), Truncate(end)
	if !end.After(start) {
		return nil, fmt.Errorf("%w: 学期结束日期必须晚于开始日期", ErrInvalidCatalog)
	}

	c := &Catalog{
		SemesterStart: start,
		SemesterEnd:   end,
		Classes:       classes,
		Holidays:      make([]HolidayEntry, 0, len(holidays)),
		ExamPeriods:   make([]ExamPeriod, 0, len(exams)),
		holidays:      make(map[time.Time]HolidayEntry, len(holidays)),
		byDay:         make(map[time.Weekday][]ScheduledClass),
	}

	for i, cls := range classes {
		if cls.SubjectCode == "" {
			return nil, fmt.Errorf("%w: 第 %d 节课缺少科目代码", ErrInvalidCatalog, i+1)
		}
		switch cls.Group {
		case GroupA, GroupB, All:
		default:
			return nil, fmt.Errorf("%w: 第 %d 节课分组 %q 无效", ErrInvalidCatalog, i+1, cls.Group)
		}
		if cls.Branch == "" {
			return nil, fmt.Errorf("%w: 第 %d 节课缺少班级", ErrInvalidCatalog, i+1)
		}
		c.byDay[cls.Day] = append(c.byDay[cls.Day], cls)
	}

	for _, h := range holidays {
		h.Date = Truncate(h.Date)
		c.Holidays = append(c.Holidays, h)
		c.holidays[h.Date] = h
	}
	sort.Slice(c.Holidays, func(i, j int) bool { return c.Holidays[i].Date.Before(c.Holidays[j].Date) })

	for _, p := range exams {
		p.Start, p.End = Truncate(p.Start), Truncate(p.End)
		if p.End.Before(p.Start) {
			return nil, fmt.Errorf("%w: 考试周 %q 结束早于开始", ErrInvalidCatalog, p.Name)
		}
		c.ExamPeriods = append(c.ExamPeriods, p)
	}
	sort.Slice(c.ExamPeriods, func(i, j int) bool { return c.ExamPeriods[i].Start.Before(c.ExamPeriods[j].Start) })

	return c, nil
}

// ── 日期判定 ──

// Holiday 返回日期对应的节假日
func (c *Catalog) Holiday(d time.Time) (HolidayEntry, bool) {
	h, ok := c.holidays[Truncate(d)]
	return h, ok
}

// IsHoliday 是否为节假日
func (c *Catalog) IsHoliday(d time.Time) bool {
	_, ok := c.Holiday(d)
	return ok
}

// ExamPeriodOn 返回包含该日期的考试周
func (c *Catalog) ExamPeriodOn(d time.Time) (ExamPeriod, bool) {
	d = Truncate(d)
	for _, p := range c.ExamPeriods {
		if p.Contains(d) {
			return p, true
		}
	}
	return ExamPeriod{}, false
}

// InExamPeriod 是否处于考试周
func (c *Catalog) InExamPeriod(d time.Time) bool {
	_, ok := c.ExamPeriodOn(d)
	return ok
}

// IsWeekend 是否为周六或周日
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ExclusionReason 返回该日不上课的原因，正常上课日返回空串
// 优先级：节假日 > 考试周 > 周末
func (c *Catalog) ExclusionReason(d time.Time) string {
	switch {
	case c.IsHoliday(d):
		return ExcludedHoliday
	case c.InExamPeriod(d):
		return ExcludedExam
	case IsWeekend(d):
		return ExcludedWeekend
	}
	return ""
}

// IsExcluded 是否为节假日、考试周或周末
func (c *Catalog) IsExcluded(d time.Time) bool {
	return c.ExclusionReason(d) != ""
}

// ── 课表查询 ──

// ExpectedClasses 某学生在某个星期几应上的课（不含空堂）
func (c *Catalog) ExpectedClasses(day time.Weekday, branch, group string) []ScheduledClass {
	var result []ScheduledClass
	for _, cls := range c.byDay[day] {
		if cls.IsBreak() || !cls.AppliesTo(branch, group) {
			continue
		}
		result = append(result, cls)
	}
	return result
}

// ClassesFor 某学生在某个星期几的完整课表（含空堂，用于展示）
func (c *Catalog) ClassesFor(day time.Weekday, branch, group string) []ScheduledClass {
	var result []ScheduledClass
	for _, cls := range c.byDay[day] {
		if cls.AppliesTo(branch, group) {
			result = append(result, cls)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartTime < result[j].StartTime })
	return result
}

// Subjects 某学生涉及的全部科目，按代码排序
func (c *Catalog) Subjects(branch, group string) []Subject {
	seen := make(map[string]bool)
	var result []Subject
	for _, cls := range c.Classes {
		if cls.IsBreak() || !cls.AppliesTo(branch, group) || seen[cls.SubjectCode] {
			continue
		}
		seen[cls.SubjectCode] = true
		result = append(result, Subject{Code: cls.SubjectCode, Name: cls.SubjectName})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

// SubjectName 根据科目代码查找名称，未找到时返回代码本身
func (c *Catalog) SubjectName(code string) string {
	for _, cls := range c.Classes {
		if cls.SubjectCode == code && cls.SubjectName != "" {
			return cls.SubjectName
		}
	}
	return code
}

// ClampToSemester 将日期限制在学期范围内
func (c *Catalog) ClampToSemester(d time.Time) time.Time {
	d = Truncate(d)
	if d.Before(c.SemesterStart) {
		return c.SemesterStart
	}
	if d.After(c.SemesterEnd) {
		return c.SemesterEnd
	}
	return d
}

// ── 日期工具 ──

// Truncate 取日历日（丢弃时分秒，固定为 UTC 零点）
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateIn 取某时刻在指定时区下的日历日
func DateIn(t time.Time, loc *time.Location) time.Time {
	return Truncate(t.In(loc))
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate 格式化为 YYYY-MM-DD
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}
