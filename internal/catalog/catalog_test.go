package catalog

import (
	"errors"
	"testing"
	"testing/fstest"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	classes := []ScheduledClass{
		{Day: time.Monday, SubjectCode: "MA1201", Branch: "CSB", Group: All, StartTime: "09:00"},
		{Day: time.Monday, SubjectCode: BreakSubject, Branch: All, Group: All, StartTime: "13:00"},
		{Day: time.Monday, SubjectCode: "CS1271", Branch: "CSB", Group: GroupA, StartTime: "14:00"},
		{Day: time.Monday, SubjectCode: "EE1271", Branch: "CSB", Group: GroupB, StartTime: "14:00"},
		{Day: time.Monday, SubjectCode: "HU1201", Branch: All, Group: All, StartTime: "08:00"},
		{Day: time.Tuesday, SubjectCode: "PH1201", Branch: "ITB", Group: All, StartTime: "09:00"},
	}
	c, err := New(date(2026, 1, 5), date(2026, 5, 15), classes,
		[]HolidayEntry{{Date: date(2026, 1, 26), Name: "Republic Day"}},
		[]ExamPeriod{{Start: date(2026, 2, 23), End: date(2026, 2, 28), Name: "Mid-Semester"}},
	)
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}
	return c
}

// ── 校验 ──

func TestNew_Validation(t *testing.T) {
	start, end := date(2026, 1, 5), date(2026, 5, 15)
	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		classes []ScheduledClass
		exams   []ExamPeriod
	}{
		{"结束早于开始", end, start, nil, nil},
		{"开始等于结束", start, start, nil, nil},
		{"缺少科目代码", start, end, []ScheduledClass{{Day: time.Monday, Branch: "CSB", Group: All}}, nil},
		{"分组无效", start, end, []ScheduledClass{{Day: time.Monday, SubjectCode: "X", Branch: "CSB", Group: "C"}}, nil},
		{"缺少班级", start, end, []ScheduledClass{{Day: time.Monday, SubjectCode: "X", Group: All}}, nil},
		{"考试周倒置", start, end, nil, []ExamPeriod{{Start: date(2026, 3, 10), End: date(2026, 3, 9)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.end, tt.classes, nil, tt.exams)
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("期望 ErrInvalidCatalog，实际: %v", err)
			}
		})
	}
}

// ── 排除日判定 ──

func TestExclusionReason(t *testing.T) {
	c := newTestCatalog(t)
	tests := []struct {
		day  time.Time
		want string
	}{
		{date(2026, 1, 26), ExcludedHoliday},
		{date(2026, 2, 23), ExcludedExam}, // 考试周首日
		{date(2026, 2, 28), ExcludedExam}, // 考试周末日（周六，考试优先于周末）
		{date(2026, 1, 10), ExcludedWeekend},
		{date(2026, 1, 11), ExcludedWeekend},
		{date(2026, 1, 12), ""},
		{date(2026, 3, 2), ""},
	}
	for _, tt := range tests {
		if got := c.ExclusionReason(tt.day); got != tt.want {
			t.Errorf("%s: 期望 %q，实际 %q", FormatDate(tt.day), tt.want, got)
		}
		if got := c.IsExcluded(tt.day); got != (tt.want != "") {
			t.Errorf("%s: IsExcluded=%v 与原因 %q 不一致", FormatDate(tt.day), got, tt.want)
		}
	}
}

func TestHoliday_IgnoresTimeOfDay(t *testing.T) {
	c := newTestCatalog(t)
	h, ok := c.Holiday(time.Date(2026, 1, 26, 18, 30, 0, 0, time.UTC))
	if !ok || h.Name != "Republic Day" {
		t.Errorf("期望命中 Republic Day，实际 ok=%v name=%q", ok, h.Name)
	}
}

// ── 课表查询 ──

func TestExpectedClasses_GroupFilter(t *testing.T) {
	c := newTestCatalog(t)

	groupB := c.ExpectedClasses(time.Monday, "CSB", GroupB)
	for _, cls := range groupB {
		if cls.SubjectCode == "CS1271" {
			t.Error("A 组实验课不应出现在 B 组学生的应到课程中")
		}
		if cls.IsBreak() {
			t.Error("应到课程不应包含空堂")
		}
	}
	if len(groupB) != 3 {
		t.Errorf("B 组周一期望 3 节课（MA1201, EE1271, HU1201），实际 %d", len(groupB))
	}

	groupA := c.ExpectedClasses(time.Monday, "CSB", GroupA)
	found := false
	for _, cls := range groupA {
		if cls.SubjectCode == "CS1271" {
			found = true
		}
	}
	if !found {
		t.Error("A 组学生应包含 CS1271")
	}
}

func TestExpectedClasses_BranchFilter(t *testing.T) {
	c := newTestCatalog(t)
	if got := c.ExpectedClasses(time.Tuesday, "CSB", GroupA); len(got) != 0 {
		t.Errorf("CSB 周二不应有课，实际 %d 节", len(got))
	}
	if got := c.ExpectedClasses(time.Tuesday, "ITB", GroupA); len(got) != 1 {
		t.Errorf("ITB 周二期望 1 节课，实际 %d", len(got))
	}
}

func TestClassesFor_KeepsBreakSorted(t *testing.T) {
	c := newTestCatalog(t)
	got := c.ClassesFor(time.Monday, "CSB", GroupA)
	if len(got) != 4 {
		t.Fatalf("期望 4 条（含空堂），实际 %d", len(got))
	}
	if got[0].SubjectCode != "HU1201" {
		t.Errorf("期望按开始时间排序，首节为 HU1201，实际 %s", got[0].SubjectCode)
	}
	hasBreak := false
	for _, cls := range got {
		if cls.IsBreak() {
			hasBreak = true
		}
	}
	if !hasBreak {
		t.Error("展示课表应保留空堂")
	}
}

func TestSubjects(t *testing.T) {
	c := newTestCatalog(t)
	subjects := c.Subjects("CSB", GroupA)
	want := []string{"CS1271", "HU1201", "MA1201"}
	if len(subjects) != len(want) {
		t.Fatalf("期望 %d 个科目，实际 %d", len(want), len(subjects))
	}
	for i, s := range subjects {
		if s.Code != want[i] {
			t.Errorf("第 %d 个科目期望 %s，实际 %s", i, want[i], s.Code)
		}
	}
}

func TestClampToSemester(t *testing.T) {
	c := newTestCatalog(t)
	if got := c.ClampToSemester(date(2025, 12, 1)); !got.Equal(c.SemesterStart) {
		t.Errorf("学期前应钳制到开学日，实际 %s", FormatDate(got))
	}
	if got := c.ClampToSemester(date(2026, 6, 1)); !got.Equal(c.SemesterEnd) {
		t.Errorf("学期后应钳制到结课日，实际 %s", FormatDate(got))
	}
	if got := c.ClampToSemester(date(2026, 2, 2)); !got.Equal(date(2026, 2, 2)) {
		t.Errorf("学期内日期不应改变，实际 %s", FormatDate(got))
	}
}

func TestDateIn(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("缺少时区数据: %v", err)
	}
	// UTC 19:00 已是印度时间次日 00:30
	got := DateIn(time.Date(2026, 1, 5, 19, 0, 0, 0, time.UTC), loc)
	if !got.Equal(date(2026, 1, 6)) {
		t.Errorf("期望 2026-01-06，实际 %s", FormatDate(got))
	}
}

// ── 加载 ──

func TestLoad_Embedded(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("加载内嵌目录失败: %v", err)
	}
	if FormatDate(c.SemesterStart) != "2026-01-05" {
		t.Errorf("期望开学日 2026-01-05，实际 %s", FormatDate(c.SemesterStart))
	}
	if len(c.Classes) == 0 {
		t.Error("内嵌课表不应为空")
	}
	if !c.IsHoliday(date(2026, 1, 26)) {
		t.Error("2026-01-26 应为节假日")
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"schedule.json": {Data: []byte(`{
			"semesterConfig": {"start": "2026-01-05", "end": "2026-05-15"},
			"classes": [
				{"day": "monday", "subject_code": "MA1201", "branch": "csb", "group": "all"},
				{"day": "Monday", "subject_code": "BREAK", "branch": "ALL", "group": "ALL"}
			]
		}`)},
		"holidays.json": {Data: []byte(`{"holidays": [{"date": "2026-01-10", "name": "Test"}]}`)},
		"exams.json":    {Data: []byte(`{"periods": [{"start": "2026-03-09", "end": "2026-03-14", "name": "Mid"}]}`)},
	}

	c, err := LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS 失败: %v", err)
	}
	got := c.ExpectedClasses(time.Monday, "CSB", GroupA)
	if len(got) != 1 || got[0].SubjectCode != "MA1201" {
		t.Errorf("期望 CSB 周一 1 节 MA1201（班级/分组大小写归一），实际 %+v", got)
	}
	if !c.IsHoliday(date(2026, 1, 10)) {
		t.Error("2026-01-10 应为节假日")
	}
	if !c.InExamPeriod(date(2026, 3, 14)) {
		t.Error("考试周末日应包含在内")
	}
}

func TestLoadFS_Invalid(t *testing.T) {
	base := func() fstest.MapFS {
		return fstest.MapFS{
			"schedule.json": {Data: []byte(`{"semesterConfig": {"start": "2026-01-05", "end": "2026-05-15"}, "classes": []}`)},
			"holidays.json": {Data: []byte(`{"holidays": []}`)},
			"exams.json":    {Data: []byte(`{"periods": []}`)},
		}
	}

	t.Run("坏日期", func(t *testing.T) {
		fsys := base()
		fsys["holidays.json"] = &fstest.MapFile{Data: []byte(`{"holidays": [{"date": "10/01/2026"}]}`)}
		if _, err := LoadFS(fsys); !errors.Is(err, ErrInvalidCatalog) {
			t.Errorf("期望 ErrInvalidCatalog，实际: %v", err)
		}
	})

	t.Run("坏星期", func(t *testing.T) {
		fsys := base()
		fsys["schedule.json"] = &fstest.MapFile{Data: []byte(`{
			"semesterConfig": {"start": "2026-01-05", "end": "2026-05-15"},
			"classes": [{"day": "Funday", "subject_code": "X", "branch": "CSB", "group": "A"}]
		}`)}
		if _, err := LoadFS(fsys); !errors.Is(err, ErrInvalidCatalog) {
			t.Errorf("期望 ErrInvalidCatalog，实际: %v", err)
		}
	})

	t.Run("坏 JSON", func(t *testing.T) {
		fsys := base()
		fsys["exams.json"] = &fstest.MapFile{Data: []byte(`{`)}
		if _, err := LoadFS(fsys); !errors.Is(err, ErrInvalidCatalog) {
			t.Errorf("期望 ErrInvalidCatalog，实际: %v", err)
		}
	})

	t.Run("缺文件", func(t *testing.T) {
		fsys := base()
		delete(fsys, "exams.json")
		if _, err := LoadFS(fsys); err == nil {
			t.Error("缺少 exams.json 应返回错误")
		}
	})
}
