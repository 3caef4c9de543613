package dto

// ── 课表目录响应 ──

// ScheduledClassResponse 周课表中的一节课
type ScheduledClassResponse struct {
	Day         string `json:"day"`
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Room        string `json:"room,omitempty"`
	Type        string `json:"type,omitempty"`
	Branch      string `json:"branch"`
	Group       string `json:"group"`
}

// CatalogResponse 完整课表目录
type CatalogResponse struct {
	SemesterStart string                   `json:"semester_start"`
	SemesterEnd   string                   `json:"semester_end"`
	Classes       []ScheduledClassResponse `json:"classes"`
}

// WeekdayScheduleResponse 某个星期几的课
type WeekdayScheduleResponse struct {
	Day     string                   `json:"day"`
	Classes []ScheduledClassResponse `json:"classes"`
}

// WeeklyScheduleResponse 学生个人周课表
type WeeklyScheduleResponse struct {
	Branch string                    `json:"branch"`
	Group  string                    `json:"group"`
	Days   []WeekdayScheduleResponse `json:"days"`
}

// HolidayResponse 节假日
type HolidayResponse struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// ExamPeriodResponse 考试周
type ExamPeriodResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Name  string `json:"name"`
}
