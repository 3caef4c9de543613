package dto

// ── 考勤模块 DTO ──

// MarkAttendanceRequest 手动标记考勤
type MarkAttendanceRequest struct {
	SubjectCode string `json:"subject_code" binding:"required,max=20"`
	Date        string `json:"date"         binding:"required"` // YYYY-MM-DD
	Status      string `json:"status"       binding:"required,oneof=present absent cancelled"`
}

// RecordListRequest 考勤记录查询参数
type RecordListRequest struct {
	From        string `form:"from"`         // YYYY-MM-DD，含
	To          string `form:"to"`           // YYYY-MM-DD，含
	SubjectCode string `form:"subject_code" binding:"omitempty,max=20"`
}

// DailyScheduleRequest 每日课表查询参数
type DailyScheduleRequest struct {
	Date string `form:"date"` // 为空时取今天（学期外钳制到学期边界）
}

// ── 考勤模块响应 ──

// AttendanceRecordResponse 考勤记录
type AttendanceRecordResponse struct {
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	MarkedAt    string `json:"marked_at,omitempty"`
}

// TotalsResponse 出勤汇总
type TotalsResponse struct {
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Cancelled  int     `json:"cancelled"`
	Percentage float64 `json:"percentage"`
}

// SubjectStatsResponse 单科统计
type SubjectStatsResponse struct {
	SubjectCode    string  `json:"subject_code"`
	SubjectName    string  `json:"subject_name"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Cancelled      int     `json:"cancelled"`
	Percentage     float64 `json:"percentage"`
	BelowThreshold bool    `json:"below_threshold"`
}

// BackfillPassResponse 最近一次补录结果
type BackfillPassResponse struct {
	Planned    int    `json:"planned"`
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// BackfillStatusResponse 本会话补录状态
type BackfillStatusResponse struct {
	State      string                `json:"state"` // idle | running | done
	Policy     string                `json:"policy"`
	Dispatched bool                  `json:"dispatched"` // 本次请求是否提交了补录
	LastPass   *BackfillPassResponse `json:"last_pass,omitempty"`
}

// DashboardResponse 仪表盘
type DashboardResponse struct {
	Student       StudentResponse        `json:"student"`
	Today         string                 `json:"today"`
	SelectedDate  string                 `json:"selected_date"`
	Totals        TotalsResponse         `json:"totals"`
	DayLabels     map[string]string      `json:"day_labels"` // YYYY-MM-DD → all-present | all-absent | all-cancelled | mixed
	Subjects      []SubjectStatsResponse `json:"subjects"`
	Backfill      BackfillStatusResponse `json:"backfill"`
	StoreDegraded bool                   `json:"store_degraded"` // 记录读取失败，按空集合展示
}

// SubjectDetailResponse 单科详情
type SubjectDetailResponse struct {
	SubjectStatsResponse
	Records []AttendanceRecordResponse `json:"records"`
}

// DailyClassResponse 某天的一节课
type DailyClassResponse struct {
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Room        string `json:"room,omitempty"`
	Type        string `json:"type,omitempty"`
	IsBreak     bool   `json:"is_break"`
	Status      string `json:"status,omitempty"` // 未标记时为空
}

// DailyScheduleResponse 每日课表
type DailyScheduleResponse struct {
	Date           string               `json:"date"`
	Weekday        string               `json:"weekday"`
	ExcludedReason string               `json:"excluded_reason,omitempty"` // holiday | exam | weekend
	ExcludedName   string               `json:"excluded_name,omitempty"`   // 节假日 / 考试周名称
	Label          string               `json:"label,omitempty"`
	Classes        []DailyClassResponse `json:"classes"`
}
