package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/dto"
	"github.com/0xIIEST/attend-ease/internal/model"
	"github.com/0xIIEST/attend-ease/internal/repository"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
)

// ── 考勤模块业务错误 ──

var (
	ErrInvalidDate         = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrInvalidDateRange    = errors.New("起始日期不能晚于结束日期")
	ErrInvalidStatus       = errors.New("考勤状态只能为 present / absent / cancelled")
	ErrFutureDate          = errors.New("不能标记今天之后的课程")
	ErrOutsideSemester     = errors.New("日期不在本学期范围内")
	ErrNoClassOnDate       = errors.New("该日不上课")
	ErrBreakNotMarkable    = errors.New("空堂不能标记考勤")
	ErrSubjectNotScheduled = errors.New("该科目当天不在你的课表中")
	ErrSubjectNotFound     = errors.New("你的课表中没有该科目")
	ErrRecordsUnavailable  = errors.New("考勤记录暂时无法读取")
)

// AttendanceService 考勤业务接口
type AttendanceService interface {
	// Dashboard 汇总、日历标签、单科统计；首次调用时提交本会话的缺勤补录
	Dashboard(ctx context.Context, studentID, sessionID string) (*dto.DashboardResponse, error)
	MarkAttendance(ctx context.Context, studentID string, req *dto.MarkAttendanceRequest) (*dto.AttendanceRecordResponse, error)
	ListRecords(ctx context.Context, studentID string, req *dto.RecordListRequest) ([]dto.AttendanceRecordResponse, error)
	SubjectDetail(ctx context.Context, studentID, subjectCode string) (*dto.SubjectDetailResponse, error)
	DailySchedule(ctx context.Context, studentID string, req *dto.DailyScheduleRequest) (*dto.DailyScheduleResponse, error)
}

type attendanceService struct {
	cfg      *config.Config
	repo     *repository.Repository
	cat      *catalog.Catalog
	sessions *SessionRegistry
	backfill *BackfillEngine
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(
	cfg *config.Config,
	repo *repository.Repository,
	cat *catalog.Catalog,
	sessions *SessionRegistry,
	backfill *BackfillEngine,
	logger *zap.Logger,
) AttendanceService {
	return &attendanceService{
		cfg:      cfg,
		repo:     repo,
		cat:      cat,
		sessions: sessions,
		backfill: backfill,
		loc:      catalogLocation(cfg, logger),
		now:      time.Now,
		logger:   logger,
	}
}

// catalogLocation 判定"今天"所用的时区，配置无效时退回 UTC
func catalogLocation(cfg *config.Config, logger *zap.Logger) *time.Location {
	loc, err := time.LoadLocation(cfg.Catalog.Timezone)
	if err != nil {
		logger.Warn("课表时区无效，使用 UTC", zap.String("timezone", cfg.Catalog.Timezone), zap.Error(err))
		return time.UTC
	}
	return loc
}

func (s *attendanceService) today() time.Time {
	return catalog.DateIn(s.now(), s.loc)
}

// ═══════════════════════════════════════════════════════════
// Dashboard
// ═══════════════════════════════════════════════════════════
//
// 记录读取失败时按空集合展示并标记 store_degraded；
// 此时不提交补录，会话保持 idle，等下一次成功读取后再扫描，
// 避免对实际存在的记录写入 absent。

func (s *attendanceService) Dashboard(ctx context.Context, studentID, sessionID string) (*dto.DashboardResponse, error) {
	// 1. 学生档案
	profile, err := s.getProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}

	// 2. 全部考勤记录
	degraded := false
	records, err := s.repo.Attendance.List(ctx, studentID, repository.RecordFilter{})
	if err != nil {
		s.logger.Warn("读取考勤记录失败，按空集合展示", zap.String("student_id", studentID), zap.Error(err))
		records, degraded = nil, true
	}

	// 3. 本会话首次访问时提交补录
	today := s.today()
	sess := s.sessions.Resume(sessionID, studentID)
	dispatched := false
	if s.cfg.Backfill.Enabled && !degraded && sess.TryBeginBackfill() {
		plan := PlanBackfill(profile.StudentID, profile.Branch, profile.Group, s.cat, records, today, s.now().UTC())
		s.backfill.Dispatch(ctx, sess, plan)
		dispatched = true
		if len(plan) > 0 {
			s.logger.Info("已提交缺勤补录",
				zap.String("student_id", studentID),
				zap.String("session_id", sess.ID),
				zap.Int("planned", len(plan)),
			)
		}
	}

	// 4. 汇总
	totals := Aggregate(records)
	labels := ClassifyDays(records, s.cat, profile.Branch, profile.Group)
	dayLabels := make(map[string]string, len(labels))
	for d, l := range labels {
		dayLabels[catalog.FormatDate(d)] = string(l)
	}

	return &dto.DashboardResponse{
		Student:       toStudentResponse(profile),
		Today:         catalog.FormatDate(today),
		SelectedDate:  catalog.FormatDate(s.cat.ClampToSemester(today)),
		Totals:        toTotalsResponse(totals),
		DayLabels:     dayLabels,
		Subjects:      s.subjectStats(profile, records),
		Backfill:      s.backfillStatus(sess, dispatched),
		StoreDegraded: degraded,
	}, nil
}

// ═══════════════════════════════════════════════════════════
// MarkAttendance — 手动标记某节课
// ═══════════════════════════════════════════════════════════

func (s *attendanceService) MarkAttendance(ctx context.Context, studentID string, req *dto.MarkAttendanceRequest) (*dto.AttendanceRecordResponse, error) {
	if !model.ValidStatus(req.Status) {
		return nil, ErrInvalidStatus
	}
	if req.SubjectCode == catalog.BreakSubject {
		return nil, ErrBreakNotMarkable
	}
	day, err := catalog.ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if day.After(s.today()) {
		return nil, ErrFutureDate
	}
	if day.Before(s.cat.SemesterStart) || day.After(s.cat.SemesterEnd) {
		return nil, ErrOutsideSemester
	}
	if s.cat.IsExcluded(day) {
		return nil, ErrNoClassOnDate
	}

	profile, err := s.getProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !scheduledOn(s.cat.ExpectedClasses(day.Weekday(), profile.Branch, profile.Group), req.SubjectCode) {
		return nil, ErrSubjectNotScheduled
	}

	record := &model.AttendanceRecord{
		StudentID:   studentID,
		SubjectCode: req.SubjectCode,
		ClassDate:   day,
		Status:      req.Status,
		MarkedAt:    s.now().UTC(),
	}
	if err := s.repo.Attendance.Upsert(ctx, record); err != nil {
		s.logger.Error("写入考勤记录失败",
			zap.String("student_id", studentID),
			zap.String("subject_code", req.SubjectCode),
			zap.String("class_date", req.Date),
			zap.Error(err),
		)
		return nil, err
	}

	resp := s.toRecordResponse(record)
	return &resp, nil
}

// ListRecords 按日期区间 / 科目查询考勤记录
func (s *attendanceService) ListRecords(ctx context.Context, studentID string, req *dto.RecordListRequest) ([]dto.AttendanceRecordResponse, error) {
	filter := repository.RecordFilter{SubjectCode: req.SubjectCode}
	if req.From != "" {
		from, err := catalog.ParseDate(req.From)
		if err != nil {
			return nil, ErrInvalidDate
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := catalog.ParseDate(req.To)
		if err != nil {
			return nil, ErrInvalidDate
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, ErrInvalidDateRange
	}

	records, err := s.listRecords(ctx, studentID, filter)
	if err != nil {
		return nil, err
	}

	result := make([]dto.AttendanceRecordResponse, 0, len(records))
	for i := range records {
		if records[i].SubjectCode == catalog.BreakSubject {
			continue
		}
		result = append(result, s.toRecordResponse(&records[i]))
	}
	return result, nil
}

// SubjectDetail 单科统计与全部记录
func (s *attendanceService) SubjectDetail(ctx context.Context, studentID, subjectCode string) (*dto.SubjectDetailResponse, error) {
	if subjectCode == catalog.BreakSubject {
		return nil, ErrSubjectNotFound
	}
	profile, err := s.getProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !hasSubject(s.cat.Subjects(profile.Branch, profile.Group), subjectCode) {
		return nil, ErrSubjectNotFound
	}

	records, err := s.listRecords(ctx, studentID, repository.RecordFilter{SubjectCode: subjectCode})
	if err != nil {
		return nil, err
	}

	totals := Aggregate(records)
	pct := totals.Percentage()
	resp := &dto.SubjectDetailResponse{
		SubjectStatsResponse: dto.SubjectStatsResponse{
			SubjectCode:    subjectCode,
			SubjectName:    s.cat.SubjectName(subjectCode),
			Present:        totals.Present,
			Absent:         totals.Absent,
			Cancelled:      totals.Cancelled,
			Percentage:     pct,
			BelowThreshold: pct < s.cfg.Attendance.ThresholdPercent,
		},
		Records: make([]dto.AttendanceRecordResponse, 0, len(records)),
	}
	// 最近的课在前
	for i := len(records) - 1; i >= 0; i-- {
		resp.Records = append(resp.Records, s.toRecordResponse(&records[i]))
	}
	return resp, nil
}

// ═══════════════════════════════════════════════════════════
// DailySchedule — 某天的课表及各节课的考勤状态
// ═══════════════════════════════════════════════════════════

func (s *attendanceService) DailySchedule(ctx context.Context, studentID string, req *dto.DailyScheduleRequest) (*dto.DailyScheduleResponse, error) {
	day := s.cat.ClampToSemester(s.today())
	if req.Date != "" {
		d, err := catalog.ParseDate(req.Date)
		if err != nil {
			return nil, ErrInvalidDate
		}
		day = d
	}

	profile, err := s.getProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}

	resp := &dto.DailyScheduleResponse{
		Date:           catalog.FormatDate(day),
		Weekday:        day.Weekday().String(),
		ExcludedReason: s.cat.ExclusionReason(day),
		Classes:        []dto.DailyClassResponse{},
	}
	switch resp.ExcludedReason {
	case catalog.ExcludedHoliday:
		h, _ := s.cat.Holiday(day)
		resp.ExcludedName = h.Name
	case catalog.ExcludedExam:
		p, _ := s.cat.ExamPeriodOn(day)
		resp.ExcludedName = p.Name
	}

	// 当天记录读取失败时只展示课表
	records, err := s.repo.Attendance.List(ctx, studentID, repository.RecordFilter{From: &day, To: &day})
	if err != nil {
		s.logger.Warn("读取当日考勤失败", zap.String("student_id", studentID), zap.Error(err))
		records = nil
	}
	statusBySubject := make(map[string]string, len(records))
	for i := range records {
		statusBySubject[records[i].SubjectCode] = records[i].Status
	}
	if label, ok := ClassifyDays(records, s.cat, profile.Branch, profile.Group)[day]; ok {
		resp.Label = string(label)
	}

	for _, cls := range s.cat.ClassesFor(day.Weekday(), profile.Branch, profile.Group) {
		item := dto.DailyClassResponse{
			SubjectCode: cls.SubjectCode,
			SubjectName: cls.SubjectName,
			StartTime:   cls.StartTime,
			EndTime:     cls.EndTime,
			Room:        cls.Room,
			Type:        cls.Type,
			IsBreak:     cls.IsBreak(),
		}
		if !item.IsBreak {
			item.Status = statusBySubject[cls.SubjectCode]
		}
		resp.Classes = append(resp.Classes, item)
	}
	return resp, nil
}

// ── 辅助函数 ──

func (s *attendanceService) getProfile(ctx context.Context, studentID string) (*model.StudentProfile, error) {
	profile, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生档案失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return profile, nil
}

// listRecords 非仪表盘接口读取失败时直接报错，不做降级
func (s *attendanceService) listRecords(ctx context.Context, studentID string, filter repository.RecordFilter) ([]model.AttendanceRecord, error) {
	records, err := s.repo.Attendance.List(ctx, studentID, filter)
	if err != nil {
		s.logger.Error("读取考勤记录失败", zap.String("student_id", studentID), zap.Error(err))
		if errors.Is(err, pkgerrors.ErrStoreUnavailable) {
			return nil, ErrRecordsUnavailable
		}
		return nil, err
	}
	return records, nil
}

func (s *attendanceService) subjectStats(profile *model.StudentProfile, records []model.AttendanceRecord) []dto.SubjectStatsResponse {
	threshold := s.cfg.Attendance.ThresholdPercent
	bySubject := make(map[string]SubjectTotals)
	for _, st := range AggregateBySubject(records, threshold) {
		bySubject[st.SubjectCode] = st
	}

	// 课表中的科目即使还没有记录也列出
	subjects := s.cat.Subjects(profile.Branch, profile.Group)
	result := make([]dto.SubjectStatsResponse, 0, len(subjects))
	for _, sub := range subjects {
		st, ok := bySubject[sub.Code]
		if !ok {
			st = SubjectTotals{SubjectCode: sub.Code, Percentage: Totals{}.Percentage()}
		}
		result = append(result, dto.SubjectStatsResponse{
			SubjectCode:    sub.Code,
			SubjectName:    sub.Name,
			Present:        st.Totals.Present,
			Absent:         st.Totals.Absent,
			Cancelled:      st.Totals.Cancelled,
			Percentage:     st.Percentage,
			BelowThreshold: st.BelowThreshold,
		})
	}
	return result
}

func (s *attendanceService) backfillStatus(sess *Session, dispatched bool) dto.BackfillStatusResponse {
	resp := dto.BackfillStatusResponse{
		State:      string(sess.BackfillState()),
		Policy:     s.backfill.Policy(),
		Dispatched: dispatched,
	}
	if last, ok := sess.LastPass(); ok {
		pass := &dto.BackfillPassResponse{
			Planned:   last.Planned,
			Written:   last.Written,
			Skipped:   last.Skipped,
			Failed:    last.Failed,
			StartedAt: last.StartedAt.Format(time.RFC3339),
		}
		if !last.FinishedAt.IsZero() {
			pass.FinishedAt = last.FinishedAt.Format(time.RFC3339)
		}
		resp.LastPass = pass
	}
	return resp
}

func (s *attendanceService) toRecordResponse(r *model.AttendanceRecord) dto.AttendanceRecordResponse {
	resp := dto.AttendanceRecordResponse{
		SubjectCode: r.SubjectCode,
		SubjectName: s.cat.SubjectName(r.SubjectCode),
		Date:        r.DateString(),
		Status:      r.Status,
	}
	if !r.MarkedAt.IsZero() {
		resp.MarkedAt = r.MarkedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toTotalsResponse(t Totals) dto.TotalsResponse {
	return dto.TotalsResponse{
		Present:    t.Present,
		Absent:     t.Absent,
		Cancelled:  t.Cancelled,
		Percentage: t.Percentage(),
	}
}

func scheduledOn(classes []catalog.ScheduledClass, subjectCode string) bool {
	for _, c := range classes {
		if c.SubjectCode == subjectCode {
			return true
		}
	}
	return false
}

func hasSubject(subjects []catalog.Subject, code string) bool {
	for _, s := range subjects {
		if s.Code == code {
			return true
		}
	}
	return false
}
