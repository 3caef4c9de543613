package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/repository"
)

// CalendarService 日历订阅导出接口
type CalendarService interface {
	// ExportCalendar 生成 iCalendar：节假日、考试周、已出标签的上课日，均为全天事件
	ExportCalendar(ctx context.Context, studentID string) ([]byte, string, error)
}

type calendarService struct {
	repo   *repository.Repository
	cat    *catalog.Catalog
	now    func() time.Time
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, cat *catalog.Catalog, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, cat: cat, now: time.Now, logger: logger}
}

const icsProductID = "-//AttendEase//Attendance Calendar//EN"

var labelSummaries = map[DayLabel]string{
	DayAllPresent:   "全部出勤",
	DayAllAbsent:    "全部缺勤",
	DayAllCancelled: "全部停课",
	DayMixed:        "部分出勤",
}

func (s *calendarService) ExportCalendar(ctx context.Context, studentID string) ([]byte, string, error) {
	profile, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrStudentNotFound
		}
		s.logger.Error("查询学生档案失败", zap.Error(err))
		return nil, "", err
	}

	// 记录读取失败时仍导出节假日与考试周
	records, err := s.repo.Attendance.List(ctx, studentID, repository.RecordFilter{})
	if err != nil {
		s.logger.Warn("读取考勤记录失败，日历只含节假日与考试周", zap.String("student_id", studentID), zap.Error(err))
		records = nil
	}

	stamp := s.now().UTC()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(fmt.Sprintf("AttendEase %s", profile.CollegeID))

	for _, h := range s.cat.Holidays {
		addAllDayEvent(cal, fmt.Sprintf("holiday-%s@attendease", catalog.FormatDate(h.Date)),
			h.Date, h.Date, "节假日："+h.Name, stamp)
	}
	for _, p := range s.cat.ExamPeriods {
		addAllDayEvent(cal, fmt.Sprintf("exam-%s-%s@attendease", catalog.FormatDate(p.Start), catalog.FormatDate(p.End)),
			p.Start, p.End, "考试周："+p.Name, stamp)
	}

	labels := ClassifyDays(records, s.cat, profile.Branch, profile.Group)
	days := make([]time.Time, 0, len(labels))
	for d := range labels {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for _, d := range days {
		addAllDayEvent(cal, fmt.Sprintf("day-%s-%s@attendease", profile.StudentID, catalog.FormatDate(d)),
			d, d, labelSummaries[labels[d]], stamp)
	}

	filename := fmt.Sprintf("attendance_%s.ics", profile.CollegeID)
	return []byte(cal.Serialize()), filename, nil
}

// addAllDayEvent 全天事件，DTEND 为结束日次日（RFC 5545 不含结束日）
func addAllDayEvent(cal *ics.Calendar, uid string, start, end time.Time, summary string, stamp time.Time) {
	event := cal.AddEvent(uid)
	event.SetDtStampTime(stamp)
	event.SetAllDayStartAt(start)
	event.SetAllDayEndAt(end.AddDate(0, 0, 1))
	event.SetSummary(summary)
}
