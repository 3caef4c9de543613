package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/dto"
	"github.com/0xIIEST/attend-ease/internal/repository"
)

// ScheduleService 课表目录查询接口（只读）
type ScheduleService interface {
	GetCatalog() *dto.CatalogResponse
	GetWeekly(ctx context.Context, studentID string) (*dto.WeeklyScheduleResponse, error)
	ListHolidays() []dto.HolidayResponse
	ListExamPeriods() []dto.ExamPeriodResponse
}

type scheduleService struct {
	repo   *repository.Repository
	cat    *catalog.Catalog
	logger *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(repo *repository.Repository, cat *catalog.Catalog, logger *zap.Logger) ScheduleService {
	return &scheduleService{repo: repo, cat: cat, logger: logger}
}

var schoolDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

func (s *scheduleService) GetCatalog() *dto.CatalogResponse {
	classes := make([]dto.ScheduledClassResponse, 0, len(s.cat.Classes))
	for _, c := range s.cat.Classes {
		classes = append(classes, toClassResponse(c))
	}
	return &dto.CatalogResponse{
		SemesterStart: catalog.FormatDate(s.cat.SemesterStart),
		SemesterEnd:   catalog.FormatDate(s.cat.SemesterEnd),
		Classes:       classes,
	}
}

// GetWeekly 学生个人周课表（按班级、分组过滤，含空堂）
func (s *scheduleService) GetWeekly(ctx context.Context, studentID string) (*dto.WeeklyScheduleResponse, error) {
	profile, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生档案失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.WeeklyScheduleResponse{
		Branch: profile.Branch,
		Group:  profile.Group,
		Days:   make([]dto.WeekdayScheduleResponse, 0, len(schoolDays)),
	}
	for _, wd := range schoolDays {
		day := dto.WeekdayScheduleResponse{Day: wd.String(), Classes: []dto.ScheduledClassResponse{}}
		for _, c := range s.cat.ClassesFor(wd, profile.Branch, profile.Group) {
			day.Classes = append(day.Classes, toClassResponse(c))
		}
		resp.Days = append(resp.Days, day)
	}
	return resp, nil
}

func (s *scheduleService) ListHolidays() []dto.HolidayResponse {
	result := make([]dto.HolidayResponse, 0, len(s.cat.Holidays))
	for _, h := range s.cat.Holidays {
		result = append(result, dto.HolidayResponse{Date: catalog.FormatDate(h.Date), Name: h.Name})
	}
	return result
}

func (s *scheduleService) ListExamPeriods() []dto.ExamPeriodResponse {
	result := make([]dto.ExamPeriodResponse, 0, len(s.cat.ExamPeriods))
	for _, p := range s.cat.ExamPeriods {
		result = append(result, dto.ExamPeriodResponse{
			Start: catalog.FormatDate(p.Start),
			End:   catalog.FormatDate(p.End),
			Name:  p.Name,
		})
	}
	return result
}

func toClassResponse(c catalog.ScheduledClass) dto.ScheduledClassResponse {
	return dto.ScheduledClassResponse{
		Day:         c.Day.String(),
		SubjectCode: c.SubjectCode,
		SubjectName: c.SubjectName,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		Room:        c.Room,
		Type:        c.Type,
		Branch:      c.Branch,
		Group:       c.Group,
	}
}
