package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/0xIIEST/attend-ease/internal/service"
	"github.com/0xIIEST/attend-ease/pkg/response"
)

// ScheduleHandler 课表目录 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// GetCatalog 完整课表目录
// GET /api/v1/schedule
func (h *ScheduleHandler) GetCatalog(c *gin.Context) {
	response.OK(c, h.scheduleSvc.GetCatalog())
}

// GetWeekly 当前学生的周课表
// GET /api/v1/schedule/weekly
func (h *ScheduleHandler) GetWeekly(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	result, err := h.scheduleSvc.GetWeekly(c.Request.Context(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			response.NotFound(c, 11007, "学生档案不存在")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// ListHolidays 节假日
// GET /api/v1/schedule/holidays
func (h *ScheduleHandler) ListHolidays(c *gin.Context) {
	response.OK(c, h.scheduleSvc.ListHolidays())
}

// ListExamPeriods 考试周
// GET /api/v1/schedule/exams
func (h *ScheduleHandler) ListExamPeriods(c *gin.Context) {
	response.OK(c, h.scheduleSvc.ListExamPeriods())
}
