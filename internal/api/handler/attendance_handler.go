package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/0xIIEST/attend-ease/internal/dto"
	"github.com/0xIIEST/attend-ease/internal/service"
	"github.com/0xIIEST/attend-ease/pkg/response"
)

// AttendanceHandler 考勤模块 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// Dashboard 仪表盘（本会话首次访问时触发缺勤补录）
// GET /api/v1/attendance/dashboard
func (h *AttendanceHandler) Dashboard(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}
	sessionID, ok := MustGetSessionID(c)
	if !ok {
		return
	}

	result, err := h.attendanceSvc.Dashboard(c.Request.Context(), studentID, sessionID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// ListRecords 查询考勤记录
// GET /api/v1/attendance/records?from=&to=&subject_code=
func (h *AttendanceHandler) ListRecords(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	var req dto.RecordListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	result, err := h.attendanceSvc.ListRecords(c.Request.Context(), studentID, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// MarkAttendance 手动标记考勤
// PUT /api/v1/attendance/records
func (h *AttendanceHandler) MarkAttendance(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	result, err := h.attendanceSvc.MarkAttendance(c.Request.Context(), studentID, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// SubjectDetail 单科详情
// GET /api/v1/attendance/subjects/:code
func (h *AttendanceHandler) SubjectDetail(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	result, err := h.attendanceSvc.SubjectDetail(c.Request.Context(), studentID, c.Param("code"))
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// DailySchedule 某天的课表与考勤
// GET /api/v1/attendance/daily?date=
func (h *AttendanceHandler) DailySchedule(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	var req dto.DailyScheduleRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	result, err := h.attendanceSvc.DailySchedule(c.Request.Context(), studentID, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 11007, "学生档案不存在")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 12001, "日期格式无效，应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 12002, "起始日期不能晚于结束日期")
	case errors.Is(err, service.ErrInvalidStatus):
		response.BadRequest(c, 12003, "考勤状态只能为 present / absent / cancelled")
	case errors.Is(err, service.ErrFutureDate):
		response.BadRequest(c, 12004, "不能标记今天之后的课程")
	case errors.Is(err, service.ErrOutsideSemester):
		response.BadRequest(c, 12005, "日期不在本学期范围内")
	case errors.Is(err, service.ErrNoClassOnDate):
		response.BadRequest(c, 12006, "该日不上课")
	case errors.Is(err, service.ErrBreakNotMarkable):
		response.BadRequest(c, 12007, "空堂不能标记考勤")
	case errors.Is(err, service.ErrSubjectNotScheduled):
		response.BadRequest(c, 12008, "该科目当天不在你的课表中")
	case errors.Is(err, service.ErrSubjectNotFound):
		response.NotFound(c, 12009, "你的课表中没有该科目")
	case errors.Is(err, service.ErrRecordsUnavailable):
		response.ServiceUnavailable(c, 12010, "考勤记录暂时无法读取，请稍后再试")
	default:
		response.InternalError(c)
	}
}
