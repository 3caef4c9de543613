package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
	"github.com/0xIIEST/attend-ease/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoRecords    = errors.New("暂无考勤记录可导出")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
type ExportService interface {
	// ExportAttendance 导出个人考勤报表：Sheet "汇总" 按科目统计，Sheet "明细" 逐条记录
	ExportAttendance(ctx context.Context, studentID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	cfg    *config.Config
	repo   *repository.Repository
	cat    *catalog.Catalog
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, cat *catalog.Catalog, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, repo: repo, cat: cat, logger: logger}
}

var statusNames = map[string]string{
	model.StatusPresent:   "出勤",
	model.StatusAbsent:    "缺勤",
	model.StatusCancelled: "停课",
}

func (s *exportService) ExportAttendance(ctx context.Context, studentID string) (*bytes.Buffer, string, error) {
	// 1. 学生档案
	profile, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrStudentNotFound
		}
		s.logger.Error("查询学生档案失败", zap.Error(err))
		return nil, "", err
	}

	// 2. 全部记录（空堂不导出）
	all, err := s.repo.Attendance.List(ctx, studentID, repository.RecordFilter{})
	if err != nil {
		s.logger.Error("读取考勤记录失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, "", ErrRecordsUnavailable
	}
	records := all[:0:0]
	for _, r := range all {
		if r.SubjectCode != catalog.BreakSubject {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		return nil, "", ErrExportNoRecords
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	warnStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000"},
	})

	// ── 汇总 ──
	summary := "汇总"
	idx, _ := f.NewSheet(summary)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(summary, "A1", fmt.Sprintf("%s（%s）考勤汇总", profile.Name, profile.CollegeID))
	f.MergeCell(summary, "A1", "G1")
	f.SetCellStyle(summary, "A1", "G1", headerStyle)

	headers := []string{"科目代码", "科目名称", "出勤", "缺勤", "停课", "出勤率(%)", "预警"}
	for i, h := range headers {
		f.SetCellValue(summary, cell(colName(i), 2), h)
	}
	f.SetColWidth(summary, "A", "A", 12)
	f.SetColWidth(summary, "B", "B", 32)
	f.SetColWidth(summary, "C", "G", 10)

	threshold := s.cfg.Attendance.ThresholdPercent
	row := 3
	for _, st := range AggregateBySubject(records, threshold) {
		f.SetCellValue(summary, cell("A", row), st.SubjectCode)
		f.SetCellValue(summary, cell("B", row), s.cat.SubjectName(st.SubjectCode))
		f.SetCellValue(summary, cell("C", row), st.Totals.Present)
		f.SetCellValue(summary, cell("D", row), st.Totals.Absent)
		f.SetCellValue(summary, cell("E", row), st.Totals.Cancelled)
		f.SetCellValue(summary, cell("F", row), st.Percentage)
		if st.BelowThreshold {
			f.SetCellValue(summary, cell("G", row), fmt.Sprintf("低于 %.0f%%", threshold))
			f.SetCellStyle(summary, cell("G", row), cell("G", row), warnStyle)
		}
		row++
	}

	totals := Aggregate(records)
	f.SetCellValue(summary, cell("A", row), "合计")
	f.SetCellValue(summary, cell("C", row), totals.Present)
	f.SetCellValue(summary, cell("D", row), totals.Absent)
	f.SetCellValue(summary, cell("E", row), totals.Cancelled)
	f.SetCellValue(summary, cell("F", row), totals.Percentage())

	// ── 明细 ──
	detail := "明细"
	f.NewSheet(detail)
	for i, h := range []string{"日期", "星期", "科目代码", "科目名称", "状态"} {
		f.SetCellValue(detail, cell(colName(i), 1), h)
	}
	f.SetCellStyle(detail, "A1", "E1", headerStyle)
	f.SetColWidth(detail, "A", "A", 12)
	f.SetColWidth(detail, "D", "D", 32)

	for i, r := range records {
		row := i + 2
		status := statusNames[r.Status]
		if status == "" {
			status = r.Status
		}
		f.SetCellValue(detail, cell("A", row), r.DateString())
		f.SetCellValue(detail, cell("B", row), r.ClassDate.Weekday().String())
		f.SetCellValue(detail, cell("C", row), r.SubjectCode)
		f.SetCellValue(detail, cell("D", row), s.cat.SubjectName(r.SubjectCode))
		f.SetCellValue(detail, cell("E", row), status)
	}

	// 4. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("考勤报表_%s.xlsx", profile.CollegeID)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
