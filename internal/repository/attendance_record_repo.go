package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
)

// AttendanceRecordRepository 考勤记录存储接口
//
// Upsert 以 (学生, 科目, 日期) 为键做字段级合并：存在则只覆盖状态与标记时间，
// 不存在则新建。并发的重复写入结果一致。
// CreateIfAbsent 只在键不存在时插入，已存在时不做任何修改并返回 created=false；
// 缺勤补录走这条路径，不会覆盖规划之后学生自己标记的记录。
// 读写失败统一包装为 pkgerrors.ErrStoreUnavailable。
type AttendanceRecordRepository interface {
	List(ctx context.Context, studentID string, filter RecordFilter) ([]model.AttendanceRecord, error)
	Upsert(ctx context.Context, record *model.AttendanceRecord) error
	CreateIfAbsent(ctx context.Context, record *model.AttendanceRecord) (created bool, err error)
}

var recordKeyColumns = []clause.Column{
	{Name: "student_id"},
	{Name: "subject_code"},
	{Name: "class_date"},
}

type attendanceRecordRepo struct {
	db *gorm.DB
}

// NewAttendanceRecordRepo 创建基于 PostgreSQL 的考勤记录存储
func NewAttendanceRecordRepo(db *gorm.DB) AttendanceRecordRepository {
	return &attendanceRecordRepo{db: db}
}

func (r *attendanceRecordRepo) List(ctx context.Context, studentID string, filter RecordFilter) ([]model.AttendanceRecord, error) {
	q := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if filter.SubjectCode != "" {
		q = q.Where("subject_code = ?", filter.SubjectCode)
	}
	if filter.From != nil {
		q = q.Where("class_date >= ?", catalog.FormatDate(*filter.From))
	}
	if filter.To != nil {
		q = q.Where("class_date <= ?", catalog.FormatDate(*filter.To))
	}

	var records []model.AttendanceRecord
	if err := q.Order("class_date ASC, subject_code ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	for i := range records {
		records[i].ClassDate = catalog.Truncate(records[i].ClassDate)
	}
	return records, nil
}

func (r *attendanceRecordRepo) Upsert(ctx context.Context, record *model.AttendanceRecord) error {
	record.ClassDate = catalog.Truncate(record.ClassDate)
	if record.MarkedAt.IsZero() {
		record.MarkedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   recordKeyColumns,
			DoUpdates: clause.AssignmentColumns([]string{"status", "marked_at", "updated_at"}),
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *attendanceRecordRepo) CreateIfAbsent(ctx context.Context, record *model.AttendanceRecord) (bool, error) {
	record.ClassDate = catalog.Truncate(record.ClassDate)
	if record.MarkedAt.IsZero() {
		record.MarkedAt = time.Now().UTC()
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: recordKeyColumns, DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return false, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}
