package model

import (
	"time"

	"github.com/0xIIEST/attend-ease/internal/catalog"
)

// 考勤状态
const (
	StatusPresent   = "present"
	StatusAbsent    = "absent"
	StatusCancelled = "cancelled"
)

// ValidStatus 是否为已知的考勤状态
func ValidStatus(s string) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusCancelled:
		return true
	}
	return false
}

// AttendanceRecord 考勤记录表 — 对应 attendance_records
// (StudentID, SubjectCode, ClassDate) 唯一，写入一律走合并 upsert
type AttendanceRecord struct {
	RecordID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	StudentID   string    `gorm:"type:uuid;not null"                             json:"student_id"`
	SubjectCode string    `gorm:"type:varchar(20);not null"                      json:"subject_code"`
	ClassDate   time.Time `gorm:"type:date;not null"                             json:"class_date"`
	Status      string    `gorm:"type:varchar(20);not null"                      json:"status"` // present | absent | cancelled
	MarkedAt    time.Time `gorm:"not null"                                       json:"marked_at"`
	BaseModel
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }

// RecordKey 考勤记录的业务唯一键（学生维度内）
type RecordKey struct {
	SubjectCode string
	ClassDate   time.Time
}

// Key 返回记录在学生维度内的唯一键
func (r *AttendanceRecord) Key() RecordKey {
	return RecordKey{SubjectCode: r.SubjectCode, ClassDate: catalog.Truncate(r.ClassDate)}
}

// DateString 返回 YYYY-MM-DD 格式的上课日期
func (r *AttendanceRecord) DateString() string {
	return catalog.FormatDate(r.ClassDate)
}
