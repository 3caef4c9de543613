package repository

import (
	"time"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Student    StudentRepository
	Credential CredentialRepository
	Attendance AttendanceRecordRepository
}

// NewRepository 创建基于 PostgreSQL 的 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Student:    NewStudentRepo(db),
		Credential: NewCredentialRepo(db),
		Attendance: NewAttendanceRecordRepo(db),
	}
}

// RecordFilter 考勤记录查询条件，零值表示不限
type RecordFilter struct {
	From        *time.Time // 含
	To          *time.Time // 含
	SubjectCode string
}

// match 内存 / Firestore 实现共用的过滤判定
func (f RecordFilter) match(subjectCode string, classDate time.Time) bool {
	if f.SubjectCode != "" && subjectCode != f.SubjectCode {
		return false
	}
	if f.From != nil && classDate.Before(*f.From) {
		return false
	}
	if f.To != nil && classDate.After(*f.To) {
		return false
	}
	return true
}
