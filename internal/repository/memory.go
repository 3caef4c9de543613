package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
)

// ── 内存实现（store.driver=memory，本地开发与测试使用） ──
//
// 未找到时返回 gorm.ErrRecordNotFound，与 GORM 实现保持同一套错误语义。

// NewMemoryRepository 创建全部基于内存的 Repository 聚合
func NewMemoryRepository() *Repository {
	return &Repository{
		Student:    NewMemoryStudentRepo(),
		Credential: NewMemoryCredentialRepo(),
		Attendance: NewMemoryAttendanceRepo(),
	}
}

// ── 学生档案 ──

type memoryStudentRepo struct {
	mu       sync.RWMutex
	students map[string]model.StudentProfile
}

// NewMemoryStudentRepo 创建内存学生档案存储
func NewMemoryStudentRepo() StudentRepository {
	return &memoryStudentRepo{students: make(map[string]model.StudentProfile)}
}

func (m *memoryStudentRepo) Create(_ context.Context, profile *model.StudentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.students[profile.StudentID]; ok {
		return pkgerrors.ErrDuplicateKey
	}
	for _, s := range m.students {
		if s.CollegeID == profile.CollegeID {
			return pkgerrors.ErrDuplicateKey
		}
	}
	now := time.Now().UTC()
	profile.CreatedAt, profile.UpdatedAt = now, now
	m.students[profile.StudentID] = *profile
	return nil
}

func (m *memoryStudentRepo) GetByID(_ context.Context, id string) (*model.StudentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryStudentRepo) GetByCollegeID(_ context.Context, collegeID string) (*model.StudentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.students {
		if s.CollegeID == collegeID {
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── 身份凭据 ──

type memoryCredentialRepo struct {
	mu    sync.RWMutex
	creds map[string]model.StudentCredential // key: auth_email
}

// NewMemoryCredentialRepo 创建内存凭据存储
func NewMemoryCredentialRepo() CredentialRepository {
	return &memoryCredentialRepo{creds: make(map[string]model.StudentCredential)}
}

func (m *memoryCredentialRepo) Create(_ context.Context, cred *model.StudentCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[cred.AuthEmail]; ok {
		return pkgerrors.ErrDuplicateKey
	}
	if cred.AccountID == "" {
		cred.AccountID = uuid.New().String()
	}
	now := time.Now().UTC()
	cred.CreatedAt, cred.UpdatedAt = now, now
	m.creds[cred.AuthEmail] = *cred
	return nil
}

func (m *memoryCredentialRepo) GetByEmail(_ context.Context, email string) (*model.StudentCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if c, ok := m.creds[email]; ok {
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryCredentialRepo) Delete(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for email, c := range m.creds {
		if c.AccountID == accountID {
			delete(m.creds, email)
		}
	}
	return nil
}

// ── 考勤记录 ──

type memoryAttendanceRepo struct {
	mu      sync.RWMutex
	records map[string]map[model.RecordKey]model.AttendanceRecord // studentID → key → record
}

// NewMemoryAttendanceRepo 创建内存考勤记录存储
func NewMemoryAttendanceRepo() AttendanceRecordRepository {
	return &memoryAttendanceRepo{records: make(map[string]map[model.RecordKey]model.AttendanceRecord)}
}

func (m *memoryAttendanceRepo) List(_ context.Context, studentID string, filter RecordFilter) ([]model.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.AttendanceRecord, 0, len(m.records[studentID]))
	for _, r := range m.records[studentID] {
		if filter.match(r.SubjectCode, r.ClassDate) {
			result = append(result, r)
		}
	}
	sortRecords(result)
	return result, nil
}

func (m *memoryAttendanceRepo) Upsert(_ context.Context, record *model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ClassDate = catalog.Truncate(record.ClassDate)
	now := time.Now().UTC()
	if record.MarkedAt.IsZero() {
		record.MarkedAt = now
	}

	byKey, ok := m.records[record.StudentID]
	if !ok {
		byKey = make(map[model.RecordKey]model.AttendanceRecord)
		m.records[record.StudentID] = byKey
	}

	key := record.Key()
	if existing, ok := byKey[key]; ok {
		existing.Status = record.Status
		existing.MarkedAt = record.MarkedAt
		existing.UpdatedAt = now
		byKey[key] = existing
		*record = existing
		return nil
	}

	if record.RecordID == "" {
		record.RecordID = uuid.New().String()
	}
	record.CreatedAt, record.UpdatedAt = now, now
	byKey[key] = *record
	return nil
}

func (m *memoryAttendanceRepo) CreateIfAbsent(_ context.Context, record *model.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ClassDate = catalog.Truncate(record.ClassDate)
	byKey, ok := m.records[record.StudentID]
	if !ok {
		byKey = make(map[model.RecordKey]model.AttendanceRecord)
		m.records[record.StudentID] = byKey
	}
	key := record.Key()
	if _, exists := byKey[key]; exists {
		return false, nil
	}

	now := time.Now().UTC()
	if record.MarkedAt.IsZero() {
		record.MarkedAt = now
	}
	if record.RecordID == "" {
		record.RecordID = uuid.New().String()
	}
	record.CreatedAt, record.UpdatedAt = now, now
	byKey[key] = *record
	return true, nil
}

// sortRecords 按日期、科目升序排列
func sortRecords(records []model.AttendanceRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].ClassDate.Equal(records[j].ClassDate) {
			return records[i].ClassDate.Before(records[j].ClassDate)
		}
		return records[i].SubjectCode < records[j].SubjectCode
	})
}
