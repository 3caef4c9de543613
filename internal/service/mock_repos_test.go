package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
	"github.com/0xIIEST/attend-ease/internal/repository"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
)

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	profiles map[string]*model.StudentProfile
	failNext error // 非空时下一次 Create 返回该错误
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{profiles: make(map[string]*model.StudentProfile)}
}

func (m *mockStudentRepo) Create(_ context.Context, profile *model.StudentProfile) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	for _, p := range m.profiles {
		if p.CollegeID == profile.CollegeID {
			return pkgerrors.ErrDuplicateKey
		}
	}
	m.profiles[profile.StudentID] = profile
	return nil
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.StudentProfile, error) {
	if p, ok := m.profiles[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) GetByCollegeID(_ context.Context, collegeID string) (*model.StudentProfile, error) {
	for _, p := range m.profiles {
		if p.CollegeID == collegeID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock CredentialRepository ──

type mockCredentialRepo struct {
	creds map[string]*model.StudentCredential // key: auth email
}

func newMockCredentialRepo() *mockCredentialRepo {
	return &mockCredentialRepo{creds: make(map[string]*model.StudentCredential)}
}

func (m *mockCredentialRepo) Create(_ context.Context, cred *model.StudentCredential) error {
	if _, ok := m.creds[cred.AuthEmail]; ok {
		return pkgerrors.ErrDuplicateKey
	}
	m.creds[cred.AuthEmail] = cred
	return nil
}

func (m *mockCredentialRepo) GetByEmail(_ context.Context, email string) (*model.StudentCredential, error) {
	if c, ok := m.creds[email]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCredentialRepo) Delete(_ context.Context, accountID string) error {
	for email, c := range m.creds {
		if c.AccountID == accountID {
			delete(m.creds, email)
		}
	}
	return nil
}

// ── Mock AttendanceRecordRepository ──
//
// 补录在后台 goroutine 中写入，需要加锁；upserts 统计写入次数。

type mockAttendanceRepo struct {
	mu       sync.Mutex
	records  map[string]map[model.RecordKey]model.AttendanceRecord
	upserts  int
	listErr  error
	failKeys map[model.RecordKey]bool // 命中时 Upsert 返回错误
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{
		records:  make(map[string]map[model.RecordKey]model.AttendanceRecord),
		failKeys: make(map[model.RecordKey]bool),
	}
}

func (m *mockAttendanceRepo) List(_ context.Context, studentID string, filter repository.RecordFilter) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	var result []model.AttendanceRecord
	for _, r := range m.records[studentID] {
		if filter.SubjectCode != "" && r.SubjectCode != filter.SubjectCode {
			continue
		}
		if filter.From != nil && r.ClassDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.ClassDate.After(*filter.To) {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ClassDate.Equal(result[j].ClassDate) {
			return result[i].ClassDate.Before(result[j].ClassDate)
		}
		return result[i].SubjectCode < result[j].SubjectCode
	})
	return result, nil
}

func (m *mockAttendanceRepo) Upsert(_ context.Context, record *model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := record.Key()
	if m.failKeys[key] {
		return fmt.Errorf("%w: 模拟写入失败", pkgerrors.ErrStoreUnavailable)
	}
	m.upserts++
	if m.records[record.StudentID] == nil {
		m.records[record.StudentID] = make(map[model.RecordKey]model.AttendanceRecord)
	}
	m.records[record.StudentID][key] = *record
	return nil
}

// CreateIfAbsent 每次未失败的调用都计入写入次数，键已存在时不修改
func (m *mockAttendanceRepo) CreateIfAbsent(_ context.Context, record *model.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := record.Key()
	if m.failKeys[key] {
		return false, fmt.Errorf("%w: 模拟写入失败", pkgerrors.ErrStoreUnavailable)
	}
	m.upserts++
	if m.records[record.StudentID] == nil {
		m.records[record.StudentID] = make(map[model.RecordKey]model.AttendanceRecord)
	}
	if _, exists := m.records[record.StudentID][key]; exists {
		return false, nil
	}
	m.records[record.StudentID][key] = *record
	return true, nil
}

func (m *mockAttendanceRepo) seed(studentID, subject string, day time.Time, status string) {
	_ = m.Upsert(context.Background(), &model.AttendanceRecord{
		StudentID:   studentID,
		SubjectCode: subject,
		ClassDate:   day,
		Status:      status,
		MarkedAt:    day,
	})
	m.mu.Lock()
	m.upserts--
	m.mu.Unlock()
}

func (m *mockAttendanceRepo) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func (m *mockAttendanceRepo) count(studentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[studentID])
}

func (m *mockAttendanceRepo) get(studentID, subject string, day time.Time) (model.AttendanceRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[studentID][model.RecordKey{SubjectCode: subject, ClassDate: day}]
	return r, ok
}

// ── 测试辅助 ──

const testStudentID = "stu-001"

func ymd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newTestCatalog 学期 2026-01-05 ~ 2026-05-15
//
//	周一: MA1201(CSB) / HU1201(ALL) / BREAK / CS1271(CSB-A) / EE1271(CSB-B)
//	周二: PH1201(CSB) / BREAK
//	周三: MA1201(CSB)
//	周四、周五: ITB 的课
func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	classes := []catalog.ScheduledClass{
		{Day: time.Monday, SubjectCode: "MA1201", SubjectName: "Mathematics II", StartTime: "09:00", EndTime: "10:00", Branch: "CSB", Group: catalog.All},
		{Day: time.Monday, SubjectCode: "HU1201", SubjectName: "Professional Communication", StartTime: "10:00", EndTime: "11:00", Branch: catalog.All, Group: catalog.All},
		{Day: time.Monday, SubjectCode: catalog.BreakSubject, SubjectName: "Break", StartTime: "13:00", EndTime: "14:00", Branch: catalog.All, Group: catalog.All},
		{Day: time.Monday, SubjectCode: "CS1271", SubjectName: "Programming Lab", StartTime: "14:00", EndTime: "17:00", Branch: "CSB", Group: catalog.GroupA},
		{Day: time.Monday, SubjectCode: "EE1271", SubjectName: "Electrical Lab", StartTime: "14:00", EndTime: "17:00", Branch: "CSB", Group: catalog.GroupB},
		{Day: time.Tuesday, SubjectCode: "PH1201", SubjectName: "Physics", StartTime: "09:00", EndTime: "10:00", Branch: "CSB", Group: catalog.All},
		{Day: time.Tuesday, SubjectCode: catalog.BreakSubject, SubjectName: "Break", StartTime: "13:00", EndTime: "14:00", Branch: catalog.All, Group: catalog.All},
		{Day: time.Wednesday, SubjectCode: "MA1201", SubjectName: "Mathematics II", StartTime: "09:00", EndTime: "10:00", Branch: "CSB", Group: catalog.All},
		{Day: time.Thursday, SubjectCode: "IT1201", SubjectName: "Data Structures", StartTime: "09:00", EndTime: "10:00", Branch: "ITB", Group: catalog.All},
		{Day: time.Friday, SubjectCode: "IT1201", SubjectName: "Data Structures", StartTime: "09:00", EndTime: "10:00", Branch: "ITB", Group: catalog.All},
	}
	cat, err := catalog.New(ymd(2026, 1, 5), ymd(2026, 5, 15), classes,
		[]catalog.HolidayEntry{
			{Date: ymd(2026, 1, 10), Name: "Test Holiday"},
			{Date: ymd(2026, 1, 26), Name: "Republic Day"},
		},
		[]catalog.ExamPeriod{{Start: ymd(2026, 2, 23), End: ymd(2026, 2, 28), Name: "Mid-Semester"}},
	)
	if err != nil {
		t.Fatalf("构建测试课表失败: %v", err)
	}
	return cat
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL:          15 * time.Minute,
			RefreshTokenTTLDefault:  24 * time.Hour,
			RefreshTokenTTLRemember: 7 * 24 * time.Hour,
			EmailDomain:             "students.test",
		},
		Catalog: config.CatalogConfig{Timezone: "UTC"},
		Backfill: config.BackfillConfig{
			Enabled:          true,
			CompletionPolicy: config.CompletionAcknowledged,
			Concurrency:      4,
			WriteTimeout:     time.Second,
		},
		Attendance: config.AttendanceConfig{ThresholdPercent: 75},
	}
}

type testRepos struct {
	student    *mockStudentRepo
	credential *mockCredentialRepo
	attendance *mockAttendanceRepo
}

func newTestRepos() *testRepos {
	return &testRepos{
		student:    newMockStudentRepo(),
		credential: newMockCredentialRepo(),
		attendance: newMockAttendanceRepo(),
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		Student:    r.student,
		Credential: r.credential,
		Attendance: r.attendance,
	}
}

func (r *testRepos) addStudent(id, branch, group string) *model.StudentProfile {
	p := &model.StudentProfile{
		StudentID:       id,
		CollegeID:       "2026" + branch + "001",
		Name:            "测试学生",
		Year:            "2026",
		Branch:          branch,
		RollNumber:      "1",
		Group:           group,
		CurrentSemester: 2,
	}
	r.student.profiles[id] = p
	return p
}

func nopLogger() *zap.Logger { return zap.NewNop() }
