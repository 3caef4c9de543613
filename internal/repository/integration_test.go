//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/0xIIEST/attend-ease/internal/model"
	"github.com/0xIIEST/attend-ease/internal/repository"
	"github.com/0xIIEST/attend-ease/pkg/database"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=attendease password=attendease_password dbname=attendease_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "数据库迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func newStudent(t *testing.T) (*model.StudentProfile, func()) {
	t.Helper()
	id := uuid.New().String()
	p := &model.StudentProfile{
		StudentID:       id,
		CollegeID:       fmt.Sprintf("T%d", time.Now().UnixNano()%1_000_000_000),
		Name:            "测试学生",
		Year:            "2026",
		Branch:          "CSB",
		RollNumber:      "1",
		Group:           "A",
		AuthEmail:       id + "@students.attendease.local",
		CurrentSemester: 2,
	}
	if err := repository.NewStudentRepo(testDB).Create(context.Background(), p); err != nil {
		t.Fatalf("创建学生失败: %v", err)
	}
	return p, func() {
		testDB.Exec("DELETE FROM attendance_records WHERE student_id = ?", id)
		testDB.Exec("DELETE FROM student_profiles WHERE student_id = ?", id)
	}
}

// ═══════════════════════════════════════════════════════════
// StudentRepository
// ═══════════════════════════════════════════════════════════

func TestStudentRepo_DuplicateCollegeID(t *testing.T) {
	p, cleanup := newStudent(t)
	defer cleanup()

	dup := *p
	dup.StudentID = uuid.New().String()
	err := repository.NewStudentRepo(testDB).Create(context.Background(), &dup)
	if !errors.Is(err, pkgerrors.ErrDuplicateKey) {
		t.Errorf("期望 ErrDuplicateKey，实际: %v", err)
	}
}

func TestStudentRepo_GetByCollegeID(t *testing.T) {
	p, cleanup := newStudent(t)
	defer cleanup()

	got, err := repository.NewStudentRepo(testDB).GetByCollegeID(context.Background(), p.CollegeID)
	if err != nil {
		t.Fatalf("GetByCollegeID 失败: %v", err)
	}
	if got.StudentID != p.StudentID || got.Group != "A" {
		t.Errorf("期望 %s/A，实际 %s/%s", p.StudentID, got.StudentID, got.Group)
	}
}

// ═══════════════════════════════════════════════════════════
// AttendanceRecordRepository
// ═══════════════════════════════════════════════════════════

func TestAttendanceRepo_UpsertMerges(t *testing.T) {
	p, cleanup := newStudent(t)
	defer cleanup()

	ctx := context.Background()
	repo := repository.NewAttendanceRecordRepo(testDB)
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	if err := repo.Upsert(ctx, &model.AttendanceRecord{
		StudentID: p.StudentID, SubjectCode: "MA1201", ClassDate: day, Status: model.StatusAbsent,
	}); err != nil {
		t.Fatalf("首次 Upsert 失败: %v", err)
	}
	if err := repo.Upsert(ctx, &model.AttendanceRecord{
		StudentID: p.StudentID, SubjectCode: "MA1201", ClassDate: day, Status: model.StatusPresent,
	}); err != nil {
		t.Fatalf("二次 Upsert 失败: %v", err)
	}

	records, err := repo.List(ctx, p.StudentID, repository.RecordFilter{})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("同键写入两次应只有 1 条记录，实际 %d", len(records))
	}
	if records[0].Status != model.StatusPresent {
		t.Errorf("期望状态被合并为 present，实际 %s", records[0].Status)
	}
	if !records[0].ClassDate.Equal(day) {
		t.Errorf("期望日期 %v，实际 %v", day, records[0].ClassDate)
	}
}

func TestAttendanceRepo_CreateIfAbsentDoesNotOverwrite(t *testing.T) {
	p, cleanup := newStudent(t)
	defer cleanup()

	ctx := context.Background()
	repo := repository.NewAttendanceRecordRepo(testDB)
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	if err := repo.Upsert(ctx, &model.AttendanceRecord{
		StudentID: p.StudentID, SubjectCode: "CS201", ClassDate: day, Status: model.StatusPresent,
	}); err != nil {
		t.Fatalf("Upsert 失败: %v", err)
	}

	created, err := repo.CreateIfAbsent(ctx, &model.AttendanceRecord{
		StudentID: p.StudentID, SubjectCode: "CS201", ClassDate: day, Status: model.StatusAbsent,
	})
	if err != nil || created {
		t.Fatalf("键已存在时应跳过: created=%v err=%v", created, err)
	}

	records, _ := repo.List(ctx, p.StudentID, repository.RecordFilter{})
	if len(records) != 1 || records[0].Status != model.StatusPresent {
		t.Errorf("已有记录不应被覆盖: %+v", records)
	}
}

func TestAttendanceRepo_ListFilter(t *testing.T) {
	p, cleanup := newStudent(t)
	defer cleanup()

	ctx := context.Background()
	repo := repository.NewAttendanceRecordRepo(testDB)
	for i, code := range []string{"MA1201", "PH1201", "MA1201"} {
		day := time.Date(2026, 2, 2+i, 0, 0, 0, 0, time.UTC)
		if err := repo.Upsert(ctx, &model.AttendanceRecord{
			StudentID: p.StudentID, SubjectCode: code, ClassDate: day, Status: model.StatusPresent,
		}); err != nil {
			t.Fatalf("Upsert 失败: %v", err)
		}
	}

	from := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	records, err := repo.List(ctx, p.StudentID, repository.RecordFilter{From: &from, SubjectCode: "MA1201"})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(records) != 1 || records[0].ClassDate.Day() != 4 {
		t.Errorf("期望仅 2026-02-04 的 MA1201，实际 %+v", records)
	}
}
