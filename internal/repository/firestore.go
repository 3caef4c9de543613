package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
)

// ── Firestore 实现（store.driver=firestore） ──
//
// 文档布局：
//   studentProfiles/{studentId}
//   studentProfiles/{studentId}/attendanceRecords/{subjectCode}_{YYYY-MM-DD}
//   studentCredentials/{authEmail}

const (
	collectionProfiles    = "studentProfiles"
	collectionAttendance  = "attendanceRecords"
	collectionCredentials = "studentCredentials"
)

// NewFirestoreRepository 创建基于 Firestore 的 Repository 聚合
func NewFirestoreRepository(client *firestore.Client) *Repository {
	return &Repository{
		Student:    &firestoreStudentRepo{client: client},
		Credential: &firestoreCredentialRepo{client: client},
		Attendance: NewFirestoreAttendanceRepo(client),
	}
}

func isNotFound(err error) bool      { return status.Code(err) == codes.NotFound }
func isAlreadyExists(err error) bool { return status.Code(err) == codes.AlreadyExists }

// ── 学生档案 ──

type profileDoc struct {
	ID              string    `firestore:"id"`
	CollegeID       string    `firestore:"collegeId"`
	Name            string    `firestore:"name"`
	Year            string    `firestore:"year"`
	Branch          string    `firestore:"branch"`
	RollNumber      string    `firestore:"rollNumber"`
	Group           string    `firestore:"group"`
	AuthEmail       string    `firestore:"authEmail"`
	CurrentSemester int       `firestore:"currentSemester"`
	CreatedAt       time.Time `firestore:"createdAt"`
}

func (d profileDoc) toModel() *model.StudentProfile {
	return &model.StudentProfile{
		StudentID:       d.ID,
		CollegeID:       d.CollegeID,
		Name:            d.Name,
		Year:            d.Year,
		Branch:          d.Branch,
		RollNumber:      d.RollNumber,
		Group:           d.Group,
		AuthEmail:       d.AuthEmail,
		CurrentSemester: d.CurrentSemester,
		BaseModel:       model.BaseModel{CreatedAt: d.CreatedAt, UpdatedAt: d.CreatedAt},
	}
}

type firestoreStudentRepo struct {
	client *firestore.Client
}

func (r *firestoreStudentRepo) Create(ctx context.Context, p *model.StudentProfile) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.client.Collection(collectionProfiles).Doc(p.StudentID).Create(ctx, profileDoc{
		ID:              p.StudentID,
		CollegeID:       p.CollegeID,
		Name:            p.Name,
		Year:            p.Year,
		Branch:          p.Branch,
		RollNumber:      p.RollNumber,
		Group:           p.Group,
		AuthEmail:       p.AuthEmail,
		CurrentSemester: p.CurrentSemester,
		CreatedAt:       now,
	})
	if isAlreadyExists(err) {
		return pkgerrors.ErrDuplicateKey
	}
	return err
}

func (r *firestoreStudentRepo) GetByID(ctx context.Context, id string) (*model.StudentProfile, error) {
	snap, err := r.client.Collection(collectionProfiles).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	var d profileDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("解析学生档案失败: %w", err)
	}
	return d.toModel(), nil
}

func (r *firestoreStudentRepo) GetByCollegeID(ctx context.Context, collegeID string) (*model.StudentProfile, error) {
	iter := r.client.Collection(collectionProfiles).
		Where("collegeId", "==", collegeID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	var d profileDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("解析学生档案失败: %w", err)
	}
	return d.toModel(), nil
}

// ── 身份凭据 ──

type credentialDoc struct {
	AccountID    string    `firestore:"accountId"`
	PasswordHash string    `firestore:"passwordHash"`
	DisplayName  string    `firestore:"displayName"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

type firestoreCredentialRepo struct {
	client *firestore.Client
}

func (r *firestoreCredentialRepo) Create(ctx context.Context, c *model.StudentCredential) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.client.Collection(collectionCredentials).Doc(c.AuthEmail).Create(ctx, credentialDoc{
		AccountID:    c.AccountID,
		PasswordHash: c.PasswordHash,
		DisplayName:  c.DisplayName,
		CreatedAt:    now,
	})
	if isAlreadyExists(err) {
		return pkgerrors.ErrDuplicateKey
	}
	return err
}

func (r *firestoreCredentialRepo) GetByEmail(ctx context.Context, email string) (*model.StudentCredential, error) {
	snap, err := r.client.Collection(collectionCredentials).Doc(email).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	var d credentialDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("解析凭据失败: %w", err)
	}
	return &model.StudentCredential{
		AccountID:    d.AccountID,
		AuthEmail:    email,
		PasswordHash: d.PasswordHash,
		DisplayName:  d.DisplayName,
		BaseModel:    model.BaseModel{CreatedAt: d.CreatedAt, UpdatedAt: d.CreatedAt},
	}, nil
}

func (r *firestoreCredentialRepo) Delete(ctx context.Context, accountID string) error {
	iter := r.client.Collection(collectionCredentials).
		Where("accountId", "==", accountID).
		Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return err
		}
	}
}

// ── 考勤记录 ──

type recordDoc struct {
	StudentID   string    `firestore:"studentId"`
	SubjectCode string    `firestore:"subjectCode"`
	Status      string    `firestore:"status"`
	ClassDate   string    `firestore:"classDate"`
	MarkedAt    time.Time `firestore:"markedAt"`
}

type firestoreAttendanceRepo struct {
	client *firestore.Client
}

// NewFirestoreAttendanceRepo 创建基于 Firestore 的考勤记录存储
func NewFirestoreAttendanceRepo(client *firestore.Client) AttendanceRecordRepository {
	return &firestoreAttendanceRepo{client: client}
}

// RecordDocID 考勤记录文档 ID：{科目代码}_{YYYY-MM-DD}
func RecordDocID(subjectCode string, classDate time.Time) string {
	return subjectCode + "_" + catalog.FormatDate(classDate)
}

func (r *firestoreAttendanceRepo) records(studentID string) *firestore.CollectionRef {
	return r.client.Collection(collectionProfiles).Doc(studentID).Collection(collectionAttendance)
}

func (r *firestoreAttendanceRepo) List(ctx context.Context, studentID string, filter RecordFilter) ([]model.AttendanceRecord, error) {
	q := r.records(studentID).Query
	if filter.SubjectCode != "" {
		q = q.Where("subjectCode", "==", filter.SubjectCode)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var result []model.AttendanceRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
		}

		rec, ok := decodeRecord(studentID, snap)
		if !ok || !filter.match(rec.SubjectCode, rec.ClassDate) {
			continue
		}
		result = append(result, rec)
	}
	sortRecords(result)
	return result, nil
}

func (r *firestoreAttendanceRepo) Upsert(ctx context.Context, record *model.AttendanceRecord) error {
	record.ClassDate = catalog.Truncate(record.ClassDate)
	docID := RecordDocID(record.SubjectCode, record.ClassDate)

	_, err := r.records(record.StudentID).Doc(docID).Set(ctx, recordFields(record), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	record.RecordID = docID
	return nil
}

func (r *firestoreAttendanceRepo) CreateIfAbsent(ctx context.Context, record *model.AttendanceRecord) (bool, error) {
	record.ClassDate = catalog.Truncate(record.ClassDate)
	docID := RecordDocID(record.SubjectCode, record.ClassDate)

	_, err := r.records(record.StudentID).Doc(docID).Create(ctx, recordFields(record))
	if isAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	record.RecordID = docID
	return true, nil
}

func recordFields(record *model.AttendanceRecord) map[string]interface{} {
	var markedAt interface{} = firestore.ServerTimestamp
	if !record.MarkedAt.IsZero() {
		markedAt = record.MarkedAt
	}
	return map[string]interface{}{
		"studentId":   record.StudentID,
		"subjectCode": record.SubjectCode,
		"status":      record.Status,
		"classDate":   catalog.FormatDate(record.ClassDate),
		"markedAt":    markedAt,
	}
}

// ParseRecordDocID 从文档 ID 还原 (科目代码, 日期)
func ParseRecordDocID(docID string) (string, time.Time, bool) {
	i := strings.LastIndex(docID, "_")
	if i <= 0 || i == len(docID)-1 {
		return "", time.Time{}, false
	}
	classDate, err := catalog.ParseDate(docID[i+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return docID[:i], classDate, true
}

// decodeRecord 解码考勤文档
// 字段损坏时退回文档 ID 中的科目与日期，状态留空：该键仍视为已有记录，补录不会再写，统计忽略空状态
func decodeRecord(studentID string, snap *firestore.DocumentSnapshot) (model.AttendanceRecord, bool) {
	rec := model.AttendanceRecord{
		RecordID:  snap.Ref.ID,
		StudentID: studentID,
		BaseModel: model.BaseModel{CreatedAt: snap.CreateTime, UpdatedAt: snap.UpdateTime},
	}

	var d recordDoc
	if err := snap.DataTo(&d); err == nil {
		if classDate, err := catalog.ParseDate(d.ClassDate); err == nil && d.SubjectCode != "" {
			rec.SubjectCode, rec.ClassDate = d.SubjectCode, classDate
			rec.Status, rec.MarkedAt = d.Status, d.MarkedAt
			return rec, true
		}
	}

	subject, classDate, ok := ParseRecordDocID(snap.Ref.ID)
	if !ok {
		return model.AttendanceRecord{}, false
	}
	rec.SubjectCode, rec.ClassDate = subject, classDate
	return rec, true
}
