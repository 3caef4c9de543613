package service

import (
	"context"
	"testing"
	"time"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
	"github.com/0xIIEST/attend-ease/internal/repository"
)

// ── PlanBackfill ──

func TestPlanBackfill_FirstWeek(t *testing.T) {
	cat := newTestCatalog(t)
	now := time.Now()

	// 周四：扫描周一至周三
	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2026, 1, 8), now)

	want := map[model.RecordKey]bool{
		{SubjectCode: "MA1201", ClassDate: ymd(2026, 1, 5)}: true,
		{SubjectCode: "HU1201", ClassDate: ymd(2026, 1, 5)}: true,
		{SubjectCode: "CS1271", ClassDate: ymd(2026, 1, 5)}: true,
		{SubjectCode: "PH1201", ClassDate: ymd(2026, 1, 6)}: true,
		{SubjectCode: "MA1201", ClassDate: ymd(2026, 1, 7)}: true,
	}
	if len(plan) != len(want) {
		t.Fatalf("期望 %d 条补录，实际 %d: %+v", len(want), len(plan), plan)
	}
	for _, r := range plan {
		if !want[r.Key()] {
			t.Errorf("意外的补录: %s %s", r.SubjectCode, r.DateString())
		}
		if r.Status != model.StatusAbsent {
			t.Errorf("补录状态应为 absent，实际 %s", r.Status)
		}
		if r.StudentID != testStudentID {
			t.Errorf("学生 ID 错误: %s", r.StudentID)
		}
		if r.SubjectCode == catalog.BreakSubject {
			t.Error("空堂不应补录")
		}
	}

	// 日期升序
	for i := 1; i < len(plan); i++ {
		if plan[i].ClassDate.Before(plan[i-1].ClassDate) {
			t.Fatal("补录应按日期升序生成")
		}
	}
}

func TestPlanBackfill_TodayIsSemesterStart(t *testing.T) {
	cat := newTestCatalog(t)
	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2026, 1, 5), time.Now())
	if len(plan) != 0 {
		t.Errorf("开学当天不应补录，实际 %d 条", len(plan))
	}
}

func TestPlanBackfill_BeforeSemester(t *testing.T) {
	cat := newTestCatalog(t)
	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2025, 12, 20), time.Now())
	if len(plan) != 0 {
		t.Errorf("开学前不应补录，实际 %d 条", len(plan))
	}
}

func TestPlanBackfill_SkipsHolidayWeekendAndExam(t *testing.T) {
	cat := newTestCatalog(t)
	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2026, 3, 2), time.Now())

	for _, r := range plan {
		d := r.ClassDate
		if d.Equal(ymd(2026, 1, 10)) || d.Equal(ymd(2026, 1, 26)) {
			t.Errorf("节假日 %s 不应补录", r.DateString())
		}
		if catalog.IsWeekend(d) {
			t.Errorf("周末 %s 不应补录", r.DateString())
		}
		if !d.Before(ymd(2026, 2, 23)) && !d.After(ymd(2026, 2, 28)) {
			t.Errorf("考试周 %s 不应补录", r.DateString())
		}
		if !d.Before(ymd(2026, 3, 2)) {
			t.Errorf("今天及以后 %s 不应补录", r.DateString())
		}
	}
}

func TestPlanBackfill_GroupFilter(t *testing.T) {
	cat := newTestCatalog(t)
	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupB, cat, nil, ymd(2026, 1, 6), time.Now())

	codes := make(map[string]bool)
	for _, r := range plan {
		codes[r.SubjectCode] = true
	}
	if codes["CS1271"] {
		t.Error("B 组学生不应补录 A 组实验课")
	}
	if !codes["EE1271"] {
		t.Error("B 组学生应补录 B 组实验课")
	}
	if !codes["HU1201"] {
		t.Error("ALL 班级课程应补录")
	}
}

func TestPlanBackfill_KeepsExistingRecords(t *testing.T) {
	cat := newTestCatalog(t)
	existing := []model.AttendanceRecord{
		{StudentID: testStudentID, SubjectCode: "MA1201", ClassDate: ymd(2026, 1, 5), Status: model.StatusPresent},
		{StudentID: testStudentID, SubjectCode: "HU1201", ClassDate: ymd(2026, 1, 5), Status: model.StatusCancelled},
	}

	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, existing, ymd(2026, 1, 6), time.Now())
	if len(plan) != 1 || plan[0].SubjectCode != "CS1271" {
		t.Fatalf("只应补录 CS1271，实际 %+v", plan)
	}
}

func TestPlanBackfill_Idempotent(t *testing.T) {
	cat := newTestCatalog(t)
	today := ymd(2026, 2, 10)

	first := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, today, time.Now())
	if len(first) == 0 {
		t.Fatal("首次扫描应有补录")
	}
	second := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, first, today, time.Now())
	if len(second) != 0 {
		t.Errorf("补录写入后再次扫描应为空，实际 %d 条", len(second))
	}
}

// ── BackfillEngine ──

func newTestEngine(store *mockAttendanceRepo, policy string) *BackfillEngine {
	return NewBackfillEngine(store, &config.BackfillConfig{
		Enabled:          true,
		CompletionPolicy: policy,
		Concurrency:      2,
		WriteTimeout:     time.Second,
	}, nopLogger())
}

func TestBackfillEngine_Acknowledged_Success(t *testing.T) {
	cat := newTestCatalog(t)
	store := newMockAttendanceRepo()
	engine := newTestEngine(store, config.CompletionAcknowledged)
	sess := newSession("sess-1", testStudentID, time.Now())

	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2026, 1, 8), time.Now())
	if !sess.TryBeginBackfill() {
		t.Fatal("idle 会话应能开始补录")
	}
	engine.Dispatch(context.Background(), sess, plan)
	engine.Wait()

	if got := sess.BackfillState(); got != BackfillDone {
		t.Errorf("期望 done，实际 %s", got)
	}
	if store.count(testStudentID) != len(plan) {
		t.Errorf("期望写入 %d 条，实际 %d", len(plan), store.count(testStudentID))
	}
	last, ok := sess.LastPass()
	if !ok || last.Planned != len(plan) || last.Written != len(plan) || last.Failed != 0 {
		t.Errorf("补录结果不符: %+v", last)
	}
}

func TestBackfillEngine_Acknowledged_FailureReturnsToIdle(t *testing.T) {
	cat := newTestCatalog(t)
	store := newMockAttendanceRepo()
	store.failKeys[model.RecordKey{SubjectCode: "PH1201", ClassDate: ymd(2026, 1, 6)}] = true
	engine := newTestEngine(store, config.CompletionAcknowledged)
	sess := newSession("sess-1", testStudentID, time.Now())

	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2026, 1, 8), time.Now())
	sess.TryBeginBackfill()
	engine.Dispatch(context.Background(), sess, plan)
	engine.Wait()

	if got := sess.BackfillState(); got != BackfillIdle {
		t.Errorf("有写入失败时应回到 idle，实际 %s", got)
	}
	last, _ := sess.LastPass()
	if last.Failed != 1 || last.Written != len(plan)-1 {
		t.Errorf("补录结果不符: %+v", last)
	}
	// 单次补录内不重试
	if store.upsertCount() != len(plan)-1 {
		t.Errorf("失败写入不应重试，成功写入 %d 次", store.upsertCount())
	}

	// 下次扫描只剩失败的那条
	existing, _ := store.List(context.Background(), testStudentID, repository.RecordFilter{})
	retry := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, existing, ymd(2026, 1, 8), time.Now())
	if len(retry) != 1 || retry[0].SubjectCode != "PH1201" {
		t.Errorf("重新扫描应只剩 PH1201，实际 %+v", retry)
	}
}

func TestBackfillEngine_DoesNotOverwriteMarkAfterPlanning(t *testing.T) {
	cat := newTestCatalog(t)
	store := newMockAttendanceRepo()
	engine := newTestEngine(store, config.CompletionAcknowledged)
	sess := newSession("sess-1", testStudentID, time.Now())

	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2026, 1, 8), time.Now())

	// 规划完成后、写入之前，学生自己标记了其中一节
	store.seed(testStudentID, "PH1201", ymd(2026, 1, 6), model.StatusPresent)

	sess.TryBeginBackfill()
	engine.Dispatch(context.Background(), sess, plan)
	engine.Wait()

	rec, ok := store.get(testStudentID, "PH1201", ymd(2026, 1, 6))
	if !ok || rec.Status != model.StatusPresent {
		t.Errorf("补录不应覆盖已标记的出勤，实际 %+v", rec)
	}
	last, _ := sess.LastPass()
	if last.Written != len(plan)-1 || last.Skipped != 1 || last.Failed != 0 {
		t.Errorf("补录结果不符: %+v", last)
	}
	if got := sess.BackfillState(); got != BackfillDone {
		t.Errorf("跳过不算失败，期望 done，实际 %s", got)
	}
}

func TestBackfillEngine_BestEffort_DoneAtDispatch(t *testing.T) {
	cat := newTestCatalog(t)
	store := newMockAttendanceRepo()
	store.failKeys[model.RecordKey{SubjectCode: "PH1201", ClassDate: ymd(2026, 1, 6)}] = true
	engine := newTestEngine(store, config.CompletionBestEffort)
	sess := newSession("sess-1", testStudentID, time.Now())

	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2026, 1, 8), time.Now())
	sess.TryBeginBackfill()
	engine.Dispatch(context.Background(), sess, plan)

	if got := sess.BackfillState(); got != BackfillDone {
		t.Errorf("best_effort 提交即应为 done，实际 %s", got)
	}
	engine.Wait()
	if got := sess.BackfillState(); got != BackfillDone {
		t.Errorf("best_effort 写入失败后仍应为 done，实际 %s", got)
	}
	if last, ok := sess.LastPass(); !ok || last.Failed != 1 {
		t.Errorf("应记录失败数: %+v", last)
	}
}

func TestBackfillEngine_EmptyPlan(t *testing.T) {
	store := newMockAttendanceRepo()
	engine := newTestEngine(store, config.CompletionAcknowledged)
	sess := newSession("sess-1", testStudentID, time.Now())

	sess.TryBeginBackfill()
	engine.Dispatch(context.Background(), sess, nil)

	if got := sess.BackfillState(); got != BackfillDone {
		t.Errorf("空计划应同步进入 done，实际 %s", got)
	}
	if store.upsertCount() != 0 {
		t.Errorf("空计划不应写入，实际 %d 次", store.upsertCount())
	}
}

func TestBackfillEngine_CancelledRequestContext(t *testing.T) {
	cat := newTestCatalog(t)
	store := newMockAttendanceRepo()
	engine := newTestEngine(store, config.CompletionAcknowledged)
	sess := newSession("sess-1", testStudentID, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	plan := PlanBackfill(testStudentID, "CSB", catalog.GroupA, cat, nil, ymd(2026, 1, 8), time.Now())
	sess.TryBeginBackfill()
	engine.Dispatch(ctx, sess, plan)
	cancel() // 请求结束不影响后台写入
	engine.Wait()

	if store.count(testStudentID) != len(plan) {
		t.Errorf("请求取消后补录仍应完成，写入 %d/%d", store.count(testStudentID), len(plan))
	}
}
