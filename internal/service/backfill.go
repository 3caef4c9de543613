package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/model"
	"github.com/0xIIEST/attend-ease/internal/repository"
)

// ═══════════════════════════════════════════════════════════
// PlanBackfill — 计算需要补录为缺勤的课次
// ═══════════════════════════════════════════════════════════
//
// 扫描区间 [开学日, today)，逐日升序：
//   - 跳过节假日、考试周（首尾包含）、周六周日
//   - 对当天每节应到课程，若 (科目, 日期) 尚无记录则生成一条 absent
//
// 已有记录无论状态如何都不会被覆盖；昨天早于开学日时返回空。
// 纯函数，不访问存储。

func PlanBackfill(
	studentID, branch, group string,
	cat *catalog.Catalog,
	existing []model.AttendanceRecord,
	today, now time.Time,
) []model.AttendanceRecord {
	today = catalog.Truncate(today)
	yesterday := today.AddDate(0, 0, -1)
	if yesterday.Before(cat.SemesterStart) {
		return nil
	}

	seen := make(map[model.RecordKey]struct{}, len(existing))
	for i := range existing {
		seen[existing[i].Key()] = struct{}{}
	}

	var plan []model.AttendanceRecord
	for day := cat.SemesterStart; day.Before(today); day = day.AddDate(0, 0, 1) {
		if cat.IsExcluded(day) {
			continue
		}
		for _, cls := range cat.ExpectedClasses(day.Weekday(), branch, group) {
			key := model.RecordKey{SubjectCode: cls.SubjectCode, ClassDate: day}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			plan = append(plan, model.AttendanceRecord{
				StudentID:   studentID,
				SubjectCode: cls.SubjectCode,
				ClassDate:   day,
				Status:      model.StatusAbsent,
				MarkedAt:    now,
			})
		}
	}
	return plan
}

// ═══════════════════════════════════════════════════════════
// BackfillEngine — 异步提交补录写入
// ═══════════════════════════════════════════════════════════
//
// Dispatch 立即返回，写入在后台 worker 组中执行：
//   - 并发数由 backfill.concurrency 限制
//   - 每次写入独立超时，脱离请求上下文
//   - 只插入不覆盖：规划之后学生已标记的课次会被跳过
//   - 单次补录内失败不重试，只计数与记录日志
//
// 完成策略：
//   - acknowledged：全部写入确认后会话进入 done；有失败则回到 idle，下次刷新重新扫描
//   - best_effort：提交即 done，不关心写入结果

// BackfillEngine 补录执行器
type BackfillEngine struct {
	store        repository.AttendanceRecordRepository
	policy       string
	concurrency  int
	writeTimeout time.Duration
	logger       *zap.Logger

	inflight sync.WaitGroup
}

// NewBackfillEngine 创建补录执行器
func NewBackfillEngine(store repository.AttendanceRecordRepository, cfg *config.BackfillConfig, logger *zap.Logger) *BackfillEngine {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	policy := cfg.CompletionPolicy
	if policy == "" {
		policy = config.CompletionAcknowledged
	}
	return &BackfillEngine{
		store:        store,
		policy:       policy,
		concurrency:  concurrency,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
	}
}

// Policy 当前完成策略
func (e *BackfillEngine) Policy() string { return e.policy }

// Dispatch 提交一次补录；调用方需先通过 sess.TryBeginBackfill 取得执行权
func (e *BackfillEngine) Dispatch(ctx context.Context, sess *Session, plan []model.AttendanceRecord) {
	acknowledged := e.policy == config.CompletionAcknowledged
	started := time.Now()

	if len(plan) == 0 {
		sess.finishPass(PassResult{StartedAt: started, FinishedAt: started}, true)
		return
	}
	if !acknowledged {
		sess.markDone()
	}

	base := context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		result := e.run(base, sess, plan)
		result.StartedAt = started
		sess.finishPass(result, acknowledged)
	}()
}

func (e *BackfillEngine) run(ctx context.Context, sess *Session, plan []model.AttendanceRecord) PassResult {
	var written, skipped, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i := range plan {
		rec := plan[i]
		g.Go(func() error {
			wctx, cancel := e.writeContext(ctx)
			defer cancel()

			created, err := e.store.CreateIfAbsent(wctx, &rec)
			if err != nil {
				failed.Add(1)
				e.logger.Warn("补录写入失败",
					zap.String("session_id", sess.ID),
					zap.String("student_id", rec.StudentID),
					zap.String("subject_code", rec.SubjectCode),
					zap.String("class_date", rec.DateString()),
					zap.Error(err),
				)
				return err
			}
			if created {
				written.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	firstErr := g.Wait()

	result := PassResult{
		Planned:    len(plan),
		Written:    int(written.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
		FinishedAt: time.Now(),
	}

	fields := []zap.Field{
		zap.String("session_id", sess.ID),
		zap.String("student_id", sess.StudentID),
		zap.String("policy", e.policy),
		zap.Int("planned", result.Planned),
		zap.Int("written", result.Written),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	}
	if firstErr != nil {
		e.logger.Warn("缺勤补录部分失败", append(fields, zap.Error(firstErr))...)
	} else {
		e.logger.Info("缺勤补录完成", fields...)
	}
	return result
}

func (e *BackfillEngine) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.writeTimeout > 0 {
		return context.WithTimeout(ctx, e.writeTimeout)
	}
	return context.WithCancel(ctx)
}

// Wait 等待所有在途补录结束（优雅关闭与测试使用）
func (e *BackfillEngine) Wait() {
	e.inflight.Wait()
}
