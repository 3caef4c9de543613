package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ── 登录会话 ──────────────────────────────────────────────────
//
// 一次登录对应一个会话，会话 ID 写入 access / refresh token 的 sid 声明。
// 缺勤补录"本会话只跑一次"的状态挂在会话上：
//
//	idle ──TryBeginBackfill──▶ running ──finish──▶ done
//	                              │
//	                              └──(acknowledged 策略下有写入失败)──▶ idle
//
// 会话只存在于本进程内存中，不跨实例共享。
// ─────────────────────────────────────────────────────────────

// BackfillState 会话内补录状态
type BackfillState string

const (
	BackfillIdle    BackfillState = "idle"
	BackfillRunning BackfillState = "running"
	BackfillDone    BackfillState = "done"
)

// PassResult 一次补录的执行结果
type PassResult struct {
	Planned    int       `json:"planned"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"` // 写入时键已存在
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Session 登录会话
type Session struct {
	ID        string
	StudentID string
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	state    BackfillState
	lastPass *PassResult
}

func newSession(id, studentID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		StudentID: studentID,
		CreatedAt: now,
		lastSeen:  now,
		state:     BackfillIdle,
	}
}

// BackfillState 当前补录状态
func (s *Session) BackfillState() BackfillState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastPass 最近一次补录结果
func (s *Session) LastPass() (PassResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPass == nil {
		return PassResult{}, false
	}
	return *s.lastPass, true
}

// TryBeginBackfill 仅在 idle 时切换为 running 并返回 true
func (s *Session) TryBeginBackfill() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != BackfillIdle {
		return false
	}
	s.state = BackfillRunning
	return true
}

// markDone best_effort 策略：任务提交即视为完成
func (s *Session) markDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = BackfillDone
}

// finishPass 记录结果；acknowledged 时只有全部写入成功才进入 done
func (s *Session) finishPass(result PassResult, acknowledged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPass = &result
	if !acknowledged {
		return
	}
	if result.Failed == 0 {
		s.state = BackfillDone
	} else {
		s.state = BackfillIdle
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionRegistry 进程内会话表
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	revoked  map[string]time.Time // 已登出会话 → 记录过期时间
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSessionRegistry 创建会话表；ttl 为空闲过期时间
func NewSessionRegistry(ttl time.Duration, logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		revoked:  make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Create 为学生新建会话
func (r *SessionRegistry) Create(studentID string) *Session {
	s := newSession(uuid.New().String(), studentID, r.now())

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get 查找未过期的会话
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if r.ttl > 0 && s.idleSince(now) > r.ttl {
		delete(r.sessions, id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Resume 按 token 中的 sid 取回会话
// 进程重启或会话过期后 token 仍有效时，以同一 ID 重建一个 idle 会话；
// 已登出的会话只返回一个不登记的临时会话
func (r *SessionRegistry) Resume(id, studentID string) *Session {
	if s, ok := r.Get(id); ok && s.StudentID == studentID {
		return s
	}

	s := newSession(id, studentID, r.now())
	if r.IsRevoked(id) {
		return s
	}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s
}

// Remove 移除会话（不记录登出，之后仍可按同一 sid 重建）
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Revoke 登出：移除会话并记住该 sid，ttl 内不再重建
func (r *SessionRegistry) Revoke(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	r.revoked[id] = r.now().Add(r.ttl)
}

// IsRevoked 会话是否已登出
func (r *SessionRegistry) IsRevoked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.revoked[id]
	if !ok {
		return false
	}
	if r.ttl > 0 && r.now().After(until) {
		delete(r.revoked, id)
		return false
	}
	return true
}

// Len 当前会话数
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep 清理空闲超过 ttl 的会话，返回清理数量
func (r *SessionRegistry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, s := range r.sessions {
		if s.idleSince(now) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	for id, until := range r.revoked {
		if now.After(until) {
			delete(r.revoked, id)
		}
	}
	return removed
}

// Run 周期性清理过期会话，ctx 取消时返回
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("清理过期会话", zap.Int("removed", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}
