package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"contract-guard/pkg/logger"
	"contract-guard/pkg/retry"
	"contract-guard/types"

	"github.com/google/uuid"
)

// Handler 处理某一类任务，返回值序列化后写入任务结果
type Handler func(ctx context.Context, job *types.BackgroundJob) (any, error)

// Scheduler 后台任务队列与 worker 池
// 状态机：queued → running → succeeded | retrying → running | failed
type Scheduler struct {
	store    Store
	policy   retry.Policy
	workers  int
	handlers map[types.JobKind]Handler

	mu     sync.Mutex
	queue  []string
	timers map[string]*time.Timer
	notify chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(store Store, policy retry.Policy, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Scheduler{
		store:    store,
		policy:   policy,
		workers:  workers,
		handlers: make(map[types.JobKind]Handler),
		timers:   make(map[string]*time.Timer),
		notify:   make(chan struct{}, 1),
	}
}

// Register 注册任务处理函数，需在 Start 之前调用
func (s *Scheduler) Register(kind types.JobKind, h Handler) {
	s.handlers[kind] = h
}

// Enqueue 入队一个新任务
func (s *Scheduler) Enqueue(ctx context.Context, kind types.JobKind, payload any) (string, error) {
	return s.EnqueueUnique(ctx, kind, "", payload)
}

// EnqueueUnique key 非空且已有未结束任务时返回该任务 id，不重复入队
func (s *Scheduler) EnqueueUnique(ctx context.Context, kind types.JobKind, key string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode payload: %v", types.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		existing, err := s.store.FindActiveByKey(ctx, key)
		if err != nil {
			return "", err
		}
		if existing != nil {
			logger.Debug(ctx, "job already active", "job_id", existing.ID, "kind", kind, "key", key)
			return existing.ID, nil
		}
	}

	now := time.Now()
	j := &types.BackgroundJob{
		ID:          uuid.NewString(),
		Kind:        kind,
		UniqueKey:   key,
		Payload:     raw,
		State:       types.JobQueued,
		MaxAttempts: s.policy.MaxAttempts,
		ScheduledAt: now,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, j); err != nil {
		return "", err
	}
	s.pushLocked(j.ID)
	logger.Info(ctx, "job enqueued", "job_id", j.ID, "kind", kind)
	return j.ID, nil
}

// Status 查询任务状态
func (s *Scheduler) Status(ctx context.Context, id string) (*types.BackgroundJob, error) {
	return s.store.Get(ctx, id)
}

// QueueDepth 等待执行的任务数
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Counts 各状态任务数
func (s *Scheduler) Counts(ctx context.Context) (map[types.JobState]int, error) {
	return s.store.CountByState(ctx)
}

// Start 恢复未完成的任务并启动 worker
func (s *Scheduler) Start(ctx context.Context) error {
	pending, err := s.store.ListByStates(ctx, types.JobQueued, types.JobRetrying, types.JobRunning)
	if err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}
	s.mu.Lock()
	for _, j := range pending {
		if j.State != types.JobQueued {
			j.State = types.JobQueued
			if err := s.store.Update(ctx, j); err != nil {
				logger.Warn(ctx, "requeue job failed", "job_id", j.ID, "error", err)
				continue
			}
		}
		s.pushLocked(j.ID)
	}
	s.mu.Unlock()
	if len(pending) > 0 {
		logger.Info(ctx, "recovered pending jobs", "count", len(pending))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(runCtx)
	}
	return nil
}

// Stop 停止接收新任务并等待执行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		id, ok := s.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.notify:
			}
			continue
		}
		s.run(ctx, id)
	}
}

func (s *Scheduler) pushLocked(id string) {
	s.queue = append(s.queue, id)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) pop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	// 还有剩余任务时唤醒其他 worker
	if len(s.queue) > 0 {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	return id, true
}

func (s *Scheduler) run(ctx context.Context, id string) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		logger.Error(ctx, "load job failed", "job_id", id, "error", err)
		return
	}
	if j.State.Terminal() {
		return
	}
	ctx = context.WithValue(ctx, logger.JobIDKey, j.ID)

	now := time.Now()
	j.State = types.JobRunning
	j.Attempts++
	j.StartedAt = &now
	if err := s.store.Update(ctx, j); err != nil {
		logger.Warn(ctx, "update job state failed", "error", err)
	}

	result, err := s.invoke(ctx, j)
	if err == nil {
		s.succeed(ctx, j, result)
		return
	}

	j.LastError = err.Error()
	if j.Attempts >= j.MaxAttempts || !retryable(err) {
		s.fail(ctx, j, err)
		return
	}

	delay := s.policy.Backoff(j.Attempts)
	j.State = types.JobRetrying
	j.ScheduledAt = time.Now().Add(delay)
	if err := s.store.Update(ctx, j); err != nil {
		logger.Warn(ctx, "update job state failed", "error", err)
	}
	logger.Warn(ctx, "job failed, retrying", "kind", j.Kind, "attempt", j.Attempts, "delay", delay, "error", err)
	s.retryAfter(j.ID, delay)
}

func (s *Scheduler) invoke(ctx context.Context, j *types.BackgroundJob) (result any, err error) {
	h, ok := s.handlers[j.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no handler for job kind %q", types.ErrInvalidInput, j.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return h(ctx, j)
}

func (s *Scheduler) succeed(ctx context.Context, j *types.BackgroundJob, result any) {
	now := time.Now()
	j.State = types.JobSucceeded
	j.FinishedAt = &now
	j.LastError = ""
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			logger.Warn(ctx, "encode job result failed", "error", err)
		} else {
			j.Result = raw
		}
	}
	if err := s.store.Update(ctx, j); err != nil {
		logger.Warn(ctx, "update job state failed", "error", err)
	}
	logger.Info(ctx, "job succeeded", "kind", j.Kind, "attempts", j.Attempts)
}

func (s *Scheduler) fail(ctx context.Context, j *types.BackgroundJob, cause error) {
	now := time.Now()
	j.State = types.JobFailed
	j.FinishedAt = &now
	j.LastError = fmt.Errorf("%w: %w", types.ErrJobFailedTerminal, cause).Error()
	if err := s.store.Update(ctx, j); err != nil {
		logger.Warn(ctx, "update job state failed", "error", err)
	}
	logger.Error(ctx, "job failed", "kind", j.Kind, "attempts", j.Attempts, "error", cause)
}

func (s *Scheduler) retryAfter(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.timers[id]; !ok {
			return
		}
		delete(s.timers, id)
		s.pushLocked(id)
	})
}

// retryable 输入类错误与缺少依赖时重试无意义
func retryable(err error) bool {
	return !errors.Is(err, errNotConfigured) &&
		!errors.Is(err, types.ErrInvalidInput) &&
		!errors.Is(err, types.ErrArtifactNotFound) &&
		!errors.Is(err, types.ErrUnsupportedFormat)
}
