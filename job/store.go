package job

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"contract-guard/types"
)

// Store 任务状态存储，postgres.JobRepo 与 MemoryStore 均实现
type Store interface {
	Create(ctx context.Context, j *types.BackgroundJob) error
	Update(ctx context.Context, j *types.BackgroundJob) error
	Get(ctx context.Context, id string) (*types.BackgroundJob, error)
	FindActiveByKey(ctx context.Context, key string) (*types.BackgroundJob, error)
	ListByStates(ctx context.Context, states ...types.JobState) ([]*types.BackgroundJob, error)
	CountByState(ctx context.Context) (map[types.JobState]int, error)
}

// MemoryStore 进程内任务存储
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*types.BackgroundJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*types.BackgroundJob)}
}

func (m *MemoryStore) Create(_ context.Context, j *types.BackgroundJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	m.jobs[j.ID] = j.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, j *types.BackgroundJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; !ok {
		return fmt.Errorf("%w: %s", types.ErrJobNotFound, j.ID)
	}
	m.jobs[j.ID] = j.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*types.BackgroundJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrJobNotFound, id)
	}
	return j.Clone(), nil
}

func (m *MemoryStore) FindActiveByKey(_ context.Context, key string) (*types.BackgroundJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *types.BackgroundJob
	for _, j := range m.jobs {
		if j.UniqueKey != key || j.State.Terminal() {
			continue
		}
		if found == nil || j.CreatedAt.After(found.CreatedAt) {
			found = j
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.Clone(), nil
}

func (m *MemoryStore) ListByStates(_ context.Context, states ...types.JobState) ([]*types.BackgroundJob, error) {
	want := make(map[types.JobState]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.BackgroundJob
	for _, j := range m.jobs {
		if want[j.State] {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CountByState(context.Context) (map[types.JobState]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[types.JobState]int)
	for _, j := range m.jobs {
		out[j.State]++
	}
	return out, nil
}
