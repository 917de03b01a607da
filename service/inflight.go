package service

import (
	"sync"
	"time"

	"contract-guard/types"

	"github.com/google/uuid"
)

// flight 某个指纹上正在进行的一次执行
type flight struct {
	executionID string
	startedAt   time.Time
	waiters     int
	done        chan struct{}

	// done 关闭后只读
	artifact *types.AnalysisArtifact
	err      error
}

// FlightInfo 执行中的任务信息
type FlightInfo struct {
	Fingerprint types.Fingerprint `json:"fingerprint"`
	ExecutionID string            `json:"execution_id"`
	StartedAt   time.Time         `json:"started_at"`
	Waiters     int               `json:"waiters"`
}

// flightTable 指纹 → 执行标记，保证同一指纹同时只有一次外部调用
type flightTable struct {
	mu      sync.Mutex
	flights map[types.Fingerprint]*flight
}

func newFlightTable() *flightTable {
	return &flightTable{flights: make(map[types.Fingerprint]*flight)}
}

// acquire 原子地查找或创建标记，leader 为 true 时调用方负责启动执行
func (t *flightTable) acquire(fp types.Fingerprint) (f *flight, leader bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.flights[fp]; ok {
		f.waiters++
		return f, false
	}
	f = &flight{
		executionID: uuid.NewString(),
		startedAt:   time.Now(),
		done:        make(chan struct{}),
	}
	t.flights[fp] = f
	return f, true
}

// complete 释放标记并唤醒全部等待者
func (t *flightTable) complete(fp types.Fingerprint, f *flight, a *types.AnalysisArtifact, err error) {
	t.mu.Lock()
	if t.flights[fp] == f {
		delete(t.flights, fp)
	}
	t.mu.Unlock()

	f.artifact, f.err = a, err
	close(f.done)
}

func (t *flightTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flights)
}

func (t *flightTable) snapshot() []FlightInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FlightInfo, 0, len(t.flights))
	for fp, f := range t.flights {
		out = append(out, FlightInfo{
			Fingerprint: fp,
			ExecutionID: f.executionID,
			StartedAt:   f.startedAt,
			Waiters:     f.waiters,
		})
	}
	return out
}
