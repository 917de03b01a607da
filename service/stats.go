package service

import "sync/atomic"

// Stats 监控计数快照
type Stats struct {
	Executions          int64 `json:"executions"`
	Failures            int64 `json:"failures"`
	ConsecutiveFailures int64 `json:"consecutive_failures"`
	CacheHits           int64 `json:"cache_hits"`
	CacheMisses         int64 `json:"cache_misses"`
	CacheErrors         int64 `json:"cache_errors"`
	ExternalCalls       int64 `json:"external_calls"`
	InFlight            int   `json:"in_flight"`
}

type counters struct {
	executions  atomic.Int64
	failures    atomic.Int64
	consecutive atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	cacheErrors atomic.Int64
}

func (c *counters) recordResult(err error) {
	c.executions.Add(1)
	if err != nil {
		c.failures.Add(1)
		c.consecutive.Add(1)
		return
	}
	c.consecutive.Store(0)
}
