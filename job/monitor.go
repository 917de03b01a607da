package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"contract-guard/pkg/logger"
	"contract-guard/service"
	"contract-guard/types"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Checker 依赖服务探活
type Checker interface {
	Ping(ctx context.Context) error
}

// StatsSource 执行统计来源
type StatsSource interface {
	Stats() service.Stats
}

// QueueStats 任务队列统计
type QueueStats interface {
	QueueDepth() int
	Counts(ctx context.Context) (map[types.JobState]int, error)
}

// Alert 告警
type Alert struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Value     int64     `json:"value"`
	Threshold int64     `json:"threshold"`
	RaisedAt  time.Time `json:"raised_at"`
}

// Notifier 告警通知
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier 以 warn 日志输出告警
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, a Alert) error {
	logger.Warn(ctx, "alert raised", "alert", a.Name, "message", a.Message, "value", a.Value, "threshold", a.Threshold)
	return nil
}

// Thresholds 告警阈值
type Thresholds struct {
	MaxConsecutiveFailures int64
	MaxQueueDepth          int
}

// HealthReport 健康检查结果
type HealthReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Metrics 指标快照
type Metrics struct {
	service.Stats
	QueueDepth  int                    `json:"queue_depth"`
	Jobs        map[types.JobState]int `json:"jobs"`
	CollectedAt time.Time              `json:"collected_at"`
}

type namedCheck struct {
	name  string
	check Checker
}

// Monitor 健康检查、指标采集与告警
type Monitor struct {
	stats      StatsSource
	queue      QueueStats
	notifier   Notifier
	thresholds Thresholds
	checks     []namedCheck

	mu   sync.RWMutex
	last *Metrics
}

func NewMonitor(stats StatsSource, queue QueueStats, notifier Notifier, thresholds Thresholds) *Monitor {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Monitor{stats: stats, queue: queue, notifier: notifier, thresholds: thresholds}
}

// AddCheck 注册依赖探活
func (m *Monitor) AddCheck(name string, c Checker) {
	m.checks = append(m.checks, namedCheck{name: name, check: c})
}

// Health 任一依赖不可用时整体为 degraded
func (m *Monitor) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:     StatusHealthy,
		Components: make(map[string]string, len(m.checks)),
		CheckedAt:  time.Now(),
	}
	for _, c := range m.checks {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.check.Ping(pctx)
		cancel()
		if err != nil {
			report.Components[c.name] = StatusUnhealthy
			report.Status = StatusDegraded
			logger.Warn(ctx, "dependency unhealthy", "component", c.name, "error", err)
			continue
		}
		report.Components[c.name] = StatusHealthy
	}
	return report
}

// Collect 采集当前指标
func (m *Monitor) Collect(ctx context.Context) (*Metrics, error) {
	counts, err := m.queue.Counts(ctx)
	if err != nil {
		return nil, err
	}
	snap := &Metrics{
		Stats:       m.stats.Stats(),
		QueueDepth:  m.queue.QueueDepth(),
		Jobs:        counts,
		CollectedAt: time.Now(),
	}
	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()
	return snap, nil
}

// Last 最近一次采集的指标
func (m *Monitor) Last() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// CheckAlerts 超过阈值时通过 Notifier 发出告警，不做任何修复动作
func (m *Monitor) CheckAlerts(ctx context.Context) []Alert {
	now := time.Now()
	var alerts []Alert

	stats := m.stats.Stats()
	if t := m.thresholds.MaxConsecutiveFailures; t > 0 && stats.ConsecutiveFailures >= t {
		alerts = append(alerts, Alert{
			Name:      "consecutive_failures",
			Message:   fmt.Sprintf("%d consecutive analysis failures", stats.ConsecutiveFailures),
			Value:     stats.ConsecutiveFailures,
			Threshold: t,
			RaisedAt:  now,
		})
	}
	if t := m.thresholds.MaxQueueDepth; t > 0 {
		if depth := m.queue.QueueDepth(); depth >= t {
			alerts = append(alerts, Alert{
				Name:      "queue_depth",
				Message:   fmt.Sprintf("%d jobs waiting in queue", depth),
				Value:     int64(depth),
				Threshold: int64(t),
				RaisedAt:  now,
			})
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Name < alerts[j].Name })

	for _, a := range alerts {
		if err := m.notifier.Notify(ctx, a); err != nil {
			logger.Warn(ctx, "notify alert failed", "alert", a.Name, "error", err)
		}
	}
	return alerts
}
