package job

import (
	"context"
	"fmt"
	"log"
	"os"

	"contract-guard/pkg/logger"
	"contract-guard/types"

	"github.com/robfig/cron/v3"
)

// periodic 定时任务表，六段式 cron 表达式（含秒）
var periodic = []struct {
	spec string
	kind types.JobKind
}{
	{"0 0 * * * *", types.JobCleanupCache},    // 每小时
	{"0 0 2 * * *", types.JobCleanupAnalyses}, // 每天凌晨 2 点
	{"0 */5 * * * *", types.JobHealthCheck},   // 每 5 分钟
	{"30 */5 * * * *", types.JobAlertCheck},   // 每 5 分钟，错开健康检查
	{"0 */15 * * * *", types.JobMetrics},      // 每 15 分钟
}

// StartCronJob 定时把维护与监控任务投递到调度器，同类任务未结束时不重复投递
func StartCronJob(s *Scheduler) (*cron.Cron, error) {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.PrintfLogger(log.New(os.Stderr, "cron: ", log.LstdFlags)))),
	)
	for _, p := range periodic {
		_, err := c.AddFunc(p.spec, func() {
			ctx := context.Background()
			if _, err := s.EnqueueUnique(ctx, p.kind, string(p.kind), struct{}{}); err != nil {
				logger.Error(ctx, "enqueue periodic job failed", "kind", p.kind, "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", p.kind, err)
		}
	}
	c.Start()
	return c, nil
}
