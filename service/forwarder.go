package service

import (
	"time"

	"contract-guard/types"

	"github.com/cloudwego/eino/schema"
)

// forwarder 把执行事件转发给单个消费者
// 消费者关闭 reader 后停止转发，不影响执行本身
type forwarder struct {
	sw     *schema.StreamWriter[*types.AnalysisEvent]
	seq    int
	closed bool
}

func newForwarder(sw *schema.StreamWriter[*types.AnalysisEvent]) *forwarder {
	return &forwarder{sw: sw}
}

func (f *forwarder) emit(ev *types.AnalysisEvent) {
	if f.closed || ev == nil {
		return
	}
	out := *ev
	f.seq++
	out.Seq = f.seq
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	f.closed = f.sw.Send(&out, nil)
}

// finish 发送终止事件并关闭写端
func (f *forwarder) finish(a *types.AnalysisArtifact, err error) {
	if err != nil {
		f.emit(types.ErrorEvent(err))
	} else {
		f.emit(types.DoneEvent(a))
	}
	f.sw.Close()
}

// replay 把已有结果重放为完整事件流
func replay(f *forwarder, a *types.AnalysisArtifact, err error) {
	if err == nil && a != nil {
		for i := range a.Issues {
			issue := a.Issues[i]
			f.emit(&types.AnalysisEvent{Kind: types.EventIssueFound, Issue: &issue})
		}
		f.emit(&types.AnalysisEvent{
			Kind:            types.EventSummary,
			Summary:         a.Summary,
			Recommendations: a.Recommendations,
		})
	}
	f.finish(a, err)
}
