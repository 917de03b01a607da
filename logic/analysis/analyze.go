package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"contract-guard/pkg/logger"
	"contract-guard/types"
	"contract-guard/vars"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var promptTmpl = template.Must(template.New("analyze").Parse(vars.ANALYZE))

// Analyzer 基于对话模型的合同风险分析
type Analyzer struct {
	chatModel model.BaseChatModel
}

func NewAnalyzer(chatModel model.BaseChatModel) *Analyzer {
	return &Analyzer{chatModel: chatModel}
}

// buildMessages 渲染系统提示词，合同正文作为用户消息
func buildMessages(sub types.ContractSubmission) ([]*schema.Message, error) {
	n := sub.Normalized()
	cats := make([]string, len(n.Categories))
	for i, c := range n.Categories {
		cats[i] = string(c)
	}

	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, map[string]string{
		"Industry":    string(n.Industry),
		"Categories":  strings.Join(cats, ", "),
		"CurrentDate": time.Now().Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	return []*schema.Message{
		schema.SystemMessage(buf.String()),
		schema.UserMessage("Contract text:\n" + n.Text),
	}, nil
}

// Analyze 同步调用模型并解析问题列表
func (a *Analyzer) Analyze(ctx context.Context, sub types.ContractSubmission) (*types.IssueSet, error) {
	msgs, err := buildMessages(sub)
	if err != nil {
		return nil, err
	}
	resp, err := a.chatModel.Generate(ctx, msgs)
	if err != nil {
		return nil, Classify(err)
	}
	logger.Debug(ctx, "model response received", "chars", len(resp.Content))
	return ParseResponse(resp.Content)
}

// AnalyzeStream 流式调用模型，输出 progress / issue-found / summary 事件，正常结束时以 done 事件收尾
// 模型流中途出错时 Recv 返回归类后的错误，不发送 done
func (a *Analyzer) AnalyzeStream(ctx context.Context, sub types.ContractSubmission) (*schema.StreamReader[*types.AnalysisEvent], error) {
	msgs, err := buildMessages(sub)
	if err != nil {
		return nil, err
	}
	sr, err := a.chatModel.Stream(ctx, msgs)
	if err != nil {
		return nil, Classify(err)
	}

	out, w := schema.Pipe[*types.AnalysisEvent](16)
	go func() {
		defer sr.Close()
		defer w.Close()
		defer func() {
			if r := recover(); r != nil {
				w.Send(nil, fmt.Errorf("%w: panic in stream: %v", types.ErrAnalysisUnavailable, r))
			}
		}()

		var pending strings.Builder
		received := 0
		// 返回 true 表示下游已关闭
		emitLine := func(line string) bool {
			res, ok := parseLine(line)
			if !ok {
				return false
			}
			ev := &types.AnalysisEvent{Timestamp: time.Now()}
			if res.issue != nil {
				ev.Kind = types.EventIssueFound
				ev.Issue = res.issue
			} else {
				ev.Kind = types.EventSummary
				ev.Summary = res.summary.Summary
				ev.Recommendations = res.summary.Recommendations
			}
			return w.Send(ev, nil)
		}

		for {
			msg, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				if emitLine(pending.String()) {
					return
				}
				w.Send(&types.AnalysisEvent{Kind: types.EventDone, Timestamp: time.Now()}, nil)
				return
			}
			if err != nil {
				w.Send(nil, Classify(err))
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}

			received += len(msg.Content)
			if w.Send(&types.AnalysisEvent{Kind: types.EventProgress, Received: received, Timestamp: time.Now()}, nil) {
				return
			}

			pending.WriteString(msg.Content)
			buf := pending.String()
			idx := strings.LastIndexByte(buf, '\n')
			if idx == -1 {
				continue
			}
			for _, line := range strings.Split(buf[:idx], "\n") {
				if emitLine(line) {
					return
				}
			}
			pending.Reset()
			pending.WriteString(buf[idx+1:])
		}
	}()
	return out, nil
}
