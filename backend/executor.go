package backend

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"
)

// Executor 是单个 CLI 后端的执行契约。两个实现（Codex/OpenCode）
// 只在命令行构造与原始输出语法上不同，管线的其余部分对后端无感知。
//
// model 为空表示使用执行器配置里的默认模型，否则覆盖之。
type Executor interface {
	// Stream 启动一次子进程调用，把输出以规范事件流的形式惰性暴露。
	// 调用方可以在进程退出前开始消费；放弃消费（关闭 reader 或取消 ctx）
	// 会导致子进程被终止，不会留下孤儿进程。
	//
	// 注意：单独关闭 reader 只能在子进程下一次产出事件时被察觉，
	// 进程在此之前会继续运行。要想立即终止子进程，请取消 ctx
	// （HTTP 路径用 r.Context() 自动满足这一点）。
	Stream(ctx context.Context, prompt, model string) (*schema.StreamReader[*Event], error)

	// Generate 执行一次调用并返回聚合结果。
	Generate(ctx context.Context, prompt, model string) (*Response, error)
}

// CollectEvents 完整消费一个规范事件流，返回聚合文本、后端报告的
// 工具调用与用量。遇到 Error 事件时丢弃已累积的内容并返回对应错误
// （非流式路径不允许部分成功）。
func CollectEvents(sr *schema.StreamReader[*Event]) (string, []ToolCall, *Usage, error) {
	defer sr.Close()

	var content []byte
	var calls []ToolCall
	var usage *Usage
	for {
		ev, err := sr.Recv()
		if err != nil {
			if isStreamEnd(err) {
				return string(content), calls, usage, nil
			}
			return "", nil, nil, err
		}
		if ev == nil {
			continue
		}
		switch ev.Kind {
		case EventTextDelta:
			content = append(content, ev.Text...)
		case EventToolCall:
			if ev.ToolCall != nil {
				calls = append(calls, *ev.ToolCall)
			}
		case EventCompletion:
			usage = ev.Usage
		case EventError:
			return "", nil, nil, ev.Err
		}
	}
}

func isStreamEnd(err error) bool {
	return errors.Is(err, io.EOF)
}
