package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// DefaultOpenCodeModel 未配置时使用的 OpenCode 模型。
const DefaultOpenCodeModel = "anthropic/claude-sonnet-4"

// OpenCodeConfig OpenCode CLI 执行器配置。
type OpenCodeConfig struct {
	// Path opencode 二进制路径或命令名，空值用 "opencode"。
	Path string
	// Model 默认模型（provider/model 形式），空值用 DefaultOpenCodeModel。
	Model string
	// Timeout 单次调用的墙钟预算，0 表示不限制。
	Timeout time.Duration
}

// OpenCodeExecutor 通过 opencode CLI 执行请求。
// 两种模式都走 --format json 的 JSON 事件流，Generate 直接把自己的
// Stream 消费完（流式与非流式天然内容等价）。
type OpenCodeExecutor struct {
	cfg OpenCodeConfig
}

func NewOpenCodeExecutor(cfg OpenCodeConfig) *OpenCodeExecutor {
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "opencode"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultOpenCodeModel
	}
	return &OpenCodeExecutor{cfg: cfg}
}

func (e *OpenCodeExecutor) buildArgs(prompt, model string) []string {
	actual := e.cfg.Model
	if strings.TrimSpace(model) != "" {
		actual = model
	}
	return []string{
		"run", prompt,
		"--model", actual,
		"--format", "json",
	}
}

func (e *OpenCodeExecutor) Stream(ctx context.Context, prompt, model string) (*schema.StreamReader[*Event], error) {
	cfg := processConfig{
		path:    e.cfg.Path,
		args:    e.buildArgs(prompt, model),
		timeout: e.cfg.Timeout,
	}
	return streamEvents(ctx, cfg, opencodeEventFromLine)
}

func (e *OpenCodeExecutor) Generate(ctx context.Context, prompt, model string) (*Response, error) {
	sr, err := e.Stream(ctx, prompt, model)
	if err != nil {
		return nil, err
	}
	content, _, usage, err := CollectEvents(sr)
	if err != nil {
		return nil, err
	}
	return &Response{Content: content, Usage: usage}, nil
}

// opencodeEvent opencode --format json 输出的单行事件。
type opencodeEvent struct {
	Type string `json:"type"`
	Part struct {
		Text   string `json:"text"`
		Tokens struct {
			Input  int `json:"input"`
			Output int `json:"output"`
		} `json:"tokens"`
	} `json:"part"`
	Error struct {
		Name string `json:"name"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	} `json:"error"`
}

// opencodeEventFromLine 把一行 opencode JSON 事件归一化为规范事件：
// text → TextDelta，step_finish → Completion（携带 part.tokens），
// error → Error，step_start 与未识别的类型跳过。
func opencodeEventFromLine(line string) *Event {
	var ev opencodeEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		log.Printf("[codex-proxy] Skip non-JSON opencode line: %.120s", line)
		return nil
	}

	switch ev.Type {
	case "text":
		if ev.Part.Text != "" {
			return &Event{Kind: EventTextDelta, Text: ev.Part.Text}
		}
	case "step_finish":
		var usage *Usage
		if ev.Part.Tokens.Input > 0 || ev.Part.Tokens.Output > 0 {
			usage = &Usage{
				InputTokens:  ev.Part.Tokens.Input,
				OutputTokens: ev.Part.Tokens.Output,
			}
		}
		return &Event{Kind: EventCompletion, Usage: usage}
	case "error":
		message := ev.Error.Data.Message
		if message == "" {
			message = ev.Error.Name
		}
		if message == "" {
			message = "unknown error"
		}
		return &Event{Kind: EventError, Err: fmt.Errorf("opencode error: %s", message)}
	case "step_start":
		// 处理开始标记，无内容
	default:
		log.Printf("[codex-proxy] Skip unknown opencode event type: %s", ev.Type)
	}
	return nil
}
