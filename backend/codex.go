package backend

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

const (
	// DefaultCodexModel 未配置时使用的 Codex 模型。
	DefaultCodexModel = "gpt-5.2-codex"
	// DefaultCodexSandbox 未配置时使用的沙箱模式。
	DefaultCodexSandbox = "read-only"
)

// CodexConfig Codex CLI 执行器配置。
type CodexConfig struct {
	// Path codex 二进制路径或命令名，空值用 "codex"（PATH 查找）。
	Path string
	// Model 默认模型，空值用 DefaultCodexModel。
	Model string
	// Sandbox 沙箱模式（read-only/workspace-write/danger-full-access）。
	Sandbox string
	// FullAuto 追加 --full-auto。
	FullAuto bool
	// Timeout 单次调用的墙钟预算，0 表示不限制。
	Timeout time.Duration
}

// CodexExecutor 通过 codex CLI 执行请求。
// 流式模式使用 --json（JSONL 事件流），非流式模式解析 stderr 上的
// 人类可读转写（codex 的回答不走 stdout）。
type CodexExecutor struct {
	cfg CodexConfig
}

func NewCodexExecutor(cfg CodexConfig) *CodexExecutor {
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "codex"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultCodexModel
	}
	if strings.TrimSpace(cfg.Sandbox) == "" {
		cfg.Sandbox = DefaultCodexSandbox
	}
	return &CodexExecutor{cfg: cfg}
}

func (e *CodexExecutor) buildArgs(prompt, model string, streaming bool) []string {
	actual := e.cfg.Model
	if strings.TrimSpace(model) != "" {
		actual = model
	}

	args := []string{
		"e", prompt,
		"--skip-git-repo-check",
		"-m", actual,
		"-s", e.cfg.Sandbox,
	}
	if e.cfg.FullAuto {
		args = append(args, "--full-auto")
	}
	if streaming {
		args = append(args, "--json")
	}
	return args
}

func (e *CodexExecutor) Stream(ctx context.Context, prompt, model string) (*schema.StreamReader[*Event], error) {
	cfg := processConfig{
		path:    e.cfg.Path,
		args:    e.buildArgs(prompt, model, true),
		timeout: e.cfg.Timeout,
	}
	return streamEvents(ctx, cfg, codexEventFromLine)
}

func (e *CodexExecutor) Generate(ctx context.Context, prompt, model string) (*Response, error) {
	cfg := processConfig{
		path:    e.cfg.Path,
		args:    e.buildArgs(prompt, model, false),
		timeout: e.cfg.Timeout,
	}
	proc, cancel, err := startProcess(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// 回答在 stderr，stdout 仍需读空避免子进程写管道阻塞
	_, _ = io.Copy(io.Discard, proc.stdout)
	if err := proc.wait(); err != nil {
		return nil, err
	}
	return parseCodexTranscript(proc.stderrText()), nil
}

// codexEvent codex --json 输出的单行事件。
type codexEvent struct {
	Type  string         `json:"type"`
	Item  map[string]any `json:"item"`
	Usage map[string]any `json:"usage"`
}

// codexEventFromLine 把一行 JSONL 归一化为规范事件。
// 无法解析的行（启动横幅等）与未识别的事件形状直接跳过，保持前向兼容。
func codexEventFromLine(line string) *Event {
	var ev codexEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		log.Printf("[codex-proxy] Skip non-JSON codex line: %.120s", line)
		return nil
	}

	switch ev.Type {
	case "item.completed":
		itemType, _ := ev.Item["type"].(string)
		switch itemType {
		case "agent_message":
			if text, ok := ev.Item["text"].(string); ok && text != "" {
				return &Event{Kind: EventTextDelta, Text: text}
			}
		case "function_call":
			if call := codexFunctionCall(ev.Item); call != nil {
				return &Event{Kind: EventToolCall, ToolCall: call}
			}
		}
	case "turn.completed":
		return &Event{Kind: EventCompletion, Usage: codexUsage(ev.Usage)}
	}
	return nil
}

func codexFunctionCall(item map[string]any) *ToolCall {
	name, _ := item["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	callID, _ := item["call_id"].(string)
	if callID == "" {
		callID, _ = item["id"].(string)
	}

	var arguments string
	switch value := item["arguments"].(type) {
	case string:
		arguments = value
	case nil:
	default:
		if data, err := json.Marshal(value); err == nil {
			arguments = string(data)
		}
	}

	return &ToolCall{ID: callID, Name: name, Arguments: arguments}
}

func codexUsage(raw map[string]any) *Usage {
	if len(raw) == 0 {
		return nil
	}
	asInt := func(key string) int {
		if v, ok := raw[key].(float64); ok {
			return int(v)
		}
		return 0
	}
	usage := Usage{
		InputTokens:       asInt("input_tokens"),
		CachedInputTokens: asInt("cached_input_tokens"),
		OutputTokens:      asInt("output_tokens"),
	}
	if usage.Total() == 0 {
		return nil
	}
	return &usage
}

// parseCodexTranscript 解析 codex 非流式模式的人类可读输出：
//
//	--------
//	...metadata...
//	--------
//	user
//	<prompt>
//	thinking
//	<reasoning>
//	codex
//	<response>
//	tokens used
//	<number>
//
// "codex" 小节即回答正文；"tokens used" 的下一行是总 token 数，
// 按 80/20 拆分为 input/output（标准输出不区分两者）。
func parseCodexTranscript(output string) *Response {
	lines := strings.Split(strings.TrimSpace(output), "\n")

	var contentLines []string
	inResponse := false
	tokens := 0

parseLoop:
	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		switch {
		case stripped == "codex":
			inResponse = true
		case stripped == "tokens used":
			// 下一行是总 token 数（可能带千分位逗号）
			if i+1 < len(lines) {
				tokenStr := strings.ReplaceAll(strings.TrimSpace(lines[i+1]), ",", "")
				parsed, err := strconv.Atoi(tokenStr)
				if err != nil {
					log.Printf("[codex-proxy] Failed to parse token count: %q", lines[i+1])
				} else {
					tokens = parsed
				}
			}
			break parseLoop
		case inResponse:
			contentLines = append(contentLines, line)
		}
	}

	resp := &Response{Content: strings.TrimSpace(strings.Join(contentLines, "\n"))}
	if tokens > 0 {
		usage := SplitReportedTotal(tokens)
		resp.Usage = &usage
	}
	return resp
}
