package backend

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/yuvalraviv1/codex-proxy/openaiapi"
)

// TurnState 单个请求的回合状态机：Idle → Running → {Completed, Failed, Cancelled}。
type TurnState int32

const (
	TurnIdle TurnState = iota
	TurnRunning
	TurnCompleted
	TurnFailed
	TurnCancelled
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnRunning:
		return "running"
	case TurnCompleted:
		return "completed"
	case TurnFailed:
		return "failed"
	case TurnCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MapperConfig 单个请求的映射配置。
type MapperConfig struct {
	// ChatID 空值时自动生成 chatcmpl-<24hex>。
	ChatID string
	// Model 对外回显的模型名（请求里的原始值）。
	Model string
	// Created 空值时取当前时间。
	Created int64
	// ToolsEnabled 请求携带了工具目录时为 true，此时会在文本中提取调用。
	ToolsEnabled bool
	// PromptChars 提示词字符数，后端未报告用量时参与估算。
	PromptChars int
}

// ResponseMapper 把规范事件序列翻译为 OpenAI 兼容的响应对象。
// 每个请求一个实例，不在请求间共享。
type ResponseMapper struct {
	cfg   MapperConfig
	state atomic.Int32
}

func NewResponseMapper(cfg MapperConfig) *ResponseMapper {
	if strings.TrimSpace(cfg.ChatID) == "" {
		cfg.ChatID = openaiapi.NewChatCompletionID()
	}
	if cfg.Created == 0 {
		cfg.Created = time.Now().Unix()
	}
	m := &ResponseMapper{cfg: cfg}
	m.state.Store(int32(TurnIdle))
	return m
}

// State 返回当前回合状态（流式模式下由映射 goroutine 更新）。
func (m *ResponseMapper) State() TurnState {
	return TurnState(m.state.Load())
}

func (m *ResponseMapper) setState(s TurnState) {
	m.state.Store(int32(s))
}

// NonStreaming 完整消费事件流并产出单个聚合响应。
// 遇到 Error 事件时丢弃已累积的部分文本并返回错误，不允许部分成功。
func (m *ResponseMapper) NonStreaming(sr *schema.StreamReader[*Event]) (openaiapi.OpenAIChatCompletion, error) {
	m.setState(TurnRunning)
	content, backendCalls, usage, err := CollectEvents(sr)
	if err != nil {
		m.setState(TurnFailed)
		return openaiapi.OpenAIChatCompletion{}, err
	}
	return m.buildCompletion(content, backendCalls, usage), nil
}

// FromResponse 把非流式执行的聚合结果映射为响应（codex 纯文本路径）。
func (m *ResponseMapper) FromResponse(resp *Response) openaiapi.OpenAIChatCompletion {
	m.setState(TurnRunning)
	return m.buildCompletion(resp.Content, nil, resp.Usage)
}

func (m *ResponseMapper) buildCompletion(content string, backendCalls []ToolCall, usage *Usage) openaiapi.OpenAIChatCompletion {
	visible := content
	calls := append([]ToolCall(nil), backendCalls...)
	if m.cfg.ToolsEnabled {
		extracted, remaining := ExtractToolCalls(content)
		if len(extracted) > 0 {
			calls = append(calls, extracted...)
			visible = remaining
		}
	}

	finishReason := "stop"
	if len(calls) > 0 {
		finishReason = "tool_calls"
	}

	wireCalls := make([]openaiapi.OpenAIToolCall, 0, len(calls))
	for i, call := range calls {
		wireCalls = append(wireCalls, wireToolCall(call, i))
	}
	if len(wireCalls) == 0 {
		wireCalls = nil
	}

	estimated := EstimateUsage(m.cfg.PromptChars, len(content), usage)
	m.setState(TurnCompleted)
	return openaiapi.ToChatCompletion(m.cfg.ChatID, m.cfg.Model, m.cfg.Created, visible, wireCalls, finishReason, estimated)
}

// Streaming 把规范事件流惰性翻译为 OpenAI chunk 流：
// TextDelta → content delta（启用工具时先经过增量提取器），
// ToolCall → tool_calls delta（同一调用保持稳定 index），
// Completion → 携带 finish_reason 与用量的终止 chunk。
// Error 事件通过流错误传出，由 HTTP 层渲染为终止错误 delta；
// 已发出的 delta 不会被撤回。
func (m *ResponseMapper) Streaming(sr *schema.StreamReader[*Event]) *schema.StreamReader[*openaiapi.OpenAIChatChunk] {
	out, sw := schema.Pipe[*openaiapi.OpenAIChatChunk](eventPipeCap)
	m.setState(TurnRunning)

	go func() {
		defer sw.Close()
		defer sr.Close()

		scanner := &ToolCallScanner{}
		first := true
		sawToolCalls := false
		contentChars := 0
		var usage *Usage
		indexByID := make(map[string]int)
		nextIndex := 0

		role := func() string {
			if first {
				first = false
				return "assistant"
			}
			return ""
		}
		indexFor := func(id string) int {
			if idx, ok := indexByID[id]; ok {
				return idx
			}
			idx := nextIndex
			indexByID[id] = idx
			nextIndex++
			return idx
		}

		// 返回 true 表示消费方已关闭 chunk 流（放弃消费）
		sendText := func(text string) bool {
			if text == "" {
				return false
			}
			contentChars += len(text)
			chunk := openaiapi.ToChatChunk(m.cfg.ChatID, m.cfg.Model, m.cfg.Created, role(), text, nil)
			return sw.Send(&chunk, nil)
		}
		sendCalls := func(calls []ToolCall) bool {
			for _, call := range calls {
				sawToolCalls = true
				if call.ID == "" {
					call.ID = openaiapi.NewToolCallID()
				}
				wire := wireToolCall(call, indexFor(call.ID))
				chunk := openaiapi.ToToolCallChunk(m.cfg.ChatID, m.cfg.Model, m.cfg.Created, role(), []openaiapi.OpenAIToolCall{wire})
				if sw.Send(&chunk, nil) {
					return true
				}
			}
			return false
		}

		for {
			ev, err := sr.Recv()
			if err != nil {
				if isStreamEnd(err) {
					break
				}
				m.setState(TurnFailed)
				sw.Send(nil, err)
				return
			}
			if ev == nil {
				continue
			}
			switch ev.Kind {
			case EventTextDelta:
				if m.cfg.ToolsEnabled {
					visible, calls := scanner.Write(ev.Text)
					if sendText(visible) || sendCalls(calls) {
						m.setState(TurnCancelled)
						return
					}
				} else if sendText(ev.Text) {
					m.setState(TurnCancelled)
					return
				}
			case EventToolCall:
				if ev.ToolCall != nil && sendCalls([]ToolCall{*ev.ToolCall}) {
					m.setState(TurnCancelled)
					return
				}
			case EventCompletion:
				usage = ev.Usage
			case EventError:
				m.setState(TurnFailed)
				sw.Send(nil, ev.Err)
				return
			}
		}

		// 流结束：冲刷暂存文本，未闭合的调用片段按普通文本下发
		if m.cfg.ToolsEnabled {
			if sendText(scanner.Flush()) {
				m.setState(TurnCancelled)
				return
			}
		}

		finishReason := "stop"
		if sawToolCalls {
			finishReason = "tool_calls"
		}
		estimated := EstimateUsage(m.cfg.PromptChars, contentChars, usage)
		final := openaiapi.ToChatChunk(m.cfg.ChatID, m.cfg.Model, m.cfg.Created, "", "", &finishReason)
		final.Usage = &estimated
		if sw.Send(&final, nil) {
			m.setState(TurnCancelled)
			return
		}
		m.setState(TurnCompleted)
	}()

	return out
}

// ChatID 返回本回合使用的 chat completion ID。
func (m *ResponseMapper) ChatID() string { return m.cfg.ChatID }

func wireToolCall(call ToolCall, index int) openaiapi.OpenAIToolCall {
	id := call.ID
	if id == "" {
		id = openaiapi.NewToolCallID()
	}
	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}
	out := openaiapi.OpenAIToolCall{ID: id, Index: index, Type: "function"}
	out.Function.Name = strings.TrimSpace(call.Name)
	out.Function.Arguments = args
	return out
}
