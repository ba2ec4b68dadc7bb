package backend

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yuvalraviv1/codex-proxy/openaiapi"
)

// ToolCall 表示从后端输出中识别出的一次工具调用。
// Arguments 保存原始 JSON 文本（尽力而为，未必合法），
// 与 OpenAI tool_calls 的 function.arguments 语义一致。
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// toolCallPattern 识别内嵌在助手文本里的工具调用：
//
//	{"name": "tool_name", "arguments": {...}}
//
// 参数体不允许包含收尾大括号之外的 }（与增量匹配文法保持一致）。
var toolCallPattern = regexp.MustCompile(`\{\s*"name"\s*:\s*"([^"]+)"\s*,\s*"arguments"\s*:\s*(\{[^}]*\})\s*\}`)

// ExtractToolCalls 从完整文本中提取所有工具调用（从左到右），
// 并返回移除调用片段后的可见文本。只移除匹配到的片段本身，
// 周围的空白原样保留：增量路径（ToolCallScanner）对片段外的文本
// 逐段放行、无法事后回收，聚合内容必须与它逐字一致。
// 参数子串不是合法 JSON 时原样保留参数文本，不会使整个回合失败。
func ExtractToolCalls(text string) ([]ToolCall, string) {
	matches := toolCallPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, text
	}

	calls := make([]ToolCall, 0, len(matches))
	var remaining strings.Builder
	last := 0
	for _, m := range matches {
		remaining.WriteString(text[last:m[0]])
		last = m[1]
		calls = append(calls, ToolCall{
			ID:        openaiapi.NewToolCallID(),
			Name:      text[m[2]:m[3]],
			Arguments: normalizeArguments(text[m[4]:m[5]]),
		})
	}
	remaining.WriteString(text[last:])

	return calls, remaining.String()
}

// normalizeArguments 尽力把参数文本规范化为紧凑 JSON；
// 不是合法 JSON 时保留原文（调用方自行决定怎么处理）。
func normalizeArguments(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return trimmed
	}
	normalized, err := json.Marshal(decoded)
	if err != nil {
		return trimmed
	}
	return string(normalized)
}

// ToolCallScanner 以增量方式在文本流中识别工具调用。
// 可见文本尽量立刻放行，只有仍可能是调用片段前缀的尾部会被暂存；
// 流结束时未闭合的片段按普通文本处理，不会升级成工具调用。
type ToolCallScanner struct {
	buf string
}

// Write 追加一个文本增量，返回可以安全下发的可见文本
// 与本次识别出的完整调用（从左到右）。
func (s *ToolCallScanner) Write(delta string) (string, []ToolCall) {
	s.buf += delta

	var visible strings.Builder
	var calls []ToolCall
	for s.buf != "" {
		i := strings.IndexByte(s.buf, '{')
		if i < 0 {
			visible.WriteString(s.buf)
			s.buf = ""
			break
		}
		visible.WriteString(s.buf[:i])
		s.buf = s.buf[i:]

		n, state := matchCallPattern(s.buf)
		switch state {
		case callComplete:
			if m := toolCallPattern.FindStringSubmatch(s.buf[:n]); m != nil {
				calls = append(calls, ToolCall{
					ID:        openaiapi.NewToolCallID(),
					Name:      m[1],
					Arguments: normalizeArguments(m[2]),
				})
				s.buf = s.buf[n:]
				continue
			}
			// 文法与正则不一致时放过这个 '{'，避免死循环
			visible.WriteByte(s.buf[0])
			s.buf = s.buf[1:]
		case callPartial:
			// 片段可能尚未传输完，等待更多输入
			return visible.String(), calls
		default:
			visible.WriteByte(s.buf[0])
			s.buf = s.buf[1:]
		}
	}
	return visible.String(), calls
}

// Flush 返回流结束时仍暂存的文本（未闭合的片段不提升为调用）。
func (s *ToolCallScanner) Flush() string {
	out := s.buf
	s.buf = ""
	return out
}

type callMatchState int

const (
	callNoMatch callMatchState = iota
	callPartial
	callComplete
)

// matchCallPattern 在 s 的开头按显式文法尝试匹配一次工具调用：
//
//	'{' ws '"name"' ws ':' ws '"' 名称 '"' ws ',' ws '"arguments"' ws ':' ws '{' 参数体 '}' ws '}'
//
// 名称非空且不含引号；参数体不含 }（与 toolCallPattern 一致）。
// 返回匹配长度与状态，callPartial 表示输入先耗尽、后续仍可能匹配成功。
func matchCallPattern(s string) (int, callMatchState) {
	i := 0

	skipWS := func() {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
			i++
		}
	}
	expect := func(lit string) callMatchState {
		for j := 0; j < len(lit); j++ {
			if i >= len(s) {
				return callPartial
			}
			if s[i] != lit[j] {
				return callNoMatch
			}
			i++
		}
		return callComplete
	}

	if st := expect(`{`); st != callComplete {
		return 0, st
	}
	skipWS()
	if st := expect(`"name"`); st != callComplete {
		return 0, st
	}
	skipWS()
	if st := expect(`:`); st != callComplete {
		return 0, st
	}
	skipWS()
	if st := expect(`"`); st != callComplete {
		return 0, st
	}
	nameStart := i
	for i < len(s) && s[i] != '"' {
		i++
	}
	if i >= len(s) {
		return 0, callPartial
	}
	if i == nameStart {
		return 0, callNoMatch
	}
	i++ // 名称收尾引号
	skipWS()
	if st := expect(`,`); st != callComplete {
		return 0, st
	}
	skipWS()
	if st := expect(`"arguments"`); st != callComplete {
		return 0, st
	}
	skipWS()
	if st := expect(`:`); st != callComplete {
		return 0, st
	}
	skipWS()
	if st := expect(`{`); st != callComplete {
		return 0, st
	}
	for i < len(s) && s[i] != '}' {
		i++
	}
	if i >= len(s) {
		return 0, callPartial
	}
	i++ // 参数体收尾 }
	skipWS()
	if st := expect(`}`); st != callComplete {
		return 0, st
	}
	return i, callComplete
}
