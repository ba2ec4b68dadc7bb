package backend

// EventKind 标识一个规范事件的种类。
type EventKind string

const (
	// EventTextDelta 一段助手文本增量。
	EventTextDelta EventKind = "text_delta"
	// EventToolCall 后端以结构化形式报告的一次工具调用。
	EventToolCall EventKind = "tool_call"
	// EventCompletion 回合正常结束，可能携带后端报告的用量。
	// 一个事件序列里最多出现一次，且一定是最后一个事件。
	EventCompletion EventKind = "completion"
	// EventError 回合失败。出现后序列立即终止，不会再有后续事件。
	EventError EventKind = "error"
)

// Event 是后端输出归一化之后的规范事件。
// 不同后端的原始格式（JSONL、纯文本）都会被翻译为同一组事件，
// 顺序拼接全部 TextDelta 即可还原完整的助手文本。
type Event struct {
	Kind     EventKind
	Text     string    // EventTextDelta
	ToolCall *ToolCall // EventToolCall
	Usage    *Usage    // EventCompletion（后端报告了用量时非空）
	Err      error     // EventError
}

// Usage 后端报告的 token 用量。
type Usage struct {
	InputTokens       int
	CachedInputTokens int
	OutputTokens      int
}

// Total 返回总 token 数（input + output）。
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Response 非流式执行的聚合结果。
type Response struct {
	Content string
	// Usage 为 nil 表示后端没有报告用量，需要按文本长度估算。
	Usage *Usage
}
