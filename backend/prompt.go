package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/yuvalraviv1/codex-proxy/openaiapi"
)

// BuildPrompt 把多轮消息压平成 CLI 可用的单个提示词文本。
// 有工具时先输出工具目录与调用格式说明，再按角色前缀拼接消息，
// 段落间以空行分隔。多轮语义无法完整保留，这是刻意的取舍。
func BuildPrompt(messages []*schema.Message, tools []openaiapi.OpenAITool) string {
	var parts []string

	if len(tools) > 0 {
		parts = append(parts, formatToolsPrompt(tools), "")
	}

	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			parts = append(parts, "System: "+msg.Content)
		case schema.User:
			parts = append(parts, "User: "+msg.Content)
		case schema.Assistant:
			if len(msg.ToolCalls) > 0 {
				for _, tc := range msg.ToolCalls {
					parts = append(parts, fmt.Sprintf(
						"Assistant called tool: %s(arguments: %s)",
						tc.Function.Name, tc.Function.Arguments,
					))
				}
			} else if msg.Content != "" {
				parts = append(parts, "Assistant: "+msg.Content)
			}
		case schema.Tool:
			parts = append(parts, fmt.Sprintf(
				"Tool %s (call_id: %s) returned: %s",
				msg.Name, msg.ToolCallID, msg.Content,
			))
		}
	}

	return strings.Join(parts, "\n\n")
}

// formatToolsPrompt 把工具定义转成自然语言目录，并附上调用格式说明。
// 模型按说明输出 {"name": ..., "arguments": ...} 片段，由提取器识别。
func formatToolsPrompt(tools []openaiapi.OpenAITool) string {
	lines := []string{"You have access to the following tools:\n"}

	for _, tool := range tools {
		fn := tool.Function
		description := fn.Description
		if description == "" {
			description = "No description provided"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", fn.Name, description))

		if len(fn.Parameters) > 0 {
			if params, err := json.MarshalIndent(fn.Parameters, "", "  "); err == nil {
				lines = append(lines, fmt.Sprintf("  Parameters: %s", params))
			}
		}
	}

	lines = append(lines,
		"\nTo use a tool, respond with a JSON object in this exact format:",
		`{"name": "tool_name", "arguments": {...}}`,
		"\nYou can include explanation text along with or after the JSON.",
	)

	return strings.Join(lines, "\n")
}
