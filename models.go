package codexproxy

import "strings"

// BackendKind 标识一种 CLI 后端。增加新后端时只需要新增一个 Kind
// 以及 backend 包里对应的 Executor 实现。
type BackendKind string

const (
	// BackendCodex 对应 Codex CLI（codex e ...）。
	BackendCodex BackendKind = "codex"
	// BackendOpenCode 对应 OpenCode CLI（opencode run ...）。
	BackendOpenCode BackendKind = "opencode"
)

const (
	// CodexLocalModel 是对外暴露的 Codex 本地模型 ID。
	CodexLocalModel = "codex-local"
	// OpenCodeLocalModel 是对外暴露的 OpenCode 本地模型 ID。
	OpenCodeLocalModel = "opencode-local"
)

// opencodeModelPrefixes 带这些前缀的模型 ID 会被路由到 OpenCode CLI，
// 并把完整 ID 透传给 --model。
var opencodeModelPrefixes = []string{"anthropic/", "openai/", "opencode/"}

type PresetModel struct {
	ID      string
	OwnedBy string
}

// PresetModels 返回内置的模型列表（用于 /v1/models 输出）。
func PresetModels() []PresetModel {
	return []PresetModel{
		{ID: CodexLocalModel, OwnedBy: "codex-proxy"},
		{ID: OpenCodeLocalModel, OwnedBy: "codex-proxy"},
	}
}

// BackendForModel 根据模型 ID 选择后端。
// opencode-local 以及 provider/model 形式（anthropic/、openai/、opencode/）
// 路由到 OpenCode，其余一律走 Codex（与 codex-local 同）。
func BackendForModel(modelID string) BackendKind {
	trimmed := strings.TrimSpace(modelID)
	if trimmed == OpenCodeLocalModel {
		return BackendOpenCode
	}
	for _, prefix := range opencodeModelPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return BackendOpenCode
		}
	}
	return BackendCodex
}

// ModelOverride 返回应传给 CLI --model/-m 的模型覆盖值。
// 请求里写的是代理自己的模型名（codex-local/opencode-local）时返回空，
// 表示使用配置里的默认模型；其它情况把请求值透传。
func ModelOverride(modelID string, kind BackendKind) string {
	trimmed := strings.TrimSpace(modelID)
	switch kind {
	case BackendCodex:
		if trimmed == CodexLocalModel {
			return ""
		}
	case BackendOpenCode:
		if trimmed == OpenCodeLocalModel {
			return ""
		}
	}
	return trimmed
}
