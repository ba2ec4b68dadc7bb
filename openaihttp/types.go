package openaihttp

import "github.com/yuvalraviv1/codex-proxy/backend"

type Config struct {
	// BasePath 仅用于 Gin 注册路由时拼接路径，默认 "/v1"。
	BasePath string
	// APIKeys 合法的 Bearer key 列表，为空表示 dev 模式（不鉴权）。
	APIKeys []string
	// Codex Codex CLI 执行器配置，零值使用内置默认。
	Codex backend.CodexConfig
	// OpenCode OpenCode CLI 执行器配置，零值使用内置默认。
	OpenCode backend.OpenCodeConfig
}
