// Package openaihttp 提供基于本地 CLI 后端（Codex/OpenCode）的 OpenAI v1
// 兼容 HTTP 处理器。
//
// 该包对外只暴露：
// - net/http 形式的 handlers（models/chat.completions/health/root）
// - Gin 路由注册方法
//
// 鉴权通过 Config.APIKeys 配置（Bearer key），为空表示 dev 模式放行。
//
// 使用示例：
//
//	// net/http
//	modelsH, chatH, healthH, rootH, _ := openaihttp.Handlers(openaihttp.Config{
//		APIKeys: []string{"sk-dev"},
//	})
//	mux.HandleFunc("/v1/models", modelsH)
//	mux.HandleFunc("/v1/chat/completions", chatH)
//	mux.HandleFunc("/health", healthH)
//	mux.HandleFunc("/", rootH)
//
//	// gin
//	_ = openaihttp.RegisterGinRoutes(r, openaihttp.Config{
//		BasePath: "/v1",
//		APIKeys:  []string{"sk-dev"},
//	})
package openaihttp
