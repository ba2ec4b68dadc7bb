// Package codexproxy 提供将本地命令行 AI 助手（Codex CLI / OpenCode CLI）
// 包装为 OpenAI 兼容 API 的能力，方便第三方程序以 OpenAI SDK 的方式
// 调用本地订阅版 CLI，而不需要单独的 APIKey。
//
// 该仓库主要包含两类能力：
//  1. HTTP 兼容层：openaihttp 包导出 /v1/models、/v1/chat/completions、/health handlers
//  2. 执行引擎：backend 包负责子进程生命周期、事件归一化、工具调用提取与响应映射
package codexproxy
