// Package openaiapi 定义 OpenAI Chat Completions 兼容的数据结构，
// 以及构造响应/流式块的辅助函数。该包不依赖任何 HTTP 框架，
// openaihttp 与 backend 共用这里的类型。
package openaiapi
