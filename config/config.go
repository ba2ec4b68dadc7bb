// Package config 负责进程级配置：环境变量（可选 .env 文件）一次性加载，
// 得到一个只读的 Settings 值，显式传给各组件，不使用全局可变状态。
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings 进程级配置，启动时构建一次后只读。
type Settings struct {
	// APIKeys 逗号分隔的合法 API key 列表，为空表示 dev 模式（不鉴权）。
	APIKeys string `mapstructure:"api_keys"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`

	// CodexPath 空值表示按命令名 codex 在 PATH 中查找。
	CodexPath     string `mapstructure:"codex_path"`
	CodexModel    string `mapstructure:"codex_model"`
	CodexSandbox  string `mapstructure:"codex_sandbox"`
	CodexFullAuto bool   `mapstructure:"codex_full_auto"`

	// OpencodePath 空值表示按命令名 opencode 在 PATH 中查找。
	OpencodePath  string `mapstructure:"opencode_path"`
	OpencodeModel string `mapstructure:"opencode_model"`

	// ExecTimeout 单次 CLI 调用的墙钟预算，0 表示不限制。
	ExecTimeout time.Duration `mapstructure:"exec_timeout"`

	LogLevel string `mapstructure:"log_level"`
}

// Load 从环境变量加载配置；envFile 非空且文件存在时先读取该 .env 文件，
// 环境变量优先于文件内容。
func Load(envFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("api_keys", "")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("codex_path", "")
	v.SetDefault("codex_model", "gpt-5.2-codex")
	v.SetDefault("codex_sandbox", "read-only")
	v.SetDefault("codex_full_auto", false)
	v.SetDefault("opencode_path", "")
	v.SetDefault("opencode_model", "anthropic/claude-sonnet-4")
	v.SetDefault("exec_timeout", "5m")
	v.SetDefault("log_level", "info")

	v.AutomaticEnv()

	if strings.TrimSpace(envFile) != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *fs.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, err
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// APIKeySet 返回配置的 API key 集合。
func (s *Settings) APIKeySet() []string {
	if strings.TrimSpace(s.APIKeys) == "" {
		return nil
	}
	var keys []string
	for _, key := range strings.Split(s.APIKeys, ",") {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// ResolvedCodexPath 返回 codex 二进制路径，未配置时用命令名。
func (s *Settings) ResolvedCodexPath() string {
	if strings.TrimSpace(s.CodexPath) != "" {
		return s.CodexPath
	}
	return "codex"
}

// ResolvedOpencodePath 返回 opencode 二进制路径，未配置时用命令名。
func (s *Settings) ResolvedOpencodePath() string {
	if strings.TrimSpace(s.OpencodePath) != "" {
		return s.OpencodePath
	}
	return "opencode"
}
