package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", s.Host)
	require.Equal(t, 8000, s.Port)
	require.Equal(t, "gpt-5.2-codex", s.CodexModel)
	require.Equal(t, "read-only", s.CodexSandbox)
	require.False(t, s.CodexFullAuto)
	require.Equal(t, "anthropic/claude-sonnet-4", s.OpencodeModel)
	require.Equal(t, 5*time.Minute, s.ExecTimeout)
	require.Equal(t, "info", s.LogLevel)
	require.Nil(t, s.APIKeySet())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("CODEX_MODEL", "o3")
	t.Setenv("EXEC_TIMEOUT", "30s")

	s, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9001, s.Port)
	require.Equal(t, "o3", s.CodexModel)
	require.Equal(t, 30*time.Second, s.ExecTimeout)
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"API_KEYS=sk-a, sk-b,\nCODEX_PATH=/opt/codex/bin/codex\n"), 0o644))

	s, err := Load(envFile)
	require.NoError(t, err)
	require.Equal(t, []string{"sk-a", "sk-b"}, s.APIKeySet())
	require.Equal(t, "/opt/codex/bin/codex", s.ResolvedCodexPath())
}

func TestLoad_MissingEnvFileTolerated(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestResolvedPaths_FallBackToCommandNames(t *testing.T) {
	s := &Settings{}
	require.Equal(t, "codex", s.ResolvedCodexPath())
	require.Equal(t, "opencode", s.ResolvedOpencodePath())

	s.CodexPath = "/usr/local/bin/codex"
	s.OpencodePath = "/usr/local/bin/opencode"
	require.Equal(t, "/usr/local/bin/codex", s.ResolvedCodexPath())
	require.Equal(t, "/usr/local/bin/opencode", s.ResolvedOpencodePath())
}

func TestAPIKeySet_SkipsBlankEntries(t *testing.T) {
	s := &Settings{APIKeys: " , sk-only , "}
	require.Equal(t, []string{"sk-only"}, s.APIKeySet())
}
