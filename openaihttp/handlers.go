package openaihttp

import (
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	codexproxy "github.com/yuvalraviv1/codex-proxy"
	"github.com/yuvalraviv1/codex-proxy/backend"
	"github.com/yuvalraviv1/codex-proxy/openaiapi"
)

const serviceVersion = "1.0.0"

func Handlers(cfg Config) (modelsHandler, chatHandler, healthHandler, rootHandler http.HandlerFunc, err error) {
	resolved := resolveConfig(cfg)

	compat, err := newCompatHandler(compatConfig{
		Now:               time.Now,
		NewChatCompletion: openaiapi.NewChatCompletionID,
		WriteJSON:         writeJSON,
		WriteOpenAIError:  writeOpenAIError,
		NewExecutor:       newExecutorFactory(resolved),
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	modelsHandler = RequireAPIKey(resolved.APIKeys, compat.handleModels)
	chatHandler = RequireAPIKey(resolved.APIKeys, compat.handleChatCompletions)
	healthHandler = newHealthHandler(resolved)
	rootHandler = newRootHandler(resolved)
	return modelsHandler, chatHandler, healthHandler, rootHandler, nil
}

func newExecutorFactory(resolved resolvedConfig) func(kind codexproxy.BackendKind) (backend.Executor, error) {
	codex := backend.NewCodexExecutor(resolved.Codex)
	opencode := backend.NewOpenCodeExecutor(resolved.OpenCode)
	return func(kind codexproxy.BackendKind) (backend.Executor, error) {
		switch kind {
		case codexproxy.BackendCodex:
			return codex, nil
		case codexproxy.BackendOpenCode:
			return opencode, nil
		default:
			return nil, &httpError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("unknown backend: %s", kind),
			}
		}
	}
}

type backendHealth struct {
	Path      string `json:"path"`
	Available bool   `json:"available"`
	Model     string `json:"model"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version"`
	Backends map[string]backendHealth `json:"backends"`
}

func newHealthHandler(resolved resolvedConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeOpenAIError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, healthResponse{
			Status:  "healthy",
			Version: serviceVersion,
			Backends: map[string]backendHealth{
				"codex": {
					Path:      resolved.Codex.Path,
					Available: binaryAvailable(resolved.Codex.Path),
					Model:     resolved.Codex.Model,
				},
				"opencode": {
					Path:      resolved.OpenCode.Path,
					Available: binaryAvailable(resolved.OpenCode.Path),
					Model:     resolved.OpenCode.Model,
				},
			},
		})
	}
}

func newRootHandler(resolved resolvedConfig) http.HandlerFunc {
	basePath := resolved.BasePath
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeOpenAIError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, map[string]any{
			"name":        "codex-proxy",
			"version":     serviceVersion,
			"description": "OpenAI-compatible API proxy for Codex and OpenCode CLIs",
			"endpoints": map[string]string{
				"health":           "/health",
				"models":           joinPath(basePath, "/models"),
				"chat_completions": joinPath(basePath, "/chat/completions"),
			},
		})
	}
}

func binaryAvailable(path string) bool {
	_, err := exec.LookPath(path)
	return err == nil
}

type resolvedConfig struct {
	BasePath string
	APIKeys  []string
	Codex    backend.CodexConfig
	OpenCode backend.OpenCodeConfig
}

func resolveConfig(cfg Config) resolvedConfig {
	resolved := resolvedConfig{
		BasePath: normalizeBasePath(cfg.BasePath),
		Codex:    cfg.Codex,
		OpenCode: cfg.OpenCode,
	}
	for _, key := range cfg.APIKeys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			resolved.APIKeys = append(resolved.APIKeys, trimmed)
		}
	}
	if strings.TrimSpace(resolved.Codex.Path) == "" {
		resolved.Codex.Path = "codex"
	}
	if strings.TrimSpace(resolved.Codex.Model) == "" {
		resolved.Codex.Model = backend.DefaultCodexModel
	}
	if strings.TrimSpace(resolved.OpenCode.Path) == "" {
		resolved.OpenCode.Path = "opencode"
	}
	if strings.TrimSpace(resolved.OpenCode.Model) == "" {
		resolved.OpenCode.Model = backend.DefaultOpenCodeModel
	}
	return resolved
}
