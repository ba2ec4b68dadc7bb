package openaihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	codexproxy "github.com/yuvalraviv1/codex-proxy"
	"github.com/yuvalraviv1/codex-proxy/backend"
	"github.com/yuvalraviv1/codex-proxy/openaiapi"
)

type httpError struct {
	Status  int
	Message string
	Err     error
}

func (e *httpError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *httpError) Unwrap() error { return e.Err }

type compatConfig struct {
	Now               func() time.Time
	NewChatCompletion func() string
	WriteJSON         func(w http.ResponseWriter, data interface{})
	WriteOpenAIError  func(w http.ResponseWriter, statusCode int, message string)
	NewExecutor       func(kind codexproxy.BackendKind) (backend.Executor, error)
}

type compatHandler struct {
	now               func() time.Time
	newChatCompletion func() string
	writeJSON         func(w http.ResponseWriter, data interface{})
	writeOpenAIError  func(w http.ResponseWriter, statusCode int, message string)
	newExecutor       func(kind codexproxy.BackendKind) (backend.Executor, error)
}

func newCompatHandler(cfg compatConfig) (*compatHandler, error) {
	if cfg.WriteJSON == nil {
		return nil, fmt.Errorf("WriteJSON is required")
	}
	if cfg.WriteOpenAIError == nil {
		return nil, fmt.Errorf("WriteOpenAIError is required")
	}
	if cfg.NewExecutor == nil {
		return nil, fmt.Errorf("NewExecutor is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewChatCompletion == nil {
		cfg.NewChatCompletion = openaiapi.NewChatCompletionID
	}
	return &compatHandler{
		now:               cfg.Now,
		newChatCompletion: cfg.NewChatCompletion,
		writeJSON:         cfg.WriteJSON,
		writeOpenAIError:  cfg.WriteOpenAIError,
		newExecutor:       cfg.NewExecutor,
	}, nil
}

func (h *compatHandler) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeOpenAIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	presetModels := codexproxy.PresetModels()
	modelsList := make([]openaiapi.OpenAIModel, 0, len(presetModels))
	now := h.now().Unix()
	for _, m := range presetModels {
		modelsList = append(modelsList, openaiapi.OpenAIModel{
			ID:      m.ID,
			Object:  "model",
			Created: now,
			OwnedBy: m.OwnedBy,
		})
	}

	h.writeJSON(w, openaiapi.OpenAIModelList{
		Object: "list",
		Data:   modelsList,
	})
}

func (h *compatHandler) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeOpenAIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req openaiapi.OpenAIChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeOpenAIError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// 未指定模型时走 Codex 默认模型
	if strings.TrimSpace(req.Model) == "" {
		req.Model = codexproxy.CodexLocalModel
	}

	messages, err := convertOpenAIChatMessages(req.Messages)
	if err != nil {
		h.writeOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := codexproxy.BackendForModel(req.Model)
	override := codexproxy.ModelOverride(req.Model, kind)
	prompt := backend.BuildPrompt(messages, req.Tools)

	exec, err := h.newExecutor(kind)
	if err != nil {
		h.writeOpenAIError(w, httpStatusFromError(err), httpMessageFromError(err))
		return
	}

	mapper := backend.NewResponseMapper(backend.MapperConfig{
		ChatID:       h.newChatCompletion(),
		Model:        req.Model,
		Created:      h.now().Unix(),
		ToolsEnabled: len(req.Tools) > 0,
		PromptChars:  len(prompt),
	})

	log.Printf("[codex-proxy] Chat completion request: backend=%s, stream=%t, model=%s, tools=%d",
		kind, req.Stream, req.Model, len(req.Tools))

	if req.Stream {
		h.handleStreamResponse(w, r, exec, mapper, prompt, override)
		return
	}

	resp, err := exec.Generate(r.Context(), prompt, override)
	if err != nil {
		h.writeOpenAIError(w, statusFromBackendError(err), err.Error())
		return
	}
	h.writeJSON(w, mapper.FromResponse(resp))
}

func (h *compatHandler) handleStreamResponse(
	w http.ResponseWriter,
	r *http.Request,
	exec backend.Executor,
	mapper *backend.ResponseMapper,
	prompt, modelOverride string,
) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeOpenAIError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sr, err := exec.Stream(r.Context(), prompt, modelOverride)
	if err != nil {
		h.writeOpenAIError(w, statusFromBackendError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	chunks := mapper.Streaming(sr)
	defer chunks.Close()

	for {
		chunk, err := chunks.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				// 后端中途失败：已发出的 delta 不撤回，补一个错误终止 delta
				h.writeErrorDelta(w, mapper.ChatID(), err)
			}
			break
		}
		if chunk == nil {
			continue
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (h *compatHandler) writeErrorDelta(w http.ResponseWriter, chatID string, err error) {
	finishReason := "stop"
	content := fmt.Sprintf("\n[backend error: %s]", err.Error())
	chunk := openaiapi.ToChatChunk(chatID, "", h.now().Unix(), "", content, &finishReason)
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// statusFromBackendError 把后端错误类别映射为 HTTP 状态码。
func statusFromBackendError(err error) int {
	var unavailable *backend.UnavailableError
	if errors.As(err, &unavailable) {
		return http.StatusServiceUnavailable
	}
	var timeout *backend.TimeoutError
	if errors.As(err, &timeout) {
		return http.StatusGatewayTimeout
	}
	var execErr *backend.ExecutionError
	if errors.As(err, &execErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func convertOpenAIChatMessages(messages []openaiapi.OpenAIMessage) ([]*schema.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages is required")
	}

	result := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			return nil, fmt.Errorf("message role is required")
		}

		content, err := openAIContentToText(msg.Content)
		if err != nil {
			return nil, err
		}

		switch role {
		case "system":
			result = append(result, schema.SystemMessage(content))
		case "user":
			result = append(result, schema.UserMessage(content))
		case "assistant":
			toolCalls := make([]schema.ToolCall, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				callID := strings.TrimSpace(tc.ID)
				if callID == "" {
					continue
				}
				callType := strings.TrimSpace(tc.Type)
				if callType == "" {
					callType = "function"
				}
				toolCalls = append(toolCalls, schema.ToolCall{
					ID:   callID,
					Type: callType,
					Function: schema.FunctionCall{
						Name:      strings.TrimSpace(tc.Function.Name),
						Arguments: tc.Function.Arguments,
					},
				})
			}
			if content == "" && len(toolCalls) == 0 {
				continue
			}
			result = append(result, &schema.Message{
				Role:      schema.Assistant,
				Content:   content,
				ToolCalls: toolCalls,
			})
		case "tool":
			if strings.TrimSpace(msg.ToolCallID) == "" {
				return nil, fmt.Errorf("tool message requires tool_call_id")
			}
			result = append(result, &schema.Message{
				Role:       schema.Tool,
				Content:    content,
				ToolCallID: msg.ToolCallID,
				Name:       msg.Name,
			})
		default:
			return nil, fmt.Errorf("unsupported role: %s", role)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no valid messages to send")
	}
	return result, nil
}

func openAIContentToText(content any) (string, error) {
	if content == nil {
		return "", nil
	}

	if text, ok := content.(string); ok {
		return text, nil
	}

	parts, ok := content.([]interface{})
	if !ok {
		return "", fmt.Errorf("unsupported message content")
	}

	builder := strings.Builder{}
	for _, part := range parts {
		partMap, ok := part.(map[string]interface{})
		if !ok {
			continue
		}
		partType, _ := partMap["type"].(string)
		if partType != "text" && partType != "input_text" {
			continue
		}
		if textValue, ok := partMap["text"].(string); ok {
			builder.WriteString(textValue)
			continue
		}
		if textObj, ok := partMap["text"].(map[string]interface{}); ok {
			if value, ok := textObj["value"].(string); ok {
				builder.WriteString(value)
			}
		}
	}

	return builder.String(), nil
}

func httpStatusFromError(err error) int {
	var httpErr *httpError
	if errors.As(err, &httpErr) && httpErr != nil && httpErr.Status != 0 {
		return httpErr.Status
	}
	return http.StatusInternalServerError
}

func httpMessageFromError(err error) string {
	var httpErr *httpError
	if errors.As(err, &httpErr) && httpErr != nil && strings.TrimSpace(httpErr.Message) != "" {
		return httpErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
