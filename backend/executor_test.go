package backend

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeStub 生成一个冒充 CLI 后端的 shell 脚本（忽略传入参数）。
func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestCodexStream_HappyPath(t *testing.T) {
	stub := writeStub(t, `
echo '{"type":"item.completed","item":{"type":"agent_message","text":"Hello"}}'
echo '{"type":"item.completed","item":{"type":"agent_message","text":" world"}}'
echo '{"type":"turn.completed","usage":{"input_tokens":10,"output_tokens":5}}'
`)
	e := NewCodexExecutor(CodexConfig{Path: stub})

	sr, err := e.Stream(context.Background(), "hi", "")
	require.NoError(t, err)

	content, calls, usage, err := CollectEvents(sr)
	require.NoError(t, err)
	require.Equal(t, "Hello world", content)
	require.Empty(t, calls)
	require.NotNil(t, usage)
	require.Equal(t, 15, usage.Total())
}

func TestCodexStream_CompletionIsSingleAndLast(t *testing.T) {
	stub := writeStub(t, `
echo '{"type":"turn.completed","usage":{"input_tokens":1,"output_tokens":1}}'
echo '{"type":"item.completed","item":{"type":"agent_message","text":"late"}}'
`)
	e := NewCodexExecutor(CodexConfig{Path: stub})

	sr, err := e.Stream(context.Background(), "hi", "")
	require.NoError(t, err)
	defer sr.Close()

	var events []*Event
	for {
		ev, recvErr := sr.Recv()
		if recvErr != nil {
			require.ErrorIs(t, recvErr, io.EOF)
			break
		}
		events = append(events, ev)
	}

	// Completion 被暂存到最后，且只出现一次
	completions := 0
	for _, ev := range events {
		if ev.Kind == EventCompletion {
			completions++
		}
	}
	require.Equal(t, 1, completions)
	require.Equal(t, EventCompletion, events[len(events)-1].Kind)
}

func TestCodexStream_SplitJSONLineReassembled(t *testing.T) {
	// 写端在 JSON 行中间断开，读端必须重组出完整事件
	stub := writeStub(t, `
printf '{"type":"item.completed","item":{"type":"agent_'
sleep 0.1
printf 'message","text":"hi"}}\n'
`)
	e := NewCodexExecutor(CodexConfig{Path: stub})

	sr, err := e.Stream(context.Background(), "hi", "")
	require.NoError(t, err)

	content, _, _, err := CollectEvents(sr)
	require.NoError(t, err)
	require.Equal(t, "hi", content)
}

func TestStream_BinaryMissing(t *testing.T) {
	e := NewCodexExecutor(CodexConfig{Path: "definitely-not-a-real-binary-xyz"})

	_, err := e.Stream(context.Background(), "hi", "")
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Equal(t, "definitely-not-a-real-binary-xyz", unavailable.Path)
}

func TestStream_NonZeroExit(t *testing.T) {
	stub := writeStub(t, `
echo "boom" >&2
exit 3
`)
	e := NewCodexExecutor(CodexConfig{Path: stub})

	sr, err := e.Stream(context.Background(), "hi", "")
	require.NoError(t, err)

	_, _, _, err = CollectEvents(sr)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, 3, execErr.ExitCode)
	require.Contains(t, execErr.Stderr, "boom")
}

func TestStream_Timeout(t *testing.T) {
	stub := writeStub(t, `sleep 30`)
	e := NewCodexExecutor(CodexConfig{Path: stub, Timeout: 100 * time.Millisecond})

	sr, err := e.Stream(context.Background(), "hi", "")
	require.NoError(t, err)

	start := time.Now()
	_, _, _, err = CollectEvents(sr)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestStream_CancellationKillsProcess(t *testing.T) {
	stub := writeStub(t, `
echo '{"type":"item.completed","item":{"type":"agent_message","text":"first"}}'
sleep 30
`)
	e := NewCodexExecutor(CodexConfig{Path: stub})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sr, err := e.Stream(ctx, "hi", "")
	require.NoError(t, err)
	defer sr.Close()

	ev, err := sr.Recv()
	require.NoError(t, err)
	require.Equal(t, "first", ev.Text)

	// 取消后子进程被终止，流在宽限时间内终结，不留孤儿进程
	cancel()
	start := time.Now()
	for {
		_, err = sr.Recv()
		if err != nil {
			break
		}
	}
	if !errors.Is(err, io.EOF) {
		require.ErrorIs(t, err, context.Canceled)
	}
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestCodexGenerate_ParsesTranscript(t *testing.T) {
	stub := writeStub(t, `
echo 'ignored stdout'
{
echo '--------'
echo 'model: gpt-5.2-codex'
echo '--------'
echo 'user'
echo 'What is 2+2?'
echo 'codex'
echo 'The answer is 4.'
echo 'tokens used'
echo '1,234'
} >&2
`)
	e := NewCodexExecutor(CodexConfig{Path: stub})

	resp, err := e.Generate(context.Background(), "What is 2+2?", "")
	require.NoError(t, err)
	require.Equal(t, "The answer is 4.", resp.Content)
	require.NotNil(t, resp.Usage)
	require.Equal(t, 1234, resp.Usage.Total())
}

func TestOpenCodeStream_TextAndUsage(t *testing.T) {
	stub := writeStub(t, `
echo '{"type":"step_start"}'
echo '{"type":"text","part":{"text":"Hello from opencode"}}'
echo '{"type":"step_finish","part":{"tokens":{"input":50,"output":10}}}'
`)
	e := NewOpenCodeExecutor(OpenCodeConfig{Path: stub})

	sr, err := e.Stream(context.Background(), "hi", "")
	require.NoError(t, err)

	content, _, usage, err := CollectEvents(sr)
	require.NoError(t, err)
	require.Equal(t, "Hello from opencode", content)
	require.NotNil(t, usage)
	require.Equal(t, 50, usage.InputTokens)
	require.Equal(t, 10, usage.OutputTokens)
}

func TestOpenCodeStream_ErrorEventTerminatesSequence(t *testing.T) {
	stub := writeStub(t, `
echo '{"type":"text","part":{"text":"partial"}}'
echo '{"type":"error","error":{"name":"ProviderAuthError","data":{"message":"invalid api key"}}}'
echo '{"type":"text","part":{"text":"after error"}}'
`)
	e := NewOpenCodeExecutor(OpenCodeConfig{Path: stub})

	sr, err := e.Stream(context.Background(), "hi", "")
	require.NoError(t, err)
	defer sr.Close()

	var events []*Event
	for {
		ev, recvErr := sr.Recv()
		if recvErr != nil {
			break
		}
		events = append(events, ev)
	}

	// Error 之后不再有任何事件（包括 Completion）
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, EventError, last.Kind)
	require.ErrorContains(t, last.Err, "invalid api key")
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, EventTextDelta, ev.Kind)
	}
}

func TestOpenCodeGenerate_MatchesStreamContent(t *testing.T) {
	script := `
echo '{"type":"text","part":{"text":"same "}}'
echo '{"type":"text","part":{"text":"content"}}'
echo '{"type":"step_finish","part":{"tokens":{"input":5,"output":2}}}'
`
	stub := writeStub(t, script)
	e := NewOpenCodeExecutor(OpenCodeConfig{Path: stub})

	resp, err := e.Generate(context.Background(), "hi", "")
	require.NoError(t, err)

	sr, err := e.Stream(context.Background(), "hi", "")
	require.NoError(t, err)
	content, _, _, err := CollectEvents(sr)
	require.NoError(t, err)

	require.Equal(t, content, resp.Content)
	require.Equal(t, "same content", resp.Content)
}

func TestOpenCodeGenerate_ErrorDiscardsPartialContent(t *testing.T) {
	stub := writeStub(t, `
echo '{"type":"text","part":{"text":"partial"}}'
echo '{"type":"error","error":{"data":{"message":"backend blew up"}}}'
`)
	e := NewOpenCodeExecutor(OpenCodeConfig{Path: stub})

	_, err := e.Generate(context.Background(), "hi", "")
	require.ErrorContains(t, err, "backend blew up")
}
