package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCodeBuildArgs(t *testing.T) {
	e := NewOpenCodeExecutor(OpenCodeConfig{})

	args := e.buildArgs("hello", "")
	require.Equal(t, []string{
		"run", "hello",
		"--model", DefaultOpenCodeModel,
		"--format", "json",
	}, args)

	args = e.buildArgs("hello", "openai/gpt-5.2")
	require.Contains(t, args, "openai/gpt-5.2")
	require.NotContains(t, args, DefaultOpenCodeModel)
}

func TestOpenCodeEventFromLine_Text(t *testing.T) {
	ev := opencodeEventFromLine(`{"type":"text","part":{"text":"Hello from opencode"}}`)
	require.NotNil(t, ev)
	require.Equal(t, EventTextDelta, ev.Kind)
	require.Equal(t, "Hello from opencode", ev.Text)
}

func TestOpenCodeEventFromLine_EmptyTextSkipped(t *testing.T) {
	require.Nil(t, opencodeEventFromLine(`{"type":"text","part":{"text":""}}`))
}

func TestOpenCodeEventFromLine_StepFinish(t *testing.T) {
	ev := opencodeEventFromLine(`{"type":"step_finish","part":{"tokens":{"input":50,"output":10}}}`)
	require.NotNil(t, ev)
	require.Equal(t, EventCompletion, ev.Kind)
	require.NotNil(t, ev.Usage)
	require.Equal(t, 50, ev.Usage.InputTokens)
	require.Equal(t, 10, ev.Usage.OutputTokens)
}

func TestOpenCodeEventFromLine_StepFinishWithoutTokens(t *testing.T) {
	ev := opencodeEventFromLine(`{"type":"step_finish","part":{}}`)
	require.NotNil(t, ev)
	require.Equal(t, EventCompletion, ev.Kind)
	require.Nil(t, ev.Usage)
}

func TestOpenCodeEventFromLine_Error(t *testing.T) {
	ev := opencodeEventFromLine(`{"type":"error","error":{"name":"ProviderAuthError","data":{"message":"invalid api key"}}}`)
	require.NotNil(t, ev)
	require.Equal(t, EventError, ev.Kind)
	require.ErrorContains(t, ev.Err, "invalid api key")
}

func TestOpenCodeEventFromLine_ErrorFallsBackToName(t *testing.T) {
	ev := opencodeEventFromLine(`{"type":"error","error":{"name":"ProviderAuthError"}}`)
	require.NotNil(t, ev)
	require.ErrorContains(t, ev.Err, "ProviderAuthError")
}

func TestOpenCodeEventFromLine_SkipsStepStartAndUnknown(t *testing.T) {
	require.Nil(t, opencodeEventFromLine(`{"type":"step_start"}`))
	require.Nil(t, opencodeEventFromLine(`{"type":"tool_use","part":{}}`))
	require.Nil(t, opencodeEventFromLine(`not json at all`))
}
