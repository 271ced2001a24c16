package sibila

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/provider"
	"github.com/jndiogo/sibila-go/sibilatest"
)

func personSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []any{"name"},
	}
}

func TestRunTextBypassesJSONCleanup(t *testing.T) {
	adapter := sibilatest.NewMockAdapter()
	adapter.Strategies = []provider.Strategy{provider.StrategyPromptOnly}
	adapter.Enqueue(sibilatest.NewMockResultResponse(provider.Response{
		Text: "plain text reply", RawFinish: "stop", InputTokens: 3, OutputTokens: 4,
	}))

	thread := NewThread(NewInput("say something"))
	result, err := Run(context.Background(), Deps{Adapter: adapter}, thread, GenConf{Format: FormatText})
	require.NoError(t, err)
	assert.Equal(t, "plain text reply", result.Text)
	assert.True(t, result.Finish.IsOK())
	assert.Nil(t, result.Parsed)
}

func TestRunJSONParsesAndValidates(t *testing.T) {
	adapter := sibilatest.NewMockAdapter()
	adapter.Strategies = []provider.Strategy{provider.StrategyPromptOnly}
	adapter.Enqueue(sibilatest.NewMockResultResponse(provider.Response{
		Text: "```json\n{\"name\": \"Ada\"}\n```", RawFinish: "stop",
	}))

	thread := NewThread(NewInput("give me a person"))
	s := JSONSchema(personSchema())
	gc := GenConf{Format: FormatJSON, Schema: &s}

	result, err := Run(context.Background(), Deps{Adapter: adapter}, thread, gc)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.True(t, result.Finish.IsOK())
	assert.Equal(t, "Ada", result.Parsed["name"])
}

func TestRunJSONSchemaValidationFailure(t *testing.T) {
	adapter := sibilatest.NewMockAdapter()
	adapter.Strategies = []provider.Strategy{provider.StrategyPromptOnly}
	adapter.Enqueue(sibilatest.NewMockResultResponse(provider.Response{
		Text: `{"age": 30}`, RawFinish: "stop",
	}))

	thread := NewThread(NewInput("give me a person"))
	s := JSONSchema(personSchema())
	gc := GenConf{Format: FormatJSON, Schema: &s}

	result, err := Run(context.Background(), Deps{Adapter: adapter}, thread, gc)
	require.NoError(t, err)
	assert.Equal(t, FinishSchemaValueErr, result.Finish)
	assert.Error(t, result.Err)
}

func TestRunJSONParseFailureSurfacesOnResult(t *testing.T) {
	adapter := sibilatest.NewMockAdapter()
	adapter.Strategies = []provider.Strategy{provider.StrategyPromptOnly}
	adapter.Enqueue(sibilatest.NewMockResultResponse(provider.Response{
		Text: "not json at all {{{", RawFinish: "stop",
	}))

	thread := NewThread(NewInput("give me a person"))
	result, err := Run(context.Background(), Deps{Adapter: adapter}, thread, GenConf{Format: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, FinishJSONParseError, result.Finish)
	assert.Error(t, result.Err)
}

func TestRunRejectsEmptyThread(t *testing.T) {
	adapter := sibilatest.NewMockAdapter()
	_, err := Run(context.Background(), Deps{Adapter: adapter}, NewThread(), GenConf{})
	require.Error(t, err)
	var sibErr *Error
	require.ErrorAs(t, err, &sibErr)
	assert.Equal(t, ErrInvalidInput, sibErr.Kind)
}

func TestRunSkipsJSONInstructionWhenAlreadyPresent(t *testing.T) {
	adapter := sibilatest.NewMockAdapter()
	adapter.Strategies = []provider.Strategy{provider.StrategyPromptOnly}
	adapter.Enqueue(sibilatest.NewMockResultResponse(provider.Response{Text: "{}", RawFinish: "stop"}))

	thread := NewThread(NewInput("please answer in JSON already"))
	_, err := Run(context.Background(), Deps{Adapter: adapter}, thread, GenConf{Format: FormatJSON})
	require.NoError(t, err)

	reqs := adapter.TrackedRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "please answer in JSON already", reqs[0].Messages[0].Text)
}
