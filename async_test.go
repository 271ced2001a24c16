package sibila

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/provider"
	"github.com/jndiogo/sibila-go/sibilatest"
)

func TestRunAsyncReturnsResult(t *testing.T) {
	adapter := sibilatest.NewMockAdapter()
	adapter.Strategies = []provider.Strategy{provider.StrategyPromptOnly}
	adapter.Enqueue(sibilatest.NewMockResultResponse(provider.Response{
		Text: "hello there", RawFinish: "stop",
	}))

	thread := NewThread(NewInput("hi"))
	gen := RunAsync(context.Background(), Deps{Adapter: adapter}, thread, GenConf{Format: FormatText})

	require.True(t, gen.Next())
	require.NoError(t, gen.Err())
	result := gen.Result()
	require.NotNil(t, result)
	assert.Equal(t, "hello there", result.Text)
	assert.True(t, result.Finish.IsOK())
}

func TestRunAsyncPropagatesError(t *testing.T) {
	thread := NewThread()
	gen := RunAsync(context.Background(), Deps{Adapter: sibilatest.NewMockAdapter()}, thread, GenConf{})

	assert.False(t, gen.Next())
	assert.Error(t, gen.Err())
}
