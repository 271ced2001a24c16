// Package sibilatest provides a MockAdapter implementing provider.Adapter,
// for testing the generation pipeline and façade without a network call.
package sibilatest

import (
	"context"
	"fmt"

	"github.com/jndiogo/sibila-go/provider"
)

// MockResult is one enqueued outcome for a mocked Generate call: either a
// response or an error.
type MockResult struct {
	Response provider.Response
	Error    error
}

// NewMockResultResponse constructs a result that returns resp.
func NewMockResultResponse(resp provider.Response) MockResult {
	return MockResult{Response: resp}
}

// NewMockResultError constructs a result that returns err.
func NewMockResultError(err error) MockResult {
	return MockResult{Error: err}
}

// MockAdapter is a provider.Adapter that returns enqueued results in order
// and tracks every request it was asked to serve.
type MockAdapter struct {
	ProviderName string
	Model        string
	Context      int
	Strategies   []provider.Strategy

	queued  []MockResult
	tracked []provider.Request
}

// NewMockAdapter constructs a mock adapter. By default it supports every
// constraint strategy a caller might ask for; narrow Strategies to test a
// specific dispatch path.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		ProviderName: "mock",
		Model:        "mock-model",
		Context:      8192,
		Strategies: []provider.Strategy{
			provider.StrategyGrammar,
			provider.StrategyToolCall,
			provider.StrategyResponseFormatSchema,
			provider.StrategyPrefill,
			provider.StrategyPromptOnly,
		},
	}
}

// Enqueue appends results to be returned, in order, by successive Generate
// calls.
func (m *MockAdapter) Enqueue(results ...MockResult) {
	m.queued = append(m.queued, results...)
}

// TrackedRequests returns every request Generate was called with, in call
// order.
func (m *MockAdapter) TrackedRequests() []provider.Request {
	return m.tracked
}

func (m *MockAdapter) Provider() string                         { return m.ProviderName }
func (m *MockAdapter) ModelID() string                          { return m.Model }
func (m *MockAdapter) ContextLength() int                       { return m.Context }
func (m *MockAdapter) SupportedStrategies() []provider.Strategy { return m.Strategies }

func (m *MockAdapter) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	m.tracked = append(m.tracked, req)
	if len(m.queued) == 0 {
		return provider.Response{}, fmt.Errorf("sibilatest: no mocked result queued")
	}
	next := m.queued[0]
	m.queued = m.queued[1:]
	if next.Error != nil {
		return provider.Response{}, next.Error
	}
	return next.Response, nil
}
