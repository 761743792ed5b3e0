package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"doc-extractor/internal/kv"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ExtractPairs(ctx context.Context, text string) ([]kv.KeyValue, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]kv.KeyValue), args.Error(1)
}

func (m *MockClient) ChatAnswer(ctx context.Context, query string, docs []DocumentContext) (string, error) {
	args := m.Called(ctx, query, docs)
	return args.String(0), args.Error(1)
}

func (m *MockClient) Method() string {
	args := m.Called()
	return args.String(0)
}

// MockCompleter is a mock implementation of Completer using testify/mock.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

func (m *MockCompleter) Name() string {
	args := m.Called()
	return args.String(0)
}
