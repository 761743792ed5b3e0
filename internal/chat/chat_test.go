package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"doc-extractor/internal/kv"
	"doc-extractor/internal/llm"
	"doc-extractor/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, s *store.MemoryStore, n int, text string) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.InsertDocument(context.Background(), store.Document{
			Filename:         "blob.png",
			OriginalFilename: "license.png",
			KeyValuePairs:    []kv.KeyValue{{Key: "License Number", Value: "D1234567"}},
			ExtractedText:    text,
		})
		require.NoError(t, err)
	}
}

func TestAnswerNoDocuments(t *testing.T) {
	client := new(llm.MockClient)
	o := NewOrchestrator(store.NewMemory(), client, testLogger())

	resp := o.Answer(context.Background(), "what is my license number?")
	assert.Equal(t, TypeNoDocuments, resp.Type)
	assert.Equal(t, 0.9, resp.Confidence)
	assert.NotEmpty(t, resp.Content)
	client.AssertNotCalled(t, "ChatAnswer", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswerBoundsContext(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, 25, strings.Repeat("é", 1500))

	client := new(llm.MockClient)
	client.On("ChatAnswer", mock.Anything, "license?", mock.MatchedBy(func(docs []llm.DocumentContext) bool {
		if len(docs) != 20 {
			return false
		}
		for _, d := range docs {
			if len([]rune(d.ExtractedText)) != 1000 || d.Filename != "license.png" {
				return false
			}
		}
		return true
	})).Return("Your license number is D1234567.", nil)

	resp := NewOrchestrator(s, client, testLogger()).Answer(context.Background(), "license?")
	assert.Equal(t, TypeAIResponse, resp.Type)
	assert.Equal(t, 0.9, resp.Confidence)
	assert.Equal(t, "Your license number is D1234567.", resp.Content)
	assert.Equal(t, 20, resp.Metadata.MatchedDocuments)
	client.AssertExpectations(t)
}

func TestAnswerDegradesOnProviderError(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, 1, "short")

	client := new(llm.MockClient)
	client.On("Method").Return(llm.MethodOpenAI)
	client.On("ChatAnswer", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("openai: 503 service unavailable"))

	resp := NewOrchestrator(s, client, testLogger()).Answer(context.Background(), "anything")
	assert.Equal(t, TypeError, resp.Type)
	assert.Equal(t, 0.1, resp.Confidence)
	assert.Contains(t, resp.Content, "openai: 503 service unavailable")
}

func TestAnswerDegradesOnStoreError(t *testing.T) {
	docs := new(store.MockStore)
	docs.On("ListRecent", mock.Anything, 20, true).Return(nil, errors.New("pool exhausted"))

	resp := NewOrchestrator(docs, new(llm.MockClient), testLogger()).Answer(context.Background(), "q")
	assert.Equal(t, TypeError, resp.Type)
	assert.Contains(t, resp.Content, "pool exhausted")
}

func TestNewSessionID(t *testing.T) {
	re := regexp.MustCompile(`^session_\d{13}_[0-9a-f]{9}$`)
	a, b := NewSessionID(), NewSessionID()
	assert.Regexp(t, re, a)
	assert.NotEqual(t, a, b)
}

func TestServiceQueryAppendsTranscript(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s, 1, "License Number: D1234567")
	svc := NewService(NewOrchestrator(s, llm.NewStubClient(), testLogger()), s)

	first, err := svc.Query(ctx, "what is my license number?", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.SessionID, "session_"))
	assert.Equal(t, store.RoleAssistant, first.Message.Role)
	assert.Equal(t, "Based on your documents: **D1234567**", first.Message.Content)
	require.NotNil(t, first.Message.Metadata)
	assert.Equal(t, TypeAIResponse, first.Message.Metadata.Type)

	second, err := svc.Query(ctx, "and the weather?", first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	history, err := svc.History(ctx, first.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, store.RoleUser, history[0].Role)
	assert.Equal(t, "what is my license number?", history[0].Content)
	assert.Equal(t, store.RoleAssistant, history[3].Role)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
	}

	last, err := svc.History(ctx, first.SessionID, 2)
	require.NoError(t, err)
	assert.Equal(t, history[2:], last)

	require.NoError(t, svc.Clear(ctx, first.SessionID))
	history, err = svc.History(ctx, first.SessionID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestServiceQueryStoreFailure(t *testing.T) {
	s := new(store.MockStore)
	s.On("ListRecent", mock.Anything, 20, true).Return([]store.Document{}, nil)
	s.On("AppendMessages", mock.Anything, "session_1", mock.Anything).Return(errors.New("disk full"))

	svc := NewService(NewOrchestrator(s, new(llm.MockClient), testLogger()), s)
	_, err := svc.Query(context.Background(), "q", "session_1")
	assert.ErrorContains(t, err, "disk full")
}
