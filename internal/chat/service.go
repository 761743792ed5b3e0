package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"doc-extractor/internal/store"
)

const DefaultHistoryLimit = 50

// QueryResult is what a chat query returns to the HTTP layer.
type QueryResult struct {
	Message   store.Message `json:"message"`
	SessionID string        `json:"sessionId"`
	Metadata  Metadata      `json:"metadata"`
}

// Service pairs the orchestrator with transcript persistence.
type Service struct {
	orchestrator *Orchestrator
	sessions     store.ChatStore
	now          func() time.Time
}

func NewService(o *Orchestrator, sessions store.ChatStore) *Service {
	return &Service{orchestrator: o, sessions: sessions, now: time.Now}
}

// Query answers a question and appends the user and assistant messages to the
// session, creating it when needed. An empty sessionID starts a new session.
func (s *Service) Query(ctx context.Context, query, sessionID string) (QueryResult, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	asked := s.now().UTC()
	resp := s.orchestrator.Answer(ctx, query)

	userMsg := store.Message{
		ID:        uuid.New(),
		Role:      store.RoleUser,
		Content:   query,
		Timestamp: asked,
	}
	assistantMsg := store.Message{
		ID:        uuid.New(),
		Role:      store.RoleAssistant,
		Content:   resp.Content,
		Timestamp: s.now().UTC(),
		Metadata: &store.MessageMetadata{
			Query:            query,
			Type:             resp.Type,
			Confidence:       resp.Confidence,
			ProcessingTimeMs: resp.Metadata.ProcessingTimeMs,
			MatchedDocuments: resp.Metadata.MatchedDocuments,
		},
	}
	if !assistantMsg.Timestamp.After(asked) {
		assistantMsg.Timestamp = asked.Add(time.Millisecond)
	}
	if err := s.sessions.AppendMessages(ctx, sessionID, []store.Message{userMsg, assistantMsg}); err != nil {
		return QueryResult{}, fmt.Errorf("save chat session %s: %w", sessionID, err)
	}
	return QueryResult{Message: assistantMsg, SessionID: sessionID, Metadata: resp.Metadata}, nil
}

// History returns the most recent limit messages in chronological order.
// An unknown session has an empty history.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return []store.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chat session %s: %w", sessionID, err)
	}
	msgs := sess.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return msgs, nil
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete chat session %s: %w", sessionID, err)
	}
	return nil
}
