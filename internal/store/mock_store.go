package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) ListRecent(ctx context.Context, limit int, full bool) ([]Document, error) {
	args := m.Called(ctx, limit, full)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockStore) DeleteDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) SearchByFilename(ctx context.Context, pattern string, limit int) ([]Document, error) {
	args := m.Called(ctx, pattern, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockStore) InsertEntries(ctx context.Context, entries []IndexEntry) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) DeleteEntriesByDocument(ctx context.Context, docID uuid.UUID) (int, error) {
	args := m.Called(ctx, docID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) FindEntriesByKey(ctx context.Context, key string, limit int) ([]IndexEntry, error) {
	args := m.Called(ctx, key, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]IndexEntry), args.Error(1)
}

func (m *MockStore) FindEntriesByNormalizedKey(ctx context.Context, fragment string, limit int) ([]IndexEntry, error) {
	args := m.Called(ctx, fragment, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]IndexEntry), args.Error(1)
}

func (m *MockStore) KeyStats(ctx context.Context, limit int) ([]KeyStat, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]KeyStat), args.Error(1)
}

func (m *MockStore) AppendMessages(ctx context.Context, sessionID string, msgs []Message) error {
	args := m.Called(ctx, sessionID, msgs)
	return args.Error(0)
}

func (m *MockStore) GetSession(ctx context.Context, sessionID string) (ChatSession, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(ChatSession), args.Error(1)
}

func (m *MockStore) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
