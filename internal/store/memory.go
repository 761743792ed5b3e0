package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"doc-extractor/internal/kv"
)

// MemoryStore keeps everything in process. It backs STORE_PROVIDER=memory and the
// end-to-end tests; data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     []Document
	entries  []memoryEntry
	sessions map[string]*ChatSession
	seq      int64
	now      func() time.Time
}

type memoryEntry struct {
	IndexEntry
	seq int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*ChatSession),
		now:      time.Now,
	}
}

func (s *MemoryStore) InsertDocument(_ context.Context, doc Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ID = uuid.New()
	doc.CreatedAt = s.now()
	doc.KeyValuePairs = append([]kv.KeyValue(nil), doc.KeyValuePairs...)
	s.docs = append(s.docs, doc)
	return doc, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id uuid.UUID) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int, full bool) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Document
	for i := len(s.docs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		d := s.docs[i]
		if !full {
			d.ExtractedText = ""
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id uuid.UUID) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.docs {
		if d.ID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

func (s *MemoryStore) SearchByFilename(_ context.Context, pattern string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(pattern)
	var out []Document
	for i := len(s.docs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		d := s.docs[i]
		if strings.Contains(strings.ToLower(d.Filename), needle) ||
			strings.Contains(strings.ToLower(d.OriginalFilename), needle) {
			d.ExtractedText = ""
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertEntries(_ context.Context, entries []IndexEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		s.seq++
		s.entries = append(s.entries, memoryEntry{IndexEntry: e, seq: s.seq})
	}
	return len(entries), nil
}

func (s *MemoryStore) DeleteEntriesByDocument(_ context.Context, docID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.DocumentID == docID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *MemoryStore) FindEntriesByKey(_ context.Context, key string, limit int) ([]IndexEntry, error) {
	return s.findEntries(limit, func(e IndexEntry) bool { return e.Key == key }), nil
}

func (s *MemoryStore) FindEntriesByNormalizedKey(_ context.Context, fragment string, limit int) ([]IndexEntry, error) {
	fragment = strings.ToLower(fragment)
	return s.findEntries(limit, func(e IndexEntry) bool {
		return strings.Contains(strings.ToLower(e.NormalizedKey), fragment)
	}), nil
}

// findEntries returns matches newest first; entries sharing a timestamp keep
// reverse insertion order.
func (s *MemoryStore) findEntries(limit int, match func(IndexEntry) bool) []IndexEntry {
	s.mu.RLock()
	var matched []memoryEntry
	for _, e := range s.entries {
		if match(e.IndexEntry) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].ExtractedAt.Equal(matched[j].ExtractedAt) {
			return matched[i].ExtractedAt.After(matched[j].ExtractedAt)
		}
		return matched[i].seq > matched[j].seq
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]IndexEntry, len(matched))
	for i, e := range matched {
		out[i] = e.IndexEntry
	}
	return out
}

func (s *MemoryStore) KeyStats(_ context.Context, limit int) ([]KeyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		stat   KeyStat
		values map[string]struct{}
	}
	byKey := make(map[string]*acc)
	for _, e := range s.entries {
		a, ok := byKey[e.Key]
		if !ok {
			a = &acc{stat: KeyStat{Key: e.Key}, values: make(map[string]struct{})}
			byKey[e.Key] = a
		}
		a.stat.Count++
		a.values[kv.Canonical(e.Value)] = struct{}{}
		if e.ExtractedAt.After(a.stat.LastSeen) {
			a.stat.LastSeen = e.ExtractedAt
		}
	}

	stats := make([]KeyStat, 0, len(byKey))
	for _, a := range byKey {
		a.stat.UniqueValueCount = len(a.values)
		stats = append(stats, a.stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Key < stats[j].Key
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

func (s *MemoryStore) AppendMessages(_ context.Context, sessionID string, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &ChatSession{SessionID: sessionID, CreatedAt: now}
		s.sessions[sessionID] = sess
	}
	sess.Messages = append(sess.Messages, msgs...)
	sess.UpdatedAt = now
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ChatSession{}, ErrNotFound
	}
	out := *sess
	out.Messages = append([]Message(nil), sess.Messages...)
	return out, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
