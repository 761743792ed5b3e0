package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"doc-extractor/internal/kv"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const (
	// migrationLockID serializes schema setup across concurrently starting gateways.
	migrationLockID = 482019733
	migrateTimeout  = time.Minute
)

// execer is the slice of *sql.Conn the migration needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory locks belong to a session, so lock, DDL and unlock share one connection.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer conn.Close()
	return migrateSchema(ctx, conn)
}

// migrateSchema blocks until it holds the migration lock, so every instance
// returns only after the tables exist.
func migrateSchema(ctx context.Context, c execer) error {
	if _, err := c.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = c.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	for _, stmt := range schemaStatements {
		if _, err := c.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		key_value_pairs JSONB NOT NULL DEFAULT '[]',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		extracted_text TEXT NOT NULL DEFAULT '',
		processing_method TEXT NOT NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT '',
		processing_time_ms BIGINT NOT NULL DEFAULT 0,
		extracted_at TIMESTAMPTZ NOT NULL,
		text_source TEXT NOT NULL DEFAULT '',
		warnings TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (created_at DESC);`,
	// No foreign key: the index is denormalized and is cleaned up explicitly
	// after the document is deleted.
	`CREATE TABLE IF NOT EXISTS key_value_index (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		key TEXT NOT NULL,
		normalized_key TEXT NOT NULL,
		value JSONB,
		value_type TEXT NOT NULL,
		extracted_at TIMESTAMPTZ NOT NULL,
		seq BIGSERIAL
	);`,
	`CREATE INDEX IF NOT EXISTS key_value_index_document_idx ON key_value_index (document_id);`,
	`CREATE INDEX IF NOT EXISTS key_value_index_key_idx ON key_value_index (key, extracted_at DESC);`,
	`CREATE INDEX IF NOT EXISTS key_value_index_normalized_idx ON key_value_index (normalized_key);`,
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		messages JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
}

const documentColumns = `id, filename, original_filename, key_value_pairs, confidence, %s, processing_method,
	file_size, mime_type, processing_time_ms, extracted_at, text_source, warnings, created_at`

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	doc.ID = uuid.New()
	doc.CreatedAt = time.Now().UTC()
	pairs, err := json.Marshal(pairsOrEmpty(doc.KeyValuePairs))
	if err != nil {
		return Document{}, fmt.Errorf("marshal key value pairs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents(id, filename, original_filename, key_value_pairs, confidence, extracted_text,
			processing_method, file_size, mime_type, processing_time_ms, extracted_at, text_source, warnings, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		doc.ID, doc.Filename, doc.OriginalFilename, pairs, doc.Confidence, doc.ExtractedText,
		string(doc.ProcessingMethod), doc.Metadata.FileSize, doc.Metadata.MimeType, doc.Metadata.ProcessingTimeMs,
		doc.Metadata.ExtractedAt, doc.Metadata.TextSource, pq.Array(pqStringArray(doc.Metadata.Warnings)), doc.CreatedAt)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fmt.Sprintf(documentColumns, "extracted_text")+` FROM documents WHERE id=$1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int, full bool) ([]Document, error) {
	text := "''"
	if full {
		text = "extracted_text"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fmt.Sprintf(documentColumns, text)+` FROM documents ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM documents WHERE id=$1 RETURNING `+fmt.Sprintf(documentColumns, "''"), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) SearchByFilename(ctx context.Context, pattern string, limit int) ([]Document, error) {
	like := "%" + escapeLike(pattern) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fmt.Sprintf(documentColumns, "''")+`
		FROM documents
		WHERE filename ILIKE $1 OR original_filename ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2`, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *PostgresStore) InsertEntries(ctx context.Context, entries []IndexEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO key_value_index(id, document_id, filename, original_filename, key, normalized_key, value, value_type, extracted_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return 0, fmt.Errorf("marshal value for key %q: %w", e.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.DocumentID, e.Filename, e.OriginalFilename,
			e.Key, e.NormalizedKey, value, string(e.ValueType), e.ExtractedAt); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *PostgresStore) DeleteEntriesByDocument(ctx context.Context, docID uuid.UUID) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM key_value_index WHERE document_id=$1`, docID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

const entryColumns = `id, document_id, filename, original_filename, key, normalized_key, value, value_type, extracted_at`

func (s *PostgresStore) FindEntriesByKey(ctx context.Context, key string, limit int) ([]IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM key_value_index
		WHERE key = $1
		ORDER BY extracted_at DESC, seq DESC
		LIMIT $2`, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) FindEntriesByNormalizedKey(ctx context.Context, fragment string, limit int) ([]IndexEntry, error) {
	// strpos avoids treating '_' in normalized keys as a LIKE wildcard.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM key_value_index
		WHERE strpos(lower(normalized_key), lower($1)) > 0
		ORDER BY extracted_at DESC, seq DESC
		LIMIT $2`, fragment, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) KeyStats(ctx context.Context, limit int) ([]KeyStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, COUNT(*), COUNT(DISTINCT value::text), MAX(extracted_at)
		FROM key_value_index
		GROUP BY key
		ORDER BY COUNT(*) DESC, key ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeyStat
	for rows.Next() {
		var st KeyStat
		if err := rows.Scan(&st.Key, &st.Count, &st.UniqueValueCount, &st.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendMessages(ctx context.Context, sessionID string, msgs []Message) error {
	body, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions(session_id, messages, created_at, updated_at)
		VALUES($1, $2, now(), now())
		ON CONFLICT (session_id) DO UPDATE
		SET messages = chat_sessions.messages || excluded.messages, updated_at = now()`,
		sessionID, body)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (ChatSession, error) {
	var (
		sess ChatSession
		raw  []byte
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, messages, created_at, updated_at FROM chat_sessions WHERE session_id=$1`, sessionID)
	if err := row.Scan(&sess.SessionID, &raw, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ChatSession{}, ErrNotFound
		}
		return ChatSession{}, fmt.Errorf("failed to get chat session %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(raw, &sess.Messages); err != nil {
		return ChatSession{}, fmt.Errorf("decode chat messages: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE session_id=$1`, sessionID)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		d        Document
		pairs    []byte
		method   string
		warnings []string
	)
	if err := row.Scan(&d.ID, &d.Filename, &d.OriginalFilename, &pairs, &d.Confidence, &d.ExtractedText,
		&method, &d.Metadata.FileSize, &d.Metadata.MimeType, &d.Metadata.ProcessingTimeMs,
		&d.Metadata.ExtractedAt, &d.Metadata.TextSource, pq.Array(&warnings), &d.CreatedAt); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(pairs, &d.KeyValuePairs); err != nil {
		return Document{}, fmt.Errorf("decode key value pairs: %w", err)
	}
	d.ProcessingMethod = ProcessingMethod(method)
	d.Metadata.Warnings = warnings
	return d, nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]IndexEntry, error) {
	var out []IndexEntry
	for rows.Next() {
		var (
			e         IndexEntry
			raw       []byte
			valueType string
		)
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Filename, &e.OriginalFilename,
			&e.Key, &e.NormalizedKey, &raw, &valueType, &e.ExtractedAt); err != nil {
			return nil, err
		}
		e.ValueType = kv.ValueType(valueType)
		if len(raw) > 0 {
			v, err := kv.Decode(e.ValueType, raw)
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", e.ID, err)
			}
			e.Value = v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func pairsOrEmpty(pairs []kv.KeyValue) []kv.KeyValue {
	if pairs == nil {
		return []kv.KeyValue{}
	}
	return pairs
}

func pqStringArray(items []string) []string {
	if len(items) == 0 {
		return []string{}
	}
	return items
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
