package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	touched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS session_messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS session_messages_session ON session_messages (session_id, id);
`

// SQLStore persists conversations through database/sql. Statements are built with squirrel
// using question-mark placeholders, which SQLite accepts.
type SQLStore struct {
	db          *sql.DB
	ttl         time.Duration
	maxMessages int
	now         func() time.Time
}

var _ ports.SessionStore = (*SQLStore)(nil)

// OpenSQLStore opens driver/dsn and creates the schema.
func OpenSQLStore(ctx context.Context, driver, dsn string, ttl time.Duration, maxMessages int) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	// A shared in-memory SQLite database lives only as long as one of its connections.
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(ctx, db, ttl, maxMessages)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wires an existing sql.DB and creates the schema.
func NewSQLStore(ctx context.Context, db *sql.DB, ttl time.Duration, maxMessages int) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db, ttl: ttl, maxMessages: maxMessages, now: time.Now}, nil
}

// Close releases the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Get returns the history of a live session.
func (s *SQLStore) Get(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var touched int64
	err := sq.Select("touched_at").From("sessions").
		Where(sq.Eq{"session_id": sessionID}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&touched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(time.Unix(0, touched)) > s.ttl {
		return nil, nil
	}

	rows, err := sq.Select("role", "content").From("session_messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("id").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}
	return messages, nil
}

// Append stores messages and trims the session to the newest turns, keeping its system message.
func (s *SQLStore) Append(ctx context.Context, sessionID string, messages ...domain.Message) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = sq.Insert("sessions").Columns("session_id", "touched_at").
		Values(sessionID, s.now().UnixNano()).
		Suffix("ON CONFLICT (session_id) DO UPDATE SET touched_at = excluded.touched_at").
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if len(messages) > 0 {
		insert := sq.Insert("session_messages").Columns("session_id", "role", "content")
		for _, m := range messages {
			insert = insert.Values(sessionID, string(m.Role), m.Content)
		}
		if _, err = insert.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
	}

	if s.maxMessages > 0 {
		if err = s.trim(ctx, tx, sessionID); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// trim deletes all but the newest messages of a session, keeping its leading system message.
func (s *SQLStore) trim(ctx context.Context, tx *sql.Tx, sessionID string) error {
	rows, err := sq.Select("id", "role").From("session_messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("id").
		RunWith(tx).QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("query message ids: %w", err)
	}
	var (
		ids   []int64
		first string
	)
	for rows.Next() {
		var (
			id   int64
			role string
		)
		if err := rows.Scan(&id, &role); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan message id: %w", err)
		}
		if len(ids) == 0 {
			first = role
		}
		ids = append(ids, id)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return fmt.Errorf("close rows: %w", closeErr)
	}

	if len(ids) <= s.maxMessages {
		return nil
	}
	keep := s.maxMessages
	candidates := ids
	if first == string(domain.RoleSystem) {
		keep--
		candidates = ids[1:]
	}
	drop := candidates[:len(candidates)-keep]
	if _, err := sq.Delete("session_messages").Where(sq.Eq{"id": drop}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("trim messages: %w", err)
	}
	return nil
}

// Evict deletes sessions idle since before now minus the TTL.
func (s *SQLStore) Evict(ctx context.Context, now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-s.ttl).UnixNano()

	_, err := sq.Delete("session_messages").
		Where(sq.Expr("session_id IN (SELECT session_id FROM sessions WHERE touched_at < ?)", cutoff)).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	res, err := sq.Delete("sessions").Where(sq.Lt{"touched_at": cutoff}).RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
