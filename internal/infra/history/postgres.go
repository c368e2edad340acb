package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"dictation/internal/domain"
)

const createTable = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	raw_text    TEXT NOT NULL,
	text        TEXT NOT NULL,
	source      TEXT NOT NULL,
	reasoned    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL
)`

const insertEntry = `
INSERT INTO transcriptions (id, session_id, raw_text, text, source, reasoned, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// PostgresStore writes entries to the transcriptions table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with the lib/pq driver and makes sure the table
// exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("creating transcriptions table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, e domain.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, insertEntry,
		e.ID, e.SessionID, e.RawText, e.Text, string(e.Source), e.Reasoned, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting transcription: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
