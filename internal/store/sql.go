package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lawnchairsociety/questbridge/internal/quest"
)

// SQLStore persists quest instances as JSON documents in a SQL database.
// Engine-private watcher handles are process-local and never serialized;
// the stored record is exactly the quest.Instance struct.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens or creates the SQLite database at the given path.
func OpenSQLite(path string) (*SQLStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return Open(DialectSQLite, path)
}

// OpenPostgres connects to the PostgreSQL database described by the DSN.
func OpenPostgres(dsn string) (*SQLStore, error) {
	return Open(DialectPostgres, dsn)
}

// Open opens a SQL-backed store for the given dialect and data source.
func Open(dialectType DialectType, dataSource string) (*SQLStore, error) {
	dialect := NewDialect(dialectType)

	db, err := sql.Open(dialect.DriverName(), dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// migrate creates the schema if it doesn't exist.
func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS quest_instances (
		id TEXT PRIMARY KEY,
		player_name TEXT NOT NULL,
		state TEXT NOT NULL,
		record TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	return err
}

// Save writes the instance, replacing any existing record with the same id.
func (s *SQLStore) Save(q *quest.Instance) error {
	record, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to encode quest %s: %w", q.ID, err)
	}

	query := fmt.Sprintf(
		"INSERT INTO quest_instances (id, player_name, state, record, updated_at) VALUES (%s, %s, %s, %s, %s)%s",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
		s.dialect.Placeholder(4), s.dialect.Placeholder(5),
		s.dialect.UpsertClause("id"),
	)
	_, err = s.db.Exec(query, q.ID, q.PlayerName, string(q.State), string(record), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save quest %s: %w", q.ID, err)
	}
	return nil
}

// Get returns the instance decoded from its stored record, or false if absent.
func (s *SQLStore) Get(id string) (*quest.Instance, bool, error) {
	query := fmt.Sprintf("SELECT record FROM quest_instances WHERE id = %s", s.dialect.Placeholder(1))

	var record string
	err := s.db.QueryRow(query, id).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load quest %s: %w", id, err)
	}

	q, err := decodeInstance(record)
	if err != nil {
		return nil, false, err
	}
	return q, true, nil
}

// List returns all stored instances.
func (s *SQLStore) List() ([]*quest.Instance, error) {
	rows, err := s.db.Query("SELECT record FROM quest_instances")
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	defer rows.Close()

	var out []*quest.Instance
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan quest row: %w", err)
		}
		q, err := decodeInstance(record)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func decodeInstance(record string) (*quest.Instance, error) {
	var q quest.Instance
	if err := json.Unmarshal([]byte(record), &q); err != nil {
		return nil, fmt.Errorf("failed to decode quest record: %w", err)
	}
	return &q, nil
}
