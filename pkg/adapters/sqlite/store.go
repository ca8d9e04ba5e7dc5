// Package sqlite persists requests and characters in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/forge/pkg/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS characters (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_characters_owner ON characters(owner_id);

CREATE TABLE IF NOT EXISTS records (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	character_id   TEXT NOT NULL,
	character_name TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL,
	subcategory    TEXT NOT NULL,
	item           TEXT NOT NULL,
	mode           TEXT NOT NULL,
	resources      TEXT NOT NULL DEFAULT '[]',
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_entity
	ON records(owner_id, character_id, category, item, created_at);
`

// RecordStore implements ports.RecordStore on SQLite.
type RecordStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (or opens) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*RecordStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &RecordStore{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// CreateRecord validates and inserts a record.
func (s *RecordStore) CreateRecord(ctx context.Context, record domain.Record) (string, error) {
	if err := record.Validate(); err != nil {
		return "", err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	resources := record.Resources
	if resources == nil {
		resources = []domain.ResourceLine{}
	}
	raw, err := json.Marshal(resources)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode resources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, owner_id, character_id, character_name, category, subcategory, item, mode, resources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.OwnerID, record.CharacterID, record.CharacterName,
		record.Category, record.Subcategory, record.Item, string(record.Mode),
		string(raw), record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: insert record: %w", err)
	}
	return record.ID, nil
}

// FindRecentDuplicate reports whether a record with key was created within window.
func (s *RecordStore) FindRecentDuplicate(ctx context.Context, key domain.EntityKey, window time.Duration) (bool, error) {
	cutoff := s.now().Add(-window).UnixMilli()
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM records
		WHERE owner_id = ? AND character_id = ? AND category = ? AND item = ? AND created_at >= ?`,
		key.OwnerID, key.CharacterID, key.Category, key.Item, cutoff,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: duplicate check: %w", err)
	}
	return n > 0, nil
}

// CharactersFor lists an owner's characters in registration order.
func (s *RecordStore) CharactersFor(ctx context.Context, ownerID string) ([]domain.Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name FROM characters WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list characters: %w", err)
	}
	defer rows.Close()

	var out []domain.Character
	for rows.Next() {
		var c domain.Character
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scan character: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RegisterCharacter adds a character for an owner.
func (s *RecordStore) RegisterCharacter(ctx context.Context, ownerID, name string) (domain.Character, error) {
	if ownerID == "" {
		return domain.Character{}, fmt.Errorf("%w: owner_id", domain.ErrMissingField)
	}
	if name == "" {
		return domain.Character{}, fmt.Errorf("%w: name", domain.ErrMissingField)
	}
	c := domain.Character{ID: uuid.NewString(), OwnerID: ownerID, Name: name}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO characters (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, s.now().UnixMilli())
	if err != nil {
		return domain.Character{}, fmt.Errorf("sqlite: insert character: %w", err)
	}
	return c, nil
}

// RecentRecords returns an owner's newest records first. An empty owner lists everyone's.
func (s *RecordStore) RecentRecords(ctx context.Context, ownerID string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, owner_id, character_id, character_name, category, subcategory, item, mode, resources, created_at
		FROM records`
	args := []any{}
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list records: %w", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var (
			r       domain.Record
			mode    string
			raw     string
			created int64
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.CharacterID, &r.CharacterName,
			&r.Category, &r.Subcategory, &r.Item, &mode, &raw, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan record: %w", err)
		}
		r.Mode = domain.CommitMode(mode)
		r.CreatedAt = time.UnixMilli(created)
		if err := json.Unmarshal([]byte(raw), &r.Resources); err != nil {
			return nil, fmt.Errorf("sqlite: decode resources of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
