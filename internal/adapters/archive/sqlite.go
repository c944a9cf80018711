// Package archive provides ports.TranscriptArchive adapters.
// SQLiteArchive keeps entries across sessions in a single database file.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pkg/errors"

	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
)

// SQLiteArchive implements ports.TranscriptArchive with SQLite persistence.
type SQLiteArchive struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteArchive opens (or creates) the archive database at path.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	if path == "" {
		path = "./data/transcript.db"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating archive directory")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	a := &SQLiteArchive{db: db}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing schema")
	}
	return a, nil
}

// initSchema creates the necessary tables.
func (a *SQLiteArchive) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		submission_id TEXT,
		role TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT,
		image_name TEXT,
		items BLOB,
		item BLOB,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_id ON entries(session_id);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Record stores one finalized entry. The image preview is not stored, only its name.
func (a *SQLiteArchive) Record(ctx context.Context, sessionID string, e entities.ChatEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	items, err := encodeJSON(e.Items)
	if err != nil {
		return errors.Wrap(err, "encoding items")
	}
	item, err := encodeJSON(e.Item)
	if err != nil {
		return errors.Wrap(err, "encoding item")
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entries (id, session_id, submission_id, role, kind, text, image_name, items, item, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		sessionID,
		e.SubmissionID,
		string(e.Role),
		string(e.Kind),
		e.Text,
		e.ImageName,
		items,
		item,
		e.CreatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "inserting entry")
	}
	return nil
}

// Recent returns up to limit entries, oldest first.
func (a *SQLiteArchive) Recent(ctx context.Context, limit int) ([]entities.ChatEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, submission_id, role, kind, text, image_name, items, item, created_at
		FROM entries
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}
	defer rows.Close()

	var out []entities.ChatEntry
	for rows.Next() {
		var (
			e                       entities.ChatEntry
			role, kind              string
			submission, text, image sql.NullString
			itemsJSON, itemJSON     []byte
			createdAt               time.Time
		)
		if err := rows.Scan(&e.ID, &submission, &role, &kind, &text, &image, &itemsJSON, &itemJSON, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		e.SubmissionID = submission.String
		e.Role = entities.Role(role)
		e.Kind = entities.EntryKind(kind)
		e.Text = text.String
		e.ImageName = image.String
		e.CreatedAt = createdAt
		if len(itemsJSON) > 0 {
			if err := json.Unmarshal(itemsJSON, &e.Items); err != nil {
				continue // skip corrupted rows
			}
		}
		if len(itemJSON) > 0 {
			if err := json.Unmarshal(itemJSON, &e.Item); err != nil {
				continue
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest first from the query; callers want chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of archived entries.
func (a *SQLiteArchive) Count(ctx context.Context) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// encodeJSON returns nil for empty values so they are stored as NULL.
func encodeJSON(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case []entities.ResultItem:
		if len(x) == 0 {
			return nil, nil
		}
	case *entities.ResultItem:
		if x == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
