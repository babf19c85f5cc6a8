package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	display_name  TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layouts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	layout_id  TEXT NOT NULL,
	version    INTEGER NOT NULL,
	document   BLOB NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (layout_id, version)
);
`

// SQLite is the single-file store used for local installs.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func sqliteError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) || errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY) {
		return fmt.Errorf("%s: %w", what, ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func (s *SQLite) CreateUser(ctx context.Context, u User) (User, error) {
	u.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, formatTime(u.CreatedAt))
	if err != nil {
		return User{}, sqliteError(err, "create user")
	}
	return u, nil
}

func (s *SQLite) GetUser(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *SQLite) getUser(ctx context.Context, where, arg string) (User, error) {
	var u User
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &created)
	if err != nil {
		return User{}, sqliteError(err, "get user")
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLite) CreateLayout(ctx context.Context, l Layout) (Layout, error) {
	l.CreatedAt = now()
	l.UpdatedAt = l.CreatedAt
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO layouts (id, name, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.OwnerID, formatTime(l.CreatedAt), formatTime(l.UpdatedAt))
	if err != nil {
		return Layout{}, sqliteError(err, "create layout")
	}
	return l, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLayout(row scanner) (Layout, error) {
	var l Layout
	var created, updated string
	if err := row.Scan(&l.ID, &l.Name, &l.OwnerID, &created, &updated); err != nil {
		return Layout{}, err
	}
	var err error
	if l.CreatedAt, err = parseTime(created); err != nil {
		return Layout{}, err
	}
	if l.UpdatedAt, err = parseTime(updated); err != nil {
		return Layout{}, err
	}
	return l, nil
}

func (s *SQLite) GetLayout(ctx context.Context, id string) (Layout, error) {
	l, err := scanLayout(s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at FROM layouts WHERE id = ?`, id))
	if err != nil {
		return Layout{}, sqliteError(err, "get layout")
	}
	return l, nil
}

func (s *SQLite) ListLayouts(ctx context.Context, ownerID string) ([]Layout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM layouts WHERE owner_id = ?
		ORDER BY updated_at DESC, id`, ownerID)
	if err != nil {
		return nil, sqliteError(err, "list layouts")
	}
	defer rows.Close()

	var layouts []Layout
	for rows.Next() {
		l, err := scanLayout(rows)
		if err != nil {
			return nil, sqliteError(err, "list layouts")
		}
		layouts = append(layouts, l)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError(err, "list layouts")
	}
	return layouts, nil
}

func (s *SQLite) DeleteLayout(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteError(err, "delete layout")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM layouts WHERE id = ?`, id)
	if err != nil {
		return sqliteError(err, "delete layout")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete layout %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE layout_id = ?`, id); err != nil {
		return sqliteError(err, "delete snapshots")
	}
	return tx.Commit()
}

func (s *SQLite) SaveSnapshot(ctx context.Context, snapshotID, layoutID string, doc json.RawMessage) (Snapshot, error) {
	snap := Snapshot{ID: snapshotID, LayoutID: layoutID, Document: doc, CreatedAt: now()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, sqliteError(err, "save snapshot")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE layouts SET updated_at = ? WHERE id = ?`, formatTime(snap.CreatedAt), layoutID)
	if err != nil {
		return Snapshot{}, sqliteError(err, "save snapshot")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Snapshot{}, fmt.Errorf("save snapshot: layout %s: %w", layoutID, ErrNotFound)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE layout_id = ?`, layoutID,
	).Scan(&snap.Version); err != nil {
		return Snapshot{}, sqliteError(err, "save snapshot")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, layout_id, version, document, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		snapshotID, layoutID, snap.Version, []byte(doc), formatTime(snap.CreatedAt)); err != nil {
		return Snapshot{}, sqliteError(err, "save snapshot")
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, sqliteError(err, "save snapshot")
	}
	return snap, nil
}

func (s *SQLite) LatestSnapshot(ctx context.Context, layoutID string) (Snapshot, error) {
	var snap Snapshot
	var doc []byte
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, layout_id, version, document, created_at
		FROM snapshots WHERE layout_id = ?
		ORDER BY version DESC LIMIT 1`, layoutID,
	).Scan(&snap.ID, &snap.LayoutID, &snap.Version, &doc, &created)
	if err != nil {
		return Snapshot{}, sqliteError(err, "latest snapshot")
	}
	if snap.CreatedAt, err = parseTime(created); err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.Document = doc
	return snap, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
