package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS layouts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	layout_id  TEXT NOT NULL REFERENCES layouts(id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (layout_id, version)
);
`

const pgUniqueViolation = "23505"

// Postgres is the production store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, checks the connection and creates missing tables.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func pgError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", what, ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (p *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		return User{}, pgError(err, "create user")
	}
	return u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (User, error) {
	return p.getUser(ctx, `WHERE id = $1`, id)
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return p.getUser(ctx, `WHERE lower(email) = lower($1)`, email)
}

func (p *Postgres) getUser(ctx context.Context, where string, arg string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, pgError(err, "get user")
	}
	return u, nil
}

func (p *Postgres) CreateLayout(ctx context.Context, l Layout) (Layout, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO layouts (id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		l.ID, l.Name, l.OwnerID,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Layout{}, pgError(err, "create layout")
	}
	return l, nil
}

func (p *Postgres) GetLayout(ctx context.Context, id string) (Layout, error) {
	var l Layout
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at, updated_at FROM layouts WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Layout{}, pgError(err, "get layout")
	}
	return l, nil
}

func (p *Postgres) ListLayouts(ctx context.Context, ownerID string) ([]Layout, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM layouts WHERE owner_id = $1
		ORDER BY updated_at DESC, id`, ownerID)
	if err != nil {
		return nil, pgError(err, "list layouts")
	}

	layouts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Layout, error) {
		var l Layout
		err := row.Scan(&l.ID, &l.Name, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt)
		return l, err
	})
	if err != nil {
		return nil, pgError(err, "list layouts")
	}
	return layouts, nil
}

func (p *Postgres) DeleteLayout(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM layouts WHERE id = $1`, id)
	if err != nil {
		return pgError(err, "delete layout")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete layout %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) SaveSnapshot(ctx context.Context, snapshotID, layoutID string, doc json.RawMessage) (Snapshot, error) {
	snap := Snapshot{ID: snapshotID, LayoutID: layoutID, Document: doc}

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		// Lock the layout row so concurrent saves get consecutive versions.
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM layouts WHERE id = $1 FOR UPDATE`, layoutID).Scan(&locked); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE layout_id = $1`, layoutID,
		).Scan(&snap.Version); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO snapshots (id, layout_id, version, document)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`,
			snapshotID, layoutID, snap.Version, []byte(doc),
		).Scan(&snap.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE layouts SET updated_at = $2 WHERE id = $1`, layoutID, snap.CreatedAt)
		return err
	})
	if err != nil {
		return Snapshot{}, pgError(err, "save snapshot")
	}
	return snap, nil
}

func (p *Postgres) LatestSnapshot(ctx context.Context, layoutID string) (Snapshot, error) {
	var s Snapshot
	var doc []byte
	err := p.pool.QueryRow(ctx, `
		SELECT id, layout_id, version, document, created_at
		FROM snapshots WHERE layout_id = $1
		ORDER BY version DESC LIMIT 1`, layoutID,
	).Scan(&s.ID, &s.LayoutID, &s.Version, &doc, &s.CreatedAt)
	if err != nil {
		return Snapshot{}, pgError(err, "latest snapshot")
	}
	s.Document = doc
	return s, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
