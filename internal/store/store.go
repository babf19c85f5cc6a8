// Package store persists users, layouts and layout document snapshots. Every
// save of a layout document is a new snapshot with the next version number;
// readers always get the latest one.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

type Layout struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Snapshot struct {
	ID        string
	LayoutID  string
	Version   int
	Document  json.RawMessage
	CreatedAt time.Time
}

type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	CreateLayout(ctx context.Context, l Layout) (Layout, error)
	GetLayout(ctx context.Context, id string) (Layout, error)
	ListLayouts(ctx context.Context, ownerID string) ([]Layout, error)
	DeleteLayout(ctx context.Context, id string) error

	// SaveSnapshot stores doc as the next version of the layout.
	SaveSnapshot(ctx context.Context, snapshotID, layoutID string, doc json.RawMessage) (Snapshot, error)
	LatestSnapshot(ctx context.Context, layoutID string) (Snapshot, error)

	Close() error
}

// Open returns the store for driver: "postgres" (dsn is a database URL),
// "sqlite" (dsn is a file path) or "memory".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn)
	case "sqlite":
		return NewSQLite(ctx, dsn)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() time.Time {
	return time.Now().UTC()
}
