package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Memory keeps everything in process. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]User
	layouts   map[string]Layout
	snapshots map[string][]Snapshot
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]User),
		layouts:   make(map[string]Layout),
		snapshots: make(map[string][]Snapshot),
	}
}

func (m *Memory) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; ok {
		return User{}, fmt.Errorf("user %s: %w", u.ID, ErrConflict)
	}
	for _, other := range m.users {
		if strings.EqualFold(other.Email, u.Email) {
			return User{}, fmt.Errorf("email %s: %w", u.Email, ErrConflict)
		}
	}
	u.CreatedAt = now()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (m *Memory) CreateLayout(_ context.Context, l Layout) (Layout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.layouts[l.ID]; ok {
		return Layout{}, fmt.Errorf("layout %s: %w", l.ID, ErrConflict)
	}
	l.CreatedAt = now()
	l.UpdatedAt = l.CreatedAt
	m.layouts[l.ID] = l
	return l, nil
}

func (m *Memory) GetLayout(_ context.Context, id string) (Layout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.layouts[id]
	if !ok {
		return Layout{}, fmt.Errorf("layout %s: %w", id, ErrNotFound)
	}
	return l, nil
}

func (m *Memory) ListLayouts(_ context.Context, ownerID string) ([]Layout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Layout
	for _, l := range m.layouts {
		if l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b Layout) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) DeleteLayout(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.layouts[id]; !ok {
		return fmt.Errorf("layout %s: %w", id, ErrNotFound)
	}
	delete(m.layouts, id)
	delete(m.snapshots, id)
	return nil
}

func (m *Memory) SaveSnapshot(_ context.Context, snapshotID, layoutID string, doc json.RawMessage) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.layouts[layoutID]
	if !ok {
		return Snapshot{}, fmt.Errorf("layout %s: %w", layoutID, ErrNotFound)
	}

	snap := Snapshot{
		ID:        snapshotID,
		LayoutID:  layoutID,
		Version:   len(m.snapshots[layoutID]) + 1,
		Document:  slices.Clone(doc),
		CreatedAt: now(),
	}
	m.snapshots[layoutID] = append(m.snapshots[layoutID], snap)
	l.UpdatedAt = snap.CreatedAt
	m.layouts[layoutID] = l
	return snap, nil
}

func (m *Memory) LatestSnapshot(_ context.Context, layoutID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := m.snapshots[layoutID]
	if len(snaps) == 0 {
		return Snapshot{}, fmt.Errorf("snapshot for %s: %w", layoutID, ErrNotFound)
	}
	return snaps[len(snaps)-1], nil
}

func (m *Memory) Close() error {
	return nil
}
