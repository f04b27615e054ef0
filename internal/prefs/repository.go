package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"livemap/internal/shared/database"
	"livemap/internal/shared/errors"
)

// Store persists preference documents by id.
type Store interface {
	// Get returns a not_found error for an unknown id.
	Get(ctx context.Context, id string) (Preferences, error)
	Put(ctx context.Context, p Preferences) error
}

// Load returns the stored preferences for id, or the defaults when none
// were saved yet.
func Load(ctx context.Context, s Store, id string) (Preferences, error) {
	p, err := s.Get(ctx, id)
	if errors.Is(err, errors.ErrorTypeNotFound) {
		p = Default()
		p.ID = id
		return p, nil
	}
	return p, err
}

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Preferences
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Preferences), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.items[id]
	if !ok {
		return Preferences{}, errors.NotFoundf("preferences %q not found", id)
	}
	return clone(p), nil
}

func (m *MemoryStore) Put(_ context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clone(p)
	p.UpdatedAt = m.now()
	m.items[p.ID] = p
	return nil
}

func clone(p Preferences) Preferences {
	p.Show = maps.Clone(p.Show)
	p.Excluded = slices.Clone(p.Excluded)
	p.NotifySpecies = slices.Clone(p.NotifySpecies)
	p.NotifyRarities = slices.Clone(p.NotifyRarities)
	p.Staleness = slices.Clone(p.Staleness)
	return p
}

// PostgresStore keeps one JSONB document per id in the preferences table.
type PostgresStore struct {
	db database.Executor
}

func NewPostgresStore(db database.Executor) *PostgresStore {
	logger := slog.With("component", "prefs_repository", "operation", "init")
	logger.Debug("Initializing preferences repository")
	return &PostgresStore{db: db}
}

func (r *PostgresStore) Get(ctx context.Context, id string) (Preferences, error) {
	logger := slog.With("component", "prefs_repository", "operation", "get", "id", id)
	logger.Debug("Loading preferences")

	var (
		doc       []byte
		updatedAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT document, updated_at FROM preferences WHERE id = $1", id,
	).Scan(&doc, &updatedAt)
	if err == sql.ErrNoRows {
		return Preferences{}, errors.NotFoundf("preferences %q not found", id)
	}
	if err != nil {
		logger.Error("Failed to query preferences", "error", err)
		return Preferences{}, errors.WrapInternal("failed to load preferences", err)
	}

	var p Preferences
	if err := json.Unmarshal(doc, &p); err != nil {
		logger.Error("Stored preferences are malformed", "error", err)
		return Preferences{}, errors.WrapInternal("failed to decode preferences", err)
	}
	p.ID = id
	p.UpdatedAt = updatedAt
	return p, nil
}

func (r *PostgresStore) Put(ctx context.Context, p Preferences) error {
	logger := slog.With("component", "prefs_repository", "operation", "put", "id", p.ID)

	if err := p.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	query := `
		INSERT INTO preferences (id, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, doc); err != nil {
		logger.Error("Failed to save preferences", "error", err)
		return errors.WrapInternal("failed to save preferences", err)
	}

	logger.Debug("Preferences saved")
	return nil
}
