package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/models"
	"github.com/psantana5/opsim/pkg/sim"
)

// DefaultSlot is the save slot used when none is named
const DefaultSlot = "default"

// Store persists simulation snapshots in named slots.
// File, SQLite, PostgreSQL and in-memory backends implement it.
type Store interface {
	Save(ctx context.Context, slot string, state *sim.State) error
	// Load returns an error wrapping models.ErrNotFound for an empty slot
	Load(ctx context.Context, slot string) (*sim.State, error)
	List(ctx context.Context) ([]SlotInfo, error)
	Delete(ctx context.Context, slot string) error

	// Lifecycle
	HealthCheck() error
	Close() error
}

// SlotInfo describes a saved snapshot
type SlotInfo struct {
	Slot    string
	Version int
	Time    int // simulated tick at save
	SavedAt time.Time
}

// Config holds store configuration
type Config struct {
	Type string // "file", "sqlite", "postgres" or "memory"
	DSN  string // connection string for postgres; database path for sqlite

	// File specific
	Path string

	// PostgreSQL specific
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "file", "":
		path := config.Path
		if path == "" {
			path = "savegame.json"
		}
		return NewFileStore(path), nil
	case "sqlite", "sqlite3":
		path := config.DSN
		if path == "" {
			path = "opsim.db"
		}
		return NewSQLiteStore(path)
	case "postgres", "postgresql":
		return NewPostgreSQLStore(config)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedStore, "%q", config.Type)
	}
}

// ErrUnsupportedStore is returned by NewStore for an unknown backend type
var ErrUnsupportedStore = errors.New("unsupported store type")

func slotOrDefault(slot string) string {
	if slot == "" {
		return DefaultSlot
	}
	return slot
}

func notFound(slot string) error {
	return errors.Wrapf(models.ErrNotFound, "save slot %q", slot)
}

func encodeState(state *sim.State) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal state")
	}
	return data, nil
}

func decodeState(data []byte) (*sim.State, error) {
	var state sim.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal state")
	}
	return &state, nil
}
