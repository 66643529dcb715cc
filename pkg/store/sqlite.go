package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/sim"
)

// SQLiteStore keeps snapshots in a single SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// WAL for concurrent readers, immediate transactions to avoid SQLITE_BUSY upgrades
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_cache_size=-8000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		slot TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		sim_time INTEGER NOT NULL,
		saved_at DATETIME NOT NULL,
		state TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts the snapshot for slot
func (s *SQLiteStore) Save(ctx context.Context, slot string, state *sim.State) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (slot, version, sim_time, saved_at, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			version = excluded.version,
			sim_time = excluded.sim_time,
			saved_at = excluded.saved_at,
			state = excluded.state
	`, slotOrDefault(slot), state.Version, state.Time, time.Now().UTC(), string(data))
	if err != nil {
		return errors.Wrap(err, "failed to save snapshot")
	}
	return nil
}

// Load reads the snapshot for slot
func (s *SQLiteStore) Load(ctx context.Context, slot string) (*sim.State, error) {
	slot = slotOrDefault(slot)
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM snapshots WHERE slot = ?`, slot).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, notFound(slot)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load snapshot")
	}
	return decodeState([]byte(data))
}

// List returns saved slots ordered by name
func (s *SQLiteStore) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot, version, sim_time, saved_at FROM snapshots ORDER BY slot`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list snapshots")
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var info SlotInfo
		if err := rows.Scan(&info.Slot, &info.Version, &info.Time, &info.SavedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan snapshot")
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a slot
func (s *SQLiteStore) Delete(ctx context.Context, slot string) error {
	slot = slotOrDefault(slot)
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE slot = ?`, slot)
	if err != nil {
		return errors.Wrap(err, "failed to delete snapshot")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(slot)
	}
	return nil
}

// HealthCheck pings the database
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
