package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/sim"
)

// PostgreSQLStore keeps snapshots as JSONB rows, for sharing saves between machines
type PostgreSQLStore struct {
	db *sql.DB
}

// NewPostgreSQLStore connects using config.DSN and ensures the schema exists
func NewPostgreSQLStore(config Config) (*PostgreSQLStore, error) {
	if config.DSN == "" {
		return nil, errors.New("postgres store requires a DSN")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Connection pool defaults
	maxOpen := config.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 25
	}
	maxIdle := config.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 5
	}
	lifetime := config.ConnMaxLifetime
	if lifetime == 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := withRetry(ctx, connectPolicy, db.PingContext); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	s := &PostgreSQLStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return s, nil
}

func (s *PostgreSQLStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS opsim_snapshots (
		slot TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		sim_time INTEGER NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		state JSONB NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts the snapshot for slot
func (s *PostgreSQLStore) Save(ctx context.Context, slot string, state *sim.State) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO opsim_snapshots (slot, version, sim_time, saved_at, state)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (slot) DO UPDATE SET
			version = EXCLUDED.version,
			sim_time = EXCLUDED.sim_time,
			saved_at = EXCLUDED.saved_at,
			state = EXCLUDED.state
	`, slotOrDefault(slot), state.Version, state.Time, string(data))
	if err != nil {
		return errors.Wrap(err, "failed to save snapshot")
	}
	return nil
}

// Load reads the snapshot for slot
func (s *PostgreSQLStore) Load(ctx context.Context, slot string) (*sim.State, error) {
	slot = slotOrDefault(slot)
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM opsim_snapshots WHERE slot = $1`, slot).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, notFound(slot)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load snapshot")
	}
	return decodeState(data)
}

// List returns saved slots ordered by name
func (s *PostgreSQLStore) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot, version, sim_time, saved_at FROM opsim_snapshots ORDER BY slot`)
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
func (s *PostgreSQLStore) Delete(ctx context.Context, slot string) error {
	slot = slotOrDefault(slot)
	res, err := s.db.ExecContext(ctx, `DELETE FROM opsim_snapshots WHERE slot = $1`, slot)
	if err != nil {
		return errors.Wrap(err, "failed to delete snapshot")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(slot)
	}
	return nil
}

// HealthCheck pings the database
func (s *PostgreSQLStore) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
