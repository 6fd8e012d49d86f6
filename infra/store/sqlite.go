// Package store persists charge session results in SQLite.
package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	coremetrics "github.com/kilianp07/evcharge/core/metrics"
)

// Config selects the database file. Steps also stores every battery step,
// which grows the database by one row per timestep.
type Config struct {
	Path  string `json:"path"`
	Steps bool   `json:"steps"`
}

// SQLiteStore records session summaries, and optionally steps, in a SQLite
// database. It is safe for concurrent use.
type SQLiteStore struct {
	db    *sql.DB
	steps bool
}

const schema = `CREATE TABLE IF NOT EXISTS sessions (
        event_id TEXT PRIMARY KEY,
        vehicle_type TEXT,
        evse_type TEXT,
        energy_kwh REAL,
        grid_energy_kwh REAL,
        initial_soc REAL,
        final_soc REAL,
        needs_met INTEGER,
        duration_s REAL,
        departure INTEGER
    );
    CREATE TABLE IF NOT EXISTS steps (
        event_id TEXT,
        time_unix REAL,
        soc REAL,
        p1_kw REAL,
        p2_kw REAL,
        p3_kw REAL,
        q3_kvar REAL,
        status TEXT,
        PRIMARY KEY(event_id, time_unix)
    );`

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, steps: cfg.Steps}, nil
}

// RecordStep stores the step when step storage is enabled.
func (s *SQLiteStore) RecordStep(ev coremetrics.StepEvent) error {
	if !s.steps {
		return nil
	}
	t := float64(ev.Time.UnixNano()) / 1e9
	_, err := s.db.Exec(`INSERT OR REPLACE INTO steps (event_id, time_unix, soc, p1_kw, p2_kw, p3_kw, q3_kvar, status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, t, ev.SOC, ev.P1KW, ev.P2KW, ev.P3KW, ev.Q3KVAR, ev.Status.String())
	return err
}

// RecordSession inserts or replaces the session summary.
func (s *SQLiteStore) RecordSession(ev coremetrics.SessionEvent) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO sessions
        (event_id, vehicle_type, evse_type, energy_kwh, grid_energy_kwh, initial_soc, final_soc, needs_met, duration_s, departure)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.Vehicle, ev.EVSE, ev.EnergyKWh, ev.GridEnergyKWh, ev.InitialSOC, ev.FinalSOC,
		ev.NeedsMet, ev.Duration.Seconds(), ev.Time.Unix())
	return err
}

// Sessions returns every stored session ordered by departure then id.
func (s *SQLiteStore) Sessions() ([]coremetrics.SessionEvent, error) {
	rows, err := s.db.Query(`SELECT event_id, vehicle_type, evse_type, energy_kwh, grid_energy_kwh, initial_soc,
        final_soc, needs_met, duration_s, departure FROM sessions ORDER BY departure, event_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []coremetrics.SessionEvent
	for rows.Next() {
		var ev coremetrics.SessionEvent
		var dur float64
		var dep int64
		if err := rows.Scan(&ev.EventID, &ev.Vehicle, &ev.EVSE, &ev.EnergyKWh, &ev.GridEnergyKWh, &ev.InitialSOC,
			&ev.FinalSOC, &ev.NeedsMet, &dur, &dep); err != nil {
			return nil, err
		}
		ev.Duration = time.Duration(dur * float64(time.Second))
		ev.Time = time.Unix(dep, 0).UTC()
		res = append(res, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// StepCount returns the number of stored steps of an event.
func (s *SQLiteStore) StepCount(eventID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM steps WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
