package timeline

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a Timeline persisted in SQLite.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the database at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open timeline %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	debug.Info("Timeline store: %s", path)
	return s, nil
}

// MigrateUp runs all pending migrations up to the latest version.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version (0 before any migration).
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger over the debug logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	debug.Verbose("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return debug.IsEnabled(debug.LevelTrace)
}

func (s *Store) BeginRun(id string, at time.Time) error {
	_, err := s.Exec(`INSERT INTO runs (run_id, started_at_ms) VALUES (?, ?)`, id, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("begin run %s: %w", id, err)
	}
	return nil
}

func (s *Store) FinishRun(id, termination string, at time.Time) error {
	res, err := s.Exec(`UPDATE runs SET finished_at_ms = ?, termination = ? WHERE run_id = ?`,
		at.UnixMilli(), termination, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrUnknownRun)
	}
	return nil
}

func (s *Store) Append(e Entry) error {
	_, err := s.Exec(`
		INSERT INTO keyframes (run_id, axis, frame, radians, recorded_at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (run_id, axis, frame) DO UPDATE SET
			radians = excluded.radians,
			recorded_at_ms = excluded.recorded_at_ms`,
		e.RunID, string(e.Axis), e.Frame, e.Radians, e.RecordedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("append %s keyframe at frame %d: %w", e.Axis, e.Frame, err)
	}
	return nil
}

// Entries returns the keyframes of a run ordered by frame, then axis.
func (s *Store) Entries(runID string) ([]Entry, error) {
	rows, err := s.Query(`
		SELECT axis, frame, radians, recorded_at_ms
		FROM keyframes
		WHERE run_id = ?
		ORDER BY frame, axis`, runID)
	if err != nil {
		return nil, fmt.Errorf("query keyframes: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var axis string
		var recordedMs int64
		e := Entry{RunID: runID}
		if err := rows.Scan(&axis, &e.Frame, &e.Radians, &recordedMs); err != nil {
			return nil, fmt.Errorf("scan keyframe: %w", err)
		}
		if e.Axis, err = actuator.ParseAxis(axis); err != nil {
			return nil, err
		}
		e.RecordedAt = time.UnixMilli(recordedMs)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Runs returns the runs, most recent first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.Query(`
		SELECT run_id, started_at_ms, finished_at_ms, termination
		FROM runs
		ORDER BY started_at_ms DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var startedMs int64
		var finishedMs sql.NullInt64
		if err := rows.Scan(&r.ID, &startedMs, &finishedMs, &r.Termination); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		if finishedMs.Valid {
			r.FinishedAt = time.UnixMilli(finishedMs.Int64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var (
	_ Timeline = (*Memory)(nil)
	_ Timeline = (*Store)(nil)
)
