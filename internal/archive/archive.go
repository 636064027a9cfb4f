// Package archive records job runs and the series they produce in SQLite.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/beringseaice/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one execution of a job.
type Run struct {
	ID       uuid.UUID
	Job      string
	Type     string
	Started  time.Time
	Finished time.Time
	Status   string
	Error    string
}

// Archive is an open results database.
type Archive struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Open opens (creating if needed) the archive at path and brings its schema
// up to date.
func Open(path string, logger *zap.SugaredLogger) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	// SQLite allows a single writer; in-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping archive database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	m := migrate.NewMigrator(db, Schema(), logger)
	if err := m.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}

	return &Archive{db: db, logger: logger}, nil
}

// Schema returns the archive's embedded schema migrations.
func Schema() migrate.MigrationProvider {
	return migrate.NewFSProvider(migrations, "migrations", "")
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// StartRun records a new running job and returns it.
func (a *Archive) StartRun(ctx context.Context, job, jobType string) (*Run, error) {
	r := &Run{
		ID:      uuid.New(),
		Job:     job,
		Type:    jobType,
		Started: time.Now().UTC(),
		Status:  StatusRunning,
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO runs (id, job, type, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.Job, r.Type, r.Started.Format(time.RFC3339Nano), r.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	return r, nil
}

// FinishRun marks r finished, failed when runErr is non-nil.
func (a *Archive) FinishRun(ctx context.Context, r *Run, runErr error) error {
	r.Finished = time.Now().UTC()
	r.Status = StatusSucceeded
	var errText sql.NullString
	if runErr != nil {
		r.Status = StatusFailed
		r.Error = runErr.Error()
		errText = sql.NullString{String: r.Error, Valid: true}
	}

	_, err := a.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		r.Finished.Format(time.RFC3339Nano), r.Status, errText, r.ID.String())
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// SaveSeries stores a named output series of a run. Missing values are
// stored as NULL.
func (a *Archive) SaveSeries(ctx context.Context, runID uuid.UUID, name string, values []float64) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO series_values (run_id, series, idx, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare series insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range values {
		val := sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
		if _, err := stmt.ExecContext(ctx, runID.String(), name, i, val); err != nil {
			return fmt.Errorf("failed to insert %s[%d]: %w", name, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit series %s: %w", name, err)
	}
	a.logger.Debugf("archived %d values of %s for run %s", len(values), name, runID)
	return nil
}

// Series returns a stored series, with NULLs as NaN.
func (a *Archive) Series(ctx context.Context, runID uuid.UUID, name string) ([]float64, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT value FROM series_values WHERE run_id = ? AND series = ? ORDER BY idx`,
		runID.String(), name)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan series value: %w", err)
		}
		if v.Valid {
			out = append(out, v.Float64)
		} else {
			out = append(out, math.NaN())
		}
	}
	return out, rows.Err()
}

// SeriesNames lists the series stored for a run.
func (a *Archive) SeriesNames(ctx context.Context, runID uuid.UUID) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT DISTINCT series FROM series_values WHERE run_id = ? ORDER BY series`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query series names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan series name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Runs lists the runs of a job, newest first. An empty job lists all runs.
func (a *Archive) Runs(ctx context.Context, job string) ([]Run, error) {
	query := `SELECT id, job, type, started_at, finished_at, status, error FROM runs`
	var args []interface{}
	if job != "" {
		query += ` WHERE job = ?`
		args = append(args, job)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			id, started       string
			finished, errText sql.NullString
		)
		if err := rows.Scan(&id, &r.Job, &r.Type, &started, &finished, &r.Status, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("invalid start time for run %s: %w", id, err)
		}
		if finished.Valid {
			if r.Finished, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
				return nil, fmt.Errorf("invalid finish time for run %s: %w", id, err)
			}
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
