// Package persistence provides SQLite-based storage of simulation runs and
// their time series.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/talgya/solarsim/internal/engine"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = eris.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Run is one stored simulation run.
type Run struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Label     string         `json:"label"`
	Seed      uint64         `json:"seed"`
	Steps     int            `json:"steps"`
	Params    engine.Params  `json:"params"`
	Summary   engine.Summary `json:"summary"`
}

// runRow is the runs table layout. Seeds use the full uint64 range, so they
// are stored bit-cast to int64.
type runRow struct {
	ID          string `db:"id"`
	CreatedAt   string `db:"created_at"`
	Label       string `db:"label"`
	Seed        int64  `db:"seed"`
	Steps       int    `db:"steps"`
	ParamsJSON  string `db:"params_json"`
	SummaryJSON string `db:"summary_json"`
}

type seriesRow struct {
	RunID string `db:"run_id"`
	engine.Record
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eris.Wrap(err, "open db")
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "migrate")
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		label TEXT NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		params_json TEXT NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS series (
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		low_house INTEGER NOT NULL,
		low_apartment INTEGER NOT NULL,
		mid_house INTEGER NOT NULL,
		mid_apartment INTEGER NOT NULL,
		high_house INTEGER NOT NULL,
		high_apartment INTEGER NOT NULL,
		total INTEGER NOT NULL,
		adoption_rate REAL NOT NULL,
		clustering REAL NOT NULL,
		morans_i REAL NOT NULL,
		between_class_gini REAL NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun stores a run and its series in one transaction and returns the
// new run's ID.
func (db *DB) SaveRun(run Run, series []engine.Record) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return "", eris.Wrap(err, "encode params")
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return "", eris.Wrap(err, "encode summary")
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", eris.Wrap(err, "begin")
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`INSERT INTO runs
		(id, created_at, label, seed, steps, params_json, summary_json)
		VALUES (:id, :created_at, :label, :seed, :steps, :params_json, :summary_json)`,
		runRow{
			ID:          run.ID,
			CreatedAt:   run.CreatedAt.Format(time.RFC3339Nano),
			Label:       run.Label,
			Seed:        int64(run.Seed),
			Steps:       run.Steps,
			ParamsJSON:  string(paramsJSON),
			SummaryJSON: string(summaryJSON),
		})
	if err != nil {
		return "", eris.Wrapf(err, "insert run %s", run.ID)
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO series
		(run_id, step, low_house, low_apartment, mid_house, mid_apartment,
		 high_house, high_apartment, total, adoption_rate, clustering,
		 morans_i, between_class_gini)
		VALUES (:run_id, :step, :low_house, :low_apartment, :mid_house, :mid_apartment,
		 :high_house, :high_apartment, :total, :adoption_rate, :clustering,
		 :morans_i, :between_class_gini)`)
	if err != nil {
		return "", eris.Wrap(err, "prepare series insert")
	}
	defer stmt.Close()

	for _, rec := range series {
		if _, err := stmt.Exec(seriesRow{RunID: run.ID, Record: rec}); err != nil {
			return "", eris.Wrapf(err, "insert step %d", rec.Step)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO store_meta (key, value) VALUES ('last_run', ?)", run.ID,
	); err != nil {
		return "", eris.Wrap(err, "save meta")
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "commit")
	}

	slog.Info("run saved", "id", run.ID, "steps", len(series))
	return run.ID, nil
}

// LastRunID returns the ID of the most recently saved run.
func (db *DB) LastRunID() (string, error) {
	var id string
	err := db.conn.Get(&id, "SELECT value FROM store_meta WHERE key = 'last_run'")
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	return id, err
}

// LoadRun returns the stored run with the given ID.
func (db *DB) LoadRun(id string) (Run, error) {
	var row runRow
	err := db.conn.Get(&row, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, eris.Wrapf(ErrRunNotFound, "%s", id)
	}
	if err != nil {
		return Run{}, eris.Wrapf(err, "load run %s", id)
	}
	return row.run()
}

// LoadSeries returns a run's records in step order.
func (db *DB) LoadSeries(id string) ([]engine.Record, error) {
	if _, err := db.LoadRun(id); err != nil {
		return nil, err
	}
	var series []engine.Record
	err := db.conn.Select(&series, `SELECT step, low_house, low_apartment, mid_house,
		mid_apartment, high_house, high_apartment, total, adoption_rate, clustering,
		morans_i, between_class_gini
		FROM series WHERE run_id = ? ORDER BY step`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "load series %s", id)
	}
	return series, nil
}

// ListRuns returns the most recent runs, newest first. A limit of 0 or
// less returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []runRow
	err := db.conn.Select(&rows,
		"SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, eris.Wrap(err, "list runs")
	}
	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		r, err := row.run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// DeleteRun removes a run and its series.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return eris.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM series WHERE run_id = ?", id); err != nil {
		return eris.Wrapf(err, "delete series %s", id)
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return eris.Wrapf(err, "delete run %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrRunNotFound, "%s", id)
	}
	return tx.Commit()
}

func (row runRow) run() (Run, error) {
	created, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return Run{}, eris.Wrapf(err, "run %s created_at", row.ID)
	}
	r := Run{
		ID:        row.ID,
		CreatedAt: created,
		Label:     row.Label,
		Seed:      uint64(row.Seed),
		Steps:     row.Steps,
	}
	if err := json.Unmarshal([]byte(row.ParamsJSON), &r.Params); err != nil {
		return Run{}, eris.Wrapf(err, "run %s params", row.ID)
	}
	if err := json.Unmarshal([]byte(row.SummaryJSON), &r.Summary); err != nil {
		return Run{}, eris.Wrapf(err, "run %s summary", row.ID)
	}
	return r, nil
}

// SaveModel stores a finished or in-progress model under label.
func (db *DB) SaveModel(m *engine.CityModel, label string) (string, error) {
	p := m.Params()
	p.Seed = m.Seed()
	return db.SaveRun(Run{
		Label:   label,
		Seed:    m.Seed(),
		Steps:   m.Timestep(),
		Params:  p,
		Summary: m.Summary(),
	}, m.Series())
}
