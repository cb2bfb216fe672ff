/*
Package tracking records training runs: the run directory, a sqlite scalar
log, a Prometheus text-format snapshot and optional span traces.
*/
package tracking

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/xerrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	dir TEXT NOT NULL,
	seed INTEGER NOT NULL,
	started TIMESTAMP NOT NULL,
	finished TIMESTAMP,
	status TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS scalars (
	run_id TEXT NOT NULL REFERENCES runs(id),
	epoch INTEGER NOT NULL,
	step INTEGER NOT NULL,
	name TEXT NOT NULL,
	value REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS scalars_by_name ON scalars(run_id, name, step);
CREATE TABLE IF NOT EXISTS hparams (
	run_id TEXT NOT NULL REFERENCES runs(id),
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (run_id, name)
);
`

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

/*
Store is the scalar log of training runs kept in a sqlite database
*/
type Store struct {
	db *sql.DB
}

type RunInfo struct {
	ID       string
	Model    string
	Dir      string
	Seed     int64
	Started  time.Time
	Finished *time.Time
	Status   string
}

type Scalar struct {
	Epoch, Step int
	Value       float64
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, xerrors.Errorf("open metrics store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, xerrors.Errorf("create metrics store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StartRun(ctx context.Context, r RunInfo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, model, dir, seed, started, status) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Model, r.Dir, r.Seed, r.Started.UTC(), StatusRunning)
	if err != nil {
		return xerrors.Errorf("start run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, id, status string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET finished = ?, status = ? WHERE id = ?`, t.UTC(), status, id)
	if err != nil {
		return xerrors.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

/*
LogScalars appends named values at a step in one transaction
*/
func (s *Store) LogScalars(ctx context.Context, id string, epoch, step int, values map[string]float64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("log scalars: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scalars (run_id, epoch, step, name, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return xerrors.Errorf("log scalars: %w", err)
	}
	defer stmt.Close()
	for name, v := range values {
		if _, err = stmt.ExecContext(ctx, id, epoch, step, name, v); err != nil {
			return xerrors.Errorf("log scalar %s: %w", name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return xerrors.Errorf("log scalars: %w", err)
	}
	return nil
}

func (s *Store) LogHparams(ctx context.Context, id string, values map[string]string) error {
	for name, v := range values {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO hparams (run_id, name, value) VALUES (?, ?, ?)`, id, name, v)
		if err != nil {
			return xerrors.Errorf("log hparam %s: %w", name, err)
		}
	}
	return nil
}

/*
Scalars returns the logged values of a metric ordered by step
*/
func (s *Store) Scalars(ctx context.Context, id, name string) ([]Scalar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT epoch, step, value FROM scalars WHERE run_id = ? AND name = ? ORDER BY step, epoch`, id, name)
	if err != nil {
		return nil, xerrors.Errorf("query scalars: %w", err)
	}
	defer rows.Close()
	var r []Scalar
	for rows.Next() {
		var x Scalar
		if err = rows.Scan(&x.Epoch, &x.Step, &x.Value); err != nil {
			return nil, xerrors.Errorf("query scalars: %w", err)
		}
		r = append(r, x)
	}
	return r, rows.Err()
}

func (s *Store) Hparams(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM hparams WHERE run_id = ?`, id)
	if err != nil {
		return nil, xerrors.Errorf("query hparams: %w", err)
	}
	defer rows.Close()
	r := map[string]string{}
	for rows.Next() {
		var k, v string
		if err = rows.Scan(&k, &v); err != nil {
			return nil, xerrors.Errorf("query hparams: %w", err)
		}
		r[k] = v
	}
	return r, rows.Err()
}

func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, dir, seed, started, finished, status FROM runs ORDER BY started`)
	if err != nil {
		return nil, xerrors.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var r []RunInfo
	for rows.Next() {
		var x RunInfo
		var finished sql.NullTime
		if err = rows.Scan(&x.ID, &x.Model, &x.Dir, &x.Seed, &x.Started, &finished, &x.Status); err != nil {
			return nil, xerrors.Errorf("query runs: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			x.Finished = &t
		}
		r = append(r, x)
	}
	return r, rows.Err()
}
