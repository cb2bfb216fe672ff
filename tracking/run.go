package tracking

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go-ml.dev/pkg/tsdl/fu"
	"golang.org/x/xerrors"
)

const (
	ConfigFile     = "config.yaml"
	ScalerFile     = "scaler.json"
	MetricsDBFile  = "metrics.db"
	MetricsFile    = "metrics.prom"
	TraceFile      = "trace.json"
	CheckpointsDir = "checkpoints"
)

/*
Run is a created run directory with its scalar store
*/
type Run struct {
	ID      string
	Dir     string
	Model   string
	Seed    int64
	Started time.Time
	Store   *Store
}

/*
Create makes <root>/<model>/<ddmmYYYY_HHMMSS>[_n] and registers the run in its metrics.db
*/
func Create(ctx context.Context, root, model string, seed int64, now time.Time) (*Run, error) {
	dir, err := fu.MakeRunDir(root, model, now)
	if err != nil {
		return nil, xerrors.Errorf("create run directory: %w", err)
	}
	r := &Run{ID: uuid.NewString(), Dir: dir, Model: model, Seed: seed, Started: now}
	if r.Store, err = OpenStore(r.Path(MetricsDBFile)); err != nil {
		return nil, err
	}
	err = r.Store.StartRun(ctx, RunInfo{ID: r.ID, Model: model, Dir: dir, Seed: seed, Started: now})
	if err != nil {
		r.Store.Close()
		return nil, err
	}
	return r, nil
}

func (r *Run) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

func (r *Run) CheckpointDir() string {
	return r.Path(CheckpointsDir)
}

/*
Finish records the run status and closes the store
*/
func (r *Run) Finish(ctx context.Context, failed bool) error {
	status := StatusFinished
	if failed {
		status = StatusFailed
	}
	err := r.Store.FinishRun(ctx, r.ID, status, time.Now())
	if e := r.Store.Close(); err == nil && e != nil {
		err = xerrors.Errorf("close metrics store: %w", e)
	}
	return err
}
