package cli

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"go-ml.dev/pkg/tsdl/config"
	"go-ml.dev/pkg/tsdl/dataset"
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/model"
	"go-ml.dev/pkg/tsdl/nn"
	"go-ml.dev/pkg/tsdl/tracking"
	"go-ml.dev/pkg/tsdl/zlog"
	"golang.org/x/xerrors"
)

const (
	BestCheckpoint = "best"
	LastCheckpoint = "last"

	ValidationSubset = "validation"
	AllSubset        = "all"
)

/*
EvalOptions selects what to evaluate in a run directory
*/
type EvalOptions struct {
	Checkpoint  string // best or last, best by default
	Subset      string // validation or all, validation by default
	Predictions string // optional .csv or .xlsx export of predictions in original units
}

/*
Errors are mean errors over all predicted values
*/
type Errors struct {
	MSE, MAE, RMSE float64
}

type ColumnErrors struct {
	Column   string
	Original Errors
}

/*
Evaluation is the accuracy of a checkpoint on a subset of windows
*/
type Evaluation struct {
	RunDir     string
	Checkpoint string
	Model      string
	Epoch      int
	Subset     string
	Windows    int
	Scaled     Errors
	Original   Errors
	Columns    []ColumnErrors
}

/*
Evaluate restores a checkpoint of the run and measures its errors on the run
data, scaled with the frozen parameters of the run
*/
func Evaluate(ctx context.Context, runDir string, opts EvalOptions) (*Evaluation, error) {
	cfg, err := config.Read(filepath.Join(runDir, tracking.ConfigFile))
	if err != nil {
		return nil, err
	}
	if err = cfg.Resolve(); err != nil {
		return nil, err
	}
	params, err := dataset.LoadScaling(filepath.Join(runDir, tracking.ScalerFile))
	if err != nil {
		return nil, err
	}
	ds, err := dataset.LoadWithScaler(cfg.Data.Files, cfg.Data.DataKwargs, params)
	if err != nil {
		return nil, err
	}
	ckptPath, err := checkpointPath(runDir, opts.Checkpoint)
	if err != nil {
		return nil, err
	}
	ckpt, err := model.LoadCheckpoint(ckptPath)
	if err != nil {
		return nil, err
	}
	m, err := ckpt.Restore()
	if err != nil {
		return nil, err
	}
	if h := m.Hyper(); h.InFeatures != ds.InFeatures() || h.OutFeatures != ds.OutFeatures() {
		return nil, xerrors.Errorf("checkpoint %s expects %d/%d features, data has %d/%d",
			ckptPath, h.InFeatures, h.OutFeatures, ds.InFeatures(), ds.OutFeatures())
	}

	seed := cfg.SeedEverything.Value
	var idx []int
	subset := opts.Subset
	switch subset {
	case "", ValidationSubset:
		subset = ValidationSubset
		split, err := dataset.NewSplit(ds.Len(), cfg.Data.ValSplit, cfg.Data.SplitShuffle, seed)
		if err != nil {
			return nil, err
		}
		idx = split.Validation
		if len(idx) == 0 {
			return nil, xerrors.Errorf("run %s has no validation windows, evaluate the %q subset", runDir, AllSubset)
		}
	case AllSubset:
		idx = fu.Iota(ds.Len())
	default:
		return nil, xerrors.Errorf("unknown subset %q, use %s or %s", subset, ValidationSubset, AllSubset)
	}
	loader := dataset.NewLoader(ds, idx, cfg.Data.BatchSize,
		dataset.LoaderOptions{NumWorkers: cfg.Data.LoaderKwargs.NumWorkers}, seed)

	scaling := ds.TargetScaling()
	cols := len(scaling.Columns)
	scaled, original := &accumulator{}, &accumulator{}
	perColumn := make([]accumulator, cols)
	var export *predictions
	if opts.Predictions != "" {
		export = newPredictions(scaling.Columns)
	}
	err = model.Predict(ctx, m, loader, func(b dataset.Batch, pred nn.Batch) error {
		for k := range pred {
			for t, row := range pred[k] {
				yTrue := b.Y[k][t]
				pTrue, pPred := scaling.Inverse(yTrue), scaling.Inverse(row)
				for j := range row {
					scaled.add(row[j] - yTrue[j])
					original.add(pPred[j] - pTrue[j])
					perColumn[j].add(pPred[j] - pTrue[j])
				}
				if export != nil {
					export.add(b.Indices[k], t+1, pTrue, pPred)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e := &Evaluation{
		RunDir:     runDir,
		Checkpoint: ckptPath,
		Model:      m.Name(),
		Epoch:      ckpt.Epoch,
		Subset:     subset,
		Windows:    len(idx),
		Scaled:     scaled.errors(),
		Original:   original.errors(),
	}
	for j, c := range scaling.Columns {
		e.Columns = append(e.Columns, ColumnErrors{Column: c, Original: perColumn[j].errors()})
	}
	if export != nil {
		if err = export.save(opts.Predictions); err != nil {
			return nil, err
		}
		zlog.Info("predictions exported", "file", opts.Predictions, "rows", len(export.rows))
	}
	return e, nil
}

func checkpointPath(runDir, which string) (string, error) {
	dir := filepath.Join(runDir, tracking.CheckpointsDir)
	switch which {
	case "", BestCheckpoint:
		p := filepath.Join(dir, model.BestCheckpoint)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		zlog.Warning("no best checkpoint, using the last one", "run", runDir)
		return filepath.Join(dir, model.LastCheckpoint), nil
	case LastCheckpoint:
		return filepath.Join(dir, model.LastCheckpoint), nil
	}
	return "", xerrors.Errorf("unknown checkpoint %q, use %s or %s", which, BestCheckpoint, LastCheckpoint)
}

type accumulator struct {
	se, ae float64
	n      int
}

func (a *accumulator) add(d float64) {
	a.se += d * d
	a.ae += math.Abs(d)
	a.n++
}

func (a *accumulator) errors() Errors {
	if a.n == 0 {
		return Errors{}
	}
	mse := a.se / float64(a.n)
	return Errors{MSE: mse, MAE: a.ae / float64(a.n), RMSE: math.Sqrt(mse)}
}
