/*
Package cli drives training and evaluation runs from a configuration file
*/
package cli

import (
	"context"
	"os"
	"time"

	"go-ml.dev/pkg/tsdl/config"
	"go-ml.dev/pkg/tsdl/dataset"
	"go-ml.dev/pkg/tsdl/model"
	"go-ml.dev/pkg/tsdl/nn"
	"go-ml.dev/pkg/tsdl/tracking"
	"go-ml.dev/pkg/tsdl/zlog"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

/*
Result is a finished training run
*/
type Result struct {
	RunID          string
	RunDir         string
	Model          string
	Seed           int64
	Params         int
	TrainWindows   int
	ValWindows     int
	Report         *model.Report
	BestCheckpoint string // empty if no checkpoint was saved
}

/*
Fit loads the configuration and trains the model it describes
*/
func Fit(ctx context.Context, configPath string) (*Result, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return FitConfig(ctx, cfg)
}

/*
FitConfig resolves data, model and callbacks, and only then creates the run
directory, so a bad configuration leaves no partial run behind
*/
func FitConfig(ctx context.Context, cfg *config.Config) (res *Result, err error) {
	seed := cfg.SeedEverything.Resolve()
	if err = cfg.AbsFiles(); err != nil {
		return nil, err
	}
	ds, err := dataset.Load(cfg.Data.Files, cfg.Data.DataKwargs)
	if err != nil {
		return nil, err
	}
	if err = cfg.Link(ds.InFeatures(), ds.OutFeatures()); err != nil {
		return nil, err
	}
	split, err := dataset.NewSplit(ds.Len(), cfg.Data.ValSplit, cfg.Data.SplitShuffle, seed)
	if err != nil {
		return nil, &config.Error{Key: "data.val_split", Err: err}
	}
	train := dataset.NewLoader(ds, split.Train, cfg.Data.BatchSize, cfg.Data.LoaderKwargs, seed)
	if train.Len() == 0 {
		return nil, &config.Error{Key: "data.batch_size", Err: xerrors.Errorf(
			"%d training windows make no batch of %d", len(split.Train), cfg.Data.BatchSize)}
	}
	valOpts := cfg.Data.LoaderKwargs
	valOpts.Shuffle, valOpts.DropLast = false, false
	val := dataset.NewLoader(ds, split.Validation, cfg.Data.BatchSize, valOpts, seed)

	m, err := model.New(cfg.Model.ClassPath, cfg.Model.InitArgs, seed)
	if err != nil {
		var ue *model.UnknownModelError
		if xerrors.As(err, &ue) {
			return nil, &config.Error{Key: "model.class_path", Err: err}
		}
		return nil, err
	}
	if cfg.Trainer.Float32() {
		nn.Round32(m.Params())
	}
	callbacks, err := cfg.Callbacks()
	if err != nil {
		return nil, err
	}

	run, err := tracking.Create(ctx, cfg.Trainer.DefaultRootDir, m.Name(), seed, time.Now())
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := run.Finish(context.Background(), err != nil); err == nil && e != nil {
			err = e
		}
	}()
	res = &Result{
		RunID:        run.ID,
		RunDir:       run.Dir,
		Model:        m.Name(),
		Seed:         seed,
		Params:       nn.Count(m.Params()),
		TrainWindows: len(split.Train),
		ValWindows:   len(split.Validation),
	}
	if err = cfg.Save(run.Path(tracking.ConfigFile)); err != nil {
		return nil, err
	}
	if err = ds.Scaling.Save(run.Path(tracking.ScalerFile)); err != nil {
		return nil, err
	}
	if err = logHparams(ctx, run, cfg); err != nil {
		return nil, err
	}
	for _, c := range callbacks {
		if ck, ok := c.(*model.ModelCheckpoint); ok {
			if ck.Dir == "" {
				ck.Dir = run.CheckpointDir()
			}
			res.BestCheckpoint = ck.BestPath()
		}
	}

	tracing := tracking.NoTracing()
	if cfg.Trainer.Trace {
		if tracing, err = tracking.StartTracing(run.Path(tracking.TraceFile), run); err != nil {
			return nil, err
		}
	}
	defer func() {
		if e := tracing.Shutdown(context.Background()); err == nil && e != nil {
			err = xerrors.Errorf("flush traces: %w", e)
		}
	}()

	zlog.Info("training started",
		"model", m.Name(), "run", run.Dir, "id", run.ID, "seed", seed, "params", res.Params,
		"train_windows", res.TrainWindows, "validation_windows", res.ValWindows,
		"workers", dataset.Workers(cfg.Data.LoaderKwargs.NumWorkers))

	t := model.Training{
		MaxEpochs:       cfg.Trainer.MaxEpochs,
		MinEpochs:       cfg.Trainer.MinEpochs,
		GradientClipVal: cfg.Trainer.GradientClipVal,
		LogEveryNSteps:  cfg.Trainer.LogEveryNSteps,
		Float32:         cfg.Trainer.Float32(),
		Tracer:          tracing.Tracer,
		Callbacks: append(callbacks,
			model.ProgressLogger{},
			tracking.ScalarLogger{Run: run},
			tracking.NewPromExporter(run.Path(tracking.MetricsFile), run)),
	}
	if res.Report, err = t.Fit(ctx, m, model.Dataset{Train: train, Validation: val}); err != nil {
		return nil, xerrors.Errorf("training %s in %s: %w", m.Name(), run.Dir, err)
	}
	if res.BestCheckpoint != "" {
		if _, e := os.Stat(res.BestCheckpoint); e != nil {
			res.BestCheckpoint = ""
		}
	}
	zlog.Info("training finished", "epochs", len(res.Report.History), "best_epoch", res.Report.TheBest,
		res.Report.Monitor, res.Report.Score)
	return res, nil
}

func logHparams(ctx context.Context, run *tracking.Run, cfg *config.Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return xerrors.Errorf("encode hparams: %w", err)
	}
	var tree map[interface{}]interface{}
	if err = yaml.Unmarshal(b, &tree); err != nil {
		return xerrors.Errorf("encode hparams: %w", err)
	}
	hp := map[string]string{}
	tracking.Hparams("", tree, hp)
	return run.Store.LogHparams(ctx, run.ID, hp)
}
