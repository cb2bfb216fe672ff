package model

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"go-ml.dev/pkg/tsdl/dataset"
	"go-ml.dev/pkg/tsdl/zlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/xerrors"
	"gotest.tools/assert"
	"gotest.tools/assert/cmp"
)

type testDir string

func newTestDir(t *testing.T) testDir {
	return testDir(t.TempDir())
}

func (d testDir) Join(parts ...string) string {
	return filepath.Join(append([]string{string(d)}, parts...)...)
}

func sineData(t *testing.T, n, L, F int, val float64) Dataset {
	s := &dataset.Series{Columns: []string{"x"}}
	for i := 0; i < n; i++ {
		s.Rows = append(s.Rows, []float64{math.Sin(float64(i) / 3)})
	}
	params, err := dataset.FitScaler(dataset.NoScaling, s)
	assert.NilError(t, err)
	ds, err := dataset.New(s, params, nil, dataset.Options{SequenceLength: L, FutureSteps: F})
	assert.NilError(t, err)
	split, err := dataset.NewSplit(ds.Len(), val, false, 1)
	assert.NilError(t, err)
	return Dataset{
		Train:      dataset.NewLoader(ds, split.Train, 8, dataset.LoaderOptions{Shuffle: true}, 1),
		Validation: dataset.NewLoader(ds, split.Validation, 8, dataset.LoaderOptions{}, 1),
	}
}

func linearModel(t *testing.T, lr float64) Model {
	m, err := New("Linear", Hyper{InFeatures: 1, SequenceLength: 4, FutureSteps: 1, LR: lr}, 5)
	assert.NilError(t, err)
	return m
}

type recorder struct {
	epochs  []int
	batches int
	started bool
	report  *Report
	stopAt  int
}

func (r *recorder) OnFitStart(ctx context.Context, m Model) error {
	r.started = true
	return nil
}

func (r *recorder) OnEpochEnd(ctx context.Context, e *Epoch) (Signal, error) {
	r.epochs = append(r.epochs, e.Index)
	if r.stopAt > 0 && e.Index+1 >= r.stopAt {
		return Stop, nil
	}
	return Continue, nil
}

func (r *recorder) OnTrainBatchEnd(ctx context.Context, b BatchEnd) error {
	r.batches++
	return nil
}

func (r *recorder) OnFitEnd(ctx context.Context, rep *Report) error {
	r.report = rep
	return nil
}

func TestFitReducesLoss(t *testing.T) {
	data := sineData(t, 205, 4, 1, 0.2)
	rec := &recorder{}
	report, err := Training{MaxEpochs: 40, LogEveryNSteps: 5, Callbacks: []Callback{rec, ProgressLogger{}}}.
		Fit(context.Background(), linearModel(t, 0.01), data)
	assert.NilError(t, err)
	assert.Equal(t, len(report.History), 40)
	assert.Assert(t, rec.started)
	assert.Equal(t, rec.report, report)
	assert.Equal(t, len(rec.epochs), 40)
	// 201 windows: 161 train in 21 batches per epoch
	assert.Equal(t, report.Steps, 40*21)
	assert.Equal(t, rec.batches, 40*21/5)
	first, last := report.History[0], report.History[39]
	assert.Assert(t, last[TrainLossMetric] < first[TrainLossMetric]/2)
	assert.Assert(t, last[ValLossMetric] < first[ValLossMetric]/2)
	assert.Equal(t, report.Monitor, ValLossMetric)
	assert.Equal(t, report.Score, report.Best()[ValLossMetric])
	assert.Assert(t, !report.Stopped)
}

func TestFitWithoutValidation(t *testing.T) {
	data := sineData(t, 60, 4, 1, 0)
	report, err := Training{MaxEpochs: 3}.Fit(context.Background(), linearModel(t, 0), data)
	assert.NilError(t, err)
	_, ok := report.History[0][ValLossMetric]
	assert.Assert(t, !ok)
	assert.Equal(t, report.Monitor, TrainLossMetric)
}

func TestMinEpochs(t *testing.T) {
	data := sineData(t, 60, 4, 1, 0.2)
	rec := &recorder{stopAt: 1}
	report, err := Training{MaxEpochs: 10, MinEpochs: 4, Callbacks: []Callback{rec}}.
		Fit(context.Background(), linearModel(t, 0), data)
	assert.NilError(t, err)
	assert.Equal(t, len(report.History), 4)
	assert.Assert(t, report.Stopped)
}

func TestLRDecay(t *testing.T) {
	data := sineData(t, 60, 4, 1, 0.2)
	m, err := New("Linear", Hyper{InFeatures: 1, SequenceLength: 4, FutureSteps: 1, LR: 0.1, LRDecay: 0.5}, 1)
	assert.NilError(t, err)
	report, err := Training{MaxEpochs: 3}.Fit(context.Background(), m, data)
	assert.NilError(t, err)
	assert.Equal(t, report.History[0][LRMetric], 0.1)
	assert.Equal(t, report.History[1][LRMetric], 0.05)
	assert.Equal(t, report.History[2][LRMetric], 0.025)
}

func TestFloat32Precision(t *testing.T) {
	data := sineData(t, 60, 4, 1, 0.2)
	m := linearModel(t, 0.01)
	_, err := Training{MaxEpochs: 2, Float32: true}.Fit(context.Background(), m, data)
	assert.NilError(t, err)
	for _, p := range m.Params() {
		for _, v := range p.Value {
			assert.Equal(t, float64(float32(v)), v)
		}
	}
}

func TestFitCanceled(t *testing.T) {
	data := sineData(t, 60, 4, 1, 0.2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Training{MaxEpochs: 2}.Fit(ctx, linearModel(t, 0), data)
	assert.Assert(t, xerrors.Is(err, context.Canceled))
}

func TestFitNeedsTrainingData(t *testing.T) {
	_, err := Training{}.Fit(context.Background(), linearModel(t, 0), Dataset{Train: memBatches{}})
	assert.ErrorContains(t, err, "no training batches")
}

func metricsOf(vals ...float64) []*Epoch {
	r := make([]*Epoch, len(vals))
	for i, v := range vals {
		r[i] = &Epoch{Index: i, Metrics: Metrics{ValLossMetric: v}}
	}
	return r
}

func TestEarlyStopping(t *testing.T) {
	cases := []struct {
		name   string
		cb     EarlyStopping
		values []float64
		stopAt int // -1 if never
	}{
		{"improving", EarlyStopping{Patience: 2}, []float64{5, 4, 3, 2, 1}, -1},
		{"plateau", EarlyStopping{Patience: 2}, []float64{5, 4, 4, 4.5, 3}, 3},
		{"min delta", EarlyStopping{Patience: 2, MinDelta: 0.5}, []float64{5, 4.8, 4.7, 1}, 2},
		{"max mode", EarlyStopping{Patience: 1, Mode: Max}, []float64{1, 2, 1.5}, 2},
		{"zero patience", EarlyStopping{Patience: 0}, []float64{1, 2}, 1},
		{"nan", EarlyStopping{Patience: 5}, []float64{1, math.NaN()}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cb := c.cb
			stopped := -1
			for _, e := range metricsOf(c.values...) {
				s, err := cb.OnEpochEnd(context.Background(), e)
				assert.NilError(t, err)
				if s == Stop {
					stopped = e.Index
					break
				}
			}
			assert.Equal(t, stopped, c.stopAt)
		})
	}
}

func TestEarlyStoppingMissingMetric(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer zlog.Use(zap.New(core))()
	cb := &EarlyStopping{Monitor: "val_accuracy", Patience: 1}
	for i := 0; i < 3; i++ {
		s, err := cb.OnEpochEnd(context.Background(), &Epoch{Index: i, Metrics: Metrics{ValLossMetric: 1}})
		assert.NilError(t, err)
		assert.Equal(t, s, Continue)
	}
	assert.Equal(t, logs.FilterMessage("early stopping metric is not logged").Len(), 1)
}

func TestEarlyStoppingInFit(t *testing.T) {
	data := sineData(t, 60, 4, 1, 0.2)
	// a vanishing learning rate never improves
	m, err := New("Linear", Hyper{InFeatures: 1, SequenceLength: 4, FutureSteps: 1, Optimizer: "SGD", LR: 1e-300}, 1)
	assert.NilError(t, err)
	report, err := Training{MaxEpochs: 50, Callbacks: []Callback{&EarlyStopping{Patience: 3}}}.
		Fit(context.Background(), m, data)
	assert.NilError(t, err)
	assert.Equal(t, len(report.History), 4)
	assert.Assert(t, report.Stopped)
}

func TestCheckpoints(t *testing.T) {
	dir := newTestDir(t)
	data := sineData(t, 100, 4, 1, 0.2)
	m, err := New("LSTM", Hyper{InFeatures: 1, SequenceLength: 4, FutureSteps: 1, HiddenDim: 3, LR: 0.01}, 9)
	assert.NilError(t, err)
	ckpt := &ModelCheckpoint{Dir: dir.Join("checkpoints"), SaveLast: true, Seed: 9}
	report, err := Training{MaxEpochs: 5, Callbacks: []Callback{ckpt}}.Fit(context.Background(), m, data)
	assert.NilError(t, err)
	assert.Equal(t, ckpt.BestEpoch, report.TheBest)
	assert.Equal(t, ckpt.BestScore, report.Score)

	last, err := LoadCheckpoint(ckpt.LastPath())
	assert.NilError(t, err)
	assert.Equal(t, last.Class, "LSTM")
	assert.Equal(t, last.Epoch, 4)
	restored, err := last.Restore()
	assert.NilError(t, err)
	assert.DeepEqual(t, restored.Params(), m.Params())

	a, err := Evaluate(context.Background(), m, data.Validation)
	assert.NilError(t, err)
	b, err := Evaluate(context.Background(), restored, data.Validation)
	assert.NilError(t, err)
	assert.DeepEqual(t, a, b)

	best, err := LoadCheckpoint(ckpt.BestPath())
	assert.NilError(t, err)
	assert.Equal(t, best.Epoch, report.TheBest)
	assert.Equal(t, best.Metrics[ValLossMetric], report.Score)
}

func TestDivergingFitStopsCleanly(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer zlog.Use(zap.New(core))()
	dir := newTestDir(t)
	data := sineData(t, 60, 4, 1, 0.2)
	m, err := New("Linear", Hyper{InFeatures: 1, SequenceLength: 4, FutureSteps: 1, Optimizer: "SGD", LR: 1e200}, 1)
	assert.NilError(t, err)
	ckpt := &ModelCheckpoint{Dir: dir.Join("checkpoints"), SaveLast: true}
	report, err := Training{MaxEpochs: 20, Callbacks: []Callback{&EarlyStopping{Patience: 3}, ckpt}}.
		Fit(context.Background(), m, data)
	assert.NilError(t, err)
	assert.Assert(t, report.Stopped)
	assert.Assert(t, len(report.History) < 20)
	assert.Equal(t, logs.FilterMessage("model weights are not finite, checkpoint is not saved").Len(), 1)

	c := NewCheckpoint(m, 1, 0, 0, nil)
	assert.Assert(t, !c.Finite())
	assert.ErrorContains(t, c.Save(dir.Join("nan.ckpt.xz")), "not finite")
}

func TestReportSkipsNaNEpochs(t *testing.T) {
	r := &Report{History: []Metrics{
		{TrainLossMetric: 1, ValLossMetric: math.NaN()},
		{TrainLossMetric: 0.5, ValLossMetric: 0.8},
		{TrainLossMetric: 0.4, ValLossMetric: 0.6},
	}}
	r.finish()
	assert.Equal(t, r.Monitor, ValLossMetric)
	assert.Equal(t, r.TheBest, 2)
	assert.Equal(t, r.Score, 0.6)
}

func TestAssignMismatch(t *testing.T) {
	m := linearModel(t, 0)
	c := NewCheckpoint(m, 1, 0, 0, nil)
	c.Params[0].Value = c.Params[0].Value[1:]
	assert.ErrorContains(t, Assign(m.Params(), c.Params), "stored")
	c = NewCheckpoint(m, 1, 0, 0, nil)
	assert.ErrorContains(t, Assign(m.Params(), c.Params[:1]), "not stored")
}

func TestEvaluate(t *testing.T) {
	m := linearModel(t, 0)
	data := sineData(t, 40, 4, 1, 0.5)
	v, err := Evaluate(context.Background(), m, data.Validation)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(v[LossMetric]-v[MseMetric]) < 1e-12)
	assert.Assert(t, v[MaeMetric] > 0)
	assert.Assert(t, cmp.Len(v, 3))
}
