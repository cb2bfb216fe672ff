package model

import (
	"context"
	"math"

	"go-ml.dev/pkg/tsdl/dataset"
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/nn"
	"go-ml.dev/pkg/tsdl/zlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

/*
Training is the default training engine
*/
type Training struct {
	MaxEpochs       int          // maximum epochs
	MinEpochs       int          // callbacks can't stop training earlier
	GradientClipVal float64      // max global gradient norm, 0 disables clipping
	LogEveryNSteps  int          // OnTrainBatchEnd period in steps
	Float32         bool         // round parameters to float32 after every step
	Callbacks       []Callback   // invoked in order
	Tracer          trace.Tracer // the global tracer if nil
}

const (
	DefaultMaxEpochs      = 1000
	DefaultLogEveryNSteps = 50
)

type training struct {
	Training
	model     Model
	optimizer nn.Optimizer
	scheduler nn.ExponentialLR
	tracer    trace.Tracer
	step      int
}

/*
Fit trains the model on data until MaxEpochs or until a callback stops it
*/
func (t Training) Fit(ctx context.Context, m Model, data Dataset) (report *Report, err error) {
	if data.Train == nil || data.Train.Size() == 0 {
		return nil, xerrors.New("no training batches")
	}
	opt, err := m.ConfigureOptimizer()
	if err != nil {
		return nil, xerrors.Errorf("configure optimizer: %w", err)
	}
	x := &training{
		Training:  t,
		model:     m,
		optimizer: opt,
		scheduler: nn.ExponentialLR{Gamma: m.Hyper().LRDecay},
		tracer:    t.Tracer,
	}
	if x.tracer == nil {
		x.tracer = otel.Tracer("go-ml.dev/pkg/tsdl/model")
	}
	ctx, span := x.tracer.Start(ctx, "fit", trace.WithAttributes(
		attribute.String("model", m.Name()),
		attribute.Int("params", nn.Count(m.Params()))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for _, c := range t.Callbacks {
		if s, ok := c.(FitStarter); ok {
			if err = s.OnFitStart(ctx, m); err != nil {
				return nil, err
			}
		}
	}
	if t.Float32 {
		nn.Round32(m.Params())
	}
	report = &Report{}
	maxEpochs := fu.Fnzi(t.MaxEpochs, DefaultMaxEpochs)
	for epoch := 0; epoch < maxEpochs; epoch++ {
		w := &workout{epoch: epoch, training: x}
		var signal Signal
		if signal, err = w.run(ctx, data, report); err != nil {
			return nil, err
		}
		if signal == Stop && epoch+1 >= t.MinEpochs {
			report.Stopped = epoch+1 < maxEpochs
			break
		}
	}
	report.Steps = x.step
	report.finish()
	for _, c := range t.Callbacks {
		if e, ok := c.(FitEnder); ok {
			if err = e.OnFitEnd(ctx, report); err != nil {
				return nil, err
			}
		}
	}
	return report, nil
}

/*
workout is one epoch of a training run
*/
type workout struct {
	epoch    int
	training *training
}

func (w *workout) run(ctx context.Context, data Dataset, report *Report) (signal Signal, err error) {
	x := w.training
	ctx, span := x.tracer.Start(ctx, "epoch", trace.WithAttributes(attribute.Int("epoch", w.epoch)))
	defer span.End()

	lr := x.optimizer.LR()
	trainLoss, err := w.train(ctx, data.Train)
	if err != nil {
		return Continue, err
	}
	metrics := Metrics{
		EpochMetric:     float64(w.epoch),
		TrainLossMetric: trainLoss,
		LRMetric:        lr,
	}
	if data.hasValidation() {
		var v Metrics
		if v, err = Evaluate(ctx, x.model, data.Validation); err != nil {
			return Continue, err
		}
		metrics[ValLossMetric] = v[LossMetric]
		metrics[ValMaeMetric] = v[MaeMetric]
	}
	report.History = append(report.History, metrics)
	span.SetAttributes(attribute.Float64(TrainLossMetric, trainLoss))

	e := &Epoch{Index: w.epoch, Step: x.step, Metrics: metrics, Model: x.model, Optimizer: x.optimizer}
	for _, c := range x.Callbacks {
		s, err := c.OnEpochEnd(ctx, e)
		if err != nil {
			return Continue, err
		}
		if s == Stop {
			signal = Stop
		}
	}
	x.scheduler.Step(x.optimizer)
	return
}

func (w *workout) train(ctx context.Context, batches Batches) (float64, error) {
	x := w.training
	m := x.model
	params := m.Params()
	var total float64
	var count int
	x.optimizer.ZeroGrad()
	err := batches.Iterate(ctx, w.epoch, func(b dataset.Batch) error {
		pred, backward := m.Forward(b.X, true)
		loss, grad := m.ComputeLoss(pred, b.Y)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			zlog.Warning("non-finite training loss", "epoch", w.epoch, "step", x.step)
		}
		backward(grad)
		norm := nn.GradNorm(params)
		if x.GradientClipVal > 0 {
			nn.ClipGradNorm(params, x.GradientClipVal)
		}
		x.optimizer.Step()
		if x.Float32 {
			nn.Round32(params)
		}
		x.optimizer.ZeroGrad()
		x.step++
		total += loss * float64(len(b.X))
		count += len(b.X)
		if x.LogEveryNSteps > 0 && x.step%x.LogEveryNSteps == 0 {
			be := BatchEnd{Epoch: w.epoch, Step: x.step, Loss: loss, GradNorm: norm, LR: x.optimizer.LR()}
			for _, c := range x.Callbacks {
				if e, ok := c.(BatchEnder); ok {
					if err := e.OnTrainBatchEnd(ctx, be); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return math.NaN(), nil
	}
	return total / float64(count), nil
}

const (
	LossMetric = "loss"
	MseMetric  = "mse"
	MaeMetric  = "mae"
)

/*
Evaluate computes the loss, MSE and MAE of the model over all batches
without dropout
*/
func Evaluate(ctx context.Context, m Model, batches Batches) (Metrics, error) {
	var loss, se, ae float64
	var windows, elements int
	err := Predict(ctx, m, batches, func(b dataset.Batch, pred nn.Batch) error {
		l, _ := m.ComputeLoss(pred, b.Y)
		loss += l * float64(len(b.X))
		windows += len(b.X)
		for i := range pred {
			p, y := fu.Flatnr(pred[i]), fu.Flatnr(b.Y[i])
			se += fu.Mse(p, y) * float64(len(p))
			ae += fu.Mae(p, y) * float64(len(p))
			elements += len(p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if windows == 0 {
		return Metrics{}, nil
	}
	return Metrics{
		LossMetric: loss / float64(windows),
		MseMetric:  se / float64(elements),
		MaeMetric:  ae / float64(elements),
	}, nil
}

/*
Predict runs the model in inference mode over batches in loader order
*/
func Predict(ctx context.Context, m Model, batches Batches, fn func(dataset.Batch, nn.Batch) error) error {
	return batches.Iterate(ctx, 0, func(b dataset.Batch) error {
		pred, _ := m.Forward(b.X, false)
		return fn(b, pred)
	})
}
