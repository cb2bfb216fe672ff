package model

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"go-ml.dev/pkg/tsdl/nn"
	"go-ml.dev/pkg/tsdl/zlog"
)

/*
Signal tells the training engine whether to go on after an epoch
*/
type Signal int

const (
	Continue Signal = iota
	Stop
)

/*
Epoch is the state passed to callbacks at the end of an epoch
*/
type Epoch struct {
	Index     int
	Step      int
	Metrics   Metrics
	Model     Model
	Optimizer nn.Optimizer
}

/*
BatchEnd is the state passed to callbacks every LogEveryNSteps steps
*/
type BatchEnd struct {
	Epoch, Step int
	Loss        float64
	GradNorm    float64 // before clipping
	LR          float64
}

/*
Callback observes a training run, any callback can stop it
*/
type Callback interface {
	OnEpochEnd(ctx context.Context, e *Epoch) (Signal, error)
}

type FitStarter interface {
	OnFitStart(ctx context.Context, m Model) error
}

type BatchEnder interface {
	OnTrainBatchEnd(ctx context.Context, b BatchEnd) error
}

type FitEnder interface {
	OnFitEnd(ctx context.Context, r *Report) error
}

/*
Mode selects whether lower or higher metric values are better
*/
type Mode string

const (
	Min Mode = "min"
	Max Mode = "max"
)

func (m Mode) improved(v, best, delta float64) bool {
	if m == Max {
		return v > best+delta
	}
	return v < best-delta
}

func (m Mode) orDefault() Mode {
	if m == "" {
		return Min
	}
	return m
}

/*
EarlyStopping stops training when the monitored metric
has not improved for Patience epochs
*/
type EarlyStopping struct {
	Monitor  string  `yaml:"monitor"`
	Mode     Mode    `yaml:"mode" validate:"omitempty,oneof=min max"`
	Patience int     `yaml:"patience" validate:"gte=0"`
	MinDelta float64 `yaml:"min_delta" validate:"gte=0"`

	best   float64
	wait   int
	seen   bool
	warned bool
}

const DefaultPatience = 3

func (c *EarlyStopping) OnEpochEnd(ctx context.Context, e *Epoch) (Signal, error) {
	monitor := c.monitor()
	v, ok := e.Metrics.Get(monitor)
	if !ok {
		if !c.warned {
			zlog.Warning("early stopping metric is not logged", "monitor", monitor)
			c.warned = true
		}
		return Continue, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		zlog.Warning("early stopping on non-finite metric", "monitor", monitor, "epoch", e.Index)
		return Stop, nil
	}
	if !c.seen || c.Mode.orDefault().improved(v, c.best, c.MinDelta) {
		c.best, c.wait, c.seen = v, 0, true
		return Continue, nil
	}
	c.wait++
	if c.wait >= c.Patience {
		zlog.Infof("early stopping at epoch %d, %s did not improve for %d epochs, best %.6g",
			e.Index, monitor, c.wait, c.best)
		return Stop, nil
	}
	return Continue, nil
}

func (c *EarlyStopping) monitor() string {
	if c.Monitor == "" {
		return ValLossMetric
	}
	return c.Monitor
}

/*
ModelCheckpoint writes best.ckpt.xz when the monitored metric improves
and last.ckpt.xz after every epoch if SaveLast is set
*/
type ModelCheckpoint struct {
	Monitor  string `yaml:"monitor"`
	Mode     Mode   `yaml:"mode" validate:"omitempty,oneof=min max"`
	SaveLast bool   `yaml:"save_last"`
	Dir      string `yaml:"dirpath"` // <run dir>/checkpoints if empty
	Seed     int64  `yaml:"-"`

	BestScore float64 `yaml:"-"`
	BestEpoch int     `yaml:"-"`
	seen      bool
	warned    bool
	diverged  bool
}

const (
	BestCheckpoint = "best.ckpt.xz"
	LastCheckpoint = "last.ckpt.xz"
)

func (c *ModelCheckpoint) BestPath() string {
	return filepath.Join(c.Dir, BestCheckpoint)
}

func (c *ModelCheckpoint) LastPath() string {
	return filepath.Join(c.Dir, LastCheckpoint)
}

func (c *ModelCheckpoint) OnEpochEnd(ctx context.Context, e *Epoch) (Signal, error) {
	monitor := c.Monitor
	if monitor == "" {
		monitor = ValLossMetric
	}
	if _, ok := e.Metrics[monitor]; !ok && monitor == ValLossMetric {
		monitor = TrainLossMetric
	}
	ckpt := NewCheckpoint(e.Model, c.Seed, e.Index, e.Step, e.Metrics)
	if !ckpt.Finite() {
		// earlier checkpoints are kept
		if !c.diverged {
			zlog.Warning("model weights are not finite, checkpoint is not saved", "epoch", e.Index)
			c.diverged = true
		}
		return Continue, nil
	}
	if v, ok := e.Metrics.Get(monitor); !ok {
		if !c.warned {
			zlog.Warning("checkpoint metric is not logged, only the last model is kept", "monitor", monitor)
			c.warned = true
		}
	} else if !math.IsNaN(v) && !math.IsInf(v, 0) && (!c.seen || c.Mode.orDefault().improved(v, c.BestScore, 0)) {
		c.BestScore, c.BestEpoch, c.seen = v, e.Index, true
		if err := ckpt.Save(c.BestPath()); err != nil {
			return Continue, err
		}
	}
	if c.SaveLast || !c.seen {
		if err := ckpt.Save(c.LastPath()); err != nil {
			return Continue, err
		}
	}
	return Continue, nil
}

/*
ProgressLogger logs metrics at the end of every epoch
and the training loss every LogEveryNSteps steps
*/
type ProgressLogger struct{}

func (ProgressLogger) OnEpochEnd(ctx context.Context, e *Epoch) (Signal, error) {
	m := e.Metrics
	s := fmt.Sprintf("[%3d] loss: %.5f", e.Index, m[TrainLossMetric])
	if v, ok := m[ValLossMetric]; ok {
		s += fmt.Sprintf("/%.5f, mae: %.5f", v, m[ValMaeMetric])
	}
	zlog.Infof("%s, lr: %.3g", s, m[LRMetric])
	return Continue, nil
}

func (ProgressLogger) OnTrainBatchEnd(ctx context.Context, b BatchEnd) error {
	zlog.Debugf("[%3d] step %d loss: %.5f, grad norm: %.4g", b.Epoch, b.Step, b.Loss, b.GradNorm)
	return nil
}
