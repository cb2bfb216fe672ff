package model

import (
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/nn"
)

/*
Model is a forecasting network: it maps input windows
(batch, sequence_length, in_features) to predictions
(batch, future_steps, out_features)
*/
type Model interface {
	// Name is the registered class name
	Name() string
	Hyper() Hyper
	// Forward predicts the batch, train enables dropout,
	// the returned function propagates prediction gradients to parameters
	Forward(x nn.Batch, train bool) (nn.Batch, nn.BatchBackward)
	// ComputeLoss returns the mean loss and its gradient by predictions
	ComputeLoss(pred, target nn.Batch) (float64, nn.Batch)
	ConfigureOptimizer() (nn.Optimizer, error)
	Params() []*nn.Param
}

/*
Hyper is the model configuration (model.init_args), immutable for a run
*/
type Hyper struct {
	InFeatures     int       `yaml:"in_features" validate:"gte=0"`
	OutFeatures    int       `yaml:"out_features,omitempty" validate:"gte=0"`
	SequenceLength int       `yaml:"sequence_length" validate:"gte=0"`
	FutureSteps    int       `yaml:"future_steps" validate:"gte=0"`
	LatentFeatures int       `yaml:"latent_features,omitempty" validate:"gte=0"`
	HiddenDim      int       `yaml:"hidden_dim,omitempty" validate:"gte=0"`
	Kernel         int       `yaml:"kernel,omitempty" validate:"gte=0"`
	Padding        int       `yaml:"padding,omitempty" validate:"gte=0"`
	LSTMLayers     int       `yaml:"lstm_layers,omitempty" validate:"gte=0"`
	Dropout        float64   `yaml:"dropout,omitempty" validate:"gte=0,lt=1"`
	OutAct         string    `yaml:"out_act,omitempty"`
	Loss           string    `yaml:"loss,omitempty"`
	Optimizer      string    `yaml:"optimizer,omitempty"`
	LR             float64   `yaml:"lr,omitempty" validate:"gte=0"`
	LRDecay        float64   `yaml:"lr_decay,omitempty" validate:"gte=0,lte=1"`
	WeightDecay    float64   `yaml:"weight_decay,omitempty" validate:"gte=0"`
	Momentum       float64   `yaml:"momentum,omitempty" validate:"gte=0,lt=1"`
	AdamBetas      []float64 `yaml:"adam_betas,omitempty" validate:"omitempty,len=2,dive,gte=0,lt=1"`
}

const (
	DefaultLoss       = "MSELoss"
	DefaultOptimizer  = "Adam"
	DefaultHiddenDim  = 32
	DefaultKernel     = 3
	DefaultLSTMLayers = 1
)

/*
WithDefaults fills unset values
*/
func (h Hyper) WithDefaults() Hyper {
	h.OutFeatures = fu.Fnzi(h.OutFeatures, h.InFeatures)
	h.LatentFeatures = fu.Fnzi(h.LatentFeatures, h.InFeatures)
	h.HiddenDim = fu.Fnzi(h.HiddenDim, DefaultHiddenDim)
	h.Kernel = fu.Fnzi(h.Kernel, DefaultKernel)
	h.LSTMLayers = fu.Fnzi(h.LSTMLayers, DefaultLSTMLayers)
	h.LR = fu.Fnzd(h.LR, nn.DefaultLR)
	if h.OutAct == "" {
		h.OutAct = "identity"
	}
	if h.Loss == "" {
		h.Loss = DefaultLoss
	}
	if h.Optimizer == "" {
		h.Optimizer = DefaultOptimizer
	}
	return h
}

/*
Metrics are named scalar values of an epoch
*/
type Metrics map[string]float64

const (
	EpochMetric     = "epoch"
	TrainLossMetric = "train_loss"
	ValLossMetric   = "val_loss"
	ValMaeMetric    = "val_mae"
	LRMetric        = "lr"
)

func (m Metrics) Get(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

/*
Report is a training report
*/
type Report struct {
	History []Metrics // metrics of all epochs
	Monitor string    // metric used to select the best epoch
	TheBest int       // the best epoch
	Score   float64   // the best value of the monitored metric
	Steps   int       // optimizer steps done
	Stopped bool      // stopped by a callback before max epochs
}

/*
Best returns metrics of the best epoch
*/
func (r *Report) Best() Metrics {
	if len(r.History) == 0 {
		return Metrics{}
	}
	return r.History[r.TheBest]
}

func (r *Report) finish() {
	if len(r.History) == 0 {
		return
	}
	r.Monitor = TrainLossMetric
	if _, ok := r.History[len(r.History)-1][ValLossMetric]; ok {
		r.Monitor = ValLossMetric
	}
	scores := make([]float64, len(r.History))
	for i, m := range r.History {
		scores[i] = m[r.Monitor]
	}
	r.TheBest = fu.Indmind(scores)
	r.Score = scores[r.TheBest]
}
