package tracking

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go-ml.dev/pkg/tsdl/model"
	"golang.org/x/xerrors"
)

/*
ScalarLogger writes epoch metrics and periodic step losses to the run store
*/
type ScalarLogger struct {
	Run *Run
}

func (l ScalarLogger) OnEpochEnd(ctx context.Context, e *model.Epoch) (model.Signal, error) {
	return model.Continue, l.Run.Store.LogScalars(ctx, l.Run.ID, e.Index, e.Step, finite(e.Metrics))
}

func (l ScalarLogger) OnTrainBatchEnd(ctx context.Context, b model.BatchEnd) error {
	return l.Run.Store.LogScalars(ctx, l.Run.ID, b.Epoch, b.Step, finite(map[string]float64{
		"train_loss_step": b.Loss,
		"grad_norm":       b.GradNorm,
	}))
}

func (l ScalarLogger) OnFitEnd(ctx context.Context, r *model.Report) error {
	if len(r.History) == 0 {
		return nil
	}
	return l.Run.Store.LogScalars(ctx, l.Run.ID, r.TheBest, r.Steps, finite(map[string]float64{
		"best_" + r.Monitor: r.Score,
		"best_epoch":        float64(r.TheBest),
	}))
}

func finite(m map[string]float64) map[string]float64 {
	r := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			r[k] = v
		}
	}
	return r
}

/*
PromExporter keeps training gauges in its own registry
and rewrites a Prometheus text-format file after every epoch
*/
type PromExporter struct {
	Path string

	registry  *prometheus.Registry
	metric    *prometheus.GaugeVec
	epoch     prometheus.Gauge
	steps     prometheus.Counter
	batchLoss prometheus.Histogram
	lastStep  int
}

func NewPromExporter(path string, r *Run) *PromExporter {
	labels := prometheus.Labels{"model": r.Model, "run_id": r.ID}
	p := &PromExporter{
		Path:     path,
		registry: prometheus.NewRegistry(),
		metric: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "tsdl_epoch_metric",
			Help:        "Metric value at the end of the last epoch",
			ConstLabels: labels,
		}, []string{"name"}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tsdl_epoch",
			Help:        "Last completed epoch",
			ConstLabels: labels,
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tsdl_optimizer_steps_total",
			Help:        "Optimizer steps done",
			ConstLabels: labels,
		}),
		batchLoss: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "tsdl_batch_loss",
			Help:        "Distribution of sampled training batch losses",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-4, 4, 12),
		}),
	}
	p.registry.MustRegister(p.metric, p.epoch, p.steps, p.batchLoss)
	return p
}

func (p *PromExporter) OnTrainBatchEnd(ctx context.Context, b model.BatchEnd) error {
	if !math.IsNaN(b.Loss) {
		p.batchLoss.Observe(b.Loss)
	}
	return nil
}

func (p *PromExporter) OnEpochEnd(ctx context.Context, e *model.Epoch) (model.Signal, error) {
	names := make([]string, 0, len(e.Metrics))
	for k := range e.Metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if k != model.EpochMetric {
			p.metric.WithLabelValues(k).Set(e.Metrics[k])
		}
	}
	p.epoch.Set(float64(e.Index))
	p.steps.Add(float64(e.Step - p.lastStep))
	p.lastStep = e.Step
	return model.Continue, p.Write()
}

func (p *PromExporter) Write() error {
	if err := prometheus.WriteToTextfile(p.Path, p.registry); err != nil {
		return xerrors.Errorf("write %s: %w", p.Path, err)
	}
	return nil
}

/*
Hparams flattens nested configuration values into dotted keys
*/
func Hparams(prefix string, v interface{}, out map[string]string) {
	switch x := v.(type) {
	case map[interface{}]interface{}:
		for k, e := range x {
			Hparams(join(prefix, fmt.Sprint(k)), e, out)
		}
	case map[string]interface{}:
		for k, e := range x {
			Hparams(join(prefix, k), e, out)
		}
	case []interface{}:
		for i, e := range x {
			Hparams(fmt.Sprintf("%s[%d]", prefix, i), e, out)
		}
	case nil:
	default:
		out[prefix] = fmt.Sprint(x)
	}
}

func join(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}
