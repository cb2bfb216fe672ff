package model

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/nn"
	"golang.org/x/xerrors"
)

/*
Checkpoint is a model snapshot: class, hyper-parameters and weights,
stored as xz compressed JSON
*/
type Checkpoint struct {
	Class   string       `json:"class"`
	Hyper   Hyper        `json:"hyper"`
	Seed    int64        `json:"seed"`
	Epoch   int          `json:"epoch"`
	Step    int          `json:"step"`
	Metrics Metrics      `json:"metrics,omitempty"`
	Params  []ParamState `json:"params"`
}

type ParamState struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Value []float64 `json:"value"`
}

func NewCheckpoint(m Model, seed int64, epoch, step int, metrics Metrics) *Checkpoint {
	c := &Checkpoint{Class: m.Name(), Hyper: m.Hyper(), Seed: seed, Epoch: epoch, Step: step}
	if len(metrics) > 0 {
		c.Metrics = Metrics{}
		for k, v := range metrics {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				c.Metrics[k] = v
			}
		}
	}
	for _, p := range m.Params() {
		c.Params = append(c.Params, ParamState{
			Name:  p.Name,
			Shape: append([]int(nil), p.Shape...),
			Value: append([]float64(nil), p.Value...),
		})
	}
	return c
}

/*
Finite reports whether all stored weights are finite numbers
*/
func (c *Checkpoint) Finite() bool {
	for _, p := range c.Params {
		for _, v := range p.Value {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func (c *Checkpoint) Save(path string) error {
	if !c.Finite() {
		return xerrors.Errorf("save checkpoint %s: model weights are not finite", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return xerrors.Errorf("create checkpoint directory: %w", err)
	}
	err := fu.Output(path).WriteWhole(func(w io.Writer) error {
		xw, err := xz.NewWriter(w)
		if err != nil {
			return err
		}
		if err = json.NewEncoder(xw).Encode(c); err != nil {
			return err
		}
		return xw.Close()
	})
	if err != nil {
		return xerrors.Errorf("save checkpoint %s: %w", path, err)
	}
	return nil
}

func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("load checkpoint: %w", err)
	}
	defer f.Close()
	xr, err := xz.NewReader(f)
	if err != nil {
		return nil, xerrors.Errorf("load checkpoint %s: %w", path, err)
	}
	c := &Checkpoint{}
	if err = json.NewDecoder(xr).Decode(c); err != nil {
		return nil, xerrors.Errorf("load checkpoint %s: %w", path, err)
	}
	return c, nil
}

/*
Restore builds the checkpointed model and loads its weights
*/
func (c *Checkpoint) Restore() (Model, error) {
	m, err := New(c.Class, c.Hyper, c.Seed)
	if err != nil {
		return nil, err
	}
	if err = Assign(m.Params(), c.Params); err != nil {
		return nil, xerrors.Errorf("restore %s: %w", c.Class, err)
	}
	return m, nil
}

/*
Assign copies stored weights into params matching them by name and shape
*/
func Assign(params []*nn.Param, states []ParamState) error {
	byName := make(map[string]ParamState, len(states))
	for _, s := range states {
		byName[s.Name] = s
	}
	for _, p := range params {
		s, ok := byName[p.Name]
		if !ok {
			return xerrors.Errorf("parameter %s is not stored", p.Name)
		}
		if len(s.Value) != len(p.Value) {
			return xerrors.Errorf("parameter %s has %d values, stored %d", p.Name, len(p.Value), len(s.Value))
		}
		copy(p.Value, s.Value)
	}
	if len(params) != len(states) {
		return xerrors.Errorf("model has %d parameters, stored %d", len(params), len(states))
	}
	return nil
}
