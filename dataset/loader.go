package dataset

import (
	"context"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"go-ml.dev/pkg/tsdl/fu"
	"go-ml.dev/pkg/tsdl/nn"
	"golang.org/x/sync/errgroup"
)

/*
Batch is a set of windows ready to feed a model,
X is (batch, sequence_length, in_features), Y is (batch, future_steps, out_features)
*/
type Batch struct {
	Indices []int
	X, Y    nn.Batch
}

/*
Loader iterates windows of a subset in mini-batches
*/
type Loader struct {
	Dataset   *Dataset
	Indices   []int
	BatchSize int
	Options   LoaderOptions
	Seed      int64
}

func NewLoader(ds *Dataset, indices []int, batchSize int, opts LoaderOptions, seed int64) *Loader {
	return &Loader{
		Dataset:   ds,
		Indices:   indices,
		BatchSize: fu.Maxi(batchSize, 1),
		Options:   opts,
		Seed:      seed,
	}
}

/*
Workers resolves the configured number of workers, -1 means one per physical core
*/
func Workers(n int) int {
	if n < 0 {
		if c := cpuid.CPU.PhysicalCores; c > 0 {
			return c
		}
		return runtime.NumCPU()
	}
	return n
}

/*
Size returns the number of windows in the subset
*/
func (l *Loader) Size() int {
	return len(l.Indices)
}

/*
Len returns the number of batches per epoch
*/
func (l *Loader) Len() int {
	n := len(l.Indices) / l.BatchSize
	if !l.Options.DropLast && len(l.Indices)%l.BatchSize != 0 {
		n++
	}
	return n
}

/*
Order returns the subset indices in the order of the given epoch
*/
func (l *Loader) Order(epoch int) []int {
	idx := append([]int(nil), l.Indices...)
	if l.Options.Shuffle {
		rng := fu.Rand(l.Seed+int64(epoch), fu.ShuffleStream)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	return idx
}

func (l *Loader) plan(epoch int) [][]int {
	idx := l.Order(epoch)
	r := make([][]int, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		r = append(r, idx[i*l.BatchSize:fu.Mini((i+1)*l.BatchSize, len(idx))])
	}
	return r
}

func (l *Loader) assemble(idx []int) Batch {
	b := Batch{Indices: idx, X: make(nn.Batch, len(idx)), Y: make(nn.Batch, len(idx))}
	for k, i := range idx {
		w := l.Dataset.Window(i)
		b.X[k] = w.Input
		b.Y[k] = w.Target
	}
	return b
}

/*
Iterate calls fn for every batch of the epoch in order.
With NumWorkers > 0 batches are assembled ahead by a bounded worker pool.
*/
func (l *Loader) Iterate(ctx context.Context, epoch int, fn func(Batch) error) error {
	plan := l.plan(epoch)
	workers := Workers(l.Options.NumWorkers)
	if workers == 0 {
		for _, idx := range plan {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(l.assemble(idx)); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	slots := make([]chan Batch, len(plan))
	for i := range slots {
		slots[i] = make(chan Batch, 1)
	}
	tokens := make(chan struct{}, workers*fu.Fnzi(l.Options.PrefetchFactor, DefaultPrefetchFactor))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, idx := range plan {
			select {
			case tokens <- struct{}{}:
			case <-gctx.Done():
				return
			}
			i, idx := i, idx
			g.Go(func() error {
				slots[i] <- l.assemble(idx)
				return nil
			})
		}
	}()

	var err error
	for i := range slots {
		select {
		case b := <-slots[i]:
			<-tokens
			err = fn(b)
		case <-gctx.Done():
			err = gctx.Err()
		}
		if err != nil {
			break
		}
	}
	cancel()
	<-launched
	if e := g.Wait(); err == nil && e != nil && e != context.Canceled {
		err = e
	}
	return err
}
