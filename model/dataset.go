package model

import (
	"context"

	"go-ml.dev/pkg/tsdl/dataset"
)

/*
Batches is a source of batches iterated once per epoch
*/
type Batches interface {
	Iterate(ctx context.Context, epoch int, fn func(dataset.Batch) error) error
	Size() int
}

/*
Dataset is the data to feed a training run
*/
type Dataset struct {
	Train      Batches
	Validation Batches // optional, skipped if nil or empty
}

func (d Dataset) hasValidation() bool {
	return d.Validation != nil && d.Validation.Size() > 0
}
