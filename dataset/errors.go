package dataset

import (
	"fmt"
	"strings"
)

/*
DataLoadError reports a missing or malformed data file,
a schema mismatch between files or a series too short to window
*/
type DataLoadError struct {
	File string
	Err  error
}

func (e *DataLoadError) Error() string {
	if e.File == "" {
		return "data load: " + e.Err.Error()
	}
	return fmt.Sprintf("data load %v: %v", e.File, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

/*
DegenerateScaleError reports columns whose spread is zero so they can't be scaled.
Such columns are left with unit scale: they are only shifted by their offset.
*/
type DegenerateScaleError struct {
	Kind    ScalerKind
	Columns []string
}

func (e *DegenerateScaleError) Error() string {
	return fmt.Sprintf("%v scaler: zero spread in column(s) %s, left unscaled", e.Kind, strings.Join(e.Columns, ", "))
}
