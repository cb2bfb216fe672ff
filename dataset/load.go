package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go-ml.dev/pkg/tsdl/fu"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

/*
Series is an ordered sequence of feature vectors, one row per timestep
*/
type Series struct {
	Columns []string
	Rows    [][]float64
}

func (s *Series) Len() int {
	return len(s.Rows)
}

/*
Column returns a copy of the j-th column
*/
func (s *Series) Column(j int) []float64 {
	r := make([]float64, len(s.Rows))
	for i, row := range s.Rows {
		r[i] = row[j]
	}
	return r
}

/*
ReadSeries reads all files in listed order and concatenates their rows.
Files are parsed concurrently, every file must have the same columns.
*/
func ReadSeries(paths []string, opts Options) (*Series, error) {
	if len(paths) == 0 {
		return nil, &DataLoadError{Err: xerrors.New("no data files")}
	}
	parts := make([]*Series, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() (err error) {
			parts[i], err = ReadFile(p, opts)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	first := parts[0]
	n := 0
	for i, s := range parts {
		if len(s.Columns) != len(first.Columns) {
			return nil, &DataLoadError{File: paths[i], Err: xerrors.Errorf(
				"has %d columns but %v has %d", len(s.Columns), paths[0], len(first.Columns))}
		}
		for j, c := range s.Columns {
			if c != first.Columns[j] {
				return nil, &DataLoadError{File: paths[i], Err: xerrors.Errorf(
					"column %d is %q but %v has %q", j+1, c, paths[0], first.Columns[j])}
			}
		}
		n += s.Len()
	}
	r := &Series{Columns: first.Columns, Rows: make([][]float64, 0, n)}
	for _, s := range parts {
		r.Rows = append(r.Rows, s.Rows...)
	}
	if len(opts.Columns) > 0 {
		return r.Select(opts.Columns, strings.Join(paths, ","))
	}
	return r, nil
}

/*
Select keeps only the named columns in the given order
*/
func (s *Series) Select(columns []string, file string) (*Series, error) {
	idx, err := columnIndex(s.Columns, columns, file)
	if err != nil {
		return nil, err
	}
	r := &Series{Columns: append([]string(nil), columns...), Rows: make([][]float64, len(s.Rows))}
	for i, row := range s.Rows {
		x := make([]float64, len(idx))
		for k, j := range idx {
			x[k] = row[j]
		}
		r.Rows[i] = x
	}
	return r, nil
}

func columnIndex(have, want []string, file string) ([]int, error) {
	pos := make(map[string]int, len(have))
	for j, c := range have {
		pos[c] = j
	}
	idx := make([]int, len(want))
	for k, c := range want {
		j, ok := pos[c]
		if !ok {
			return nil, &DataLoadError{File: file, Err: xerrors.Errorf("no column %q", c)}
		}
		idx[k] = j
	}
	return idx, nil
}

/*
ReadFile reads one delimited text file or xlsx workbook
*/
func ReadFile(path string, opts Options) (*Series, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataLoadError{File: path, Err: err}
	}
	defer f.Close()
	return ReadCSV(f, path, opts)
}

/*
ReadCSV reads delimited text from the reader, name is used in error messages
*/
func ReadCSV(rd io.Reader, name string, opts Options) (*Series, error) {
	r := csv.NewReader(rd)
	r.Comma = opts.delimiter(name)
	r.Comment = '#'
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, &DataLoadError{File: name, Err: err}
	}
	return parseRecords(records, name, opts)
}

func readWorkbook(path string, opts Options) (*Series, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &DataLoadError{File: path, Err: err}
	}
	defer f.Close()
	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &DataLoadError{File: path, Err: xerrors.New("workbook has no sheets")}
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &DataLoadError{File: path, Err: xerrors.Errorf("sheet %q: %w", sheet, err)}
	}
	return parseRecords(rows, path, opts)
}

func parseRecords(records [][]string, name string, opts Options) (*Series, error) {
	line := opts.SkipRows
	if line > len(records) {
		line = len(records)
	}
	records = records[line:]
	s := &Series{}
	if opts.header() {
		if len(records) == 0 {
			return nil, &DataLoadError{File: name, Err: xerrors.New("no header")}
		}
		for _, h := range records[0] {
			s.Columns = append(s.Columns, strings.TrimSpace(h))
		}
		records = records[1:]
		line++
	} else if len(records) > 0 {
		for j := range records[0] {
			s.Columns = append(s.Columns, fmt.Sprintf("col%d", j))
		}
	}
	if len(records) == 0 {
		return nil, &DataLoadError{File: name, Err: xerrors.New("no data rows")}
	}
	s.Rows = make([][]float64, len(records))
	for i, rec := range records {
		line++
		if len(rec) != len(s.Columns) {
			return nil, &DataLoadError{File: name, Err: xerrors.Errorf(
				"line %d: %d fields, expected %d", line, len(rec), len(s.Columns))}
		}
		row := make([]float64, len(rec))
		for j, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, &DataLoadError{File: name, Err: xerrors.Errorf(
					"line %d, column %q: %w", line, s.Columns[j], err)}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &DataLoadError{File: name, Err: xerrors.Errorf(
					"line %d, column %q: non-finite value %q", line, s.Columns[j], cell)}
			}
			if opts.Float32 {
				v = fu.Round32(v)
			}
			row[j] = v
		}
		s.Rows[i] = row
	}
	return s, nil
}
