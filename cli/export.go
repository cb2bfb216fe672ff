package cli

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go-ml.dev/pkg/tsdl/fu"
	"golang.org/x/xerrors"
)

type predictions struct {
	header []string
	rows   [][]float64
}

func newPredictions(columns []string) *predictions {
	p := &predictions{header: []string{"window", "step"}}
	for _, c := range columns {
		p.header = append(p.header, c+"_true", c+"_pred")
	}
	return p
}

func (p *predictions) add(window, step int, yTrue, yPred []float64) {
	row := []float64{float64(window), float64(step)}
	for j := range yTrue {
		row = append(row, yTrue[j], yPred[j])
	}
	p.rows = append(p.rows, row)
}

func (p *predictions) save(path string) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = fu.Output(path).WriteWhole(p.writeXLSX)
	case ".csv", ".tsv", "":
		err = fu.Output(path).WriteWhole(p.writeCSV(path))
	default:
		err = xerrors.Errorf("unsupported predictions format %q", filepath.Ext(path))
	}
	if err != nil {
		return xerrors.Errorf("export predictions: %w", err)
	}
	return nil
}

func (p *predictions) writeCSV(path string) func(io.Writer) error {
	return func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			cw.Comma = '\t'
		}
		if err := cw.Write(p.header); err != nil {
			return err
		}
		rec := make([]string, len(p.header))
		for _, row := range p.rows {
			for i, v := range row {
				if i < 2 {
					rec[i] = strconv.Itoa(int(v))
				} else {
					rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
				}
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

func (p *predictions) writeXLSX(w io.Writer) error {
	const sheet = "Predictions"
	fx := excelize.NewFile()
	defer fx.Close()
	if err := fx.SetSheetName(fx.GetSheetName(0), sheet); err != nil {
		return err
	}
	headStyle, err := fx.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range p.header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err = fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err = fx.SetCellStyle(sheet, cell, cell, headStyle); err != nil {
			return err
		}
	}
	for r, row := range p.rows {
		values := make([]interface{}, len(row))
		values[0], values[1] = int(row[0]), int(row[1])
		for i := 2; i < len(row); i++ {
			values[i] = row[i]
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err = fx.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return fx.Write(w)
}
