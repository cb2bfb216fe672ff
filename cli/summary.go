package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/klauspost/cpuid/v2"
	"go-ml.dev/pkg/tsdl/model"
)

/*
WriteSummary renders the training result as a table
*/
func WriteSummary(w io.Writer, r *Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("TRAINING SUMMARY")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Model", r.Model},
		{"Run", r.RunDir},
		{"Run ID", r.RunID},
		{"Seed", r.Seed},
		{"Parameters", r.Params},
		{"Windows", fmt.Sprintf("%d train / %d validation", r.TrainWindows, r.ValWindows)},
		{"Host", fmt.Sprintf("%s, %d cores", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores)},
	})
	if rep := r.Report; rep != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Epochs", len(rep.History)},
			{"Steps", rep.Steps},
			{"Stopped early", rep.Stopped},
			{"Best epoch", rep.TheBest},
			{"Best " + rep.Monitor, fmt.Sprintf("%.6g", rep.Score)},
		})
		best := rep.Best()
		names := make([]string, 0, len(best))
		for k := range best {
			if k != model.EpochMetric && k != rep.Monitor {
				names = append(names, k)
			}
		}
		sort.Strings(names)
		for _, k := range names {
			t.AppendRow(table.Row{k, fmt.Sprintf("%.6g", best[k])})
		}
	}
	if r.BestCheckpoint != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Checkpoint", r.BestCheckpoint})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
	})
	t.Render()
}

/*
WriteEvaluation renders evaluation errors as a table
*/
func WriteEvaluation(w io.Writer, e *Evaluation) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s EPOCH %d, %d %s WINDOWS", e.Model, e.Epoch, e.Windows, e.Subset))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"", "MSE", "MAE", "RMSE"})
	row := func(name string, x Errors) table.Row {
		return table.Row{name, fmt.Sprintf("%.6g", x.MSE), fmt.Sprintf("%.6g", x.MAE), fmt.Sprintf("%.6g", x.RMSE)}
	}
	t.AppendRow(row("scaled", e.Scaled))
	t.AppendRow(row("original", e.Original))
	if len(e.Columns) > 1 {
		t.AppendSeparator()
		for _, c := range e.Columns {
			t.AppendRow(row(c.Column, c.Original))
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}
