package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go-ml.dev/pkg/tsdl/zlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/xerrors"
	"gotest.tools/assert"
	"gotest.tools/assert/cmp"
)

type testDir string

type testFile struct {
	name, content string
}

func withFile(name, content string) testFile {
	return testFile{name, content}
}

func newTestDir(t *testing.T, files ...testFile) testDir {
	t.Helper()
	d := testDir(t.TempDir())
	for _, f := range files {
		assert.NilError(t, os.WriteFile(d.Join(f.name), []byte(f.content), 0o644))
	}
	return d
}

func (d testDir) Path() string {
	return string(d)
}

func (d testDir) Join(parts ...string) string {
	return filepath.Join(append([]string{string(d)}, parts...)...)
}

func csvText(header string, rows int, f func(i int) []float64) string {
	b := &strings.Builder{}
	b.WriteString(header + "\n")
	for i := 0; i < rows; i++ {
		v := f(i)
		s := make([]string, len(v))
		for j, x := range v {
			s[j] = fmt.Sprint(x)
		}
		b.WriteString(strings.Join(s, ",") + "\n")
	}
	return b.String()
}

func sine(i int) []float64 {
	return []float64{math.Sin(float64(i) / 10), math.Cos(float64(i) / 7), float64(i % 13)}
}

func opts(L, F int) Options {
	return Options{Scaler: "standardize", SequenceLength: L, FutureSteps: F}
}

func TestWindowCount(t *testing.T) {
	dir := newTestDir(t, withFile("a.csv", csvText("a,b,c", 1000, sine)))

	ds, err := Load([]string{dir.Join("a.csv")}, opts(10, 5))
	assert.NilError(t, err)
	assert.Equal(t, ds.Len(), 986)
	assert.Equal(t, ds.InFeatures(), 3)
	for i := 0; i < ds.Len(); i++ {
		w := ds.Window(i)
		assert.Assert(t, w.Start+ds.SequenceLength+ds.FutureSteps <= len(ds.Rows))
		assert.Equal(t, len(w.Input), 10)
		assert.Equal(t, len(w.Target), 5)
		assert.DeepEqual(t, w.Target[0], ds.Rows[i+10])
	}
}

func TestWindowProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for k := 0; k < 50; k++ {
		n := 1 + rng.Intn(60)
		L := 1 + rng.Intn(10)
		F := 1 + rng.Intn(5)
		s := &Series{Columns: []string{"x"}}
		for i := 0; i < n; i++ {
			s.Rows = append(s.Rows, []float64{float64(i)})
		}
		params, _ := FitScaler(NoScaling, s)
		ds, err := New(s, params, []string{"mem"}, Options{SequenceLength: L, FutureSteps: F})
		if n-L-F+1 <= 0 {
			var le *DataLoadError
			assert.Assert(t, xerrors.As(err, &le), "n=%d L=%d F=%d", n, L, F)
			continue
		}
		assert.NilError(t, err)
		assert.Equal(t, ds.Len(), n-L-F+1)
		for i := 0; i < ds.Len(); i++ {
			w := ds.Window(i)
			assert.Assert(t, w.Start+L+F <= n)
			assert.Equal(t, w.Target[F-1][0], float64(i+L+F-1))
		}
	}
}

func TestStandardizeRoundTrip(t *testing.T) {
	dir := newTestDir(t, withFile("a.csv", csvText("a,b,c", 300, sine)))
	s, err := ReadSeries([]string{dir.Join("a.csv")}, Options{})
	assert.NilError(t, err)
	for _, kind := range []ScalerKind{Standardize, MinMax, NoScaling} {
		p, err := FitScaler(kind, s)
		assert.NilError(t, err)
		for _, row := range s.Rows {
			back := p.Inverse(p.Transform(row))
			for j := range row {
				assert.Assert(t, math.Abs(back[j]-row[j]) < 1e-9, "%v: %v != %v", kind, back[j], row[j])
			}
		}
	}

	p, _ := FitScaler(MinMax, s)
	for _, row := range s.Rows {
		for _, v := range p.Transform(row) {
			assert.Assert(t, v >= 0 && v <= 1)
		}
	}
}

func TestScalingIdempotent(t *testing.T) {
	dir := newTestDir(t, withFile("a.csv", csvText("a,b,c", 200, sine)),
		withFile("b.csv", csvText("a,b,c", 100, func(i int) []float64 { return sine(i + 200) })))
	files := []string{dir.Join("a.csv"), dir.Join("b.csv")}
	a, err := Load(files, opts(4, 2))
	assert.NilError(t, err)
	b, err := Load(files, opts(4, 2))
	assert.NilError(t, err)
	assert.DeepEqual(t, a.Scaling, b.Scaling)
	assert.Equal(t, len(a.Rows), 300)

	path := dir.Join("scaler.json")
	assert.NilError(t, a.Scaling.Save(path))
	c, err := LoadScaling(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, c, a.Scaling)

	d, err := LoadWithScaler(files[:1], opts(4, 2), c)
	assert.NilError(t, err)
	assert.DeepEqual(t, d.Rows, a.Rows[:200])
}

func TestMismatchedColumns(t *testing.T) {
	dir := newTestDir(t, withFile("a.csv", csvText("a,b,c", 50, sine)),
		withFile("b.csv", csvText("a,b", 50, func(i int) []float64 { return sine(i)[:2] })),
		withFile("c.csv", csvText("a,x,c", 50, sine)),
		withFile("bad.csv", "a,b\n1,2\n3,oops\n"))

	var le *DataLoadError
	_, err := Load([]string{dir.Join("a.csv"), dir.Join("b.csv")}, opts(4, 2))
	assert.Assert(t, xerrors.As(err, &le))
	assert.Equal(t, le.File, dir.Join("b.csv"))
	assert.ErrorContains(t, err, "has 2 columns")

	_, err = Load([]string{dir.Join("a.csv"), dir.Join("c.csv")}, opts(4, 2))
	assert.Assert(t, xerrors.As(err, &le))
	assert.ErrorContains(t, err, `"x"`)

	_, err = Load([]string{dir.Join("bad.csv")}, opts(1, 1))
	assert.Assert(t, xerrors.As(err, &le))
	assert.ErrorContains(t, err, "line 3")

	_, err = Load([]string{dir.Join("missing.csv")}, opts(1, 1))
	assert.Assert(t, xerrors.As(err, &le))
}

func TestNonFiniteCells(t *testing.T) {
	for _, cell := range []string{"NaN", "Inf", "-inf", "1e400"} {
		t.Run(cell, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader("a,b\n1,2\n2,"+cell+"\n3,4\n"), "x.csv", Options{})
			var le *DataLoadError
			assert.Assert(t, xerrors.As(err, &le))
			assert.Equal(t, le.File, "x.csv")
			assert.ErrorContains(t, err, `line 3, column "b"`)
		})
	}

	s := &Series{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}, {2, math.NaN()}, {3, 4}}}
	_, err := FitScaler(Standardize, s)
	var le *DataLoadError
	assert.Assert(t, xerrors.As(err, &le))
	assert.ErrorContains(t, err, `column "b"`)
}

func TestDegenerateColumn(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer zlog.Use(zap.New(core))()

	dir := newTestDir(t, withFile("a.csv", csvText("a,flat", 40, func(i int) []float64 {
		return []float64{float64(i), 5}
	})))
	files := []string{dir.Join("a.csv")}

	ds, err := Load(files, opts(3, 1))
	assert.NilError(t, err)
	assert.Equal(t, logs.FilterMessage("degenerate columns left unscaled").Len(), 1)
	assert.DeepEqual(t, ds.Scaling.Degenerate, []string{"flat"})
	assert.Equal(t, ds.Scaling.Scale[1], 1.0)
	for _, row := range ds.Rows {
		assert.Equal(t, row[1], 0.0)
	}
	assert.Equal(t, ds.Scaling.InverseValue(1, 0), 5.0)

	o := opts(3, 1)
	o.StrictScale = true
	_, err = Load(files, o)
	var de *DegenerateScaleError
	assert.Assert(t, xerrors.As(err, &de))
	assert.DeepEqual(t, de.Columns, []string{"flat"})
}

func TestColumnsAndTargets(t *testing.T) {
	dir := newTestDir(t, withFile("a.tsv", strings.Replace(csvText("a,b,c", 30, sine), ",", "\t", -1)))
	o := opts(5, 2)
	o.Columns = []string{"c", "a"}
	o.Targets = []string{"a"}
	ds, err := Load([]string{dir.Join("a.tsv")}, o)
	assert.NilError(t, err)
	assert.DeepEqual(t, ds.Columns, []string{"c", "a"})
	assert.Equal(t, ds.OutFeatures(), 1)
	w := ds.Window(3)
	assert.Equal(t, len(w.Target[0]), 1)
	assert.Equal(t, w.Target[1][0], ds.Rows[3+5+1][1])
	assert.DeepEqual(t, ds.TargetScaling().Columns, []string{"a"})

	o.Targets = []string{"zzz"}
	_, err = Load([]string{dir.Join("a.tsv")}, o)
	assert.ErrorContains(t, err, "zzz")
}

func TestWorkbook(t *testing.T) {
	dir := newTestDir(t)
	f := excelize.NewFile()
	assert.NilError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"a", "b"}))
	for i := 0; i < 20; i++ {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		assert.NilError(t, f.SetSheetRow("Sheet1", cell, &[]interface{}{i, i * 2}))
	}
	path := dir.Join("data.xlsx")
	assert.NilError(t, f.SaveAs(path))
	assert.NilError(t, f.Close())

	ds, err := Load([]string{path}, Options{Scaler: "none", SequenceLength: 4, FutureSteps: 1})
	assert.NilError(t, err)
	assert.Equal(t, ds.Len(), 16)
	assert.DeepEqual(t, ds.Rows[19], []float64{19, 38})
}

func TestSplitCoverage(t *testing.T) {
	for _, n := range []int{1, 7, 100, 986} {
		for _, fraction := range []float64{0, 0.1, 0.25, 0.5, 0.99} {
			for _, shuffle := range []bool{false, true} {
				s, err := NewSplit(n, fraction, shuffle, 42)
				assert.NilError(t, err)
				seen := make([]int, n)
				for _, i := range append(append([]int(nil), s.Train...), s.Validation...) {
					seen[i]++
				}
				for i, c := range seen {
					assert.Equal(t, c, 1, "n=%d fraction=%v shuffle=%v index %d", n, fraction, shuffle, i)
				}
				assert.Equal(t, len(s.Validation), int(math.Floor(float64(n)*fraction)))
			}
		}
	}

	a, _ := NewSplit(50, 0.2, true, 7)
	b, _ := NewSplit(50, 0.2, true, 7)
	c, _ := NewSplit(50, 0.2, true, 8)
	assert.DeepEqual(t, a, b)
	assert.Check(t, !cmp.DeepEqual(a.Train, c.Train)().Success())

	chrono, _ := NewSplit(10, 0.3, false, 0)
	assert.DeepEqual(t, chrono.Validation, []int{7, 8, 9})

	_, err := NewSplit(10, 1, false, 0)
	assert.ErrorContains(t, err, "fraction")
}

func TestEmptyValidationWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer zlog.Use(zap.New(core))()
	s, err := NewSplit(4, 0.1, false, 0)
	assert.NilError(t, err)
	assert.Equal(t, len(s.Validation), 0)
	assert.Equal(t, len(s.Train), 4)
	assert.Equal(t, logs.FilterMessage("validation split is empty").Len(), 1)
}
