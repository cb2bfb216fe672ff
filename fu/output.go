package fu

import (
	"io"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

/*
Output is a file written atomically: the content is visible under the
target name only after Commit
*/
type Output string

/*
Whole is an open Output writer
*/
type Whole struct {
	f      *os.File
	target string
	done   bool
}

func (o Output) Create() (*Whole, error) {
	target := string(o)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, xerrors.Errorf("failed to create directory for %v: %w", target, err)
	}
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return nil, xerrors.Errorf("failed to create %v: %w", target, err)
	}
	return &Whole{f: f, target: target}, nil
}

func (w *Whole) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

/*
Commit flushes the content and renames it to the target name
*/
func (w *Whole) Commit() error {
	if w.done {
		return xerrors.Errorf("output %v is already closed", w.target)
	}
	w.done = true
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		os.Remove(w.f.Name())
		return xerrors.Errorf("failed to sync %v: %w", w.target, err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return xerrors.Errorf("failed to close %v: %w", w.target, err)
	}
	if err := os.Rename(w.f.Name(), w.target); err != nil {
		os.Remove(w.f.Name())
		return xerrors.Errorf("failed to commit %v: %w", w.target, err)
	}
	return nil
}

/*
End drops uncommitted content, it's safe to call after Commit
*/
func (w *Whole) End() {
	if !w.done {
		w.done = true
		w.f.Close()
		os.Remove(w.f.Name())
	}
}

/*
WriteWhole writes the content produced by fn atomically
*/
func (o Output) WriteWhole(fn func(io.Writer) error) error {
	wh, err := o.Create()
	if err != nil {
		return err
	}
	defer wh.End()
	if err = fn(wh); err != nil {
		return err
	}
	return wh.Commit()
}
