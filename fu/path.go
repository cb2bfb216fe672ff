package fu

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"
)

// RunStamp is the layout of the run directory timestamp (ddmmYYYY_HHMMSS)
const RunStamp = "02012006_150405"

/*
RunPath returns the run directory path for the model started at t
*/
func RunPath(root, model string, t time.Time) string {
	return filepath.Join(root, model, t.Format(RunStamp))
}

/*
MakeRunDir creates a fresh run directory for the model started at t.
When the directory already exists the suffix _1, _2, ... is appended.
*/
func MakeRunDir(root, model string, t time.Time) (string, error) {
	base := RunPath(root, model, t)
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return "", xerrors.Errorf("failed to create run root: %w", err)
	}
	dir := base
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", xerrors.Errorf("failed to create run directory: %w", err)
		}
		dir = fmt.Sprintf("%s_%d", base, i)
	}
}
