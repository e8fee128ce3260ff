package convergence

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/terrylica/ralph-universal/internal/config"
)

// Oracle reports whether the task driving the loop is finished. How a
// project decides that is its own business; the loop only asks.
type Oracle interface {
	Done() (bool, error)
}

// OracleFunc adapts a function into an Oracle.
type OracleFunc func() (bool, error)

// Done executes f().
func (f OracleFunc) Done() (bool, error) {
	return f()
}

// NeverDone always reports unfinished; the loop then runs to its ceilings.
var NeverDone Oracle = OracleFunc(func() (bool, error) { return false, nil })

var (
	openBox   = regexp.MustCompile(`^\s*[-*]\s+\[\s\]\s+`)
	closedBox = regexp.MustCompile(`^\s*[-*]\s+\[[xX]\]\s+`)
)

// ChecklistOracle reads a markdown task list. It is done when the file has at
// least one checkbox and none are left open.
type ChecklistOracle struct {
	Path string
}

// Done implements Oracle. A missing file is not done.
func (o ChecklistOracle) Done() (bool, error) {
	data, err := os.ReadFile(o.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	open, closed := CountBoxes(data)
	return open == 0 && closed > 0, nil
}

// CountBoxes counts unchecked and checked markdown checkboxes.
func CountBoxes(data []byte) (open, closed int) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case openBox.MatchString(line):
			open++
		case closedBox.MatchString(line):
			closed++
		}
	}
	return open, closed
}

// MarkerOracle is done once the marker file exists.
type MarkerOracle struct {
	Path string
}

// Done implements Oracle.
func (o MarkerOracle) Done() (bool, error) {
	_, err := os.Stat(o.Path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// AnyOracle is done when any member is. Errors from one member do not hide a
// positive answer from another.
type AnyOracle []Oracle

// Done implements Oracle.
func (a AnyOracle) Done() (bool, error) {
	var errs []error
	for _, o := range a {
		done, err := o.Done()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

// OracleFor builds the default oracle: the completion marker, plus the
// target file's checklist when one is configured.
func OracleFor(cfg config.LoopConfig, paths config.Paths) Oracle {
	oracles := AnyOracle{MarkerOracle{Path: paths.DoneMarker()}}
	if cfg.TargetFile != "" {
		target := cfg.TargetFile
		if !filepath.IsAbs(target) {
			target = filepath.Join(paths.ProjectDir, target)
		}
		oracles = append(oracles, ChecklistOracle{Path: target})
	}
	return oracles
}
