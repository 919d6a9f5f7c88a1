// Package logging sets up the run's structured logger: a TTY-aware
// console formatter plus a per-module file hook.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// IsTerminal reports whether fd is attached to an interactive
// terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// New builds the run's top-level logger. verbose maps to DebugLevel;
// quiet maps to WarnLevel; otherwise InfoLevel.
func New(out io.Writer, verbose, quiet bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)

	switch {
	case verbose:
		l.SetLevel(logrus.DebugLevel)
	case quiet:
		l.SetLevel(logrus.WarnLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if f, ok := out.(*os.File); ok && IsTerminal(f) {
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:            true,
			DisableTimestamp:       true,
			DisableLevelTruncation: true,
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}
	return l
}

// ModuleFileHook is a logrus.Hook that tees every log entry tagged
// with a "module" field into that module's own per-run log file: each
// run gets a fresh timestamped directory, and modules share the
// parent log dir but never a filename.
type ModuleFileHook struct {
	Dir   string
	files map[string]*os.File
}

func NewModuleFileHook(dir string) *ModuleFileHook {
	return &ModuleFileHook{Dir: dir, files: make(map[string]*os.File)}
}

func (h *ModuleFileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *ModuleFileHook) Fire(e *logrus.Entry) error {
	name, ok := e.Data["module"].(string)
	if !ok || name == "" {
		return nil
	}
	f, err := h.fileFor(name)
	if err != nil {
		return err
	}
	line, err := e.Logger.Formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = f.Write(line)
	return err
}

func (h *ModuleFileHook) fileFor(module string) (*os.File, error) {
	if f, ok := h.files[module]; ok {
		return f, nil
	}
	f, err := os.OpenFile(h.Dir+"/"+module+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	h.files[module] = f
	return f, nil
}

// Close closes every per-module file this hook opened.
func (h *ModuleFileHook) Close() error {
	var firstErr error
	for _, f := range h.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
