// Package procexec runs child processes the way the build engine's
// various subprocess callers need: output tee'd to both a live log
// file and an in-memory tail for debug-hints, with an optional
// line-parsing hook for build-system progress output.
package procexec

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
)

// LineFunc is called once per output line (stdout and stderr
// interleaved in arrival order), for progress-percentage and
// warning-count extraction.
type LineFunc func(line string)

// Result summarizes a finished run.
type Result struct {
	ExitCode int
	// Tail holds the last few hundred lines of combined output, kept
	// around for the debug-hints ranking without re-reading the log
	// file.
	Tail []string
}

const tailCapacity = 500

// Options configures one Run call.
type Options struct {
	Dir    string
	Env    []string // nil means inherit
	Log    io.Writer
	OnLine LineFunc
}

// Run executes argv[0] with argv[1:], streaming combined stdout+stderr
// to opts.Log and opts.OnLine line by line, and returns once the
// command exits.
func Run(ctx context.Context, argv []string, opts Options) (*Result, error) {
	if len(argv) == 0 {
		return nil, kdeerr.Internalf("procexec.Run called with empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = opts.Env
	}

	pr, pw := io.Pipe()
	if opts.Log == nil {
		cmd.Stdout = pw
		cmd.Stderr = pw
	} else {
		cmd.Stdout = io.MultiWriter(pw, opts.Log)
		cmd.Stderr = io.MultiWriter(pw, opts.Log)
	}

	res := &Result{}
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			res.Tail = append(res.Tail, line)
			if len(res.Tail) > tailCapacity {
				res.Tail = res.Tail[len(res.Tail)-tailCapacity:]
			}
			mu.Unlock()
			if opts.OnLine != nil {
				opts.OnLine(line)
			}
		}
	}()

	runErr := cmd.Run()
	pw.Close()
	<-done

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if runErr != nil {
		return res, kdeerr.Wrap(runErr, "running "+argv[0])
	}
	return res, nil
}
