package state

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
)

// Lock is the single-instance PID-file lock, one per rc-file
// directory so differently-configured runs can coexist.
type Lock struct {
	path string
}

// AcquireLock creates the lockfile at path holding this process's PID.
// If the lockfile names a live process it returns acquired=false and no
// error; a lockfile whose PID is dead or unreadable is taken over
// without asking.
func AcquireLock(path string) (*Lock, bool, error) {
	live, pid, err := inspectLock(path)
	if err != nil {
		return nil, false, err
	}
	if live {
		return nil, false, nil
	}
	if pid != 0 {
		// stale lock from a dead process: steal it.
		os.Remove(path)
	}
	if err := writeLockFile(path); err != nil {
		return nil, false, err
	}
	return &Lock{path: path}, true, nil
}

// inspectLock reports whether an existing lockfile's PID is still
// alive, and the PID found (0 if no lockfile exists).
func inspectLock(path string) (live bool, pid int, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, kdeerr.Wrap(err, "reading lockfile "+path)
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(b)))
	if convErr != nil || pid <= 0 {
		// unreadable lock contents: treat as stale.
		return false, pid, nil
	}
	return processAlive(pid), pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

func writeLockFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return kdeerr.Wrap(err, "creating lockfile "+path)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return kdeerr.Wrap(err, "writing lockfile "+path)
	}
	return nil
}

// Release removes the lockfile. Safe to call from a signal handler
// path, so the lock is released before the process exits.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return kdeerr.Wrap(err, "removing lockfile "+l.path)
	}
	return nil
}
