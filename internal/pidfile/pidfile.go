// Package pidfile guards against two daemons watching the same folder by
// recording the owning process ID in a file.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File is an acquired pidfile. Release it on shutdown.
type File struct {
	path string
	pid  int
}

// Acquire claims path for the current process. The claim itself is an
// exclusive create, so two instances racing for the same file cannot both
// win. It fails when the file names a process that is still alive; a stale
// file left by a crashed instance is replaced.
func Acquire(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create pidfile directory: %w", err)
	}

	pid := os.Getpid()
	// Two passes at most: one to clear a stale file, one to claim.
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid) + "\n")
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("write pidfile: %w", werr)
			}
			return &File{path: path, pid: pid}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create pidfile: %w", err)
		}

		data, rerr := os.ReadFile(path)
		if rerr != nil {
			if errors.Is(rerr, fs.ErrNotExist) {
				// The owner released between our create and our read.
				continue
			}
			return nil, fmt.Errorf("read pidfile: %w", rerr)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			// Created but not yet written: another instance is mid-claim.
			return nil, fmt.Errorf("pidfile %s is being claimed by another instance", path)
		}
		if owner, perr := strconv.Atoi(content); perr == nil && processAlive(owner) {
			return nil, fmt.Errorf("another instance is already running (pid %d)", owner)
		}
		// The owner is gone or the content is not a PID at all.
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale pidfile: %w", err)
		}
	}
	return nil, fmt.Errorf("pidfile %s is contested", path)
}

// Path returns the pidfile location.
func (f *File) Path() string {
	return f.path
}

// Release removes the pidfile, but only while it still holds our own PID.
// A file rewritten by a newer instance is left alone.
func (f *File) Release() error {
	if f == nil {
		return nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil
	}
	if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err != nil || pid != f.pid {
		return nil
	}
	return os.Remove(f.path)
}

// processAlive probes a PID with signal 0, which checks existence without
// delivering anything. EPERM means the process exists but belongs to
// someone else.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
