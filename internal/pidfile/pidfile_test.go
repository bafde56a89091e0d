package pidfile

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestAcquire_WritesOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.pid")

	f, err := Acquire(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer f.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pidfile: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("expected numeric pid, got %q", data)
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), pid)
	}
}

func TestAcquire_SecondInstanceRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.pid")

	f, err := Acquire(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer f.Release()

	if _, err := Acquire(path); err == nil {
		t.Fatal("expected second acquire to fail while process is alive")
	} else if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected already-running error, got %v", err)
	}
}

func TestAcquire_ReplacesStalePidfile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("dead-process setup requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "transcribe.pid")

	// Run a process to completion so its PID is no longer alive.
	cmd := exec.Command("sh", "-c", "exit 0")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run helper process: %v", err)
	}
	deadPID := cmd.Process.Pid
	if err := os.WriteFile(path, []byte(strconv.Itoa(deadPID)+"\n"), 0644); err != nil {
		t.Fatalf("write stale pidfile: %v", err)
	}

	f, err := Acquire(path)
	if err != nil {
		t.Fatalf("expected stale pidfile to be replaced, got %v", err)
	}
	defer f.Release()

	data, _ := os.ReadFile(path)
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Fatalf("expected our pid in file, got %q", got)
	}
}

func TestAcquire_OverwritesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatalf("write garbage pidfile: %v", err)
	}

	f, err := Acquire(path)
	if err != nil {
		t.Fatalf("expected garbage pidfile to be overwritten, got %v", err)
	}
	defer f.Release()
}

func TestAcquire_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.pid")

	const claimers = 8
	var wg sync.WaitGroup
	wins := make(chan *File, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f, err := Acquire(path); err == nil {
				wins <- f
			}
		}()
	}
	wg.Wait()
	close(wins)

	var won int
	for f := range wins {
		won++
		defer f.Release()
	}
	if won != 1 {
		t.Fatalf("expected exactly one claim to succeed, got %d", won)
	}
}

func TestRelease_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.pid")

	f, err := Acquire(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := f.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected pidfile removed, stat err %v", err)
	}
}

func TestRelease_LeavesForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcribe.pid")

	f, err := Acquire(path)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Another instance took over the file; releasing must not remove it.
	if err := os.WriteFile(path, []byte("99999999\n"), 0644); err != nil {
		t.Fatalf("rewrite pidfile: %v", err)
	}
	if err := f.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected foreign pidfile kept, stat err %v", err)
	}
}

func TestRelease_NilSafe(t *testing.T) {
	var f *File
	if err := f.Release(); err != nil {
		t.Fatalf("expected nil receiver to be a no-op, got %v", err)
	}
}
