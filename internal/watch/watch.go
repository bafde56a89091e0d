// Package watch monitors a drop folder and hands newly arrived audio files
// to a handler once they have finished being written.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

// Handler receives the path of a settled audio file. Errors are logged and
// the watcher moves on; one bad file must not stop the daemon.
type Handler func(ctx context.Context, path string) error

// Watcher monitors one directory for new audio files. Detection combines
// fsnotify events with a polling sweep, so files still arrive when inotify
// is unavailable or an event gets lost.
type Watcher struct {
	dir        string
	extensions map[string]bool
	settle     time.Duration
	poll       time.Duration
	log        *logging.Logger
	ready      chan struct{}

	mu   sync.Mutex
	seen map[string]bool
}

// New creates a watcher over dir using the given watch settings.
func New(dir string, cfg config.WatchConfig, log *logging.Logger) *Watcher {
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Watcher{
		dir:        dir,
		extensions: exts,
		settle:     time.Duration(cfg.SettleSeconds) * time.Second,
		poll:       time.Second,
		log:        log,
		ready:      make(chan struct{}),
		seen:       make(map[string]bool),
	}
}

// Ready is closed once the watcher is observing the directory.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled, invoking handle for each new audio
// file. Files already present at startup are not reprocessed; only new
// arrivals count. Run may be called once; it returns nil on a clean
// shutdown.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path %s is not a directory", w.dir)
	}
	w.markExisting()
	close(w.ready)

	queue := make(chan string, 64)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.collect(ctx, queue) })
	g.Go(func() error { return w.process(ctx, queue, handle) })
	return g.Wait()
}

// collect feeds candidate paths into queue from fsnotify events and the
// polling sweep. When fsnotify is unavailable its channels stay nil and
// only polling runs.
func (w *Watcher) collect(ctx context.Context, queue chan<- string) error {
	defer close(queue)

	var (
		events <-chan fsnotify.Event
		werrs  <-chan error
	)
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("fsnotify unavailable, relying on polling only", "error", err)
	} else {
		defer fsw.Close()
		if err := fsw.Add(w.dir); err != nil {
			w.log.Warn("could not watch directory, relying on polling only",
				"dir", w.dir, "error", err)
		} else {
			events = fsw.Events
			werrs = fsw.Errors
			w.log.Info("watching for new audio files", "dir", w.dir)
		}
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				w.log.Warn("fsnotify channel closed, relying on polling only")
				events, werrs = nil, nil
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.offer(ctx, ev.Name, queue)
			}

		case err, ok := <-werrs:
			if !ok {
				events, werrs = nil, nil
				continue
			}
			w.log.Warn("file watcher error", "error", err)

		case <-ticker.C:
			w.sweep(ctx, queue)
		}
	}
}

// process settles and handles queued files one at a time, keeping jobs
// sequential the same way segments are.
func (w *Watcher) process(ctx context.Context, queue <-chan string, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-queue:
			if !ok {
				return nil
			}
			if err := w.awaitSettle(ctx, path); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.log.Warn("file vanished before settling", "path", path, "error", err)
				w.forget(path)
				continue
			}
			w.log.Info("audio file settled, starting job", "path", path)
			if err := handle(ctx, path); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.log.Error("watched file failed", "path", path, "error", err)
			}
		}
	}
}

// awaitSettle waits until the file size has been stable for the settle
// window, so half-copied uploads are not fed into the pipeline.
func (w *Watcher) awaitSettle(ctx context.Context, path string) error {
	var lastSize int64 = -1
	stableSince := time.Now()

	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", path)
		}
		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = time.Now()
		} else if time.Since(stableSince) >= w.settle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.poll):
		}
	}
}

// sweep offers every eligible file currently in the directory. Combined
// with the seen set this recovers files whose events were missed.
func (w *Watcher) sweep(ctx context.Context, queue chan<- string) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn("could not list watch directory", "dir", w.dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.offer(ctx, filepath.Join(w.dir, e.Name()), queue)
	}
}

// offer enqueues a path once, if its name is eligible.
func (w *Watcher) offer(ctx context.Context, path string, queue chan<- string) {
	if !w.eligible(filepath.Base(path)) {
		return
	}

	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	select {
	case queue <- path:
	case <-ctx.Done():
	}
}

// markExisting records files already in the folder so they are skipped.
func (w *Watcher) markExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn("could not list watch directory", "dir", w.dir, "error", err)
		return
	}
	count := 0
	w.mu.Lock()
	for _, e := range entries {
		if e.IsDir() || !w.eligible(e.Name()) {
			continue
		}
		w.seen[filepath.Join(w.dir, e.Name())] = true
		count++
	}
	w.mu.Unlock()
	if count > 0 {
		w.log.Info("ignoring audio files already present", "count", count)
	}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.seen, path)
	w.mu.Unlock()
}

// eligible filters by extension and skips hidden files, which download
// tools use for in-progress copies.
func (w *Watcher) eligible(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return w.extensions[strings.ToLower(filepath.Ext(name))]
}
