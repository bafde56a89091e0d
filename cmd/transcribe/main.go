// Command transcribe turns long audio recordings into text. It cuts the
// input into fixed-length segments with ffmpeg, transcribes each through a
// local whisper install or a remote API, and appends the results to a
// growing transcript file.
//
// One-shot mode transcribes a single file; watch mode monitors a drop
// folder and transcribes every new audio file that appears in it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/history"
	"github.com/rasata/transcription-mp3-to-text/internal/job"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
	"github.com/rasata/transcription-mp3-to-text/internal/pidfile"
	"github.com/rasata/transcription-mp3-to-text/internal/preflight"
	"github.com/rasata/transcription-mp3-to-text/internal/status"
	"github.com/rasata/transcription-mp3-to-text/internal/transcribe"
	"github.com/rasata/transcription-mp3-to-text/internal/watch"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

const historyListLimit = 20

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	opts, err := parseArgs(argv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		// flag already printed the problem and usage.
		return 2
	}

	if opts.version {
		fmt.Println("transcribe " + Version)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: initialize logging:", err)
		return 1
	}
	defer log.Sync()

	if opts.history {
		return printHistory(cfg)
	}

	switch {
	case opts.watchDir != "" && len(opts.args) > 0:
		fmt.Fprintln(os.Stderr, "error: -watch and an audio file are mutually exclusive")
		return 2
	case opts.watchDir == "" && len(opts.args) != 1:
		fmt.Fprintln(os.Stderr, "error: exactly one audio file is required (or use -watch DIR)")
		opts.usage()
		return 2
	case opts.watchDir != "" && opts.output != "":
		fmt.Fprintln(os.Stderr, "error: -output only applies to one-shot mode")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := preflight.Run(ctx, cfg, opts.noSSLFix, log); err != nil {
		log.Error("preflight failed", "error", err)
		return 1
	}

	backend, err := transcribe.New(cfg, log)
	if err != nil {
		log.Error("backend setup failed", "error", err)
		return 1
	}
	if err := backend.HealthCheck(ctx); err != nil {
		// Soft by contract: an unconfigured backend yields empty segments,
		// it must not stop the pipeline.
		log.Warn("backend health check failed, segments may come back empty",
			"backend", backend.Name(), "error", err)
	}

	runner := job.NewRunner(cfg, backend, log)

	if cfg.HistoryDB != "" {
		store, err := history.New(cfg.HistoryDB)
		if err != nil {
			log.Warn("job history disabled", "path", cfg.HistoryDB, "error", err)
		} else {
			defer store.Close()
			runner.SetLedger(store)
		}
	}

	var reporters status.Multi
	if cfg.StatusFile != "" {
		reporters = append(reporters, status.NewFileReporter(cfg.StatusFile, log))
	}
	if opts.statusListen != "" {
		feed := status.NewFeed(log)
		if err := feed.Start(opts.statusListen); err != nil {
			log.Warn("status feed disabled", "addr", opts.statusListen, "error", err)
		} else {
			defer feed.Close()
			reporters = append(reporters, feed)
		}
	}
	if len(reporters) > 0 {
		runner.SetReporter(reporters)
	}

	if opts.watchDir != "" {
		return runWatch(ctx, cfg, runner, opts.watchDir, log)
	}
	return runOnce(ctx, cfg, runner, opts.args[0], opts.output, log)
}

// runOnce transcribes a single file and prints the transcript path.
func runOnce(ctx context.Context, cfg *config.Config, runner *job.Runner, audioPath, outputPath string, log *logging.Logger) int {
	j := job.NewJob(cfg, audioPath, outputPath)
	if err := runner.Run(ctx, j); err != nil {
		log.Error("transcription failed", "audio", audioPath, "error", err)
		return 1
	}
	fmt.Println(j.OutputPath)
	return 0
}

// runWatch runs the drop-folder daemon until interrupted.
func runWatch(ctx context.Context, cfg *config.Config, runner *job.Runner, dir string, log *logging.Logger) int {
	pidPath := filepath.Join(config.DefaultCacheDir(), "transcribe.pid")
	pf, err := pidfile.Acquire(pidPath)
	if err != nil {
		log.Error("could not acquire pidfile", "path", pidPath, "error", err)
		return 1
	}
	defer func() {
		if err := pf.Release(); err != nil {
			log.Warn("could not remove pidfile", "path", pidPath, "error", err)
		}
	}()

	log.Info("starting watch daemon", "dir", dir, "version", Version, "pid", os.Getpid())

	w := watch.New(dir, cfg.Watch, log)
	err = w.Run(ctx, func(ctx context.Context, path string) error {
		return runner.Run(ctx, job.NewJob(cfg, path, ""))
	})
	if err != nil && ctx.Err() == nil {
		log.Error("watcher failed", "error", err)
		return 1
	}
	log.Info("watch daemon stopped")
	return 0
}

// printHistory lists recent jobs from the ledger.
func printHistory(cfg *config.Config) int {
	if cfg.HistoryDB == "" {
		fmt.Fprintln(os.Stderr, "error: job history is disabled (history_db is empty)")
		return 2
	}
	store, err := history.New(cfg.HistoryDB)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer store.Close()

	entries, err := store.Recent(historyListLimit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Println("no transcription jobs recorded yet")
		return 0
	}

	for _, e := range entries {
		fmt.Printf("%-7s  %s  %-10s  %2d seg  %s\n",
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			e.Service,
			e.Chunks,
			filepath.Base(e.AudioFile))
		if e.Error != "" {
			fmt.Printf("         %s\n", e.Error)
		}
	}
	return 0
}

// loadConfig reads the config file and layers CLI overrides on top.
func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	cfg.ResolveCredentials()
	opts.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
