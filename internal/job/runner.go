package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/fileutil"
	"github.com/rasata/transcription-mp3-to-text/internal/joblog"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
	"github.com/rasata/transcription-mp3-to-text/internal/media"
	"github.com/rasata/transcription-mp3-to-text/internal/status"
	"github.com/rasata/transcription-mp3-to-text/internal/transcribe"
	"github.com/rasata/transcription-mp3-to-text/internal/transcript"
)

const metadataVersion = "1"

// Ledger records job outcomes durably. All calls are best-effort from the
// runner's point of view: a ledger failure never interrupts a job.
type Ledger interface {
	JobStarted(j *Job) error
	JobCompleted(j *Job, outputBytes int64, emptyChunks int) error
	JobFailed(j *Job, cause error) error
}

// Runner drives a job through its lifecycle. A single runner processes one
// job at a time; segments within a job are transcribed sequentially so the
// transcript stays in source order.
type Runner struct {
	cfg      *config.Config
	backend  transcribe.Backend
	log      *logging.Logger
	ledger   Ledger
	reporter status.Publisher
}

// NewRunner creates a runner using the given backend for transcription.
func NewRunner(cfg *config.Config, backend transcribe.Backend, log *logging.Logger) *Runner {
	return &Runner{cfg: cfg, backend: backend, log: log}
}

// SetLedger attaches a job history ledger. Optional.
func (r *Runner) SetLedger(l Ledger) {
	r.ledger = l
}

// SetReporter attaches a progress publisher. Optional.
func (r *Runner) SetReporter(p status.Publisher) {
	r.reporter = p
}

// Run executes one job: probe the audio, extract segments, transcribe each
// through the backend, append to the transcript, clean up. The transcript
// grows on disk after every segment, so whatever was transcribed before a
// failure is preserved.
//
// Remote backend failures on a single segment leave an empty slot in the
// transcript and the job continues; local backend failures abort, since a
// broken local install will fail every remaining segment the same way.
func (r *Runner) Run(ctx context.Context, j *Job) error {
	machine := NewMachine()

	var (
		jlog    *joblog.Log
		tracker *Tracker
		written int64
		empty   int

		seg   *media.Segmenter
		paths []string
	)

	publish := func(failure error) {
		if r.reporter == nil {
			return
		}
		s := status.Snapshot{
			State:       string(machine.State()),
			JobID:       j.ID,
			AudioFile:   j.AudioPath,
			Backend:     r.backend.Name(),
			TotalChunks: j.Chunks,
			UpdatedAt:   time.Now(),
		}
		if machine.State() == StateTranscribing {
			s.Chunk = machine.Segment() + 1
		}
		if tracker != nil {
			s.Percent = tracker.Percent()
			s.ETASeconds = int64(tracker.Remaining().Seconds())
		}
		if failure != nil {
			s.Error = failure.Error()
		}
		r.reporter.Publish(s)
	}

	fail := func(cause error) error {
		r.log.Error("job failed", "job", j.ID, "audio", j.AudioPath, "error", cause)
		if jlog != nil {
			jlog.Error(cause)
		}
		// Segments already extracted are of no further use to an aborted
		// job; remove them so failed runs do not pile up temp files.
		if seg != nil && len(paths) > 0 && !r.cfg.KeepSegments {
			if cerr := seg.Cleanup(paths); cerr != nil {
				r.log.Warn("segment cleanup incomplete", "error", cerr)
			}
		}
		_ = machine.To(StateAborted)
		publish(cause)
		if r.ledger != nil {
			if err := r.ledger.JobFailed(j, cause); err != nil {
				r.log.Warn("could not record failure in history", "error", err)
			}
		}
		r.writeSidecar(j, written, empty, cause)
		return cause
	}

	finish := func() error {
		jlog.Finish(tracker.Elapsed())
		r.writeSidecar(j, written, empty, nil)
		if r.ledger != nil {
			if err := r.ledger.JobCompleted(j, written, empty); err != nil {
				r.log.Warn("could not record completion in history", "error", err)
			}
		}
		if err := machine.To(StateDone); err != nil {
			return fail(err)
		}
		publish(nil)
		r.log.Info("transcription complete",
			"job", j.ID,
			"output", j.OutputPath,
			"elapsed", media.FormatClock(tracker.Elapsed()))
		return nil
	}

	r.log.Info("starting transcription job",
		"job", j.ID,
		"audio", j.AudioPath,
		"service", j.Service,
		"model", j.Model,
		"language", j.Language)

	if err := os.MkdirAll(filepath.Dir(j.OutputPath), 0755); err != nil {
		return fail(fmt.Errorf("create output directory: %w", err))
	}

	// The audit log must exist before anything can go wrong, so even a
	// missing file or an unreadable duration leaves a trace next to where
	// the transcript would have been.
	jlog = joblog.New(j.LogPath, joblog.Header{
		Source:   j.AudioPath,
		JobID:    j.ID,
		Language: j.Language,
		Service:  j.Service,
		Model:    j.Model,
	}, r.log)

	if _, err := os.Stat(j.AudioPath); err != nil {
		return fail(fmt.Errorf("audio file %s: %w", j.AudioPath, err))
	}

	if err := machine.To(StateSegmenting); err != nil {
		return fail(err)
	}
	publish(nil)

	total, err := media.ProbeDuration(ctx, j.AudioPath)
	if err != nil {
		return fail(err)
	}
	windows := media.PlanWindows(total, j.ChunkDuration)
	j.Duration = total
	j.Chunks = len(windows)
	jlog.Probed(total, len(windows), int(j.ChunkDuration/time.Minute))
	r.log.Info("audio probed", "duration", media.FormatClock(total), "chunks", len(windows))

	if r.ledger != nil {
		if err := r.ledger.JobStarted(j); err != nil {
			r.log.Warn("could not record job in history", "error", err)
		}
	}

	if len(windows) == 0 {
		r.log.Warn("audio reports no duration, writing empty transcript", "audio", j.AudioPath)
		jlog.Event("aucun segment à transcrire")
		if err := os.WriteFile(j.OutputPath, nil, 0644); err != nil {
			return fail(fmt.Errorf("write transcript %s: %w", j.OutputPath, err))
		}
		tracker = NewTracker(0)
		if err := machine.To(StateCleanup); err != nil {
			return fail(err)
		}
		return finish()
	}

	seg = media.NewSegmenter(r.cfg.TempDir, r.log)
	if err := seg.Prepare(); err != nil {
		return fail(err)
	}
	paths, err = seg.ExtractAll(ctx, j.AudioPath, windows)
	if err != nil {
		return fail(err)
	}

	appender, err := transcript.NewAppender(j.OutputPath)
	if err != nil {
		return fail(err)
	}

	tracker = NewTracker(len(paths))
	soft := j.Service != config.ServiceLocal

	for i, path := range paths {
		if err := machine.Transcribing(i); err != nil {
			return fail(err)
		}
		publish(nil)
		r.log.Info("transcribing segment", "segment", i+1, "total", len(paths), "file", filepath.Base(path))

		text, err := r.backend.Transcribe(ctx, path, j.Language)
		if err != nil {
			if ctx.Err() != nil {
				return fail(err)
			}
			if !soft {
				return fail(fmt.Errorf("segment %d: %w", i+1, err))
			}
			r.log.Warn("segment transcription failed, leaving empty slot",
				"segment", i+1, "error", err)
			jlog.Event("segment %d/%d en échec: %v", i+1, len(paths), err)
			text = ""
		}
		if strings.TrimSpace(text) == "" {
			empty++
		}

		if err := appender.Append(i, text); err != nil {
			return fail(err)
		}
		written = appender.BytesWritten()
		jlog.SegmentDone(i, len(paths), filepath.Base(path))
		tracker.Done()

		r.log.Info("segment done",
			"segment", i+1,
			"total", len(paths),
			"percent", fmt.Sprintf("%.1f", tracker.Percent()),
			"elapsed", media.FormatClock(tracker.Elapsed()),
			"remaining", media.FormatClock(tracker.Remaining()))
		publish(nil)
	}

	if err := machine.To(StateCleanup); err != nil {
		return fail(err)
	}
	publish(nil)

	if r.cfg.KeepSegments {
		r.log.Info("keeping segment files", "dir", seg.TempDir())
		jlog.Event("segments conservés dans %s", seg.TempDir())
	} else if err := seg.Cleanup(paths); err != nil {
		r.log.Warn("segment cleanup incomplete", "error", err)
		jlog.Event("nettoyage incomplet: %v", err)
	} else {
		jlog.Event("nettoyage de %d segments", len(paths))
	}

	return finish()
}

// writeSidecar records the job outcome in a JSON sidecar next to the
// transcript. Best-effort; the transcript itself is the deliverable.
func (r *Runner) writeSidecar(j *Job, outputBytes int64, emptyChunks int, cause error) {
	meta := &fileutil.TranscriptMetadata{
		Version:     metadataVersion,
		JobID:       j.ID,
		Source:      j.AudioPath,
		Duration:    media.FormatClock(j.Duration),
		DurationMs:  j.Duration.Milliseconds(),
		Language:    j.Language,
		Backend:     j.Service,
		Model:       j.Model,
		Chunks:      j.Chunks,
		EmptyChunks: emptyChunks,
		StartedAt:   j.CreatedAt,
		FinishedAt:  time.Now(),
		OutputFile:  j.OutputPath,
		OutputBytes: outputBytes,
		Success:     cause == nil,
	}
	if cause != nil {
		meta.Error = cause.Error()
	}
	if err := fileutil.WriteMetadata(j.OutputPath, meta); err != nil {
		r.log.Warn("could not write transcript metadata", "path", fileutil.MetadataPath(j.OutputPath), "error", err)
	}
}
