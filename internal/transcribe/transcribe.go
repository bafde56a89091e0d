// Package transcribe provides the transcription backends the pipeline
// drives: a local whisper CLI and two hosted speech-to-text services.
// All backends satisfy the same capability interface so the orchestrator
// never branches on provider names.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

// Backend converts audio segment files to text.
type Backend interface {
	// Name returns the provider identifier used in logs and job records.
	Name() string
	// Transcribe converts one audio segment to text. An empty string with a
	// nil error means the provider produced no text for the segment.
	Transcribe(ctx context.Context, segmentPath, language string) (string, error)
	// HealthCheck verifies the backend is usable before a job starts.
	HealthCheck(ctx context.Context) error
}

var (
	// ErrUnconfigured means the selected backend has no usable credentials.
	// The pipeline substitutes empty text for the segment and keeps going.
	ErrUnconfigured = errors.New("backend credentials not configured")

	// ErrPollTimeout means an asynchronous provider did not reach a terminal
	// state within the polling deadline.
	ErrPollTimeout = errors.New("transcription polling timed out")
)

// New selects the backend implementation for the configured service.
func New(cfg *config.Config, log *logging.Logger) (Backend, error) {
	if cfg.Diarization.Enabled && cfg.Service != config.ServiceAssemblyAI {
		log.Warn("diarization is only available with assemblyai, ignoring",
			"service", cfg.Service)
	}
	switch cfg.Service {
	case config.ServiceLocal:
		return NewLocal(cfg, log), nil
	case config.ServiceAssemblyAI:
		return NewAssemblyAI(cfg, log), nil
	case config.ServiceOpenAI:
		return NewOpenAI(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown transcription service %q", cfg.Service)
	}
}

// ── helpers ──────────────────────────────────────────────────────────────────

// retryableError wraps errors that should trigger a retry.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// isRetryable returns true for retryableError instances.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	return errors.As(err, &re)
}

// backoffDelay returns exponential backoff duration: base * 2^(attempt-1)
// plus 0–25% jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate returns the first n bytes of body as a string.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
