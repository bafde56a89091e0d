package transcribe

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

func TestNew_SelectsBackend(t *testing.T) {
	cases := []struct {
		service string
		name    string
	}{
		{config.ServiceLocal, "local"},
		{config.ServiceAssemblyAI, "assemblyai"},
		{config.ServiceOpenAI, "openai"},
	}
	for _, tc := range cases {
		cfg := config.Default()
		cfg.Service = tc.service

		b, err := New(cfg, logging.NewNop())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.service, err)
		}
		if b.Name() != tc.name {
			t.Errorf("expected backend %q, got %q", tc.name, b.Name())
		}
	}
}

func TestNew_DiarizationIgnoredOutsideAssemblyAI(t *testing.T) {
	cfg := config.Default()
	cfg.Service = config.ServiceLocal
	cfg.Diarization = config.DiarizationConfig{Enabled: true, MinSpeakers: 1, MaxSpeakers: 2}

	log, logs := logging.NewObserved()
	if _, err := New(cfg, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.FilterMessageSnippet("diarization").Len() == 0 {
		t.Fatal("expected a warning that diarization is ignored")
	}

	cfg.Service = config.ServiceAssemblyAI
	log, logs = logging.NewObserved()
	if _, err := New(cfg, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.FilterMessageSnippet("diarization").Len() != 0 {
		t.Fatal("expected no warning when assemblyai handles diarization")
	}
}

func TestNew_UnknownService(t *testing.T) {
	cfg := config.Default()
	cfg.Service = "deepgram"

	_, err := New(cfg, logging.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestIsRetryable(t *testing.T) {
	plain := fmt.Errorf("plain failure")
	if isRetryable(plain) {
		t.Error("expected plain error to be non-retryable")
	}
	if !isRetryable(&retryableError{err: plain}) {
		t.Error("expected wrapped error to be retryable")
	}
	wrapped := fmt.Errorf("outer: %w", &retryableError{err: plain})
	if !isRetryable(wrapped) {
		t.Error("expected retryable error to survive wrapping")
	}
	if isRetryable(nil) {
		t.Error("expected nil to be non-retryable")
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	re := &retryableError{err: inner}
	if !errors.Is(re, inner) {
		t.Error("expected retryableError to unwrap to inner error")
	}
}

func TestBackoffDelay_Grows(t *testing.T) {
	base := 10 * time.Millisecond
	prev := time.Duration(0)
	for attempt := 1; attempt <= 4; attempt++ {
		d := backoffDelay(base, attempt)
		min := base * (1 << (attempt - 1))
		max := min + min/4
		if d < min || d > max {
			t.Errorf("attempt %d: expected delay in [%v, %v], got %v", attempt, min, max, d)
		}
		if d < prev {
			t.Errorf("attempt %d: expected non-shrinking base delay, got %v after %v", attempt, d, prev)
		}
		prev = min
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate([]byte("short"), 200); got != "short" {
		t.Errorf("expected unmodified string, got %q", got)
	}
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	got := truncate(long, 200)
	if len(got) != 203 {
		t.Errorf("expected 200 bytes plus ellipsis, got %d bytes", len(got))
	}
}
