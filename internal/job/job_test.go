package job

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
)

func TestNewJob_DerivesOutputPath(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/data/transcriptions"

	j := NewJob(cfg, "/audio/réunion projet.mp3", "")

	if j.ID == "" {
		t.Fatal("expected a job ID")
	}
	if dir := filepath.Dir(j.OutputPath); dir != "/data/transcriptions" {
		t.Fatalf("expected output in /data/transcriptions, got %s", dir)
	}
	base := filepath.Base(j.OutputPath)
	if !strings.HasPrefix(base, "transcription_reunion_projet_") {
		t.Fatalf("expected sanitized transcript name, got %s", base)
	}
	if !strings.HasSuffix(base, ".txt") {
		t.Fatalf("expected .txt transcript, got %s", base)
	}
	if want := strings.TrimSuffix(j.OutputPath, ".txt") + "_log.txt"; j.LogPath != want {
		t.Fatalf("expected log path %s, got %s", want, j.LogPath)
	}
}

func TestNewJob_ExplicitOutputPath(t *testing.T) {
	cfg := config.Default()
	j := NewJob(cfg, "/audio/interview.mp3", "/tmp/out/mon_texte.txt")

	if j.OutputPath != "/tmp/out/mon_texte.txt" {
		t.Fatalf("expected explicit output path kept, got %s", j.OutputPath)
	}
	if j.LogPath != "/tmp/out/mon_texte_log.txt" {
		t.Fatalf("expected log path next to transcript, got %s", j.LogPath)
	}
}

func TestNewJob_CopiesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Language = "en"
	cfg.Model = "medium"
	cfg.Service = config.ServiceOpenAI
	cfg.ChunkMinutes = 5

	j := NewJob(cfg, "/audio/interview.mp3", "")

	if j.Language != "en" {
		t.Fatalf("expected language en, got %s", j.Language)
	}
	if j.Model != "medium" {
		t.Fatalf("expected model medium, got %s", j.Model)
	}
	if j.Service != config.ServiceOpenAI {
		t.Fatalf("expected service %s, got %s", config.ServiceOpenAI, j.Service)
	}
	if j.ChunkDuration != 5*time.Minute {
		t.Fatalf("expected 5m chunks, got %s", j.ChunkDuration)
	}
}

func TestNewJob_UniqueIDs(t *testing.T) {
	cfg := config.Default()
	a := NewJob(cfg, "/audio/a.mp3", "")
	b := NewJob(cfg, "/audio/a.mp3", "")
	if a.ID == b.ID {
		t.Fatalf("expected distinct job IDs, both were %s", a.ID)
	}
}
