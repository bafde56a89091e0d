package config

import (
	"os"
	"path/filepath"
	"testing"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default
// ─────────────────────────────────────────────────────────────────────────────

func TestDefault_values(t *testing.T) {
	cfg := Default()
	if cfg.Language != "fr" {
		t.Errorf("Language: got %q, want %q", cfg.Language, "fr")
	}
	if cfg.Model != "tiny" {
		t.Errorf("Model: got %q, want %q", cfg.Model, "tiny")
	}
	if cfg.Service != ServiceLocal {
		t.Errorf("Service: got %q, want %q", cfg.Service, ServiceLocal)
	}
	if cfg.ChunkMinutes != 10 {
		t.Errorf("ChunkMinutes: got %d, want 10", cfg.ChunkMinutes)
	}
	if cfg.OutputDir != "transcriptions" {
		t.Errorf("OutputDir: got %q, want %q", cfg.OutputDir, "transcriptions")
	}
	if cfg.TempDir != "temp_audio" {
		t.Errorf("TempDir: got %q, want %q", cfg.TempDir, "temp_audio")
	}
	if cfg.Diarization.Enabled {
		t.Error("Diarization.Enabled should default to false")
	}
	if cfg.Poll.InitialIntervalSeconds != 5 {
		t.Errorf("Poll.InitialIntervalSeconds: got %d, want 5", cfg.Poll.InitialIntervalSeconds)
	}
	if cfg.Poll.MaxIntervalSeconds != 30 {
		t.Errorf("Poll.MaxIntervalSeconds: got %d, want 30", cfg.Poll.MaxIntervalSeconds)
	}
	if cfg.Poll.TimeoutMinutes != 30 {
		t.Errorf("Poll.TimeoutMinutes: got %d, want 30", cfg.Poll.TimeoutMinutes)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %q, want %q", cfg.LogLevel, "info")
	}
}

func TestDefault_validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Validate
// ─────────────────────────────────────────────────────────────────────────────

func TestValidate_language_empty(t *testing.T) {
	cfg := Default()
	cfg.Language = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty language")
	}
}

func TestValidate_model_unknown(t *testing.T) {
	cfg := Default()
	cfg.Model = "gigantic"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestValidate_model_allAccepted(t *testing.T) {
	for _, m := range WhisperModels {
		cfg := Default()
		cfg.Model = m
		if err := cfg.Validate(); err != nil {
			t.Errorf("model %q should be valid, got: %v", m, err)
		}
	}
}

func TestValidate_service_unknown(t *testing.T) {
	cfg := Default()
	cfg.Service = "deepgram"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown service")
	}
}

func TestValidate_chunkMinutes_zero(t *testing.T) {
	cfg := Default()
	cfg.ChunkMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for chunk_minutes=0")
	}
}

func TestValidate_chunkMinutes_negative(t *testing.T) {
	cfg := Default()
	cfg.ChunkMinutes = -5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative chunk_minutes")
	}
}

func TestValidate_diarization_minZero(t *testing.T) {
	cfg := Default()
	cfg.Diarization = DiarizationConfig{Enabled: true, MinSpeakers: 0, MaxSpeakers: 2}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min_speakers=0 with diarization enabled")
	}
}

func TestValidate_diarization_maxBelowMin(t *testing.T) {
	cfg := Default()
	cfg.Diarization = DiarizationConfig{Enabled: true, MinSpeakers: 3, MaxSpeakers: 2}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when max_speakers < min_speakers")
	}
}

func TestValidate_diarization_disabledSkipsChecks(t *testing.T) {
	cfg := Default()
	cfg.Diarization = DiarizationConfig{Enabled: false, MinSpeakers: 0, MaxSpeakers: 0}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled diarization should skip speaker checks, got: %v", err)
	}
}

func TestValidate_poll_maxBelowInitial(t *testing.T) {
	cfg := Default()
	cfg.Poll.InitialIntervalSeconds = 10
	cfg.Poll.MaxIntervalSeconds = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when max interval < initial interval")
	}
}

func TestValidate_poll_timeoutZero(t *testing.T) {
	cfg := Default()
	cfg.Poll.TimeoutMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for poll.timeout_minutes=0")
	}
}

func TestValidate_logLevel_unknown(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestValidate_parallelJobs_clampedToOne(t *testing.T) {
	cfg := Default()
	cfg.ParallelJobs = 8
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ParallelJobs != 1 {
		t.Errorf("ParallelJobs: got %d, want 1 after clamping", cfg.ParallelJobs)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

func TestLoad_overridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
language: en
model: small
service: assemblyai
chunk_minutes: 5
output_dir: /tmp/out
diarization:
  enabled: true
  min_speakers: 2
  max_speakers: 4
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Language != "en" {
		t.Errorf("Language: got %q, want %q", cfg.Language, "en")
	}
	if cfg.Model != "small" {
		t.Errorf("Model: got %q, want %q", cfg.Model, "small")
	}
	if cfg.Service != ServiceAssemblyAI {
		t.Errorf("Service: got %q, want %q", cfg.Service, ServiceAssemblyAI)
	}
	if cfg.ChunkMinutes != 5 {
		t.Errorf("ChunkMinutes: got %d, want 5", cfg.ChunkMinutes)
	}
	if !cfg.Diarization.Enabled || cfg.Diarization.MinSpeakers != 2 || cfg.Diarization.MaxSpeakers != 4 {
		t.Errorf("Diarization: got %+v", cfg.Diarization)
	}
	// Untouched fields keep their defaults.
	if cfg.TempDir != "temp_audio" {
		t.Errorf("TempDir should keep default, got %q", cfg.TempDir)
	}
	if cfg.Poll.InitialIntervalSeconds != 5 {
		t.Errorf("Poll should keep defaults, got %+v", cfg.Poll)
	}
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_malformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("language: [unclosed"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_expandsTilde(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("output_dir: ~/my-transcripts\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, "my-transcripts")
	if cfg.OutputDir != want {
		t.Errorf("OutputDir: got %q, want %q", cfg.OutputDir, want)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ResolveCredentials
// ─────────────────────────────────────────────────────────────────────────────

func TestResolveCredentials_envFallback(t *testing.T) {
	t.Setenv("ASSEMBLYAI_API_KEY", "aai-from-env")
	t.Setenv("OPENAI_API_KEY", "oai-from-env")

	cfg := Default()
	cfg.ResolveCredentials()

	if cfg.AssemblyAIKey != "aai-from-env" {
		t.Errorf("AssemblyAIKey: got %q, want %q", cfg.AssemblyAIKey, "aai-from-env")
	}
	if cfg.OpenAIKey != "oai-from-env" {
		t.Errorf("OpenAIKey: got %q, want %q", cfg.OpenAIKey, "oai-from-env")
	}
}

func TestResolveCredentials_configWins(t *testing.T) {
	t.Setenv("ASSEMBLYAI_API_KEY", "aai-from-env")

	cfg := Default()
	cfg.AssemblyAIKey = "aai-from-file"
	cfg.ResolveCredentials()

	if cfg.AssemblyAIKey != "aai-from-file" {
		t.Errorf("AssemblyAIKey: got %q, want %q", cfg.AssemblyAIKey, "aai-from-file")
	}
}

func TestResolveCredentials_placeholderTreatedAsUnset(t *testing.T) {
	t.Setenv("ASSEMBLYAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Default()
	cfg.AssemblyAIKey = "VOTRE_CLE_API_ASSEMBLY_AI"
	cfg.OpenAIKey = "YOUR_API_KEY"
	cfg.ResolveCredentials()

	if cfg.AssemblyAIKey != "" {
		t.Errorf("AssemblyAIKey placeholder should be blanked, got %q", cfg.AssemblyAIKey)
	}
	if cfg.OpenAIKey != "" {
		t.Errorf("OpenAIKey placeholder should be blanked, got %q", cfg.OpenAIKey)
	}
}

func TestResolveCredentials_placeholderFallsBackToEnv(t *testing.T) {
	t.Setenv("ASSEMBLYAI_API_KEY", "real-key")

	cfg := Default()
	cfg.AssemblyAIKey = "VOTRE_CLE_API_ASSEMBLY_AI"
	cfg.ResolveCredentials()

	if cfg.AssemblyAIKey != "real-key" {
		t.Errorf("AssemblyAIKey: got %q, want %q", cfg.AssemblyAIKey, "real-key")
	}
}
