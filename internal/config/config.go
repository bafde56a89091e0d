// Package config loads and validates pipeline configuration from YAML,
// with CLI flags and environment variables layered on top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transcription service identifiers.
const (
	ServiceLocal      = "local"
	ServiceAssemblyAI = "assemblyai"
	ServiceOpenAI     = "openai"
)

// WhisperModels lists the accepted local model names.
var WhisperModels = []string{"tiny", "base", "small", "medium", "large"}

// Config holds all pipeline configuration.
type Config struct {
	Language     string `yaml:"language"`
	Model        string `yaml:"model"`
	Service      string `yaml:"service"`
	ChunkMinutes int    `yaml:"chunk_minutes"`
	OutputDir    string `yaml:"output_dir"`
	TempDir      string `yaml:"temp_dir"`
	KeepSegments bool   `yaml:"keep_segments"`
	ParallelJobs int    `yaml:"parallel_jobs"` // reserved; segments are transcribed sequentially

	AssemblyAIKey string `yaml:"assemblyai_api_key"`
	OpenAIKey     string `yaml:"openai_api_key"`

	Diarization DiarizationConfig `yaml:"diarization"`
	Poll        PollConfig        `yaml:"poll"`
	Watch       WatchConfig       `yaml:"watch"`

	HistoryDB  string `yaml:"history_db"` // empty disables the job ledger
	StatusFile string `yaml:"status_file"`
	LogLevel   string `yaml:"log_level"`
}

// DiarizationConfig holds speaker identification settings (AssemblyAI only).
type DiarizationConfig struct {
	Enabled     bool `yaml:"enabled"`
	MinSpeakers int  `yaml:"min_speakers"`
	MaxSpeakers int  `yaml:"max_speakers"`
}

// PollConfig tunes the AssemblyAI status polling loop.
type PollConfig struct {
	InitialIntervalSeconds int `yaml:"initial_interval_seconds"`
	MaxIntervalSeconds     int `yaml:"max_interval_seconds"`
	TimeoutMinutes         int `yaml:"timeout_minutes"`
}

// WatchConfig holds folder-watch settings for daemon mode.
type WatchConfig struct {
	Extensions    []string `yaml:"extensions"`
	SettleSeconds int      `yaml:"settle_seconds"`
}

// DefaultCacheDir returns the per-user cache directory for daemon state
// (pidfile, status snapshot, history database).
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "transcribe")
	}
	return filepath.Join(home, ".cache", "transcribe")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "transcribe", "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	cache := DefaultCacheDir()
	return &Config{
		Language:     "fr",
		Model:        "tiny",
		Service:      ServiceLocal,
		ChunkMinutes: 10,
		OutputDir:    "transcriptions",
		TempDir:      "temp_audio",
		ParallelJobs: 1,
		Diarization: DiarizationConfig{
			Enabled:     false,
			MinSpeakers: 1,
			MaxSpeakers: 2,
		},
		Poll: PollConfig{
			InitialIntervalSeconds: 5,
			MaxIntervalSeconds:     30,
			TimeoutMinutes:         30,
		},
		Watch: WatchConfig{
			Extensions:    []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"},
			SettleSeconds: 2,
		},
		HistoryDB:  filepath.Join(cache, "history.db"),
		StatusFile: filepath.Join(cache, "status.json"),
		LogLevel:   "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults. Tildes in path fields are expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// LoadDefault loads the config from the default path. A missing file is not
// an error; defaults are returned instead.
func LoadDefault() (*Config, error) {
	path := DefaultConfigPath()
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("language must not be empty")
	}

	if !validModel(c.Model) {
		return fmt.Errorf("model must be one of %s, got %q", strings.Join(WhisperModels, ", "), c.Model)
	}

	switch c.Service {
	case ServiceLocal, ServiceAssemblyAI, ServiceOpenAI:
	default:
		return fmt.Errorf("service must be %q, %q or %q, got %q",
			ServiceLocal, ServiceAssemblyAI, ServiceOpenAI, c.Service)
	}

	if c.ChunkMinutes <= 0 {
		return fmt.Errorf("chunk_minutes must be > 0, got %d", c.ChunkMinutes)
	}

	if c.Diarization.Enabled {
		if c.Diarization.MinSpeakers < 1 {
			return fmt.Errorf("diarization.min_speakers must be >= 1, got %d", c.Diarization.MinSpeakers)
		}
		if c.Diarization.MaxSpeakers < c.Diarization.MinSpeakers {
			return fmt.Errorf("diarization.max_speakers must be >= min_speakers, got %d < %d",
				c.Diarization.MaxSpeakers, c.Diarization.MinSpeakers)
		}
	}

	if c.Poll.InitialIntervalSeconds <= 0 {
		return fmt.Errorf("poll.initial_interval_seconds must be > 0, got %d", c.Poll.InitialIntervalSeconds)
	}
	if c.Poll.MaxIntervalSeconds < c.Poll.InitialIntervalSeconds {
		return fmt.Errorf("poll.max_interval_seconds must be >= initial_interval_seconds, got %d < %d",
			c.Poll.MaxIntervalSeconds, c.Poll.InitialIntervalSeconds)
	}
	if c.Poll.TimeoutMinutes <= 0 {
		return fmt.Errorf("poll.timeout_minutes must be > 0, got %d", c.Poll.TimeoutMinutes)
	}

	if c.Watch.SettleSeconds <= 0 {
		return fmt.Errorf("watch.settle_seconds must be > 0, got %d", c.Watch.SettleSeconds)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	// Only one segment is transcribed at a time; higher values are clamped
	// rather than rejected so old config files keep working.
	if c.ParallelJobs != 1 {
		c.ParallelJobs = 1
	}

	return nil
}

// ResolveCredentials fills API keys from the environment when the config
// file carries none, and blanks values that still look like template
// placeholders so backends see them as unset.
func (c *Config) ResolveCredentials() {
	if c.AssemblyAIKey == "" || isPlaceholder(c.AssemblyAIKey) {
		c.AssemblyAIKey = os.Getenv("ASSEMBLYAI_API_KEY")
	}
	if c.OpenAIKey == "" || isPlaceholder(c.OpenAIKey) {
		c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if isPlaceholder(c.AssemblyAIKey) {
		c.AssemblyAIKey = ""
	}
	if isPlaceholder(c.OpenAIKey) {
		c.OpenAIKey = ""
	}
}

// isPlaceholder reports whether a credential value is a template left in
// place of a real key.
func isPlaceholder(v string) bool {
	upper := strings.ToUpper(v)
	return strings.HasPrefix(upper, "VOTRE_CLE_API") ||
		strings.HasPrefix(upper, "YOUR_API") ||
		strings.HasPrefix(upper, "YOUR-API") ||
		upper == "CHANGEME"
}

func validModel(model string) bool {
	for _, m := range WhisperModels {
		if m == model {
			return true
		}
	}
	return false
}

func (c *Config) expandPaths() {
	c.OutputDir = expandTilde(c.OutputDir)
	c.TempDir = expandTilde(c.TempDir)
	c.HistoryDB = expandTilde(c.HistoryDB)
	c.StatusFile = expandTilde(c.StatusFile)
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
