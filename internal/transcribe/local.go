package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

// Local shells out to the whisper CLI for on-machine transcription. Each
// call runs a fresh process; the CLI loads the model per invocation, which
// keeps memory bounded at the cost of startup time.
type Local struct {
	binary string
	model  string
	log    *logging.Logger
}

// NewLocal creates a local whisper backend using the configured model size.
func NewLocal(cfg *config.Config, log *logging.Logger) *Local {
	return &Local{
		binary: "whisper",
		model:  cfg.Model,
		log:    log,
	}
}

// Name returns the backend identifier.
func (l *Local) Name() string {
	return config.ServiceLocal
}

// HealthCheck verifies the whisper CLI is on PATH.
func (l *Local) HealthCheck(ctx context.Context) error {
	if _, err := exec.LookPath(l.binary); err != nil {
		return fmt.Errorf("whisper CLI not found on PATH: %w", err)
	}
	return nil
}

// Transcribe runs the whisper CLI on one segment and reads back the text it
// produced. fp16 is disabled so results stay stable on CPUs without
// half-precision support.
func (l *Local) Transcribe(ctx context.Context, segmentPath, language string) (string, error) {
	outDir, err := os.MkdirTemp("", "whisper-out-")
	if err != nil {
		return "", fmt.Errorf("create whisper output directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		segmentPath,
		"--model", l.model,
		"--language", language,
		"--fp16", "False",
		"--output_format", "txt",
		"--output_dir", outDir,
		"--verbose", "False",
	}

	l.log.Debug("running whisper CLI", "segment", filepath.Base(segmentPath), "model", l.model)
	cmd := exec.CommandContext(ctx, l.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("whisper %s: %w; out=%s", filepath.Base(segmentPath), err, truncate(out, 200))
	}

	// The CLI names its output after the input segment.
	base := strings.TrimSuffix(filepath.Base(segmentPath), filepath.Ext(segmentPath))
	text, err := os.ReadFile(filepath.Join(outDir, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("read whisper output for %s: %w", filepath.Base(segmentPath), err)
	}
	return strings.TrimSpace(string(text)), nil
}
