package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

// Window is one planned extraction span within the source audio. Windows
// tile [0, total) with no gaps or overlap; only the final window may be
// shorter than the chunk duration.
type Window struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
}

// End returns the exclusive end of the window within the source audio.
func (w Window) End() time.Duration {
	return w.Start + w.Duration
}

// PlanWindows splits a total duration into consecutive chunk-sized windows.
// The final window covers whatever remains. When chunk divides total exactly
// there is no zero-width tail window, and a zero total yields no windows.
func PlanWindows(total, chunk time.Duration) []Window {
	if total <= 0 || chunk <= 0 {
		return nil
	}

	var windows []Window
	for start := time.Duration(0); start < total; start += chunk {
		d := chunk
		if start+d > total {
			d = total - start
		}
		windows = append(windows, Window{
			Index:    len(windows),
			Start:    start,
			Duration: d,
		})
	}
	return windows
}

// Segmenter extracts planned windows as mono 16 kHz WAV files, the input
// format speech models work best with.
type Segmenter struct {
	tempDir string
	log     *logging.Logger
}

// NewSegmenter creates a Segmenter writing segment files into tempDir.
func NewSegmenter(tempDir string, log *logging.Logger) *Segmenter {
	return &Segmenter{tempDir: tempDir, log: log}
}

// TempDir returns the directory segment files are written to.
func (s *Segmenter) TempDir() string {
	return s.tempDir
}

// Prepare creates the temp directory and clears segment files left behind by
// a previous run. Stale files that cannot be removed only produce warnings.
func (s *Segmenter) Prepare() error {
	if err := os.MkdirAll(s.tempDir, 0755); err != nil {
		return fmt.Errorf("create temp directory %s: %w", s.tempDir, err)
	}

	stale, err := filepath.Glob(filepath.Join(s.tempDir, "segment_*.wav"))
	if err != nil {
		return nil
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			s.log.Warn("could not remove stale segment file", "path", path, "error", err)
		}
	}
	if len(stale) > 0 {
		s.log.Info("cleared stale segment files from previous run", "count", len(stale))
	}
	return nil
}

// Extract runs ffmpeg to extract one window from the source audio. The
// output is downmixed to mono and resampled to 16 kHz.
func (s *Segmenter) Extract(ctx context.Context, audioPath string, w Window) (string, error) {
	outPath := filepath.Join(s.tempDir, segmentFilename(w))

	cmd := exec.CommandContext(ctx, "ffmpeg", extractArgs(audioPath, w, outPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		// A partial output file is useless to the pipeline; drop it so
		// cleanup never mistakes it for a valid segment.
		_ = os.Remove(outPath)
		return "", fmt.Errorf("extract segment %d (%s to %s): %w; out=%s",
			w.Index, FormatClock(w.Start), FormatClock(w.End()), err, out)
	}
	return outPath, nil
}

// ExtractAll extracts every window in order. On the first failure it removes
// the segments extracted so far and returns the error; a partially prepared
// segment set is never handed to transcription.
func (s *Segmenter) ExtractAll(ctx context.Context, audioPath string, windows []Window) ([]string, error) {
	paths := make([]string, 0, len(windows))
	for _, w := range windows {
		s.log.Info("preparing segment",
			"segment", w.Index+1,
			"total", len(windows),
			"start", FormatClock(w.Start),
			"end", FormatClock(w.End()))

		path, err := s.Extract(ctx, audioPath, w)
		if err != nil {
			for _, p := range paths {
				_ = os.Remove(p)
			}
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Cleanup removes segment files and then the temp directory itself. The
// directory remove is best-effort; it fails when other files remain.
func (s *Segmenter) Cleanup(paths []string) error {
	var firstErr error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove segment %s: %w", path, err)
			}
		}
	}
	if err := os.Remove(s.tempDir); err != nil && !os.IsNotExist(err) {
		if firstErr == nil {
			firstErr = fmt.Errorf("remove temp directory %s: %w", s.tempDir, err)
		}
	}
	return firstErr
}

// extractArgs builds the ffmpeg arguments for one window extraction.
func extractArgs(audioPath string, w Window, outPath string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatFFmpegTime(w.Start),
		"-i", audioPath,
		"-t", formatFFmpegTime(w.Duration),
		"-ac", "1",
		"-ar", "16000",
		outPath,
	}
}

// segmentFilename returns the output filename for a window, e.g.
// "segment_0003_00-30-00.wav". Colons are avoided for portability.
func segmentFilename(w Window) string {
	h := int(w.Start.Hours())
	m := int(w.Start.Minutes()) % 60
	s := int(w.Start.Seconds()) % 60
	return fmt.Sprintf("segment_%04d_%02d-%02d-%02d.wav", w.Index, h, m, s)
}

// formatFFmpegTime formats a duration for ffmpeg -ss/-t arguments,
// keeping millisecond precision for the final short window.
func formatFFmpegTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

// FormatClock formats a duration as HH:MM:SS for log and report output.
func FormatClock(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
