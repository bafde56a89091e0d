// Package media probes audio files and extracts fixed-length segments
// using ffmpeg subprocesses.
package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// ErrDurationUnavailable is returned when ffmpeg output carries no parsable
// duration token. The pipeline must not start segmenting without a duration.
var ErrDurationUnavailable = errors.New("could not determine audio duration")

// durationRe matches "Duration: HH:MM:SS.cc" in ffmpeg diagnostic output.
// The hour field is unbounded; very long recordings exceed two digits.
var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// ProbeDuration returns the duration of an audio file by running ffmpeg with
// a null output and parsing its diagnostic output. ffmpeg exits non-zero on
// such runs, so the exit status is ignored whenever output was produced.
func ProbeDuration(ctx context.Context, audioPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-i", audioPath, "-f", "null", "-")
	out, err := cmd.CombinedOutput()
	if err != nil && len(out) == 0 {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(audioPath), err)
	}

	d, perr := parseDurationOutput(string(out))
	if perr != nil {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(audioPath), perr)
	}
	return d, nil
}

// parseDurationOutput extracts the duration token from ffmpeg output.
func parseDurationOutput(output string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(output)
	if m == nil {
		return 0, ErrDurationUnavailable
	}
	return parseTimeComponents(m[1], m[2], m[3], m[4]), nil
}

// parseTimeComponents converts HH, MM, SS and a fractional-second field to a
// Duration. The fractional field may carry 1..n digits (ffmpeg emits
// centiseconds); excess precision is truncated to milliseconds.
func parseTimeComponents(hours, minutes, seconds, fractional string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	frac, _ := strconv.Atoi(fractional)
	ms := frac
	switch n := len(fractional); {
	case n == 1:
		ms = frac * 100
	case n == 2:
		ms = frac * 10
	case n == 3:
		// Already milliseconds.
	case n > 3:
		for i := n; i > 3; i-- {
			ms /= 10
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}
