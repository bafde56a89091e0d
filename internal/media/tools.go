package media

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrToolMissing is returned when a required external binary is not on PATH.
var ErrToolMissing = errors.New("required tool not found")

// installHints maps tool names to installation guidance shown to the user.
var installHints = map[string]string{
	"ffmpeg":  "install with 'brew install ffmpeg' on macOS or 'apt install ffmpeg' on Debian/Ubuntu",
	"whisper": "install with 'pip install -U openai-whisper' (requires PyTorch)",
}

// EnsureTools verifies each named binary can be found on PATH. The first
// missing tool is reported with installation guidance.
func EnsureTools(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			if hint, ok := installHints[name]; ok {
				return fmt.Errorf("%w: %s (%s)", ErrToolMissing, name, hint)
			}
			return fmt.Errorf("%w: %s", ErrToolMissing, name)
		}
	}
	return nil
}
