// Package status publishes job progress for external consumers: an atomic
// JSON snapshot file plus an optional WebSocket feed.
package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

// Snapshot is the externally visible state of the current job.
type Snapshot struct {
	State       string    `json:"state"`
	JobID       string    `json:"job_id"`
	AudioFile   string    `json:"audio_file"`
	Backend     string    `json:"backend"`
	Chunk       int       `json:"chunk"`
	TotalChunks int       `json:"total_chunks"`
	Percent     float64   `json:"percent"`
	ETASeconds  int64     `json:"eta_seconds"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Publisher receives snapshots as the job progresses.
type Publisher interface {
	Publish(Snapshot)
}

// Multi fans each snapshot out to several publishers.
type Multi []Publisher

func (m Multi) Publish(s Snapshot) {
	for _, p := range m {
		p.Publish(s)
	}
}

// FileReporter persists the latest snapshot to a JSON file. Writes are
// atomic so readers never observe a partial document; failures are logged
// and otherwise ignored since status is advisory.
type FileReporter struct {
	path string
	log  *logging.Logger
}

// NewFileReporter creates a reporter writing to path, creating the parent
// directory when needed.
func NewFileReporter(path string, log *logging.Logger) *FileReporter {
	return &FileReporter{path: path, log: log}
}

// Publish persists the snapshot.
func (r *FileReporter) Publish(s Snapshot) {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		r.log.Warn("could not create status directory", "path", r.path, "error", err)
		return
	}
	if err := atomicWriteJSON(r.path, &s); err != nil {
		r.log.Warn("could not write status snapshot", "path", r.path, "error", err)
	}
}

// Read loads the last published snapshot from a status file.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename.
func atomicWriteJSON(path string, data interface{}) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "status-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error.
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // prevent defer cleanup

	return os.Rename(tmpPath, path)
}
