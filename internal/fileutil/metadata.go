// Package fileutil provides transcript naming and sidecar metadata helpers.
package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TranscriptMetadata is the sidecar JSON written alongside each transcript.
type TranscriptMetadata struct {
	Version     string    `json:"version"`
	JobID       string    `json:"job_id"`
	Source      string    `json:"source_file"`
	Duration    string    `json:"duration"`
	DurationMs  int64     `json:"duration_ms"`
	Language    string    `json:"language"`
	Backend     string    `json:"backend"`
	Model       string    `json:"model"`
	Chunks      int       `json:"chunks"`
	EmptyChunks int       `json:"empty_chunks"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	OutputFile  string    `json:"output_file"`
	OutputBytes int64     `json:"output_bytes"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// WriteMetadata writes a <basepath>.meta.json sidecar next to the
// transcript, atomically (temp + rename) so readers never see a partial
// document.
func WriteMetadata(transcriptPath string, meta *TranscriptMetadata) error {
	metaPath := MetadataPath(transcriptPath)
	dir := filepath.Dir(metaPath)

	tmpFile, err := os.CreateTemp(dir, "meta-*.tmp")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error.
	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close metadata temp: %w", err)
	}
	success = true // prevent defer cleanup

	if err := os.Rename(tmpPath, metaPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// MetadataPath returns <basepath>.meta.json for a given transcript path.
func MetadataPath(transcriptPath string) string {
	ext := filepath.Ext(transcriptPath)
	base := transcriptPath[:len(transcriptPath)-len(ext)]
	return base + ".meta.json"
}
