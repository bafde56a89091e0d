// Package job orchestrates one transcription run: probe, segment,
// transcribe each segment through the selected backend, append to the
// transcript, clean up.
package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/fileutil"
	"github.com/rasata/transcription-mp3-to-text/internal/joblog"
)

// Job describes one transcription run. Duration and Chunks are filled in
// by the runner once the source has been probed.
type Job struct {
	ID            string
	AudioPath     string
	Language      string
	Model         string
	Service       string
	ChunkDuration time.Duration
	OutputPath    string
	LogPath       string
	CreatedAt     time.Time

	Duration time.Duration
	Chunks   int
}

// NewJob builds a job for one audio file from the active configuration.
// An empty outputPath derives the transcript name from the audio file.
func NewJob(cfg *config.Config, audioPath, outputPath string) *Job {
	now := time.Now()
	if outputPath == "" {
		outputPath = fileutil.TranscriptPath(cfg.OutputDir, audioPath, now)
	}
	return &Job{
		ID:            uuid.NewString(),
		AudioPath:     audioPath,
		Language:      cfg.Language,
		Model:         cfg.Model,
		Service:       cfg.Service,
		ChunkDuration: time.Duration(cfg.ChunkMinutes) * time.Minute,
		OutputPath:    outputPath,
		LogPath:       joblog.PathFor(outputPath),
		CreatedAt:     now,
	}
}
