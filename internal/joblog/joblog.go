// Package joblog writes the per-job audit log file that accompanies each
// transcript. The log is a plain-text artifact for the user, separate from
// the structured diagnostic logging.
package joblog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/logging"
	"github.com/rasata/transcription-mp3-to-text/internal/media"
)

// Header carries the job configuration recorded at the top of the log.
// It holds only what is known before the audio has been probed; duration
// and segment figures arrive later through Probed.
type Header struct {
	Source   string
	JobID    string
	Language string
	Service  string
	Model    string
}

// Log appends human-readable entries to the job's audit file. Every write
// opens, appends and closes the file so entries survive a crash. Write
// failures are reported as warnings and never interrupt the job.
type Log struct {
	path string
	log  *logging.Logger
	now  func() time.Time
}

// PathFor derives the audit log path from the transcript path:
// "transcription_x.txt" becomes "transcription_x_log.txt".
func PathFor(outputPath string) string {
	if strings.HasSuffix(outputPath, ".txt") {
		return strings.TrimSuffix(outputPath, ".txt") + "_log.txt"
	}
	return outputPath + "_log"
}

// New creates the audit log and writes its header block. The file is
// truncated; each job owns exactly one log.
func New(path string, h Header, log *logging.Logger) *Log {
	l := &Log{path: path, log: log, now: time.Now}

	var b strings.Builder
	fmt.Fprintf(&b, "Transcription de %s\n", h.Source)
	fmt.Fprintf(&b, "Date: %s\n", l.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Job: %s\n", h.JobID)
	fmt.Fprintf(&b, "Langue: %s\n", h.Language)
	fmt.Fprintf(&b, "Service: %s\n", h.Service)
	fmt.Fprintf(&b, "Modèle: %s\n", h.Model)

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		log.Warn("could not write job log header", "path", path, "error", err)
	}
	return l
}

// Path returns the audit log file path.
func (l *Log) Path() string {
	return l.path
}

// Probed records the duration and segment plan once the audio has been
// measured, completing the header block.
func (l *Log) Probed(total time.Duration, chunks, chunkMinutes int) {
	l.append(fmt.Sprintf("Durée totale: %s\nSegments: %d x %d min\n\n",
		media.FormatClock(total), chunks, chunkMinutes))
}

// SegmentDone records one completed segment with a wall-clock timestamp.
func (l *Log) SegmentDone(index, total int, segmentName string) {
	l.append(fmt.Sprintf("Segment %d/%d traité: %s\nHeure: %s\n\n",
		index+1, total, segmentName, l.now().Format("15:04:05")))
}

// Event records one timestamped free-form line.
func (l *Log) Event(format string, args ...interface{}) {
	l.append(fmt.Sprintf("[%s] %s\n", l.now().Format("15:04:05"), fmt.Sprintf(format, args...)))
}

// Error records a fatal job error.
func (l *Log) Error(err error) {
	l.append(fmt.Sprintf("\nERREUR: %v\n", err))
}

// Finish records the closing line with the total elapsed time.
func (l *Log) Finish(elapsed time.Duration) {
	l.append(fmt.Sprintf("\nTranscription terminée en %s\n", media.FormatClock(elapsed)))
}

// append writes one entry with its own open/append/close cycle.
func (l *Log) append(entry string) {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.log.Warn("could not open job log", "path", l.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		l.log.Warn("could not append to job log", "path", l.path, "error", err)
	}
}
