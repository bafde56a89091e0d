// Package transcript accumulates per-segment text into the output file.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
)

// Separator is written between consecutive segment fragments.
const Separator = "\n\n--- Nouveau segment ---\n\n"

// Appender appends segment fragments to the transcript file in segment
// order. Each fragment gets its own open/append/close cycle, so a crash
// mid-job never loses fragments already on disk and never leaves a handle
// open between segments.
type Appender struct {
	path    string
	next    int
	written int64
}

// NewAppender creates an appender for the given output path, creating the
// parent directory when needed. The file itself is created on first append.
func NewAppender(path string) (*Appender, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Appender{path: path}, nil
}

// Path returns the transcript file path.
func (a *Appender) Path() string {
	return a.path
}

// BytesWritten returns the total bytes appended so far.
func (a *Appender) BytesWritten() int64 {
	return a.written
}

// Append writes the fragment for one segment. Fragments must arrive in
// order starting at 0; a gap or repeat is an error. Every fragment past the
// first is preceded by the separator, so a transcript of n segments carries
// exactly n-1 separators. Empty fragments still claim their slot so later
// segments stay aligned.
func (a *Appender) Append(index int, text string) error {
	if index != a.next {
		return fmt.Errorf("segment %d appended out of order, expected %d", index, a.next)
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	fragment := text
	if index > 0 {
		fragment = Separator + text
	}

	n, err := f.WriteString(fragment)
	a.written += int64(n)
	if err != nil {
		return fmt.Errorf("append segment %d: %w", index, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync transcript: %w", err)
	}

	a.next++
	return nil
}
