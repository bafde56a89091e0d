package fileutil

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonASCII   = regexp.MustCompile(`[^\x00-\x7F]+`)
	nonWord    = regexp.MustCompile(`[^a-zA-Z0-9_.\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// SanitizeForFilename flattens a string into a safe ASCII filename
// fragment. Accented characters are decomposed and lose their accents
// rather than disappearing; anything still unrepresentable becomes an
// underscore. Input that sanitizes to nothing gets a random fallback name.
func SanitizeForFilename(input string) string {
	// NFKD decomposition followed by stripping combining marks turns
	// "réunion d'équipe" into "reunion d'equipe".
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	flattened, _, err := transform.String(fold, input)
	if err != nil {
		flattened = input
	}

	s := nonASCII.ReplaceAllString(flattened, "_")
	s = nonWord.ReplaceAllString(s, "_")
	s = whitespace.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if strings.Trim(s, "_.-") == "" {
		return "file_" + uuid.NewString()[:8]
	}
	return s
}

// TranscriptPath builds the default transcript path for a source audio
// file: <outputDir>/transcription_<base>_<YYYYMMDD_HHMMSS>.txt with the
// base name sanitized.
func TranscriptPath(outputDir, audioPath string, at time.Time) string {
	base := filepath.Base(audioPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := fmt.Sprintf("transcription_%s_%s.txt",
		SanitizeForFilename(base), at.Format("20060102_150405"))
	return filepath.Join(outputDir, name)
}
