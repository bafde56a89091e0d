package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

const (
	assemblyAIBaseURL = "https://api.assemblyai.com"

	// pollGrowth widens the polling interval after each attempt until it
	// reaches the configured cap.
	pollGrowth = 1.5

	// maxPollFailures bounds consecutive transient poll errors before the
	// segment is given up on.
	maxPollFailures = 3
)

// AssemblyAI transcribes segments through the AssemblyAI asynchronous API:
// upload the audio, submit a transcription job, then poll until the job
// reaches a terminal status.
type AssemblyAI struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *logging.Logger

	diarize          bool
	speakersExpected int

	pollInitial  time.Duration
	pollMax      time.Duration
	pollDeadline time.Duration
}

// NewAssemblyAI creates an AssemblyAI backend from resolved configuration.
func NewAssemblyAI(cfg *config.Config, log *logging.Logger) *AssemblyAI {
	a := &AssemblyAI{
		apiKey:       cfg.AssemblyAIKey,
		baseURL:      assemblyAIBaseURL,
		client:       &http.Client{Timeout: 120 * time.Second},
		log:          log,
		diarize:      cfg.Diarization.Enabled,
		pollInitial:  time.Duration(cfg.Poll.InitialIntervalSeconds) * time.Second,
		pollMax:      time.Duration(cfg.Poll.MaxIntervalSeconds) * time.Second,
		pollDeadline: time.Duration(cfg.Poll.TimeoutMinutes) * time.Minute,
	}
	if cfg.Diarization.Enabled {
		a.speakersExpected = cfg.Diarization.MaxSpeakers
	}
	return a
}

// Name returns the backend identifier.
func (a *AssemblyAI) Name() string {
	return config.ServiceAssemblyAI
}

// HealthCheck reports whether an API key is configured.
func (a *AssemblyAI) HealthCheck(ctx context.Context) error {
	if a.apiKey == "" {
		return ErrUnconfigured
	}
	return nil
}

// aaiTranscript mirrors the transcript resource returned by the API.
type aaiTranscript struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Text       string         `json:"text"`
	Error      string         `json:"error"`
	Utterances []aaiUtterance `json:"utterances"`
}

// aaiUtterance is one speaker turn in a diarized transcript.
type aaiUtterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcribe uploads one segment, submits a transcription job for it and
// waits for the result. A provider-side "error" status yields empty text
// without an error; the job carries on with the remaining segments.
func (a *AssemblyAI) Transcribe(ctx context.Context, segmentPath, language string) (string, error) {
	if a.apiKey == "" {
		return "", ErrUnconfigured
	}

	audioURL, err := a.upload(ctx, segmentPath)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filepath.Base(segmentPath), err)
	}

	id, err := a.submit(ctx, audioURL, language)
	if err != nil {
		return "", fmt.Errorf("submit transcription for %s: %w", filepath.Base(segmentPath), err)
	}

	return a.awaitResult(ctx, id, filepath.Base(segmentPath))
}

// upload streams the segment file to the upload endpoint and returns the
// reference URL the transcription job is submitted against.
func (a *AssemblyAI) upload(ctx context.Context, segmentPath string) (string, error) {
	f, err := os.Open(segmentPath)
	if err != nil {
		return "", fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/upload", f)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	body, err := a.do(req)
	if err != nil {
		return "", err
	}

	var parsed struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.UploadURL == "" {
		return "", fmt.Errorf("upload response carries no URL")
	}
	return parsed.UploadURL, nil
}

// submit creates the transcription job and returns its identifier.
func (a *AssemblyAI) submit(ctx context.Context, audioURL, language string) (string, error) {
	payload := map[string]interface{}{
		"audio_url":     audioURL,
		"language_code": language,
	}
	if a.diarize {
		payload["speaker_labels"] = true
		if a.speakersExpected > 0 {
			payload["speakers_expected"] = a.speakersExpected
		}
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/transcript", bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("create transcript request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := a.do(req)
	if err != nil {
		return "", err
	}

	var parsed aaiTranscript
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode transcript response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("transcript response carries no id")
	}
	return parsed.ID, nil
}

// awaitResult polls the transcript resource until it completes, errors out
// or the deadline passes. The interval grows from the initial value up to
// the cap; transient poll failures are tolerated up to maxPollFailures in a
// row.
func (a *AssemblyAI) awaitResult(ctx context.Context, id, segmentName string) (string, error) {
	deadline := time.Now().Add(a.pollDeadline)
	interval := a.pollInitial
	failures := 0

	for {
		if err := sleepCtx(ctx, interval); err != nil {
			return "", err
		}

		tr, err := a.fetch(ctx, id)
		if err != nil {
			failures++
			if failures >= maxPollFailures {
				return "", fmt.Errorf("poll transcription %s: %w", id, err)
			}
			a.log.Warn("poll attempt failed",
				"backend", a.Name(), "transcript", id, "attempt", failures, "error", err)
			continue
		}
		failures = 0

		switch tr.Status {
		case "completed":
			return a.renderText(tr), nil
		case "error":
			// Terminal provider-side failure. The pipeline records an empty
			// fragment for this segment and moves on.
			a.log.Warn("provider reported transcription error",
				"backend", a.Name(), "segment", segmentName, "error", tr.Error)
			return "", nil
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("transcription %s still %q after %s: %w",
				id, tr.Status, a.pollDeadline, ErrPollTimeout)
		}

		interval = time.Duration(float64(interval) * pollGrowth)
		if interval > a.pollMax {
			interval = a.pollMax
		}
	}
}

// fetch retrieves the current transcript resource.
func (a *AssemblyAI) fetch(ctx context.Context, id string) (*aaiTranscript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)

	body, err := a.do(req)
	if err != nil {
		return nil, err
	}

	var parsed aaiTranscript
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &parsed, nil
}

// renderText flattens a finished transcript. With diarization enabled and
// utterances present, each speaker turn becomes its own labelled line.
func (a *AssemblyAI) renderText(tr *aaiTranscript) string {
	if a.diarize && len(tr.Utterances) > 0 {
		lines := make([]string, 0, len(tr.Utterances))
		for _, u := range tr.Utterances {
			lines = append(lines, fmt.Sprintf("[Speaker %s]: %s", u.Speaker, u.Text))
		}
		return strings.Join(lines, "\n")
	}
	return tr.Text
}

// do executes a request and returns the response body, mapping non-2xx
// statuses to errors.
func (a *AssemblyAI) do(req *http.Request) ([]byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}
