package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rasata/transcription-mp3-to-text/internal/config"
	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

const (
	openAIBaseURL = "https://api.openai.com"

	// openAIModel is the hosted Whisper model identifier. The local model
	// size from the configuration does not apply to this API.
	openAIModel = "whisper-1"
)

// OpenAI transcribes segments through the synchronous OpenAI audio API:
// one multipart upload per segment, text in the response.
type OpenAI struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	retries     int
	backoffBase time.Duration
	log         *logging.Logger
}

// NewOpenAI creates an OpenAI backend from resolved configuration.
func NewOpenAI(cfg *config.Config, log *logging.Logger) *OpenAI {
	return &OpenAI{
		apiKey:      cfg.OpenAIKey,
		baseURL:     openAIBaseURL,
		client:      &http.Client{Timeout: 120 * time.Second},
		retries:     3,
		backoffBase: time.Second,
		log:         log,
	}
}

// Name returns the backend identifier.
func (o *OpenAI) Name() string {
	return config.ServiceOpenAI
}

// HealthCheck reports whether an API key is configured.
func (o *OpenAI) HealthCheck(ctx context.Context) error {
	if o.apiKey == "" {
		return ErrUnconfigured
	}
	return nil
}

// Transcribe sends the segment to the transcription endpoint and returns
// the text. Transient failures (429, 5xx, network) are retried with
// exponential backoff.
func (o *OpenAI) Transcribe(ctx context.Context, segmentPath, language string) (string, error) {
	if o.apiKey == "" {
		return "", ErrUnconfigured
	}

	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(o.backoffBase, attempt)
			o.log.Warn("retrying transcription request",
				"backend", o.Name(), "segment", filepath.Base(segmentPath),
				"attempt", attempt, "backoff", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return "", err
			}
		}

		text, err := o.doTranscribe(ctx, segmentPath, language)
		if err == nil {
			return text, nil
		}

		if !isRetryable(err) {
			return "", fmt.Errorf("transcribe %s: %w", filepath.Base(segmentPath), err)
		}
		lastErr = err
	}

	return "", fmt.Errorf("transcribe %s: all %d retries exhausted: %w",
		filepath.Base(segmentPath), o.retries, lastErr)
}

// doTranscribe performs a single multipart POST to the transcription
// endpoint. The multipart body is written through a pipe so the segment is
// streamed rather than buffered in memory.
func (o *OpenAI) doTranscribe(ctx context.Context, segmentPath, language string) (string, error) {
	f, err := os.Open(segmentPath)
	if err != nil {
		return "", fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()

		part, err := writer.CreateFormFile("file", filepath.Base(segmentPath))
		if err != nil {
			errCh <- fmt.Errorf("create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			errCh <- fmt.Errorf("copy audio data: %w", err)
			return
		}
		_ = writer.WriteField("model", openAIModel)
		_ = writer.WriteField("language", language)

		errCh <- writer.Close()
	}()

	url := o.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return "", fmt.Errorf("multipart write: %w", writeErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return parsed.Text, nil
}
