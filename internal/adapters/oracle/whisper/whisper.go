// Package whisper is a speech-to-text client for OpenAI-compatible
// /audio/transcriptions endpoints.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/pkg/metrics"
)

const (
	defaultModel      = "whisper-1"
	defaultTimeout    = 2 * time.Minute
	defaultMaxRetries = 2
	oracleName        = "transcribe"
)

// Client posts audio and returns the transcript text.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	language   string
	maxRetries uint64
	newBackOff func() backoff.BackOff
	httpClient *http.Client
}

// New builds a client for endpoint (e.g. https://api.openai.com/v1).
func New(endpoint, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(apiKey) == "" {
		return nil, errs.Errorf("whisper.New", errs.ErrConfiguration, "speech-to-text endpoint or api key is not set")
	}
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/") + "/audio/transcriptions",
		apiKey:     apiKey,
		model:      defaultModel,
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type transcription struct {
	Text string `json:"text"`
}

// Transcribe uploads the recording and returns plain transcript text.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	// The body is replayed on retry, so buffer the recording once.
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", errs.Wrap("whisper.Transcribe", errs.ErrUpstreamOracle, fmt.Errorf("read audio: %w", err))
	}
	body, contentType, err := c.form(data, filename)
	if err != nil {
		return "", fmt.Errorf("whisper.Transcribe: %w", err)
	}

	var out transcription
	op := func() error {
		start := time.Now()
		err := c.post(ctx, body, contentType, &out)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.RecordOracleLatency(oracleName, outcome, float64(time.Since(start).Milliseconds()))
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", errs.Wrap("whisper.Transcribe", errs.ErrUpstreamOracle, err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", errs.Errorf("whisper.Transcribe", errs.ErrUpstreamOracle, "empty transcript")
	}
	return text, nil
}

func (c *Client) form(data []byte, filename string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	fields := map[string]string{"model": c.model, "response_format": "json"}
	if c.language != "" {
		fields["language"] = c.language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) post(ctx context.Context, body []byte, contentType string, out *transcription) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return fmt.Errorf("send audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("speech-to-text error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode transcript: %w", err))
	}
	return nil
}
