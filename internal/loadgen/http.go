package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var errStillProcessing = errors.New("still processing")

// errTimedOut marks an item that never reached a terminal status.
var errTimedOut = errors.New("timed out waiting for processing")

type client struct {
	http *http.Client
	base string
}

func newClient(cfg *Config) *client {
	return &client{http: &http.Client{Timeout: cfg.Timeout}, base: cfg.BaseURL}
}

func (c *client) do(ctx context.Context, method, path, contentType string, body io.Reader, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", http.NoBody, http.StatusOK, nil)
}

func (c *client) submit(ctx context.Context, clientID string, s submission) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"client_id":  clientID,
		"session_id": s.SessionID,
		"page_url":   s.PageURL,
		"duration":   strconv.Itoa(s.Duration),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile("audio", s.SessionID+".wav")
	if err != nil {
		return "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(s.Audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	var ack ackResponse
	if err := c.do(ctx, http.MethodPost, "/v1/feedback", mw.FormDataContentType(), &buf, http.StatusAccepted, &ack); err != nil {
		return "", err
	}
	return ack.FeedbackID, nil
}

func (c *client) feedback(ctx context.Context, id string) (*feedbackResponse, error) {
	var f feedbackResponse
	if err := c.do(ctx, http.MethodGet, "/v1/feedback/"+url.PathEscape(id), "", http.NoBody, http.StatusOK, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// await polls a feedback item until it is completed or failed.
func (c *client) await(ctx context.Context, id string, interval, timeout time.Duration) (*feedbackResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last *feedbackResponse
	op := func() error {
		f, err := c.feedback(ctx, id)
		if err != nil {
			return err
		}
		last = f
		if f.Status == "completed" || f.Status == "failed" {
			return nil
		}
		return errStillProcessing
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)); err != nil {
		if ctx.Err() != nil {
			return last, errTimedOut
		}
		return last, err
	}
	return last, nil
}

func (c *client) consolidate(ctx context.Context, id string) (string, error) {
	var res consolidateResponse
	path := "/v1/feedback/" + url.PathEscape(id) + "/consolidate"
	if err := c.do(ctx, http.MethodPost, path, "", http.NoBody, http.StatusOK, &res); err != nil {
		return "", err
	}
	return res.Action, nil
}

func (c *client) ranking(ctx context.Context, clientID, framework string, limit int) ([]rankingEntry, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if framework != "" {
		q.Set("framework", framework)
	}
	var res rankingResponse
	path := "/v1/clients/" + url.PathEscape(clientID) + "/ranking?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, "", http.NoBody, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}
