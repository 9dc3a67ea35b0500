package whisper

import (
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// Option configures a Client.
type Option func(*Client)

// WithModel selects the transcription model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLanguage hints the spoken language (ISO-639-1).
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithMaxRetries bounds retries of 429/5xx and network failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithBackOff replaces the retry schedule.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}
