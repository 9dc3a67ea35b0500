package claude

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
)

// Option configures a Client.
type Option func(*Client)

// WithModel selects the model id.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = anthropic.Model(model)
		}
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithMaxRetries bounds retries of transient (429/5xx/timeout) failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithBackOff replaces the retry schedule. The factory is called once per call.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

// WithRequestOptions forwards SDK options such as option.WithBaseURL.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *Client) {
		c.reqOpts = append(c.reqOpts, opts...)
	}
}
