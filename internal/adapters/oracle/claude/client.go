// Package claude implements the generative oracles on the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

const (
	defaultModel      = "claude-sonnet-4-5"
	defaultMaxTokens  = 2048
	defaultMaxRetries = 3
)

// MaxRetryElapsed bounds how long one call keeps retrying. Locks held across
// an oracle call must outlive it.
const MaxRetryElapsed = 60 * time.Second

// Client answers analysis, matching, judging and synthesis prompts.
type Client struct {
	client     anthropic.Client
	model      anthropic.Model
	maxTokens  int64
	maxRetries uint64
	newBackOff func() backoff.BackOff
	reqOpts    []option.RequestOption
	templates  *template.Template
	log        logger.Logger
}

// New builds a client. An empty key is a configuration error.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errs.Errorf("claude.New", errs.ErrConfiguration, "anthropic api key is not set")
	}
	c := &Client{
		model:      anthropic.Model(defaultModel),
		maxTokens:  defaultMaxTokens,
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = MaxRetryElapsed
			return bo
		},
		templates: prompts,
		log:       logger.Get().Named("claude"),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Retries are driven by backoff below; the SDK's own loop is disabled so
	// attempts are counted in one place.
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, c.reqOpts...)
	c.client = anthropic.NewClient(reqOpts...)
	return c, nil
}

// complete sends one user prompt and returns the first text block.
func (c *Client) complete(ctx context.Context, oracleName, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var text string
	attempt := 0
	op := func() error {
		attempt++
		start := time.Now()
		message, err := c.client.Messages.New(ctx, params)
		ms := float64(time.Since(start).Milliseconds())
		if err != nil {
			metrics.RecordOracleLatency(oracleName, "error", ms)
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			c.log.Warn(ctx, "retrying model call",
				logger.String("oracle", oracleName),
				logger.Int("attempt", attempt),
				logger.Error(err))
			return err
		}
		metrics.RecordOracleLatency(oracleName, "ok", ms)
		if len(message.Content) == 0 {
			return backoff.Permanent(errors.New("unexpected response format: no content blocks"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type))
		}
		text = content.Text
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", errs.Wrap("claude."+oracleName, errs.ErrUpstreamOracle, err)
	}
	return text, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
