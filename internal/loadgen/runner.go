package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/voicebox/pkg/logger"
)

// Run uploads cfg.Submissions recordings, waits for each to be processed,
// optionally consolidates the completed ones and verifies the final ranking.
// Per-item failures are counted, not returned.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("loadgen")
	start := time.Now()
	c := newClient(cfg)

	if err := c.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	log.Info(ctx, "starting load run",
		logger.String("base_url", cfg.BaseURL),
		logger.String("client_id", cfg.ClientID),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("workers", cfg.Workers),
	)

	var (
		mu        sync.Mutex
		stats     Stats
		completed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, s := range generate(cfg.Submissions) {
		g.Go(func() error {
			id, err := c.submit(gctx, cfg.ClientID, s)
			if err != nil {
				log.Warn(gctx, "submission rejected", logger.Error(err))
				mu.Lock()
				stats.Rejected++
				mu.Unlock()
				return nil
			}
			f, err := c.await(gctx, id, cfg.PollInterval, cfg.WaitTimeout)

			mu.Lock()
			defer mu.Unlock()
			stats.Submitted++
			switch {
			case errors.Is(err, errTimedOut):
				stats.TimedOut++
			case err != nil:
				log.Warn(gctx, "polling failed", logger.String("feedback_id", id), logger.Error(err))
				stats.Failed++
			case f.Status == "completed":
				stats.Completed++
				completed = append(completed, id)
			default:
				stats.Failed++
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return &stats, err
	}

	if cfg.Consolidate {
		for _, id := range completed {
			action, err := c.consolidate(ctx, id)
			if err != nil {
				log.Warn(ctx, "consolidation failed", logger.String("feedback_id", id), logger.Error(err))
				continue
			}
			stats.Consolidated++
			if action == "matched" {
				stats.Matched++
			}
		}
	}

	entries, err := c.ranking(ctx, cfg.ClientID, cfg.Framework, cfg.TopN)
	if err != nil {
		return &stats, fmt.Errorf("ranking retrieval failed: %w", err)
	}
	stats.Ranked = len(entries)
	if err := verifyRanking(entries); err != nil {
		return &stats, fmt.Errorf("ranking verification failed: %w", err)
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "load run finished",
		logger.Int("submitted", stats.Submitted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("completed", stats.Completed),
		logger.Int("failed", stats.Failed),
		logger.Int("timed_out", stats.TimedOut),
		logger.Int("consolidated", stats.Consolidated),
		logger.Int("matched", stats.Matched),
		logger.Int("ranked", stats.Ranked),
		logger.Duration("elapsed", stats.Duration),
	)
	return &stats, nil
}
