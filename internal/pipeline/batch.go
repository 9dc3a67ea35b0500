package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/pkg/logger"
)

// ScoreAll starts scoring every ticket of a client and returns how many were
// started without waiting for them. Failures are logged per ticket and a
// summary line follows once all have finished. The runs are detached from
// ctx, so a finished request does not cancel them.
func (s *Service) ScoreAll(ctx context.Context, clientID string) (int, error) {
	const op = "score_all"
	if clientID == "" {
		return 0, errs.Errorf(op, errs.ErrValidation, "client_id is required")
	}
	if s.Judge == nil {
		return 0, errs.Errorf(op, errs.ErrConfiguration, "judging oracle is required")
	}

	ids, err := s.Store.ListTicketIDs(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	bg := context.WithoutCancel(ctx)
	log := s.logger.Named("batch")
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		start := time.Now()
		var failed atomic.Int64

		var g errgroup.Group
		for _, id := range ids {
			g.Go(func() error {
				if _, err := s.ScoreTicket(bg, id); err != nil {
					failed.Add(1)
					log.Error(bg, "ticket scoring failed", logger.String("ticket_id", id), logger.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()

		log.Info(bg, "batch scoring finished",
			logger.String("client_id", clientID),
			logger.Int("attempted", len(ids)),
			logger.Int("failed", int(failed.Load())),
			logger.Duration("elapsed", time.Since(start)),
		)
	}()
	return len(ids), nil
}
