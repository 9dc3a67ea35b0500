package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

// ScoreTicket asks the judge oracle about a ticket and its linked feedback
// and stores the resulting score card. Nothing is written when the oracle
// fails.
func (s *Service) ScoreTicket(ctx context.Context, ticketID string) (*model.Ticket, error) {
	const op = "score"
	if s.Judge == nil {
		return nil, errs.Errorf(op, errs.ErrConfiguration, "judging oracle is required")
	}
	start := time.Now()

	t, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	feedback, err := s.Store.ListFeedbackByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	j, err := s.Judge.Judge(ctx, *t, feedback)
	if err != nil {
		metrics.RecordScoringError()
		return nil, errs.Wrap(op, errs.ErrUpstreamOracle, err)
	}

	card := scoring.Card(j, s.now())
	if err := s.Store.SaveScores(ctx, t.ID, card); err != nil {
		metrics.RecordScoringError()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.Scores = card

	metrics.RecordScoringRun(float64(time.Since(start).Milliseconds()))
	s.logger.Named("score").Info(ctx, "ticket scored",
		logger.String("ticket_id", t.ID),
		logger.Int("feedback", len(feedback)),
		logger.Float64("traditional", card.Traditional),
		logger.Float64("gray_area", card.GrayAreaScore),
	)
	return t, nil
}
