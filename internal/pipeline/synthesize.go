package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/oracle"
	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

// SynthesisResult lists the tickets a synthesis run created.
type SynthesisResult struct {
	Generated int
	Tickets   []*model.Ticket
}

// Synthesize looks across a client's recent feedback for needs nobody named
// directly and turns confident proposals into AI-generated tickets.
//
// Candidates below the confidence threshold are dropped here regardless of
// what the oracle was told. Source ids are restricted to the feedback that
// was actually shown to the oracle.
func (s *Service) Synthesize(ctx context.Context, clientID string) (*SynthesisResult, error) {
	const op = "synthesize"
	if clientID == "" {
		return nil, errs.Errorf(op, errs.ErrValidation, "client_id is required")
	}
	if s.Generator == nil {
		return nil, errs.Errorf(op, errs.ErrConfiguration, "generation oracle is required")
	}

	feedback, err := s.Store.ListCompletedFeedback(ctx, clientID, s.feedbackLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(feedback) == 0 {
		return &SynthesisResult{}, nil
	}
	tickets, err := s.Store.ListTickets(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	candidates, err := s.Generator.Generate(ctx, feedback, tickets)
	if err != nil {
		return nil, errs.Wrap(op, errs.ErrUpstreamOracle, err)
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	known := make(map[string]bool, len(feedback))
	for i := range feedback {
		known[feedback[i].ID] = true
	}

	log := s.logger.Named("synthesize")
	result := &SynthesisResult{}
	rejected := 0
	for _, c := range candidates {
		sources := restrictSources(c.SourceFeedbackIDs, known)
		title := strings.TrimSpace(c.Title)
		if c.Confidence < s.threshold || title == "" || len(sources) == 0 {
			rejected++
			log.Debug(ctx, "candidate rejected",
				logger.String("title", title),
				logger.Float64("confidence", c.Confidence),
				logger.Int("sources", len(sources)),
			)
			continue
		}

		t := s.synthesized(clientID, title, c, sources)
		if err := s.Store.CreateTicket(ctx, t); err != nil {
			metrics.RecordSynthesis(result.Generated, rejected)
			return result, fmt.Errorf("%s: %w", op, err)
		}
		result.Generated++
		result.Tickets = append(result.Tickets, t)
		s.enqueueScore(ctx, t.ID)
	}

	metrics.RecordSynthesis(result.Generated, rejected)
	log.Info(ctx, "synthesis finished",
		logger.String("client_id", clientID),
		logger.Int("feedback", len(feedback)),
		logger.Int("generated", result.Generated),
		logger.Int("rejected", rejected),
	)
	return result, nil
}

// synthesized builds the ticket for an accepted candidate. Its provisional
// card has no scoring timestamp, so rankings skip it until it is scored.
func (s *Service) synthesized(clientID, title string, c oracle.Candidate, sources []string) *model.Ticket {
	now := s.now()
	return &model.Ticket{
		ID:                  uuid.NewString(),
		ClientID:            clientID,
		Title:               title,
		Description:         strings.TrimSpace(c.Description),
		Status:              model.TicketNew,
		AISuggestedPriority: model.ParsePriority(strings.ToLower(strings.TrimSpace(c.Priority))),
		FeedbackCount:       len(sources),
		AIGenerated:         true,
		Provenance: &model.Provenance{
			SourceFeedbackIDs: sources,
			Reasoning:         c.Reasoning,
			Confidence:        c.Confidence,
			GeneratedAt:       now,
		},
		Scores:    scoring.Seed(c.Confidence, c.EffortHours),
		CreatedAt: now,
	}
}

// restrictSources dedupes ids and keeps only those in known, preserving order.
func restrictSources(ids []string, known map[string]bool) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
