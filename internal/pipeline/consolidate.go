package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/oracle"
	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

// Action is the outcome of a consolidation decision.
type Action string

// Consolidation outcomes.
const (
	ActionMatched Action = "matched"
	ActionCreated Action = "created"
)

// Decision reports what consolidation did with a feedback item.
type Decision struct {
	Action    Action
	Ticket    *model.Ticket
	Reasoning string
}

// openStatuses are the columns a feedback item may still be merged into.
var openStatuses = []model.TicketStatus{model.TicketNew, model.TicketPlanned, model.TicketBuilding}

// Consolidate attaches analyzed feedback to an existing open ticket or
// creates a new one for it, then queues the ticket for scoring.
//
// Decisions for one client are serialized, and the link itself only
// succeeds while the feedback is unlinked, so two concurrent calls for the
// same feedback cannot both write.
func (s *Service) Consolidate(ctx context.Context, feedbackID string) (*Decision, error) {
	const op = "consolidate"
	if s.Matcher == nil {
		return nil, errs.Errorf(op, errs.ErrConfiguration, "matching oracle is required")
	}

	f, err := s.consolidatable(ctx, op, feedbackID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.Locker.Lock(ctx, "consolidate:"+f.ClientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	// a concurrent call may have linked it while we waited
	if f, err = s.consolidatable(ctx, op, feedbackID); err != nil {
		return nil, err
	}

	candidates, err := s.Store.ListTickets(ctx, f.ClientID, openStatuses...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m, err := s.Matcher.Match(ctx, *f, candidates)
	if err != nil {
		return nil, errs.Wrap(op, errs.ErrUpstreamOracle, err)
	}

	d, err := s.apply(ctx, op, f, m, candidates)
	if err != nil {
		return nil, err
	}

	metrics.RecordConsolidation(string(d.Action))
	s.logger.Named("consolidate").Info(ctx, "feedback consolidated",
		logger.String("feedback_id", f.ID),
		logger.String("ticket_id", d.Ticket.ID),
		logger.String("action", string(d.Action)),
	)
	s.enqueueScore(ctx, d.Ticket.ID)
	return d, nil
}

// consolidatable loads the feedback and checks it is ready and unlinked.
func (s *Service) consolidatable(ctx context.Context, op, feedbackID string) (*model.Feedback, error) {
	f, err := s.Store.GetFeedback(ctx, feedbackID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if f.Linked() {
		return nil, errs.Errorf(op, errs.ErrAlreadyProcessed, "feedback %s already belongs to ticket %s", f.ID, *f.TicketID)
	}
	if f.Status != model.FeedbackCompleted || f.CleanedTranscript == nil {
		return nil, errs.Errorf(op, errs.ErrValidation, "feedback %s is %s and has no cleaned transcript yet", f.ID, f.Status)
	}
	return f, nil
}

// apply writes the oracle's decision. A match must name one of the offered
// candidates; otherwise the proposal, if usable, becomes a new ticket.
func (s *Service) apply(ctx context.Context, op string, f *model.Feedback, m oracle.Match, candidates []model.Ticket) (*Decision, error) {
	if id := strings.TrimSpace(m.MatchedTicketID); id != "" {
		for i := range candidates {
			if candidates[i].ID != id {
				continue
			}
			if err := s.Store.LinkFeedback(ctx, f.ID, id); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			t, err := s.Store.GetTicket(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			return &Decision{Action: ActionMatched, Ticket: t, Reasoning: m.Reasoning}, nil
		}
		s.logger.Named("consolidate").Warn(ctx, "matcher named a ticket outside the candidates",
			logger.String("feedback_id", f.ID),
			logger.String("ticket_id", id),
		)
	}

	if !m.NewTicket.Usable() {
		return nil, errs.Errorf(op, errs.ErrUpstreamOracle, "matcher returned neither a valid match nor a usable proposal")
	}
	t := &model.Ticket{
		ID:                  uuid.NewString(),
		ClientID:            f.ClientID,
		Title:               strings.TrimSpace(m.NewTicket.Title),
		Description:         strings.TrimSpace(m.NewTicket.Description),
		Status:              model.TicketNew,
		AISuggestedPriority: model.ParsePriority(strings.ToLower(strings.TrimSpace(m.NewTicket.Priority))),
	}
	if err := s.Store.CreateTicketForFeedback(ctx, t, f.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Decision{Action: ActionCreated, Ticket: t, Reasoning: m.Reasoning}, nil
}
