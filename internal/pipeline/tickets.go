package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/voicebox/internal/adapters/repository"
	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/pkg/logger"
)

// NewTicket is a manually created ticket.
type NewTicket struct {
	ClientID    string `json:"client_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	IsPublic    bool   `json:"is_public"`
}

// CreateTicket stores a manual ticket and queues it for scoring.
func (s *Service) CreateTicket(ctx context.Context, in NewTicket) (*model.Ticket, error) {
	const op = "create_ticket"
	in.Title = strings.TrimSpace(in.Title)
	if err := check(op, in); err != nil {
		return nil, err
	}

	t := &model.Ticket{
		ID:                  uuid.NewString(),
		ClientID:            in.ClientID,
		Title:               in.Title,
		Description:         strings.TrimSpace(in.Description),
		Status:              model.TicketNew,
		AISuggestedPriority: model.PriorityMedium,
		IsPublic:            in.IsPublic,
	}
	if in.Priority != "" {
		p := model.Priority(in.Priority)
		t.Priority = &p
	}
	if err := s.Store.CreateTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.enqueueScore(ctx, t.ID)
	return t, nil
}

// GetTicket returns one ticket.
func (s *Service) GetTicket(ctx context.Context, ticketID string) (*model.Ticket, error) {
	t, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// ListTickets returns a client's tickets, optionally limited to statuses.
func (s *Service) ListTickets(ctx context.Context, clientID string, statuses ...model.TicketStatus) ([]model.Ticket, error) {
	const op = "list_tickets"
	for _, st := range statuses {
		if !st.Valid() {
			return nil, errs.Errorf(op, errs.ErrValidation, "unknown status %q", st)
		}
	}
	ts, err := s.Store.ListTickets(ctx, clientID, statuses...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ts, nil
}

// UpdateTicket applies an external edit. Status moves must be allowed by
// the kanban table.
func (s *Service) UpdateTicket(ctx context.Context, ticketID string, patch model.TicketPatch) (*model.Ticket, error) {
	const op = "update_ticket"
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, errs.Errorf(op, errs.ErrValidation, "unknown priority %q", *patch.Priority)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, errs.Errorf(op, errs.ErrValidation, "unknown status %q", *patch.Status)
		}
		current, err := s.Store.GetTicket(ctx, ticketID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !model.CanTransition(current.Status, *patch.Status) {
			return nil, errs.Errorf(op, errs.ErrConflict, "cannot move ticket from %s to %s", current.Status, *patch.Status)
		}
	}
	t, err := s.Store.UpdateTicket(ctx, ticketID, patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// DeleteTicket removes a ticket. Feedback linked to it keeps its reference
// and is not consolidated again.
func (s *Service) DeleteTicket(ctx context.Context, ticketID string) error {
	if err := s.Store.DeleteTicket(ctx, ticketID); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	s.logger.Named("tickets").Info(ctx, "ticket deleted", logger.String("ticket_id", ticketID))
	return nil
}

// RecountFeedback repairs a ticket's feedback counter from its actual links.
func (s *Service) RecountFeedback(ctx context.Context, ticketID string) (int, error) {
	n, err := s.Store.RecountFeedback(ctx, ticketID)
	if err != nil {
		return 0, fmt.Errorf("recount: %w", err)
	}
	return n, nil
}

// Ranking orders a client's scored tickets under one framework.
func (s *Service) Ranking(ctx context.Context, clientID string, f scoring.Framework, limit int) ([]scoring.Entry, error) {
	ts, err := s.Store.ListTickets(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	ptrs := make([]*model.Ticket, len(ts))
	for i := range ts {
		ptrs[i] = &ts[i]
	}
	return scoring.Rank(ptrs, f, limit), nil
}

// Stats summarizes stored rows and the queue.
type Stats struct {
	repository.Stats
	QueueLength int
}

// Stats reports row counts by state and the current queue length.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.Store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &Stats{Stats: st, QueueLength: s.Queue.Len(ctx)}, nil
}
