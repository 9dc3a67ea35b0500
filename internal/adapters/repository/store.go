// Package repository persists feedback and tickets.
package repository

import (
	"context"

	"github.com/okian/voicebox/internal/domain/model"
)

// Stats summarizes stored rows for the operational stats endpoint.
type Stats struct {
	FeedbackByStatus map[model.FeedbackStatus]int64
	Tickets          int64
	TicketsWithCards int64
}

// Store provides read/write access to feedback and tickets.
//
// Writes touching both a feedback row and a ticket (linking, creation from
// feedback) are transactional; single-field ticket writes are column scoped.
type Store interface {
	CreateFeedback(ctx context.Context, f *model.Feedback) error
	GetFeedback(ctx context.Context, id string) (*model.Feedback, error)
	// ClaimFeedback moves a pending (or redelivered transcribing) row to
	// transcribing. Terminal rows yield ErrNotClaimable.
	ClaimFeedback(ctx context.Context, id string) (*model.Feedback, error)
	// CompleteFeedback stores the transcript and analysis and marks the row completed.
	CompleteFeedback(ctx context.Context, id string, a model.Analysis) error
	// FailFeedback marks a transcribing row failed.
	FailFeedback(ctx context.Context, id string) error
	// ResetFeedback returns an unlinked row to pending for reprocessing.
	ResetFeedback(ctx context.Context, id string) error
	// ListCompletedFeedback returns up to limit completed rows with a cleaned
	// transcript, newest first.
	ListCompletedFeedback(ctx context.Context, clientID string, limit int) ([]model.Feedback, error)
	ListFeedbackByTicket(ctx context.Context, ticketID string) ([]model.Feedback, error)

	CreateTicket(ctx context.Context, t *model.Ticket) error
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	// ListTickets returns the client's tickets, optionally limited to statuses.
	ListTickets(ctx context.Context, clientID string, statuses ...model.TicketStatus) ([]model.Ticket, error)
	ListTicketIDs(ctx context.Context, clientID string) ([]string, error)
	UpdateTicket(ctx context.Context, id string, patch model.TicketPatch) (*model.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
	SaveScores(ctx context.Context, ticketID string, card *model.ScoreCard) error
	IncrementFeedbackCount(ctx context.Context, ticketID string) error

	// LinkFeedback sets the feedback's ticket and bumps the ticket's counter
	// in one transaction. An already linked row yields ErrAlreadyLinked.
	LinkFeedback(ctx context.Context, feedbackID, ticketID string) error
	// CreateTicketForFeedback inserts t with feedback_count=1 and links the
	// feedback in one transaction.
	CreateTicketForFeedback(ctx context.Context, t *model.Ticket, feedbackID string) error
	// RecountFeedback recomputes feedback_count from the actual links.
	RecountFeedback(ctx context.Context, ticketID string) (int, error)

	Stats(ctx context.Context) (Stats, error)
}
