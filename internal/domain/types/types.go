// Package types contains the JSON read shapes shared by the HTTP API and the CLI.
package types

import (
	"time"

	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/scoring"
)

// Feedback is the public view of a feedback item.
type Feedback struct {
	ID                string    `json:"id"`
	ClientID          string    `json:"client_id"`
	SessionID         string    `json:"session_id"`
	PageURL           string    `json:"page_url,omitempty"`
	AudioLocation     string    `json:"audio_location"`
	RawTranscript     string    `json:"raw_transcript,omitempty"`
	CleanedTranscript *string   `json:"cleaned_transcript"`
	Sentiment         string    `json:"sentiment,omitempty"`
	Themes            []string  `json:"themes,omitempty"`
	Insight           string    `json:"insight,omitempty"`
	Status            string    `json:"status"`
	TicketID          *string   `json:"ticket_id"`
	DurationSeconds   int       `json:"duration"`
	CreatedAt         time.Time `json:"created_at"`
}

// Ticket is the public view of a ticket.
type Ticket struct {
	ID                  string            `json:"id"`
	ClientID            string            `json:"client_id"`
	Title               string            `json:"title"`
	Description         string            `json:"description"`
	Status              string            `json:"status"`
	Priority            *string           `json:"priority"`
	AISuggestedPriority string            `json:"ai_suggested_priority"`
	FeedbackCount       int               `json:"feedback_count"`
	IsPublic            bool              `json:"is_public"`
	AIGenerated         bool              `json:"ai_generated"`
	Provenance          *model.Provenance `json:"generation,omitempty"`
	Scores              *model.ScoreCard  `json:"scores"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Entry is one row of a framework ranking.
type Entry struct {
	Rank          int     `json:"rank"`
	TicketID      string  `json:"ticket_id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	FeedbackCount int     `json:"feedback_count"`
	Score         float64 `json:"score"`
}

// FromFeedback converts a domain feedback item.
func FromFeedback(f *model.Feedback) Feedback {
	return Feedback{
		ID:                f.ID,
		ClientID:          f.ClientID,
		SessionID:         f.SessionID,
		PageURL:           f.PageURL,
		AudioLocation:     f.AudioLocation,
		RawTranscript:     f.RawTranscript,
		CleanedTranscript: f.CleanedTranscript,
		Sentiment:         string(f.Sentiment),
		Themes:            f.Themes,
		Insight:           f.Insight,
		Status:            string(f.Status),
		TicketID:          f.TicketID,
		DurationSeconds:   f.DurationSeconds,
		CreatedAt:         f.CreatedAt,
	}
}

// FromTicket converts a domain ticket.
func FromTicket(t *model.Ticket) Ticket {
	out := Ticket{
		ID:                  t.ID,
		ClientID:            t.ClientID,
		Title:               t.Title,
		Description:         t.Description,
		Status:              string(t.Status),
		AISuggestedPriority: string(t.AISuggestedPriority),
		FeedbackCount:       t.FeedbackCount,
		IsPublic:            t.IsPublic,
		AIGenerated:         t.AIGenerated,
		Provenance:          t.Provenance,
		Scores:              t.Scores,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if t.Priority != nil {
		p := string(*t.Priority)
		out.Priority = &p
	}
	return out
}

// FromTickets converts a slice of domain tickets.
func FromTickets(ts []*model.Ticket) []Ticket {
	out := make([]Ticket, len(ts))
	for i, t := range ts {
		out[i] = FromTicket(t)
	}
	return out
}

// FromRanking converts ranked entries.
func FromRanking(entries []scoring.Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{
			Rank:          e.Rank,
			TicketID:      e.Ticket.ID,
			Title:         e.Ticket.Title,
			Status:        string(e.Ticket.Status),
			FeedbackCount: e.Ticket.FeedbackCount,
			Score:         e.Score,
		}
	}
	return out
}
