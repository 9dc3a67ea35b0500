// Package model contains domain models passed between layers.
package model

import "time"

// FeedbackStatus is the transcription lifecycle state of a feedback item.
type FeedbackStatus string

// Feedback lifecycle states. Completed and failed are terminal.
const (
	FeedbackPending      FeedbackStatus = "pending"
	FeedbackTranscribing FeedbackStatus = "transcribing"
	FeedbackCompleted    FeedbackStatus = "completed"
	FeedbackFailed       FeedbackStatus = "failed"
)

// Terminal reports whether no further automatic transition can happen.
func (s FeedbackStatus) Terminal() bool {
	return s == FeedbackCompleted || s == FeedbackFailed
}

// Valid reports whether s is a known status.
func (s FeedbackStatus) Valid() bool {
	switch s {
	case FeedbackPending, FeedbackTranscribing, FeedbackCompleted, FeedbackFailed:
		return true
	}
	return false
}

// Sentiment is the overall tone of a transcript.
type Sentiment string

// Sentiment labels produced by the analysis oracle.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment normalizes an oracle label. Unknown labels map to neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative:
		return Sentiment(s)
	default:
		return SentimentNeutral
	}
}

// Feedback is one voice submission plus its derived transcript and analysis.
type Feedback struct {
	ID                string
	ClientID          string
	SessionID         string
	PageURL           string
	AudioLocation     string
	RawTranscript     string
	CleanedTranscript *string
	Sentiment         Sentiment
	Themes            []string
	Insight           string
	Status            FeedbackStatus
	TicketID          *string // set once by consolidation, never cleared
	DurationSeconds   int
	CreatedAt         time.Time
}

// Linked reports whether the feedback already belongs to a ticket.
func (f Feedback) Linked() bool {
	return f.TicketID != nil && *f.TicketID != ""
}

// Text returns the best available transcript.
func (f Feedback) Text() string {
	if f.CleanedTranscript != nil {
		return *f.CleanedTranscript
	}
	return f.RawTranscript
}

// Analysis is the all-or-nothing result written when transcription succeeds.
type Analysis struct {
	RawTranscript     string
	CleanedTranscript string
	Sentiment         Sentiment
	Themes            []string
	Insight           string
}
