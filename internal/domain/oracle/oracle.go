// Package oracle holds the structured answers returned by external inference
// collaborators, independent of which provider produced them.
package oracle

// Analysis is the combined cleanup and analysis of one transcript.
type Analysis struct {
	CleanedTranscript string   `json:"cleaned_transcript"`
	Sentiment         string   `json:"sentiment"`
	Themes            []string `json:"themes"`
	Insight           string   `json:"insight"`
}

// Usable reports whether the analysis can be persisted.
func (a Analysis) Usable() bool {
	return a.CleanedTranscript != ""
}

// TicketDraft is a proposed new ticket.
type TicketDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// Usable reports whether the draft carries enough to create a ticket.
func (d *TicketDraft) Usable() bool {
	return d != nil && d.Title != ""
}

// Match is the consolidation decision: either MatchedTicketID names an
// existing ticket or NewTicket proposes one.
type Match struct {
	MatchedTicketID string       `json:"matched_ticket_id"`
	NewTicket       *TicketDraft `json:"new_ticket"`
	Reasoning       string       `json:"reasoning"`
}

// Candidate is one synthesized ticket for an implied need.
type Candidate struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Reasoning         string   `json:"reasoning"`
	SourceFeedbackIDs []string `json:"source_feedback_ids"`
	Confidence        float64  `json:"confidence"`
	EffortHours       *float64 `json:"effort_hours"`
	Priority          string   `json:"priority"`
}
