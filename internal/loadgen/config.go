// Package loadgen drives a running voicebox server with synthetic recordings
// and checks the resulting ranking.
package loadgen

import (
	"errors"
	"time"
)

// Config controls one load run.
type Config struct {
	BaseURL      string        // server root, e.g. http://localhost:8080
	ClientID     string        // client the recordings are filed under
	Submissions  int           // recordings to upload
	Workers      int           // concurrent uploads and polls
	Timeout      time.Duration // per request
	WaitTimeout  time.Duration // how long to wait for one item to finish processing
	PollInterval time.Duration
	Consolidate  bool   // consolidate completed items once processed
	Framework    string // ranking to fetch at the end
	TopN         int
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url is required")
	case c.ClientID == "":
		return errors.New("client id is required")
	case c.Submissions < 1:
		return errors.New("submissions must be at least 1")
	case c.Workers < 1:
		return errors.New("workers must be at least 1")
	case c.TopN < 1:
		return errors.New("top must be at least 1")
	}
	return nil
}

// Stats summarizes a run.
type Stats struct {
	Submitted    int
	Rejected     int
	Completed    int
	Failed       int
	TimedOut     int
	Consolidated int
	Matched      int
	Ranked       int
	Duration     time.Duration
}

// submission is one synthetic recording.
type submission struct {
	SessionID string
	PageURL   string
	Duration  int
	Audio     []byte
}

type ackResponse struct {
	FeedbackID string `json:"feedback_id"`
	Status     string `json:"status"`
}

type feedbackResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	TicketID *string `json:"ticket_id"`
}

type consolidateResponse struct {
	Action string `json:"action"`
}

type rankingEntry struct {
	Rank     int     `json:"rank"`
	TicketID string  `json:"ticket_id"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
}

type rankingResponse struct {
	Framework string         `json:"framework"`
	Entries   []rankingEntry `json:"entries"`
}
