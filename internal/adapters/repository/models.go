package repository

import (
	"time"

	"gorm.io/datatypes"
)

// FeedbackModel is the persistence shape of model.Feedback.
type FeedbackModel struct {
	ID                string                      `gorm:"primaryKey;size:36"`
	ClientID          string                      `gorm:"size:64;not null;index:idx_feedback_client_created,priority:1"`
	SessionID         string                      `gorm:"size:128;not null"`
	PageURL           string                      `gorm:"size:2048"`
	AudioLocation     string                      `gorm:"size:512;not null"`
	RawTranscript     string                      `gorm:"type:text"`
	CleanedTranscript *string                     `gorm:"type:text"`
	Sentiment         string                      `gorm:"size:16"`
	Themes            datatypes.JSONSlice[string] `gorm:"type:json"`
	Insight           string                      `gorm:"type:text"`
	Status            string                      `gorm:"size:16;not null;index"`
	TicketID          *string                     `gorm:"size:36;index"`
	DurationSeconds   int                         `gorm:"not null"`
	CreatedAt         time.Time                   `gorm:"index:idx_feedback_client_created,priority:2"`
	UpdatedAt         time.Time

	// No foreign key to tickets: deleting a ticket leaves the link in place
	// so the feedback is never consolidated twice.
}

func (FeedbackModel) TableName() string {
	return "feedback"
}

// TicketModel is the persistence shape of model.Ticket. Provenance and the
// score card are JSON documents so a score write is a single column update.
type TicketModel struct {
	ID                  string         `gorm:"primaryKey;size:36"`
	ClientID            string         `gorm:"size:64;not null;index"`
	Title               string         `gorm:"size:300;not null"`
	Description         string         `gorm:"type:text"`
	Status              string         `gorm:"size:16;not null;index"`
	Priority            *string        `gorm:"size:16"`
	AISuggestedPriority string         `gorm:"size:16"`
	FeedbackCount       int            `gorm:"not null"`
	IsPublic            bool           `gorm:"not null"`
	AIGenerated         bool           `gorm:"not null"`
	Provenance          datatypes.JSON `gorm:"type:json"`
	Scores              datatypes.JSON `gorm:"type:json"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (TicketModel) TableName() string {
	return "tickets"
}
