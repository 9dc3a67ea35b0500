package repository

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/okian/voicebox/internal/domain/model"
)

func feedbackToModel(f *model.Feedback) *FeedbackModel {
	return &FeedbackModel{
		ID:                f.ID,
		ClientID:          f.ClientID,
		SessionID:         f.SessionID,
		PageURL:           f.PageURL,
		AudioLocation:     f.AudioLocation,
		RawTranscript:     f.RawTranscript,
		CleanedTranscript: f.CleanedTranscript,
		Sentiment:         string(f.Sentiment),
		Themes:            datatypes.JSONSlice[string](f.Themes),
		Insight:           f.Insight,
		Status:            string(f.Status),
		TicketID:          f.TicketID,
		DurationSeconds:   f.DurationSeconds,
		CreatedAt:         f.CreatedAt,
	}
}

func feedbackToDomain(m *FeedbackModel) *model.Feedback {
	return &model.Feedback{
		ID:                m.ID,
		ClientID:          m.ClientID,
		SessionID:         m.SessionID,
		PageURL:           m.PageURL,
		AudioLocation:     m.AudioLocation,
		RawTranscript:     m.RawTranscript,
		CleanedTranscript: m.CleanedTranscript,
		Sentiment:         model.Sentiment(m.Sentiment),
		Themes:            []string(m.Themes),
		Insight:           m.Insight,
		Status:            model.FeedbackStatus(m.Status),
		TicketID:          m.TicketID,
		DurationSeconds:   m.DurationSeconds,
		CreatedAt:         m.CreatedAt,
	}
}

func ticketToModel(t *model.Ticket) (*TicketModel, error) {
	m := &TicketModel{
		ID:                  t.ID,
		ClientID:            t.ClientID,
		Title:               t.Title,
		Description:         t.Description,
		Status:              string(t.Status),
		AISuggestedPriority: string(t.AISuggestedPriority),
		FeedbackCount:       t.FeedbackCount,
		IsPublic:            t.IsPublic,
		AIGenerated:         t.AIGenerated,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if t.Priority != nil {
		p := string(*t.Priority)
		m.Priority = &p
	}
	var err error
	if m.Provenance, err = marshalJSON(t.Provenance); err != nil {
		return nil, fmt.Errorf("encode provenance: %w", err)
	}
	if m.Scores, err = marshalJSON(t.Scores); err != nil {
		return nil, fmt.Errorf("encode scores: %w", err)
	}
	return m, nil
}

func ticketToDomain(m *TicketModel) (*model.Ticket, error) {
	t := &model.Ticket{
		ID:                  m.ID,
		ClientID:            m.ClientID,
		Title:               m.Title,
		Description:         m.Description,
		Status:              model.TicketStatus(m.Status),
		AISuggestedPriority: model.Priority(m.AISuggestedPriority),
		FeedbackCount:       m.FeedbackCount,
		IsPublic:            m.IsPublic,
		AIGenerated:         m.AIGenerated,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.Priority != nil {
		p := model.Priority(*m.Priority)
		t.Priority = &p
	}
	if len(m.Provenance) > 0 && string(m.Provenance) != "null" {
		t.Provenance = &model.Provenance{}
		if err := json.Unmarshal(m.Provenance, t.Provenance); err != nil {
			return nil, fmt.Errorf("decode provenance of ticket %s: %w", m.ID, err)
		}
	}
	if len(m.Scores) > 0 && string(m.Scores) != "null" {
		t.Scores = &model.ScoreCard{}
		if err := json.Unmarshal(m.Scores, t.Scores); err != nil {
			return nil, fmt.Errorf("decode scores of ticket %s: %w", m.ID, err)
		}
	}
	return t, nil
}

// marshalJSON encodes v, mapping nil pointers to a NULL column.
func marshalJSON[T any](v *T) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
