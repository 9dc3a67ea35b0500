package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/okian/voicebox/internal/domain/model"
)

// GormStore implements Store on top of gorm.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps an opened, migrated database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *GormStore) CreateFeedback(ctx context.Context, f *model.Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(feedbackToModel(f)).Error; err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

func (s *GormStore) GetFeedback(ctx context.Context, id string) (*model.Feedback, error) {
	return s.getFeedback(s.db.WithContext(ctx), id)
}

func (s *GormStore) getFeedback(tx *gorm.DB, id string) (*model.Feedback, error) {
	var m FeedbackModel
	if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFeedbackNotFound, id)
		}
		return nil, fmt.Errorf("failed to find feedback: %w", err)
	}
	return feedbackToDomain(&m), nil
}

func (s *GormStore) ClaimFeedback(ctx context.Context, id string) (*model.Feedback, error) {
	var out *model.Feedback
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&FeedbackModel{}).
			Where("id = ? AND status IN ?", id, []string{string(model.FeedbackPending), string(model.FeedbackTranscribing)}).
			Update("status", string(model.FeedbackTranscribing))
		if res.Error != nil {
			return fmt.Errorf("failed to claim feedback: %w", res.Error)
		}
		f, err := s.getFeedback(tx, id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s is %s", ErrNotClaimable, id, f.Status)
		}
		out = f
		return nil
	})
	return out, err
}

func (s *GormStore) CompleteFeedback(ctx context.Context, id string, a model.Analysis) error {
	cleaned := a.CleanedTranscript
	return s.transition(ctx, id, model.FeedbackTranscribing, map[string]interface{}{
		"status":             string(model.FeedbackCompleted),
		"raw_transcript":     a.RawTranscript,
		"cleaned_transcript": &cleaned,
		"sentiment":          string(a.Sentiment),
		"themes":             datatypes.JSONSlice[string](a.Themes),
		"insight":            a.Insight,
	})
}

func (s *GormStore) FailFeedback(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.FeedbackTranscribing, map[string]interface{}{
		"status": string(model.FeedbackFailed),
	})
}

// transition applies values only while the row is still in from.
func (s *GormStore) transition(ctx context.Context, id string, from model.FeedbackStatus, values map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&FeedbackModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update feedback: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetFeedback(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s left %s", ErrNotClaimable, id, from)
	}
	return nil
}

// ResetFeedback returns an unlinked row to pending and clears what the last
// transcription derived, so the row is not consolidatable until it completes again.
func (s *GormStore) ResetFeedback(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&FeedbackModel{}).
		Where("id = ? AND ticket_id IS NULL AND status <> ?", id, string(model.FeedbackTranscribing)).
		Updates(map[string]interface{}{
			"status":             string(model.FeedbackPending),
			"raw_transcript":     "",
			"cleaned_transcript": nil,
			"sentiment":          "",
			"themes":             datatypes.JSONSlice[string](nil),
			"insight":            "",
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset feedback: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	f, err := s.GetFeedback(ctx, id)
	if err != nil {
		return err
	}
	if f.Linked() {
		return fmt.Errorf("%w: %s", ErrAlreadyLinked, id)
	}
	return fmt.Errorf("%w: %s is %s", ErrNotClaimable, id, f.Status)
}

func (s *GormStore) ListCompletedFeedback(ctx context.Context, clientID string, limit int) ([]model.Feedback, error) {
	q := s.db.WithContext(ctx).
		Where("client_id = ? AND status = ? AND cleaned_transcript IS NOT NULL", clientID, string(model.FeedbackCompleted)).
		Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.findFeedback(q)
}

func (s *GormStore) ListFeedbackByTicket(ctx context.Context, ticketID string) ([]model.Feedback, error) {
	q := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("created_at DESC").Order("id")
	return s.findFeedback(q)
}

func (s *GormStore) findFeedback(q *gorm.DB) ([]model.Feedback, error) {
	var rows []FeedbackModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	out := make([]model.Feedback, len(rows))
	for i := range rows {
		out[i] = *feedbackToDomain(&rows[i])
	}
	return out, nil
}

func (s *GormStore) CreateTicket(ctx context.Context, t *model.Ticket) error {
	return s.createTicket(s.db.WithContext(ctx), t)
}

func (s *GormStore) createTicket(tx *gorm.DB, t *model.Ticket) error {
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	m, err := ticketToModel(t)
	if err != nil {
		return err
	}
	if err := tx.Create(m).Error; err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}

func (s *GormStore) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return s.getTicket(s.db.WithContext(ctx), id)
}

func (s *GormStore) getTicket(tx *gorm.DB, id string) (*model.Ticket, error) {
	var m TicketModel
	if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, id)
		}
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	return ticketToDomain(&m)
}

func (s *GormStore) ListTickets(ctx context.Context, clientID string, statuses ...model.TicketStatus) ([]model.Ticket, error) {
	q := s.db.WithContext(ctx).Where("client_id = ?", clientID)
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		q = q.Where("status IN ?", names)
	}
	var rows []TicketModel
	if err := q.Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	out := make([]model.Ticket, 0, len(rows))
	for i := range rows {
		t, err := ticketToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *GormStore) ListTicketIDs(ctx context.Context, clientID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&TicketModel{}).
		Where("client_id = ?", clientID).Order("created_at").Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list ticket ids: %w", err)
	}
	return ids, nil
}

func (s *GormStore) UpdateTicket(ctx context.Context, id string, patch model.TicketPatch) (*model.Ticket, error) {
	values := map[string]interface{}{"updated_at": s.now()}
	if patch.Status != nil {
		values["status"] = string(*patch.Status)
	}
	if patch.Priority != nil {
		values["priority"] = string(*patch.Priority)
	}
	if patch.IsPublic != nil {
		values["is_public"] = *patch.IsPublic
	}
	if err := s.updateTicket(ctx, id, values); err != nil {
		return nil, err
	}
	return s.GetTicket(ctx, id)
}

func (s *GormStore) SaveScores(ctx context.Context, ticketID string, card *model.ScoreCard) error {
	doc, err := marshalJSON(card)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	return s.updateTicket(ctx, ticketID, map[string]interface{}{"scores": doc, "updated_at": s.now()})
}

func (s *GormStore) updateTicket(ctx context.Context, id string, values map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&TicketModel{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update ticket: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTicketNotFound, id)
	}
	return nil
}

func (s *GormStore) DeleteTicket(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&TicketModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete ticket: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTicketNotFound, id)
	}
	return nil
}

func (s *GormStore) IncrementFeedbackCount(ctx context.Context, ticketID string) error {
	return s.increment(s.db.WithContext(ctx), ticketID)
}

func (s *GormStore) increment(tx *gorm.DB, ticketID string) error {
	res := tx.Model(&TicketModel{}).Where("id = ?", ticketID).Updates(map[string]interface{}{
		"feedback_count": gorm.Expr("feedback_count + ?", 1),
		"updated_at":     s.now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to increment feedback count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	return nil
}

// link sets ticket_id only while it is still NULL and the row is completed.
func (s *GormStore) link(tx *gorm.DB, feedbackID, ticketID string) error {
	res := tx.Model(&FeedbackModel{}).
		Where("id = ? AND ticket_id IS NULL AND status = ?", feedbackID, string(model.FeedbackCompleted)).
		Update("ticket_id", ticketID)
	if res.Error != nil {
		return fmt.Errorf("failed to link feedback: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		f, err := s.getFeedback(tx, feedbackID)
		if err != nil {
			return err
		}
		if !f.Linked() {
			return fmt.Errorf("%w: %s is %s", ErrNotClaimable, feedbackID, f.Status)
		}
		return fmt.Errorf("%w: %s", ErrAlreadyLinked, feedbackID)
	}
	return nil
}

func (s *GormStore) LinkFeedback(ctx context.Context, feedbackID, ticketID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.link(tx, feedbackID, ticketID); err != nil {
			return err
		}
		return s.increment(tx, ticketID)
	})
}

func (s *GormStore) CreateTicketForFeedback(ctx context.Context, t *model.Ticket, feedbackID string) error {
	t.FeedbackCount = 1
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.createTicket(tx, t); err != nil {
			return err
		}
		return s.link(tx, feedbackID, t.ID)
	})
}

func (s *GormStore) RecountFeedback(ctx context.Context, ticketID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&FeedbackModel{}).Where("ticket_id = ?", ticketID).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to count linked feedback: %w", err)
		}
		res := tx.Model(&TicketModel{}).Where("id = ?", ticketID).Updates(map[string]interface{}{
			"feedback_count": n,
			"updated_at":     s.now(),
		})
		if res.Error != nil {
			return fmt.Errorf("failed to store feedback count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
		}
		return nil
	})
	return int(n), err
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{FeedbackByStatus: make(map[model.FeedbackStatus]int64)}
	var rows []struct {
		Status string
		N      int64
	}
	db := s.db.WithContext(ctx)
	if err := db.Model(&FeedbackModel{}).Select("status, count(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return st, fmt.Errorf("failed to count feedback: %w", err)
	}
	for _, r := range rows {
		st.FeedbackByStatus[model.FeedbackStatus(r.Status)] = r.N
	}
	if err := db.Model(&TicketModel{}).Count(&st.Tickets).Error; err != nil {
		return st, fmt.Errorf("failed to count tickets: %w", err)
	}
	if err := db.Model(&TicketModel{}).Where("scores IS NOT NULL").Count(&st.TicketsWithCards).Error; err != nil {
		return st, fmt.Errorf("failed to count tickets with score cards: %w", err)
	}
	return st, nil
}
