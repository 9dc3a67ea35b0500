package model

import "time"

// TicketStatus is a kanban column.
type TicketStatus string

// Ticket kanban columns.
const (
	TicketNew      TicketStatus = "new"
	TicketPlanned  TicketStatus = "planned"
	TicketBuilding TicketStatus = "building"
	TicketShipped  TicketStatus = "shipped"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := ticketTransitions[s]
	return ok
}

// ticketTransitions lists, per source column, the columns a ticket may move to.
// Every column currently reaches every other one; tightening the board means
// editing this table only.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketNew:      {TicketPlanned, TicketBuilding, TicketShipped},
	TicketPlanned:  {TicketNew, TicketBuilding, TicketShipped},
	TicketBuilding: {TicketNew, TicketPlanned, TicketShipped},
	TicketShipped:  {TicketNew, TicketPlanned, TicketBuilding},
}

// CanTransition reports whether a ticket may move from one column to another.
// Staying in place is always allowed.
func CanTransition(from, to TicketStatus) bool {
	if from == to {
		return from.Valid()
	}
	for _, s := range ticketTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Priority is a manual or suggested ticket priority.
type Priority string

// Ticket priorities.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority normalizes an oracle or request value. Unknown values map to medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityHigh, PriorityCritical:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Provenance records why a synthesized ticket exists.
type Provenance struct {
	SourceFeedbackIDs []string  `json:"source_feedback_ids"`
	Reasoning         string    `json:"reasoning"`
	Confidence        float64   `json:"confidence"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// ScoreCard holds the raw judgments and the framework scores derived from them.
// A card is only meaningful once LastScoredAt is set.
type ScoreCard struct {
	Demand            float64  `json:"demand"`
	Differentiation   float64  `json:"differentiation"`
	Value             float64  `json:"value"`
	Implementation    float64  `json:"implementation"`
	StrategicFit      float64  `json:"strategic_fit"`
	Virality          float64  `json:"virality"`
	ImpliedNeed       float64  `json:"implied_need"`
	EnterpriseBlocker bool     `json:"enterprise_blocker"`
	EffortHours       *float64 `json:"effort_hours"`
	AIInsight         string   `json:"ai_insight"`

	Traditional          float64 `json:"traditional"`
	DifferentiationScore float64 `json:"differentiation_score"`
	GrayAreaScore        float64 `json:"gray_area_score"`
	QuickWinScore        float64 `json:"quick_win_score"`
	EnterpriseScore      float64 `json:"enterprise_score"`
	ViralScore           float64 `json:"viral_score"`

	LastScoredAt *time.Time `json:"last_scored_at"`
}

// Scored reports whether the card holds formula output.
func (c *ScoreCard) Scored() bool {
	return c != nil && c.LastScoredAt != nil
}

// Ticket is a unit of product work aggregating one or more feedback items.
type Ticket struct {
	ID                  string
	ClientID            string
	Title               string
	Description         string
	Status              TicketStatus
	Priority            *Priority
	AISuggestedPriority Priority
	FeedbackCount       int
	IsPublic            bool
	AIGenerated         bool
	Provenance          *Provenance
	Scores              *ScoreCard
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TicketPatch carries the externally editable ticket fields. Nil fields are left alone.
type TicketPatch struct {
	Status   *TicketStatus
	Priority *Priority
	IsPublic *bool
}
