// Package scoring derives the six framework scores from raw ticket judgments
// and ranks tickets under a chosen framework.
package scoring

import (
	"math"
	"time"

	"github.com/okian/voicebox/internal/domain/model"
)

// Judgment scale bounds. Omitted judgments fall back to the midpoint.
const (
	minJudgment     = 1
	maxJudgment     = 10
	defaultJudgment = 5
	blockerWeight   = 10
)

// Judgments are the raw oracle outputs. Nil means the oracle omitted the field.
type Judgments struct {
	Demand            *float64 `json:"demand"`
	Differentiation   *float64 `json:"differentiation"`
	Value             *float64 `json:"value"`
	Implementation    *float64 `json:"implementation"`
	StrategicFit      *float64 `json:"strategic_fit"`
	Virality          *float64 `json:"virality"`
	ImpliedNeed       *float64 `json:"implied_need"`
	EnterpriseBlocker *bool    `json:"enterprise_blocker"`
	EffortHours       *float64 `json:"effort_hours"`
	AIInsight         string   `json:"ai_insight"`
}

// Raw is a fully defaulted, clamped set of judgments.
type Raw struct {
	Demand            float64
	Differentiation   float64
	Value             float64
	Implementation    float64
	StrategicFit      float64
	Virality          float64
	ImpliedNeed       float64
	EnterpriseBlocker bool
	EffortHours       *float64
	AIInsight         string
}

// Frameworks holds the derived composite scores, each rounded to one decimal.
type Frameworks struct {
	Traditional          float64
	DifferentiationScore float64
	GrayAreaScore        float64
	QuickWinScore        float64
	EnterpriseScore      float64
	ViralScore           float64
}

// Resolve applies defaults and clamps every 1-10 judgment into range.
func (j Judgments) Resolve() Raw {
	r := Raw{
		Demand:          judgment(j.Demand),
		Differentiation: judgment(j.Differentiation),
		Value:           judgment(j.Value),
		Implementation:  judgment(j.Implementation),
		StrategicFit:    judgment(j.StrategicFit),
		Virality:        judgment(j.Virality),
		ImpliedNeed:     judgment(j.ImpliedNeed),
		AIInsight:       j.AIInsight,
	}
	if j.EnterpriseBlocker != nil {
		r.EnterpriseBlocker = *j.EnterpriseBlocker
	}
	if j.EffortHours != nil && !math.IsNaN(*j.EffortHours) && *j.EffortHours >= 0 {
		h := *j.EffortHours
		r.EffortHours = &h
	}
	return r
}

func judgment(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return defaultJudgment
	}
	return math.Max(minJudgment, math.Min(maxJudgment, *v))
}

// Compute derives the framework scores. It is pure: identical input always
// yields identical rounded output.
func Compute(r Raw) Frameworks {
	blocker := 0.0
	if r.EnterpriseBlocker {
		blocker = blockerWeight
	}
	// implementation is clamped to <= 10, so the quick-win denominator is >= 1.
	quickWin := r.Value * r.Implementation / (11 - r.Implementation) * math.Sqrt(r.Demand)

	return Frameworks{
		Traditional:          round1(0.4*r.Demand + 0.3*r.Value + 0.2*r.Implementation + 0.1*r.StrategicFit),
		DifferentiationScore: round1(0.5*r.Differentiation + 0.3*r.Value + 0.2*r.StrategicFit),
		GrayAreaScore:        round1(0.4*r.ImpliedNeed + 0.3*r.StrategicFit + 0.2*r.Differentiation + 0.1*r.Value),
		QuickWinScore:        round1(quickWin),
		EnterpriseScore:      round1(0.4*r.StrategicFit + 0.3*blocker + 0.2*r.Value + 0.1*r.Demand),
		ViralScore:           round1(0.4*r.Virality + 0.3*r.Value + 0.2*r.Implementation + 0.1*r.Differentiation),
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Card assembles the persisted score card for judgments scored at ts.
func Card(j Judgments, ts time.Time) *model.ScoreCard {
	r := j.Resolve()
	f := Compute(r)
	scoredAt := ts.UTC()
	return &model.ScoreCard{
		Demand:            r.Demand,
		Differentiation:   r.Differentiation,
		Value:             r.Value,
		Implementation:    r.Implementation,
		StrategicFit:      r.StrategicFit,
		Virality:          r.Virality,
		ImpliedNeed:       r.ImpliedNeed,
		EnterpriseBlocker: r.EnterpriseBlocker,
		EffortHours:       r.EffortHours,
		AIInsight:         r.AIInsight,

		Traditional:          f.Traditional,
		DifferentiationScore: f.DifferentiationScore,
		GrayAreaScore:        f.GrayAreaScore,
		QuickWinScore:        f.QuickWinScore,
		EnterpriseScore:      f.EnterpriseScore,
		ViralScore:           f.ViralScore,

		LastScoredAt: &scoredAt,
	}
}

// Seed builds the provisional card of a synthesized ticket. It carries no
// timestamp, so it does not count as scored.
func Seed(confidence float64, effortHours *float64) *model.ScoreCard {
	return &model.ScoreCard{
		ImpliedNeed:   maxJudgment,
		GrayAreaScore: round1(confidence * 10),
		EffortHours:   effortHours,
	}
}

// Consistent reports whether a card's framework scores are the formula output
// of its own raw judgments.
func Consistent(c *model.ScoreCard) bool {
	if c == nil {
		return false
	}
	f := Compute(Raw{
		Demand:            c.Demand,
		Differentiation:   c.Differentiation,
		Value:             c.Value,
		Implementation:    c.Implementation,
		StrategicFit:      c.StrategicFit,
		Virality:          c.Virality,
		ImpliedNeed:       c.ImpliedNeed,
		EnterpriseBlocker: c.EnterpriseBlocker,
	})
	return f == Frameworks{
		Traditional:          c.Traditional,
		DifferentiationScore: c.DifferentiationScore,
		GrayAreaScore:        c.GrayAreaScore,
		QuickWinScore:        c.QuickWinScore,
		EnterpriseScore:      c.EnterpriseScore,
		ViralScore:           c.ViralScore,
	}
}
