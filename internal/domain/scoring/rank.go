package scoring

import (
	"errors"
	"sort"

	"github.com/okian/voicebox/internal/domain/model"
)

// Framework names one of the six composite scores.
type Framework string

// Supported ranking frameworks.
const (
	FrameworkTraditional     Framework = "traditional"
	FrameworkDifferentiation Framework = "differentiation"
	FrameworkGrayArea        Framework = "gray_area"
	FrameworkQuickWin        Framework = "quick_win"
	FrameworkEnterprise      Framework = "enterprise"
	FrameworkViral           Framework = "viral"
)

// ErrUnknownFramework is returned for an unsupported framework name.
var ErrUnknownFramework = errors.New("unknown framework")

// AllFrameworks lists every supported framework in display order.
func AllFrameworks() []Framework {
	return []Framework{
		FrameworkTraditional,
		FrameworkDifferentiation,
		FrameworkGrayArea,
		FrameworkQuickWin,
		FrameworkEnterprise,
		FrameworkViral,
	}
}

// ParseFramework validates a framework name. Empty selects traditional.
func ParseFramework(s string) (Framework, error) {
	if s == "" {
		return FrameworkTraditional, nil
	}
	for _, f := range AllFrameworks() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", ErrUnknownFramework
}

// Value extracts the framework's score from a card.
func (f Framework) Value(c *model.ScoreCard) float64 {
	switch f {
	case FrameworkDifferentiation:
		return c.DifferentiationScore
	case FrameworkGrayArea:
		return c.GrayAreaScore
	case FrameworkQuickWin:
		return c.QuickWinScore
	case FrameworkEnterprise:
		return c.EnterpriseScore
	case FrameworkViral:
		return c.ViralScore
	default:
		return c.Traditional
	}
}

// Entry is one ranked ticket.
type Entry struct {
	Rank   int
	Ticket *model.Ticket
	Score  float64
}

// Rank orders scored tickets by framework score desc, then feedback count
// desc, then id asc. Unscored tickets are skipped. n <= 0 returns all.
func Rank(tickets []*model.Ticket, f Framework, n int) []Entry {
	entries := make([]Entry, 0, len(tickets))
	for _, t := range tickets {
		if !t.Scores.Scored() {
			continue
		}
		entries = append(entries, Entry{Ticket: t, Score: f.Value(t.Scores)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Ticket.FeedbackCount != b.Ticket.FeedbackCount {
			return a.Ticket.FeedbackCount > b.Ticket.FeedbackCount
		}
		return a.Ticket.ID < b.Ticket.ID
	})

	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
