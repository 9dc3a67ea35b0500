package claude

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/voicebox/internal/domain/oracle"
	"github.com/okian/voicebox/internal/domain/scoring"
)

var errNoJSON = errors.New("response contains no JSON object")

// reply is the top-level object of a model answer, one raw value per key.
// Readers below never fail: a member that is missing or of the wrong shape
// reads as its zero value so defaults apply downstream.
type reply map[string]json.RawMessage

// decode extracts the outermost JSON object from a model reply.
// Models sometimes wrap the object in prose or a code fence.
func decode(text string) (reply, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoJSON
	}
	var r reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("unparsable response: %w", err)
	}
	return r, nil
}

func object(raw json.RawMessage) reply {
	var r reply
	if json.Unmarshal(raw, &r) != nil {
		return nil
	}
	return r
}

// present returns the member unless it is absent or null.
func (r reply) present(key string) (json.RawMessage, bool) {
	raw := bytes.TrimSpace(r[key])
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (r reply) str(key string) string {
	var s string
	if json.Unmarshal(r[key], &s) != nil {
		return ""
	}
	return s
}

// number accepts a JSON number or a numeric string such as "8" or " 7.5 ".
func (r reply) number(key string) *float64 {
	raw, ok := r.present(key)
	if !ok {
		return nil
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// flag accepts a JSON boolean or the strings true/false/yes/no.
func (r reply) flag(key string) *bool {
	raw, ok := r.present(key)
	if !ok {
		return nil
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return &b
	}
	switch strings.ToLower(strings.TrimSpace(r.str(key))) {
	case "true", "yes":
		b = true
	case "false", "no":
		b = false
	default:
		return nil
	}
	return &b
}

// strs keeps the string members of an array and drops the rest.
func (r reply) strs(key string) []string {
	var items []json.RawMessage
	if json.Unmarshal(r[key], &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// objects returns the members of an array that are themselves objects.
func (r reply) objects(key string) []reply {
	var items []json.RawMessage
	if json.Unmarshal(r[key], &items) != nil {
		return nil
	}
	out := make([]reply, 0, len(items))
	for _, item := range items {
		if obj := object(item); obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

func (r reply) analysis() oracle.Analysis {
	return oracle.Analysis{
		CleanedTranscript: r.str("cleaned_transcript"),
		Sentiment:         r.str("sentiment"),
		Themes:            r.strs("themes"),
		Insight:           r.str("insight"),
	}
}

func (r reply) match() oracle.Match {
	m := oracle.Match{
		MatchedTicketID: r.str("matched_ticket_id"),
		Reasoning:       r.str("reasoning"),
	}
	if draft := object(r["new_ticket"]); draft != nil {
		m.NewTicket = &oracle.TicketDraft{
			Title:       draft.str("title"),
			Description: draft.str("description"),
			Priority:    draft.str("priority"),
		}
	}
	return m
}

func (r reply) judgments() scoring.Judgments {
	return scoring.Judgments{
		Demand:            r.number("demand"),
		Differentiation:   r.number("differentiation"),
		Value:             r.number("value"),
		Implementation:    r.number("implementation"),
		StrategicFit:      r.number("strategic_fit"),
		Virality:          r.number("virality"),
		ImpliedNeed:       r.number("implied_need"),
		EnterpriseBlocker: r.flag("enterprise_blocker"),
		EffortHours:       r.number("effort_hours"),
		AIInsight:         r.str("ai_insight"),
	}
}

// candidates skips array members that are not objects; a bad field inside
// a candidate only loses that field.
func (r reply) candidates() []oracle.Candidate {
	objs := r.objects("candidates")
	out := make([]oracle.Candidate, 0, len(objs))
	for _, c := range objs {
		cand := oracle.Candidate{
			Title:             c.str("title"),
			Description:       c.str("description"),
			Reasoning:         c.str("reasoning"),
			SourceFeedbackIDs: c.strs("source_feedback_ids"),
			EffortHours:       c.number("effort_hours"),
			Priority:          c.str("priority"),
		}
		if conf := c.number("confidence"); conf != nil {
			cand.Confidence = *conf
		}
		out = append(out, cand)
	}
	return out
}
