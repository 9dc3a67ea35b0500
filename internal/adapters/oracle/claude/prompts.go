package claude

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"ageDays": func(t time.Time) int {
		if t.IsZero() {
			return 0
		}
		return int(time.Since(t).Hours() / 24)
	},
}).Parse(promptTemplates))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

const systemPrompt = `You are a product analyst turning spoken user feedback into product work. Reply with one JSON object and nothing else.`

const promptTemplates = `
{{define "analyze"}}Below is a raw speech-to-text transcript of a user talking about a website.

<transcript>
{{.}}
</transcript>

Return a JSON object with exactly these fields:
- "cleaned_transcript": the transcript with filler words (um, uh, like, you know) and false starts removed, meaning unchanged
- "sentiment": one of "positive", "neutral", "negative"
- "themes": 2 to 3 short lowercase theme labels
- "insight": one sentence stating the actionable product insight
{{end}}

{{define "match"}}A user left this feedback:

<feedback>
{{.Feedback.Text}}
</feedback>

Existing open tickets:
{{range .Candidates}}- id={{.ID}} | {{.Title}}: {{.Description}}
{{else}}(none)
{{end}}
Decide whether the feedback belongs to an existing ticket. Be permissive: if the request substantially overlaps an existing ticket's scope, link it rather than creating a near-duplicate.

Return a JSON object with these fields:
- "matched_ticket_id": the id of the matching ticket, or "" if none matches
- "new_ticket": when nothing matches, an object with "title", "description" and "priority" (one of "low", "medium", "high", "critical"); otherwise null
- "reasoning": one sentence
{{end}}

{{define "judge"}}Score this product ticket.

<ticket>
Title: {{.Ticket.Title}}
Description: {{.Ticket.Description}}
</ticket>

Linked user feedback ({{len .Feedback}} items):
{{range .Feedback}}- [{{.Sentiment}}, {{ageDays .CreatedAt}} days ago] {{.Text}}
{{else}}(none)
{{end}}
Return a JSON object with these fields:
- "demand", "differentiation", "value", "implementation", "strategic_fit", "virality", "implied_need": numbers from 1 to 10 ("implementation" is ease: 10 means trivial)
- "enterprise_blocker": true if missing this blocks enterprise adoption
- "effort_hours": estimated engineering hours
- "ai_insight": one sentence explaining the scores
{{end}}

{{define "generate"}}Recent user feedback:
{{range .Feedback}}- id={{.ID}} [{{.Sentiment}}] {{.Text}}
{{end}}
Existing tickets (do not duplicate these):
{{range .Tickets}}- {{.Title}} ({{.Status}})
{{else}}(none)
{{end}}
Find needs that are implied rather than literally stated: patterns across several items, friction users did not name, workarounds they describe, and adjacent problems. Propose 3 to 5 tickets.

Return a JSON object {"candidates": [...]} where each candidate has:
- "title", "description", "reasoning"
- "source_feedback_ids": ids from the list above that support it
- "confidence": a number from 0 to 1; only propose candidates you are at least 0.7 confident in
- "effort_hours": estimated engineering hours
- "priority": one of "low", "medium", "high", "critical"
{{end}}
`
