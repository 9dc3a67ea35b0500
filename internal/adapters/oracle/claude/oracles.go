package claude

import (
	"context"
	"fmt"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/oracle"
	"github.com/okian/voicebox/internal/domain/scoring"
)

// Analyze cleans a transcript and extracts sentiment, themes and an insight.
func (c *Client) Analyze(ctx context.Context, transcript string) (oracle.Analysis, error) {
	r, err := c.ask(ctx, "analyze", transcript)
	if err != nil {
		return oracle.Analysis{}, err
	}
	out := r.analysis()
	if !out.Usable() {
		return oracle.Analysis{}, errs.Errorf("claude.analyze", errs.ErrUpstreamOracle, "empty cleaned transcript")
	}
	return out, nil
}

// Match decides whether feedback belongs to one of the candidate tickets.
func (c *Client) Match(ctx context.Context, f model.Feedback, candidates []model.Ticket) (oracle.Match, error) {
	data := struct {
		Feedback   model.Feedback
		Candidates []model.Ticket
	}{f, candidates}
	r, err := c.ask(ctx, "match", data)
	if err != nil {
		return oracle.Match{}, err
	}
	return r.match(), nil
}

// Judge returns the raw judgments for a ticket and its linked feedback.
func (c *Client) Judge(ctx context.Context, t model.Ticket, feedback []model.Feedback) (scoring.Judgments, error) {
	data := struct {
		Ticket   model.Ticket
		Feedback []model.Feedback
	}{t, feedback}
	r, err := c.ask(ctx, "judge", data)
	if err != nil {
		return scoring.Judgments{}, err
	}
	return r.judgments(), nil
}

// Generate proposes tickets for needs implied by the feedback.
func (c *Client) Generate(ctx context.Context, feedback []model.Feedback, tickets []model.Ticket) ([]oracle.Candidate, error) {
	data := struct {
		Feedback []model.Feedback
		Tickets  []model.Ticket
	}{feedback, tickets}
	r, err := c.ask(ctx, "generate", data)
	if err != nil {
		return nil, err
	}
	return r.candidates(), nil
}

// ask renders the named prompt, calls the model and returns the JSON object
// in its reply. Only a reply without a usable object is an error.
func (c *Client) ask(ctx context.Context, name string, data any) (reply, error) {
	prompt, err := render(name, data)
	if err != nil {
		return nil, fmt.Errorf("claude.%s: %w", name, err)
	}
	text, err := c.complete(ctx, name, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	r, err := decode(text)
	if err != nil {
		return nil, errs.Wrap("claude."+name, errs.ErrUpstreamOracle, err)
	}
	return r, nil
}
