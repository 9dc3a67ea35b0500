package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/types"
	"github.com/okian/voicebox/internal/pipeline"
)

// TicketsHandler serves ticket management and single-ticket scoring.
type TicketsHandler struct {
	deps TicketDependencies
}

// NewTicketsHandler creates a new tickets handler.
func NewTicketsHandler(deps TicketDependencies) *TicketsHandler {
	return &TicketsHandler{deps: deps}
}

type createTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	IsPublic    bool   `json:"is_public"`
}

type updateTicketRequest struct {
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
	IsPublic *bool   `json:"is_public"`
}

func (u updateTicketRequest) patch() model.TicketPatch {
	var p model.TicketPatch
	if u.Status != nil {
		s := model.TicketStatus(strings.ToLower(strings.TrimSpace(*u.Status)))
		p.Status = &s
	}
	if u.Priority != nil {
		pr := model.Priority(strings.ToLower(strings.TrimSpace(*u.Priority)))
		p.Priority = &pr
	}
	p.IsPublic = u.IsPublic
	return p
}

type recountResponse struct {
	TicketID      string `json:"ticket_id"`
	FeedbackCount int    `json:"feedback_count"`
}

// HandleCreate handles POST /v1/clients/{client}/tickets.
func (h *TicketsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_ticket"
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	t, err := h.deps.CreateTicket(r.Context(), pipeline.NewTicket{
		ClientID:    r.PathValue("client"),
		Title:       req.Title,
		Description: req.Description,
		Priority:    strings.ToLower(strings.TrimSpace(req.Priority)),
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, types.FromTicket(t))
}

// HandleList handles GET /v1/clients/{client}/tickets?status=new,planned.
func (h *TicketsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var statuses []model.TicketStatus
	for _, v := range r.URL.Query()["status"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, model.TicketStatus(strings.ToLower(s)))
			}
		}
	}
	ts, err := h.deps.ListTickets(r.Context(), r.PathValue("client"), statuses...)
	if err != nil {
		writeFailure(r.Context(), w, Wrap("api.list_tickets", err))
		return
	}
	out := make([]types.Ticket, len(ts))
	for i := range ts {
		out[i] = types.FromTicket(&ts[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /v1/tickets/{id}.
func (h *TicketsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.GetTicket(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(r.Context(), w, Wrap("api.get_ticket", err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromTicket(t))
}

// HandleUpdate handles PATCH /v1/tickets/{id}.
func (h *TicketsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_ticket"
	var req updateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	t, err := h.deps.UpdateTicket(r.Context(), r.PathValue("id"), req.patch())
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromTicket(t))
}

// HandleDelete handles DELETE /v1/tickets/{id}.
func (h *TicketsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteTicket(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(r.Context(), w, Wrap("api.delete_ticket", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecount handles POST /v1/tickets/{id}/recount.
func (h *TicketsHandler) HandleRecount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := h.deps.RecountFeedback(r.Context(), id)
	if err != nil {
		writeFailure(r.Context(), w, Wrap("api.recount", err))
		return
	}
	writeJSON(w, http.StatusOK, recountResponse{TicketID: id, FeedbackCount: n})
}

// HandleScore handles POST /v1/tickets/{id}/score.
func (h *TicketsHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.ScoreTicket(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(r.Context(), w, Wrap("api.score_ticket", err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromTicket(t))
}
