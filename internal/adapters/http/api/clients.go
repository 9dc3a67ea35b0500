package api

import (
	"net/http"
	"strconv"

	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/internal/domain/types"
)

// ClientsHandler serves the per-client batch operations and rankings.
type ClientsHandler struct {
	deps     ClientDependencies
	maxLimit int
}

// NewClientsHandler creates a new clients handler.
func NewClientsHandler(deps ClientDependencies, maxLimit int) *ClientsHandler {
	return &ClientsHandler{deps: deps, maxLimit: maxLimit}
}

type scoreAllResponse struct {
	ClientID  string `json:"client_id"`
	Attempted int    `json:"attempted"`
}

type synthesisResponse struct {
	Generated int            `json:"generated"`
	Tickets   []types.Ticket `json:"tickets"`
}

type rankingResponse struct {
	Framework string        `json:"framework"`
	Entries   []types.Entry `json:"entries"`
}

// HandleScoreAll handles POST /v1/clients/{client}/score. Scoring continues
// after the response is written.
func (h *ClientsHandler) HandleScoreAll(w http.ResponseWriter, r *http.Request) {
	client := r.PathValue("client")
	n, err := h.deps.ScoreAll(r.Context(), client)
	if err != nil {
		writeFailure(r.Context(), w, Wrap("api.score_all", err))
		return
	}
	writeJSON(w, http.StatusAccepted, scoreAllResponse{ClientID: client, Attempted: n})
}

// HandleSynthesize handles POST /v1/clients/{client}/synthesize.
func (h *ClientsHandler) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Synthesize(r.Context(), r.PathValue("client"))
	if err != nil {
		writeFailure(r.Context(), w, Wrap("api.synthesize", err))
		return
	}
	writeJSON(w, http.StatusOK, synthesisResponse{
		Generated: res.Generated,
		Tickets:   types.FromTickets(res.Tickets),
	})
}

// HandleRanking handles GET /v1/clients/{client}/ranking?framework=F&limit=N.
func (h *ClientsHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.ranking"
	q := r.URL.Query()

	f, err := scoring.ParseFramework(q.Get("framework"))
	if err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}

	n := h.maxLimit
	if s := q.Get("limit"); s != "" {
		n, err = strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", WrapKind(op, ErrBadRequest, ErrLimitTooHigh))
			return
		}
	}

	entries, err := h.deps.Ranking(r.Context(), r.PathValue("client"), f, n)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rankingResponse{Framework: string(f), Entries: types.FromRanking(entries)})
}
