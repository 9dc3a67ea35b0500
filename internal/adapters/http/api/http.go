// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/internal/pipeline"
	"github.com/okian/voicebox/pkg/logger"
)

const (
	defaultMaxRankingLimit = 100
	defaultMaxAudioBytes   = 10 << 20
	// multipart framing and form fields on top of the audio part
	formOverheadBytes = 1 << 20
)

// FeedbackDependencies covers ingestion and the per-feedback stages.
type FeedbackDependencies interface {
	Ingest(ctx context.Context, sub pipeline.Submission) (string, error)
	GetFeedback(ctx context.Context, feedbackID string) (*model.Feedback, error)
	Reprocess(ctx context.Context, feedbackID string) error
	Consolidate(ctx context.Context, feedbackID string) (*pipeline.Decision, error)
}

// TicketDependencies covers ticket management and scoring.
type TicketDependencies interface {
	CreateTicket(ctx context.Context, in pipeline.NewTicket) (*model.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (*model.Ticket, error)
	ListTickets(ctx context.Context, clientID string, statuses ...model.TicketStatus) ([]model.Ticket, error)
	UpdateTicket(ctx context.Context, ticketID string, patch model.TicketPatch) (*model.Ticket, error)
	DeleteTicket(ctx context.Context, ticketID string) error
	RecountFeedback(ctx context.Context, ticketID string) (int, error)
	ScoreTicket(ctx context.Context, ticketID string) (*model.Ticket, error)
}

// ClientDependencies covers the per-client batch operations.
type ClientDependencies interface {
	ScoreAll(ctx context.Context, clientID string) (int, error)
	Synthesize(ctx context.Context, clientID string) (*pipeline.SynthesisResult, error)
	Ranking(ctx context.Context, clientID string, f scoring.Framework, limit int) ([]scoring.Entry, error)
}

// Dependencies required by HTTP handlers. *pipeline.Service satisfies it.
type Dependencies interface {
	FeedbackDependencies
	TicketDependencies
	ClientDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	feedbackHandler *FeedbackHandler
	ticketsHandler  *TicketsHandler
	clientsHandler  *ClientsHandler
}

// Option applies a configuration option to the Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxRankingLimit int
	maxAudioBytes   int64
}

// WithMaxRankingLimit caps the limit accepted by the ranking endpoint.
func WithMaxRankingLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxRankingLimit = n
		}
	}
}

// WithMaxAudioBytes caps the size of an uploaded recording.
func WithMaxAudioBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxAudioBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxRankingLimit: defaultMaxRankingLimit, maxAudioBytes: defaultMaxAudioBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		feedbackHandler: NewFeedbackHandler(deps, cfg.maxAudioBytes),
		ticketsHandler:  NewTicketsHandler(deps),
		clientsHandler:  NewClientsHandler(deps, cfg.maxRankingLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /metrics", "metrics", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /v1/feedback", "ingest", s.feedbackHandler.HandleIngest)
	route("GET /v1/feedback/{id}", "get_feedback", s.feedbackHandler.HandleGet)
	route("POST /v1/feedback/{id}/consolidate", "consolidate", s.feedbackHandler.HandleConsolidate)
	route("POST /v1/feedback/{id}/reprocess", "reprocess", s.feedbackHandler.HandleReprocess)

	route("POST /v1/clients/{client}/tickets", "create_ticket", s.ticketsHandler.HandleCreate)
	route("GET /v1/clients/{client}/tickets", "list_tickets", s.ticketsHandler.HandleList)
	route("GET /v1/tickets/{id}", "get_ticket", s.ticketsHandler.HandleGet)
	route("PATCH /v1/tickets/{id}", "update_ticket", s.ticketsHandler.HandleUpdate)
	route("DELETE /v1/tickets/{id}", "delete_ticket", s.ticketsHandler.HandleDelete)
	route("POST /v1/tickets/{id}/recount", "recount", s.ticketsHandler.HandleRecount)
	route("POST /v1/tickets/{id}/score", "score_ticket", s.ticketsHandler.HandleScore)

	route("POST /v1/clients/{client}/score", "score_all", s.clientsHandler.HandleScoreAll)
	route("POST /v1/clients/{client}/synthesize", "synthesize", s.clientsHandler.HandleSynthesize)
	route("GET /v1/clients/{client}/ranking", "ranking", s.clientsHandler.HandleRanking)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an operation error onto its status and stable code.
func writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(ctx, "request failed", logger.Error(err))
	}
	writeError(w, status, errs.Code(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyProcessed), errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrUpstreamOracle):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
