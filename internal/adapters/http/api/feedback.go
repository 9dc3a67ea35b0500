package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/voicebox/internal/domain/types"
	"github.com/okian/voicebox/internal/pipeline"
)

// FeedbackHandler serves recording submission and the per-feedback stages.
type FeedbackHandler struct {
	deps          FeedbackDependencies
	maxAudioBytes int64
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(deps FeedbackDependencies, maxAudioBytes int64) *FeedbackHandler {
	return &FeedbackHandler{deps: deps, maxAudioBytes: maxAudioBytes}
}

type ingestResponse struct {
	FeedbackID string `json:"feedback_id"`
	Status     string `json:"status"`
}

type decisionResponse struct {
	Action    string       `json:"action"`
	Ticket    types.Ticket `json:"ticket"`
	Reasoning string       `json:"reasoning,omitempty"`
}

// HandleIngest handles POST /v1/feedback multipart uploads.
func (h *FeedbackHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest"
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+formOverheadBytes)
	if err := r.ParseMultipartForm(h.maxAudioBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, errors.New("audio file part is required")))
		return
	}
	defer func() { _ = file.Close() }()

	duration, err := parseDuration(r.FormValue("duration"))
	if err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}

	id, err := h.deps.Ingest(r.Context(), pipeline.Submission{
		Audio:           file,
		Filename:        header.Filename,
		ClientID:        strings.TrimSpace(r.FormValue("client_id")),
		SessionID:       strings.TrimSpace(r.FormValue("session_id")),
		PageURL:         r.FormValue("page_url"),
		DurationSeconds: duration,
	})
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{FeedbackID: id, Status: "pending"})
}

// maxDurationSeconds is one day; longer recordings are client bugs.
const maxDurationSeconds = 24 * 60 * 60

// parseDuration accepts whole or fractional seconds; empty means zero.
func parseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("duration must be a number of seconds")
	}
	if f < 0 || f > maxDurationSeconds {
		return 0, fmt.Errorf("duration must be between 0 and %d seconds", maxDurationSeconds)
	}
	return int(math.Round(f)), nil
}

// HandleGet handles GET /v1/feedback/{id}.
func (h *FeedbackHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	f, err := h.deps.GetFeedback(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(r.Context(), w, Wrap("api.get_feedback", err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromFeedback(f))
}

// HandleConsolidate handles POST /v1/feedback/{id}/consolidate.
func (h *FeedbackHandler) HandleConsolidate(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Consolidate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(r.Context(), w, Wrap("api.consolidate", err))
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{
		Action:    string(d.Action),
		Ticket:    types.FromTicket(d.Ticket),
		Reasoning: d.Reasoning,
	})
}

// HandleReprocess handles POST /v1/feedback/{id}/reprocess.
func (h *FeedbackHandler) HandleReprocess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.deps.Reprocess(r.Context(), id); err != nil {
		writeFailure(r.Context(), w, Wrap("api.reprocess", err))
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{FeedbackID: id, Status: "pending"})
}
