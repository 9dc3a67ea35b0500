package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/voicebox/internal/adapters/http/api"
	"github.com/okian/voicebox/internal/adapters/repository"
	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/internal/pipeline"
	"github.com/okian/voicebox/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

// mockDependencies records calls and returns canned results.
type mockDependencies struct {
	err error

	submission  pipeline.Submission
	audio       string
	newTicket   pipeline.NewTicket
	patch       model.TicketPatch
	statuses    []model.TicketStatus
	framework   scoring.Framework
	limit       int
	tickets     []model.Ticket
	ranking     []scoring.Entry
	synthesized []*model.Ticket
}

func (m *mockDependencies) Ingest(_ context.Context, sub pipeline.Submission) (string, error) {
	m.submission = sub
	if sub.Audio != nil {
		b, _ := io.ReadAll(sub.Audio)
		m.audio = string(b)
	}
	return "fb-1", m.err
}

func (m *mockDependencies) GetFeedback(_ context.Context, id string) (*model.Feedback, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.Feedback{ID: id, ClientID: "acme", Status: model.FeedbackCompleted}, nil
}

func (m *mockDependencies) Reprocess(context.Context, string) error { return m.err }

func (m *mockDependencies) Consolidate(_ context.Context, id string) (*pipeline.Decision, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &pipeline.Decision{
		Action:    pipeline.ActionCreated,
		Ticket:    &model.Ticket{ID: "t-1", ClientID: "acme", Title: "Dark mode", Status: model.TicketNew, FeedbackCount: 1},
		Reasoning: "new request from " + id,
	}, nil
}

func (m *mockDependencies) CreateTicket(_ context.Context, in pipeline.NewTicket) (*model.Ticket, error) {
	m.newTicket = in
	if m.err != nil {
		return nil, m.err
	}
	return &model.Ticket{ID: "t-1", ClientID: in.ClientID, Title: in.Title, Status: model.TicketNew}, nil
}

func (m *mockDependencies) GetTicket(_ context.Context, id string) (*model.Ticket, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.Ticket{ID: id, Status: model.TicketPlanned}, nil
}

func (m *mockDependencies) ListTickets(_ context.Context, _ string, statuses ...model.TicketStatus) ([]model.Ticket, error) {
	m.statuses = statuses
	return m.tickets, m.err
}

func (m *mockDependencies) UpdateTicket(_ context.Context, id string, patch model.TicketPatch) (*model.Ticket, error) {
	m.patch = patch
	if m.err != nil {
		return nil, m.err
	}
	t := &model.Ticket{ID: id, Status: model.TicketNew}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	return t, nil
}

func (m *mockDependencies) DeleteTicket(context.Context, string) error { return m.err }

func (m *mockDependencies) RecountFeedback(context.Context, string) (int, error) { return 4, m.err }

func (m *mockDependencies) ScoreTicket(_ context.Context, id string) (*model.Ticket, error) {
	if m.err != nil {
		return nil, m.err
	}
	now := time.Now()
	return &model.Ticket{ID: id, Scores: &model.ScoreCard{Traditional: 7.5, LastScoredAt: &now}}, nil
}

func (m *mockDependencies) ScoreAll(context.Context, string) (int, error) { return 3, m.err }

func (m *mockDependencies) Synthesize(context.Context, string) (*pipeline.SynthesisResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &pipeline.SynthesisResult{Generated: len(m.synthesized), Tickets: m.synthesized}, nil
}

func (m *mockDependencies) Ranking(_ context.Context, _ string, f scoring.Framework, limit int) ([]scoring.Entry, error) {
	m.framework, m.limit = f, limit
	return m.ranking, m.err
}

type mockStatsProvider struct {
	stats map[string]any
	err   error
}

func (m *mockStatsProvider) Stats(context.Context) (map[string]any, error) {
	return m.stats, m.err
}

func newMux(deps *mockDependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}, opts...).Register(context.Background(), mux)
	return mux
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func uploadRequest(fields map[string]string, audio string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if audio != "" {
		part, _ := mw.CreateFormFile("audio", "clip.webm")
		_, _ = part.Write([]byte(audio))
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("Then health and metrics are served", func() {
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code, ShouldEqual, http.StatusOK)
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code, ShouldEqual, http.StatusOK)
		})

		Convey("And stats are JSON", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/stats", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("And every response carries a request id", func() {
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set(api.RequestIDHeader, "req-42")
			So(serve(mux, req).Header().Get(api.RequestIDHeader), ShouldEqual, "req-42")
		})

		Convey("And unknown paths and wrong methods are rejected", func() {
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/unknown", nil)).Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/v1/feedback", nil)).Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given a nil mux", t, func() {
		server := api.NewServer(&mockDependencies{}, &mockStatsProvider{})
		So(func() { server.Register(context.Background(), nil) }, ShouldPanic)
	})
}

func TestFeedbackRoutes(t *testing.T) {
	Convey("Given the feedback routes", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps, api.WithMaxAudioBytes(64))

		Convey("A multipart upload is accepted", func() {
			w := serve(mux, uploadRequest(map[string]string{
				"client_id":  "acme",
				"session_id": "sess-1",
				"page_url":   "https://example.com",
				"duration":   "12.6",
			}, "RIFF-audio"))

			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(decode(w)["feedback_id"], ShouldEqual, "fb-1")
			So(deps.submission.ClientID, ShouldEqual, "acme")
			So(deps.submission.SessionID, ShouldEqual, "sess-1")
			So(deps.submission.Filename, ShouldEqual, "clip.webm")
			So(deps.submission.DurationSeconds, ShouldEqual, 13)
			So(deps.audio, ShouldEqual, "RIFF-audio")
		})

		Convey("A missing audio part is a bad request", func() {
			w := serve(mux, uploadRequest(map[string]string{"client_id": "acme"}, ""))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "validation_error")
		})

		Convey("A malformed duration is a bad request", func() {
			w := serve(mux, uploadRequest(map[string]string{"duration": "soon"}, "x"))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An out of range duration is refused before ingestion", func() {
			for _, d := range []string{"1e30", "-1e30", "-3", "86401"} {
				w := serve(mux, uploadRequest(map[string]string{"duration": d}, "x"))
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["message"], ShouldContainSubstring, "between 0 and 86400")
			}
			So(deps.submission.ClientID, ShouldBeEmpty)
		})

		Convey("An oversized upload is refused", func() {
			w := serve(mux, uploadRequest(nil, strings.Repeat("a", 2<<20)))
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
		})

		Convey("Validation errors from ingestion map to 400", func() {
			deps.err = errs.Errorf("ingest", errs.ErrValidation, "client_id is required")
			w := serve(mux, uploadRequest(nil, "x"))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldContainSubstring, "client_id is required")
		})

		Convey("Consolidation returns the decision", func() {
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/v1/feedback/fb-9/consolidate", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["action"], ShouldEqual, "created")
			So(body["reasoning"], ShouldEqual, "new request from fb-9")
			So(body["ticket"].(map[string]any)["feedback_count"], ShouldEqual, 1)
		})

		Convey("Kinded failures map to their status codes", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{repository.ErrFeedbackNotFound, http.StatusNotFound, "not_found"},
				{repository.ErrAlreadyLinked, http.StatusConflict, "already_processed"},
				{errs.E("consolidate", errs.ErrUpstreamOracle), http.StatusBadGateway, "upstream_oracle_error"},
				{errs.E("consolidate", errs.ErrConfiguration), http.StatusServiceUnavailable, "configuration_error"},
				{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal_error"},
			}
			for _, c := range cases {
				deps.err = c.err
				w := serve(mux, httptest.NewRequest(http.MethodPost, "/v1/feedback/fb-1/consolidate", nil))
				So(w.Code, ShouldEqual, c.status)
				So(decode(w)["code"], ShouldEqual, c.code)
			}
		})

		Convey("Fetching and reprocessing use the path id", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/v1/feedback/fb-7", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["id"], ShouldEqual, "fb-7")

			w = serve(mux, httptest.NewRequest(http.MethodPost, "/v1/feedback/fb-7/reprocess", nil))
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(decode(w)["status"], ShouldEqual, "pending")
		})
	})
}

func TestTicketRoutes(t *testing.T) {
	Convey("Given the ticket routes", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Creating takes the client from the path", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/clients/acme/tickets",
				strings.NewReader(`{"title":"SSO","priority":"High","is_public":true}`))
			w := serve(mux, req)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.newTicket.ClientID, ShouldEqual, "acme")
			So(deps.newTicket.Priority, ShouldEqual, "high")
			So(deps.newTicket.IsPublic, ShouldBeTrue)
		})

		Convey("Malformed JSON is a bad request", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/clients/acme/tickets", strings.NewReader(`{`))
			So(serve(mux, req).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Listing splits status filters", func() {
			deps.tickets = []model.Ticket{{ID: "a"}, {ID: "b"}}
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/v1/clients/acme/tickets?status=new,Planned&status=shipped", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.statuses, ShouldResemble, []model.TicketStatus{model.TicketNew, model.TicketPlanned, model.TicketShipped})

			var out []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			So(out, ShouldHaveLength, 2)
		})

		Convey("Patching passes only the sent fields", func() {
			req := httptest.NewRequest(http.MethodPatch, "/v1/tickets/t-1", strings.NewReader(`{"status":"shipped"}`))
			w := serve(mux, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(*deps.patch.Status, ShouldEqual, model.TicketShipped)
			So(deps.patch.Priority, ShouldBeNil)
			So(deps.patch.IsPublic, ShouldBeNil)
			So(decode(w)["status"], ShouldEqual, "shipped")
		})

		Convey("An illegal transition is a conflict", func() {
			deps.err = errs.E("update_ticket", errs.ErrConflict)
			req := httptest.NewRequest(http.MethodPatch, "/v1/tickets/t-1", strings.NewReader(`{"status":"new"}`))
			So(serve(mux, req).Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Delete, recount and score", func() {
			So(serve(mux, httptest.NewRequest(http.MethodDelete, "/v1/tickets/t-1", nil)).Code, ShouldEqual, http.StatusNoContent)

			w := serve(mux, httptest.NewRequest(http.MethodPost, "/v1/tickets/t-1/recount", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["feedback_count"], ShouldEqual, 4)

			w = serve(mux, httptest.NewRequest(http.MethodPost, "/v1/tickets/t-1/score", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["scores"].(map[string]any)["traditional"], ShouldEqual, 7.5)
		})

		Convey("A missing ticket is 404", func() {
			deps.err = repository.ErrTicketNotFound
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/v1/tickets/nope", nil)).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestClientRoutes(t *testing.T) {
	Convey("Given the client routes", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps, api.WithMaxRankingLimit(10))

		Convey("Batch scoring answers before the work completes", func() {
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/v1/clients/acme/score", nil))
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(decode(w)["attempted"], ShouldEqual, 3)
		})

		Convey("Synthesis lists the generated tickets", func() {
			deps.synthesized = []*model.Ticket{{ID: "g-1", AIGenerated: true}}
			w := serve(mux, httptest.NewRequest(http.MethodPost, "/v1/clients/acme/synthesize", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["generated"], ShouldEqual, 1)
			So(body["tickets"], ShouldHaveLength, 1)
		})

		Convey("Ranking defaults to traditional and the maximum limit", func() {
			deps.ranking = []scoring.Entry{{Rank: 1, Score: 8.2, Ticket: &model.Ticket{ID: "t-1", Title: "SSO"}}}
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/v1/clients/acme/ranking", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.framework, ShouldEqual, scoring.FrameworkTraditional)
			So(deps.limit, ShouldEqual, 10)

			body := decode(w)
			So(body["framework"], ShouldEqual, "traditional")
			entry := body["entries"].([]any)[0].(map[string]any)
			So(entry["ticket_id"], ShouldEqual, "t-1")
			So(entry["score"], ShouldEqual, 8.2)
		})

		Convey("Ranking validates framework and limit", func() {
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/v1/clients/acme/ranking?framework=vibes", nil)).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/v1/clients/acme/ranking?limit=0", nil)).Code, ShouldEqual, http.StatusBadRequest)

			w := serve(mux, httptest.NewRequest(http.MethodGet, "/v1/clients/acme/ranking?limit=11", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "limit_exceeded")

			w = serve(mux, httptest.NewRequest(http.MethodGet, "/v1/clients/acme/ranking?framework=quick_win&limit=5", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.framework, ShouldEqual, scoring.FrameworkQuickWin)
			So(deps.limit, ShouldEqual, 5)
		})
	})
}
