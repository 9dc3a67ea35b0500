package pipeline_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/internal/pipeline"
)

func TestScoreTicket(t *testing.T) {
	Convey("Given a ticket with linked feedback", t, func() {
		h := newHarness(t)
		ctx := context.Background()
		tk := h.ticket(t, "acme", model.TicketNew)
		id := h.analyzed(t, "acme")
		So(h.store.LinkFeedback(ctx, id, tk.ID), ShouldBeNil)

		Convey("Scoring stores the formula output of the clamped judgments", func() {
			h.oracles.judgments = scoring.Judgments{
				Demand:            ptr(14.0),
				Differentiation:   ptr(6.0),
				Value:             ptr(8.0),
				Implementation:    ptr(0.0),
				EnterpriseBlocker: ptr(true),
				EffortHours:       ptr(16.0),
				AIInsight:         "Strong repeated demand.",
			}

			scored, err := h.svc.ScoreTicket(ctx, tk.ID)
			So(err, ShouldBeNil)

			stored, err := h.store.GetTicket(ctx, tk.ID)
			So(err, ShouldBeNil)
			card := stored.Scores
			So(card.Scored(), ShouldBeTrue)
			So(card.LastScoredAt.Equal(fixedNow), ShouldBeTrue)
			So(card.Demand, ShouldEqual, 10)
			So(card.Implementation, ShouldEqual, 1)
			So(card.StrategicFit, ShouldEqual, 5)
			So(card.EnterpriseBlocker, ShouldBeTrue)
			So(*card.EffortHours, ShouldEqual, 16)
			So(card.AIInsight, ShouldEqual, "Strong repeated demand.")

			want := scoring.Compute(h.oracles.judgments.Resolve())
			So(card.Traditional, ShouldEqual, want.Traditional)
			So(card.DifferentiationScore, ShouldEqual, want.DifferentiationScore)
			So(card.GrayAreaScore, ShouldEqual, want.GrayAreaScore)
			So(card.QuickWinScore, ShouldEqual, want.QuickWinScore)
			So(card.EnterpriseScore, ShouldEqual, want.EnterpriseScore)
			So(card.ViralScore, ShouldEqual, want.ViralScore)
			So(scoring.Consistent(card), ShouldBeTrue)
			So(scored.Scores.Traditional, ShouldEqual, card.Traditional)
		})

		Convey("An oracle failure leaves the card untouched", func() {
			h.oracles.judgeErr = errors.New("bad json")
			_, err := h.svc.ScoreTicket(ctx, tk.ID)
			So(err, ShouldWrap, errs.ErrUpstreamOracle)

			stored, _ := h.store.GetTicket(ctx, tk.ID)
			So(stored.Scores, ShouldBeNil)
		})

		Convey("An unknown ticket is not found", func() {
			_, err := h.svc.ScoreTicket(ctx, "missing")
			So(err, ShouldWrap, errs.ErrNotFound)
		})
	})
}

func TestScoreAll(t *testing.T) {
	Convey("Given a client with three tickets", t, func() {
		h := newHarness(t)
		ctx := context.Background()
		ids := []string{
			h.ticket(t, "acme", model.TicketNew).ID,
			h.ticket(t, "acme", model.TicketPlanned).ID,
			h.ticket(t, "acme", model.TicketShipped).ID,
		}

		Convey("All are attempted in the background and scored", func() {
			reqCtx, cancel := context.WithCancel(ctx)
			n, err := h.svc.ScoreAll(reqCtx, "acme")
			cancel() // the request ending must not stop the batch
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)

			h.svc.Wait()
			for _, id := range ids {
				tk, err := h.store.GetTicket(ctx, id)
				So(err, ShouldBeNil)
				So(tk.Scores.Scored(), ShouldBeTrue)
			}
		})

		Convey("Per-ticket failures are not aggregated", func() {
			h.oracles.judgeErr = errors.New("down")
			n, err := h.svc.ScoreAll(ctx, "acme")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
			h.svc.Wait()
			_, _, judges, _ := h.oracles.calls()
			So(judges, ShouldEqual, 3)
		})

		Convey("A client without tickets attempts nothing", func() {
			n, err := h.svc.ScoreAll(ctx, "globex")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("Without a judge the batch is refused", func() {
			bare, _ := pipeline.New(pipeline.Deps{Store: h.store, Blobs: h.blobs, Queue: h.queue})
			_, err := bare.ScoreAll(ctx, "acme")
			So(err, ShouldWrap, errs.ErrConfiguration)
		})
	})
}
