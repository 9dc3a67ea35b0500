package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithLatencyBuckets([]float64{5, 50}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.feedbackIngested.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_feedback_ingested_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are given they keep defaults", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))
			So(m.namespace, ShouldEqual, "voicebox")
			So(m.subsystem, ShouldEqual, "pipeline")
			So(m.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Counters move by the recorded amount", func() {
			before := testutil.ToFloat64(globalManager.feedbackIngested)
			RecordFeedbackIngested()
			So(testutil.ToFloat64(globalManager.feedbackIngested), ShouldEqual, before+1)

			created := testutil.ToFloat64(globalManager.consolidations.WithLabelValues("created"))
			RecordConsolidation("created")
			So(testutil.ToFloat64(globalManager.consolidations.WithLabelValues("created")), ShouldEqual, created+1)

			accepted := testutil.ToFloat64(globalManager.synthesisOutcomes.WithLabelValues("accepted"))
			rejected := testutil.ToFloat64(globalManager.synthesisOutcomes.WithLabelValues("rejected"))
			RecordSynthesis(2, 3)
			So(testutil.ToFloat64(globalManager.synthesisOutcomes.WithLabelValues("accepted")), ShouldEqual, accepted+2)
			So(testutil.ToFloat64(globalManager.synthesisOutcomes.WithLabelValues("rejected")), ShouldEqual, rejected+3)

			requeued := testutil.ToFloat64(globalManager.queueRequeued)
			RecordQueueRequeue(4)
			So(testutil.ToFloat64(globalManager.queueRequeued), ShouldEqual, requeued+4)
		})

		Convey("Gauges hold the last value", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(3)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
			So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
			So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 3)
		})

		Convey("Histogram and labelled recorders do not panic", func() {
			So(func() {
				RecordTranscription("completed")
				RecordTranscription("failed")
				RecordScoringRun(12.5)
				RecordScoringError()
				RecordOracleLatency("judge", "ok", 800)
				RecordQueueEnqueue("transcribe")
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordWorkerProcessingLatency("score", 40)
				RecordWorkerError("score")
				RecordHTTPRequest("/v1/feedback", "POST", "202")
				RecordHTTPRequestDuration("/v1/feedback", "POST", "202", 3)
				RecordErrorByComponent("pipeline", "upstream_oracle_error")
			}, ShouldNotPanic)
		})

		Convey("The custom registry exposes the pipeline families", func() {
			RecordScoringError()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(strings.Join(names, ","), ShouldContainSubstring, "voicebox_pipeline_scoring_errors_total")
		})
	})
}
