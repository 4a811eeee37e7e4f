package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"scanner/internal/model"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it owns a private registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Registry(), ShouldNotBeNil)
			})
		})

		Convey("When creating two managers on separate registries", func() {
			So(func() {
				NewManager(WithRegistry(prometheus.NewRegistry()))
				NewManager(WithRegistry(prometheus.NewRegistry()))
			}, ShouldNotPanic)
		})

		Convey("When registering twice on the same registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithRegistry(registry))

			So(func() { NewManager(WithRegistry(registry)) }, ShouldPanic)
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager", t, func() {
		m := NewManager(WithNamespace("test"), WithHistogramBuckets([]float64{0.1, 1}))

		Convey("Events are counted per kind", func() {
			m.EventEmitted(model.PLAYER_JOIN)
			m.EventEmitted(model.PLAYER_JOIN)
			m.EventEmitted(model.NEW_PLAYER)

			So(testutil.ToFloat64(m.eventsEmitted.WithLabelValues("PLAYER_JOIN")), ShouldEqual, 2)
			So(testutil.ToFloat64(m.eventsEmitted.WithLabelValues("NEW_PLAYER")), ShouldEqual, 1)
		})

		Convey("Sessions and store errors are counted", func() {
			m.SessionRecorded()
			m.SessionSkipped()
			m.SessionSkipped()
			m.StoreError()

			So(testutil.ToFloat64(m.sessionsStored), ShouldEqual, 1)
			So(testutil.ToFloat64(m.sessionsSkipped), ShouldEqual, 2)
			So(testutil.ToFloat64(m.storeErrors), ShouldEqual, 1)
		})

		Convey("A completed tick sets the gauges", func() {
			m.TickCompleted(3, 12, 0.25, 20*time.Second, 15*time.Minute)

			So(testutil.ToFloat64(m.ticks), ShouldEqual, 1)
			So(testutil.ToFloat64(m.trackedPlayers), ShouldEqual, 3)
			So(testutil.ToFloat64(m.onlinePlayers), ShouldEqual, 12)
			So(testutil.ToFloat64(m.sampleRatio), ShouldEqual, 0.25)
			So(testutil.ToFloat64(m.pollInterval), ShouldEqual, 20)
			So(testutil.ToFloat64(m.absenceThreshold), ShouldEqual, 900)

			m.TrackedPlayers(0)
			So(testutil.ToFloat64(m.trackedPlayers), ShouldEqual, 0)
		})

		Convey("Only failed queries count as provider failures", func() {
			m.QueryObserved(50*time.Millisecond, nil)
			m.QueryObserved(2*time.Second, errors.New("timeout"))

			So(testutil.ToFloat64(m.providerFailures), ShouldEqual, 1)
			So(testutil.CollectAndCount(m.queryDuration), ShouldEqual, 1)
		})

		Convey("The handler exposes the registry", func() {
			m.HTTPRequest("/online", http.MethodGet, "200", 3*time.Millisecond)

			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			body := rec.Body.String()
			So(body, ShouldContainSubstring, `test_http_requests_total{method="GET",route="/online",status_code="200"} 1`)
			So(strings.Contains(body, "go_goroutines"), ShouldBeTrue)
		})
	})
}
