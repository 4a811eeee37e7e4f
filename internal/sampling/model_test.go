package sampling_test

import (
	"testing"
	"time"

	"scanner/internal/sampling"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given the default params", t, func() {
		params := sampling.DefaultParams()

		Convey("When an unknown model is requested", func() {
			_, err := sampling.New("quadratic", params)
			So(err, ShouldNotBeNil)
		})

		Convey("When no model is named the adaptive model is used", func() {
			m, err := sampling.New("", params)
			So(err, ShouldBeNil)
			So(m, ShouldHaveSameTypeAs, &sampling.Adaptive{})
		})

		Convey("Then every model handles degenerate input", func() {
			for _, name := range []string{sampling.ADAPTIVE, sampling.STEPPED, sampling.FIXED} {
				m, err := sampling.New(name, params)
				So(err, ShouldBeNil)
				So(m.AbsenceThreshold(0, 0), ShouldBeGreaterThan, 0)
				So(m.PollInterval(0, 0), ShouldBeGreaterThan, 0)
			}
		})
	})
}

func TestAdaptive(t *testing.T) {
	Convey("Given an adaptive model with default params", t, func() {
		m := sampling.NewAdaptive(sampling.DefaultParams())

		Convey("Then it matches the package functions", func() {
			So(m.AbsenceThreshold(12, 48), ShouldEqual, sampling.AbsenceThreshold(12, 48, thresholdBounds))
			So(m.PollInterval(12, 48), ShouldEqual, sampling.PollInterval(12, 48, intervalBounds))
		})

		Convey("When twelve of a hundred and twenty players are sampled", func() {
			So(m.AbsenceThreshold(12, 120), ShouldEqual, 900*time.Second)
			So(m.PollInterval(12, 120), ShouldEqual, 10*time.Second)
		})
	})
}

func TestStepped(t *testing.T) {
	Convey("Given a stepped model with default params", t, func() {
		m, err := sampling.New(sampling.STEPPED, sampling.DefaultParams())
		So(err, ShouldBeNil)

		Convey("When the sample is complete", func() {
			So(m.AbsenceThreshold(10, 10), ShouldEqual, 600*time.Second)
			So(m.PollInterval(10, 10), ShouldEqual, 30*time.Second)
		})

		Convey("When half the players are sampled", func() {
			So(m.AbsenceThreshold(10, 20), ShouldEqual, 660*time.Second)
			So(m.PollInterval(10, 20), ShouldEqual, 15*time.Second)
		})

		Convey("When twelve of a hundred players are sampled", func() {
			So(m.AbsenceThreshold(12, 100), ShouldEqual, 660*time.Second)
			So(m.PollInterval(12, 100), ShouldEqual, 10*time.Second)
		})

		Convey("When the scaled interval lands on a half second", func() {
			// 30s * 0.75 = 22.5s rounds half to even
			So(m.PollInterval(15, 20), ShouldEqual, 22*time.Second)
		})

		Convey("When nothing is known", func() {
			So(m.AbsenceThreshold(0, 0), ShouldEqual, 900*time.Second)
			So(m.PollInterval(0, 0), ShouldEqual, 90*time.Second)
		})
	})
}

func TestFixed(t *testing.T) {
	Convey("Given a fixed model", t, func() {
		m := &sampling.Fixed{Threshold: 90 * time.Second, Interval: 10 * time.Second}

		Convey("Then sample quality is ignored", func() {
			So(m.AbsenceThreshold(0, 0), ShouldEqual, 90*time.Second)
			So(m.AbsenceThreshold(3, 200), ShouldEqual, 90*time.Second)
			So(m.PollInterval(3, 200), ShouldEqual, 10*time.Second)
		})
	})
}
