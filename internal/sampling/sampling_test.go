package sampling_test

import (
	"testing"
	"time"

	"scanner/internal/sampling"

	. "github.com/smartystreets/goconvey/convey"
)

var (
	thresholdBounds = sampling.Bounds{Base: 600 * time.Second, Min: 300 * time.Second, Max: 900 * time.Second}
	intervalBounds  = sampling.Bounds{Base: 30 * time.Second, Min: 10 * time.Second, Max: 90 * time.Second}
)

func TestSamplingRatio(t *testing.T) {
	Convey("Given sample sizes and online counts", t, func() {
		Convey("When nobody is online the ratio is zero", func() {
			So(sampling.SamplingRatio(5, 0), ShouldEqual, 0)
			So(sampling.SamplingRatio(0, -3), ShouldEqual, 0)
		})

		Convey("When the sample is partial the ratio is the fraction sampled", func() {
			So(sampling.SamplingRatio(12, 48), ShouldEqual, 0.25)
		})

		Convey("When the sample exceeds the online count the ratio is not clamped", func() {
			So(sampling.SamplingRatio(14, 12), ShouldBeGreaterThan, 1)
		})

		Convey("Then the visibility scale never drops below one", func() {
			for online := 1; online <= 20; online++ {
				for sample := online; sample <= 25; sample++ {
					So(sampling.VisibilityScale(sample, online), ShouldEqual, 1)
				}
			}
			So(sampling.VisibilityScale(1, 1_000_000), ShouldAlmostEqual, 1/sampling.MinRatio, 1e-9)
		})
	})
}

func TestAbsenceThreshold(t *testing.T) {
	Convey("Given the default threshold bounds", t, func() {
		Convey("When there is no information it is maximally patient", func() {
			So(sampling.AbsenceThreshold(0, 0, thresholdBounds), ShouldEqual, thresholdBounds.Max)
			So(sampling.AbsenceThreshold(0, 40, thresholdBounds), ShouldEqual, thresholdBounds.Max)
			So(sampling.AbsenceThreshold(5, 0, thresholdBounds), ShouldEqual, thresholdBounds.Max)
		})

		Convey("When a single player is fully visible it returns the base", func() {
			So(sampling.AbsenceThreshold(1, 1, thresholdBounds), ShouldEqual, thresholdBounds.Base)
		})

		Convey("When the server is bigger the threshold grows modestly", func() {
			small := sampling.AbsenceThreshold(5, 5, thresholdBounds)
			large := sampling.AbsenceThreshold(12, 12, thresholdBounds)
			So(large, ShouldBeGreaterThan, small)
			So(large, ShouldBeLessThan, 700*time.Second)
		})

		Convey("When visibility worsens the threshold never decreases", func() {
			const online = 100
			prev := time.Duration(0)
			for sample := online; sample >= 0; sample-- {
				got := sampling.AbsenceThreshold(sample, online, thresholdBounds)
				So(got, ShouldBeGreaterThanOrEqualTo, prev)
				So(got, ShouldBeBetweenOrEqual, thresholdBounds.Min, thresholdBounds.Max)
				prev = got
			}
		})
	})
}

func TestPollInterval(t *testing.T) {
	Convey("Given the default interval bounds", t, func() {
		Convey("When there is no information it polls as slowly as allowed", func() {
			So(sampling.PollInterval(0, 0, intervalBounds), ShouldEqual, intervalBounds.Max)
			So(sampling.PollInterval(0, 12, intervalBounds), ShouldEqual, intervalBounds.Max)
		})

		Convey("When the sample is complete it keeps the base cadence", func() {
			So(sampling.PollInterval(12, 12, intervalBounds), ShouldEqual, intervalBounds.Base)
			So(sampling.PollInterval(14, 12, intervalBounds), ShouldEqual, intervalBounds.Base)
		})

		Convey("When half the players are sampled it polls more often", func() {
			got := sampling.PollInterval(10, 20, intervalBounds)
			So(got, ShouldBeLessThan, intervalBounds.Base)
			So(got, ShouldBeGreaterThanOrEqualTo, intervalBounds.Min)
		})

		Convey("When visibility worsens the interval never grows", func() {
			const online = 100
			prev := intervalBounds.Max
			for sample := online; sample >= 1; sample-- {
				got := sampling.PollInterval(sample, online, intervalBounds)
				So(got, ShouldBeLessThanOrEqualTo, prev)
				So(got, ShouldBeBetweenOrEqual, intervalBounds.Min, intervalBounds.Max)
				prev = got
			}
		})
	})
}

func TestConfidence(t *testing.T) {
	Convey("Given an absence threshold", t, func() {
		threshold := 90 * time.Second

		Convey("Then confidence is 1 with no absence and 0 at the threshold", func() {
			So(sampling.Confidence(0, threshold), ShouldEqual, 1.0)
			So(sampling.Confidence(threshold, threshold), ShouldEqual, 0.0)
			So(sampling.Confidence(2*threshold, threshold), ShouldEqual, 0.0)
		})

		Convey("Then confidence decays monotonically", func() {
			prev := 1.0
			for absence := time.Duration(0); absence <= 2*threshold; absence += 5 * time.Second {
				got := sampling.Confidence(absence, threshold)
				So(got, ShouldBeLessThanOrEqualTo, prev)
				prev = got
			}
		})

		Convey("When the threshold is not positive any absence means zero", func() {
			So(sampling.Confidence(time.Second, 0), ShouldEqual, 0.0)
			So(sampling.Confidence(0, 0), ShouldEqual, 1.0)
		})
	})
}
