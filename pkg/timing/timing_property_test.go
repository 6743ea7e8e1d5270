package timing

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sonetlumiere/vj/pkg/bus"
	"github.com/sonetlumiere/vj/pkg/event"
)

// TestProperty_PhaseLaw verifies the phase law from spec §8: with a
// constant BPM and a fixed anchor (p0, t0), the interpolated phase at any
// t > t0 equals ((p0 + B*4*(t-t0)/60000)/4) mod 1.
func TestProperty_PhaseLaw(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("interpolated phase matches the closed-form law for a fixed anchor", prop.ForAll(
		func(bpm float64, startPos int, elapsedMs int) bool {
			b := bus.New()
			est := NewEstimator(b, "test")

			t0 := time.Unix(0, 0)
			est.mu.Lock()
			est.position = startPos
			est.clockAnchorTime = t0
			est.bpm = bpm
			est.mu.Unlock()

			ip := NewInterpolator(est)
			now := t0.Add(time.Duration(elapsedMs) * time.Millisecond)
			got := ip.At(now)

			pos := float64(startPos) + bpm*4*float64(elapsedMs)/60000
			want := math.Mod(pos/4, 1)
			if want < 0 {
				want += 1
			}

			return math.Abs(got.BeatPhase-want) < 1e-9
		},
		gen.Float64Range(minBPM, maxBPM),
		gen.IntRange(0, 100000),
		gen.IntRange(0, 600000),
	))

	properties.TestingRun(t)
}

// TestProperty_SPPAuthority verifies that receiving an SPP always sets the
// interpolation anchor position to the SPP's position, regardless of what
// the clock-tick path estimated.
func TestProperty_SPPAuthority(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("SPP always resets the anchor position", prop.ForAll(
		func(priorClockTicks int, sppPosition int) bool {
			b := bus.New()
			est := NewEstimator(b, "test")

			base := time.Unix(1000, 0)
			for i := 0; i < priorClockTicks; i++ {
				est.OnClockTick(base.Add(time.Duration(i) * 20 * time.Millisecond))
			}

			est.OnSongPositionPointer(sppPosition, base.Add(time.Hour))

			pos, _, _ := est.anchor()
			return pos == sppPosition
		},
		gen.IntRange(0, 200),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}

// TestClockTickBPMFormula exercises the formula itself: the estimator is
// seeded away from 120 so a wrong formula (or one that is simply never
// invoked, e.g. rejected by the [20,300] clamp) cannot hide behind the
// constructor's default and still pass. It also asserts on the emitted
// BpmUpdate event rather than only the snapshot, so a formula that
// computes the right number but fails to publish still fails the test.
func TestClockTickBPMFormula(t *testing.T) {
	b := bus.New()
	est := NewEstimator(b, "test")
	est.mu.Lock()
	est.bpm = 60
	est.mu.Unlock()

	var gotEvent bool
	var gotBPM float64
	b.Subscribe(event.KindTransport, "test", func(ev event.Event) {
		if ev.TransportState == event.TransportBpmUpdate {
			gotEvent = true
			gotBPM = ev.BPM
		}
	})

	start := time.Unix(0, 0)
	interval := 20833 * time.Microsecond // 120 BPM at 24 ppqn

	// The first tick only anchors the window (it is not itself one of the
	// 24 counted pulses), so 24 counted ticks require 25 total calls.
	est.OnClockTick(start)
	for i := 1; i <= 24; i++ {
		est.OnClockTick(start.Add(time.Duration(i) * interval))
	}

	if !gotEvent {
		t.Fatal("expected a BpmUpdate event from the clock-tick formula")
	}
	if gotBPM < 119 || gotBPM > 121 {
		t.Fatalf("expected ~120 BPM, got %f", gotBPM)
	}

	snap := est.Snapshot()
	if snap.BPM < 119 || snap.BPM > 121 {
		t.Fatalf("expected ~120 BPM, got %f", snap.BPM)
	}
	if snap.SongPositionSixteenths != 4 {
		t.Fatalf("expected position 4 after 24 counted clocks, got %d", snap.SongPositionSixteenths)
	}
}

func TestOutOfRangeBPMIsRejected(t *testing.T) {
	b := bus.New()
	est := NewEstimator(b, "test")

	start := time.Unix(0, 0)
	// A huge interval implies a BPM far below 20; it must not perturb bpm.
	est.OnClockTick(start)
	est.OnClockTick(start.Add(time.Hour))
	for i := 2; i <= 24; i++ {
		est.OnClockTick(start.Add(time.Hour + time.Duration(i)*time.Millisecond))
	}

	snap := est.Snapshot()
	if snap.BPM != 120 {
		t.Fatalf("expected default BPM to survive rejection, got %f", snap.BPM)
	}
}
