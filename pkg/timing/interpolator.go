package timing

import (
	"math"
	"time"
)

// Phase holds the continuously-interpolated beat/bar position at a render
// tick (C3).
type Phase struct {
	BeatPhase float64
	BarPhase  float64
	Stale     bool
}

// Interpolator runs on the render tick, reading the Clock Estimator's
// current anchor (position, wall time, bpm) and extrapolating continuous
// beat/bar phase from it. It holds no state of its own beyond its clock
// source, per the open-question resolution in spec §9: the Beat event is
// an anchor notification, this is the authoritative continuous phase.
type Interpolator struct {
	estimator *Estimator
	now       func() time.Time
}

// NewInterpolator returns an Interpolator reading from estimator.
func NewInterpolator(estimator *Estimator) *Interpolator {
	return &Interpolator{estimator: estimator, now: time.Now}
}

// At computes the phase law for the current wall-clock instant:
//
//	elapsed_ms = now - last_anchor_wall_time
//	sixteenths = (bpm * 4 / 60000) * elapsed_ms
//	pos        = last_anchor_position + sixteenths
//	beat_phase = (pos / 4) mod 1
//	bar_phase  = (pos / 16) mod 1
func (ip *Interpolator) At(now time.Time) Phase {
	position, anchorTime, bpm := ip.estimator.anchor()

	var elapsedMs float64
	if !anchorTime.IsZero() {
		elapsedMs = float64(now.Sub(anchorTime).Milliseconds())
	}

	sixteenths := (bpm * 4 / 60000) * elapsedMs
	pos := float64(position) + sixteenths

	beatPhase := math.Mod(pos/4, 1)
	if beatPhase < 0 {
		beatPhase += 1
	}
	barPhase := math.Mod(pos/16, 1)
	if barPhase < 0 {
		barPhase += 1
	}

	return Phase{
		BeatPhase: beatPhase,
		BarPhase:  barPhase,
		Stale:     ip.estimator.Snapshot().PositionStale,
	}
}

// Now returns the phase at the current wall-clock instant.
func (ip *Interpolator) Now() Phase {
	return ip.At(ip.now())
}
