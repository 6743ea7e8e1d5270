package voice

import "math"

// Phase is a Voice's envelope phase (§3 Voice.envelope_phase).
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAttack
	PhaseDecay
	PhaseSustain
	PhaseRelease
)

const (
	attackDur  = 0.010 // 10ms, linear 0 -> g
	decayDur   = 0.090 // 90ms, exponential to 0.7g
	sustainDur = 1.900 // 1900ms, exponential to 0.5g, then holds
	releaseDur = 0.300 // 300ms, exponential to near-zero

	// SafetyTimeout is the §4.6 force-release deadline measured from note-on.
	SafetyTimeout = 2.4
)

// decayConstant picks a time constant so expApproach reaches within ~1% of
// target over the given duration (5 time constants).
func decayConstant(duration float64) float64 {
	return duration / 5
}

func expApproach(start, target, elapsed, duration float64) float64 {
	if duration <= 0 {
		return target
	}
	tau := decayConstant(duration)
	return target + (start-target)*math.Exp(-elapsed/tau)
}

// Envelope implements the per-note ADSR shape of spec.md §4.6: linear
// attack, exponential decay to a sustain plateau that itself exponentially
// settles over its first 1.9s, and an exponential release to silence.
type Envelope struct {
	phase        Phase
	peak         float64 // g: target gain at the top of attack
	phaseElapsed float64 // seconds since the current phase started
	levelAtPhase float64 // gain when the current phase began (release anchor)
	totalElapsed float64 // seconds since note-on, for the safety timeout
}

// NewEnvelope returns an idle Envelope.
func NewEnvelope() *Envelope { return &Envelope{phase: PhaseIdle} }

// Trigger starts the attack phase at the given peak gain g.
func (e *Envelope) Trigger(peak float64) {
	e.phase = PhaseAttack
	e.peak = peak
	e.phaseElapsed = 0
	e.levelAtPhase = 0
	e.totalElapsed = 0
}

// Release begins the exponential release from the envelope's current level.
func (e *Envelope) Release(currentLevel float64) {
	if e.phase == PhaseIdle || e.phase == PhaseRelease {
		return
	}
	e.phase = PhaseRelease
	e.levelAtPhase = currentLevel
	e.phaseElapsed = 0
}

// Phase reports the current envelope phase.
func (e *Envelope) Phase() Phase { return e.phase }

// Done reports whether the envelope has reached silence and the voice can
// be reclaimed.
func (e *Envelope) Done() bool { return e.phase == PhaseIdle }

// TotalElapsed reports seconds since Trigger, for the §4.6 safety timeout.
func (e *Envelope) TotalElapsed() float64 { return e.totalElapsed }

// Advance steps the envelope by dt seconds and returns the instantaneous
// gain multiplier.
func (e *Envelope) Advance(dt float64) float64 {
	if e.phase == PhaseIdle {
		return 0
	}

	e.phaseElapsed += dt
	e.totalElapsed += dt

	switch e.phase {
	case PhaseAttack:
		if e.phaseElapsed >= attackDur {
			e.phase = PhaseDecay
			e.levelAtPhase = e.peak
			e.phaseElapsed = 0
			return e.peak
		}
		return e.peak * (e.phaseElapsed / attackDur)

	case PhaseDecay:
		target := 0.7 * e.peak
		if e.phaseElapsed >= decayDur {
			e.phase = PhaseSustain
			e.levelAtPhase = target
			e.phaseElapsed = 0
			return target
		}
		return expApproach(e.levelAtPhase, target, e.phaseElapsed, decayDur)

	case PhaseSustain:
		target := 0.5 * e.peak
		if e.phaseElapsed >= sustainDur {
			return target
		}
		return expApproach(e.levelAtPhase, target, e.phaseElapsed, sustainDur)

	case PhaseRelease:
		if e.phaseElapsed >= releaseDur {
			e.phase = PhaseIdle
			return 0
		}
		return expApproach(e.levelAtPhase, 0, e.phaseElapsed, releaseDur)
	}

	return 0
}
