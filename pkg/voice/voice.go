package voice

import "time"

// slot is one member of the 8-voice pool (§3 Voice). generation is bumped
// every time the slot is assigned to a note; it is the identity a pending
// safety-timeout deadline is checked against, so a voice stolen and
// reassigned before its old deadline fires is not torn down by that stale
// deadline (the "voice-steal safety" law of spec.md §8).
type slot struct {
	generation uint64
	note       int
	active     bool

	main   *Oscillator // sawtooth
	detune *Oscillator // detuned square
	sub    *Oscillator // sub-octave sine
	env    *Envelope

	gain       float64 // g = (velocity/127)*0.6
	assignedAt time.Time
}

func newSlot(sampleRate float64) *slot {
	return &slot{
		main:   NewOscillator(WaveSawtooth, sampleRate),
		detune: NewOscillator(WaveSquare, sampleRate),
		sub:    NewOscillator(WaveSine, sampleRate),
		env:    NewEnvelope(),
	}
}

// assign (re)configures the slot for note/velocity, bumping its generation
// so any pending safety-timeout deadline recorded under the prior
// generation becomes a no-op (I3, the voice-steal safety law).
func (s *slot) assign(note, velocity int, now time.Time) uint64 {
	s.generation++
	s.note = note
	s.active = true
	s.assignedAt = now

	freq := NoteFrequency(note)
	s.main.SetFrequency(freq)
	s.main.Reset()
	s.detune.SetFrequency(freq * 1.005)
	s.detune.Reset()
	s.sub.SetFrequency(freq * 0.5)
	s.sub.Reset()

	s.gain = (float64(velocity) / 127.0) * 0.6
	s.env.Trigger(s.gain)

	return s.generation
}

// release begins the slot's release envelope if it is currently holding
// note. A no-op if the slot has since been reassigned to a different note.
func (s *slot) release(note int) {
	if !s.active || s.note != note {
		return
	}
	s.env.Release(s.currentLevel())
}

// forceRelease begins release only if the slot is still at generation gen,
// i.e. it has not been stolen and reassigned since the deadline was set.
func (s *slot) forceRelease(gen uint64) {
	if s.generation != gen || !s.active {
		return
	}
	s.env.Release(s.currentLevel())
}

func (s *slot) currentLevel() float64 {
	switch s.env.Phase() {
	case PhaseSustain:
		return 0.5 * s.gain
	case PhaseDecay:
		return 0.7 * s.gain
	default:
		return s.gain
	}
}

// advance steps the slot's envelope and oscillators by one sample and
// returns its contribution to the mix. Reclaims the slot (active=false)
// once the envelope reaches silence (I3: no half-state survives).
func (s *slot) advance(dt float64) float64 {
	if !s.active {
		return 0
	}
	g := s.env.Advance(dt)
	if s.env.Done() {
		s.active = false
		return 0
	}
	sample := s.main.Sample() + s.detune.Sample() + s.sub.Sample()
	return (sample / 3) * g
}
