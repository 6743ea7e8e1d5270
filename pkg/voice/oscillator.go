// Package voice implements the Polyphonic Voice Engine (C6): an 8-voice
// synthesiser driven by MIDI note/velocity/control events, feeding both the
// Frequency Analyser (via Tap) and an optional speaker output leg.
package voice

import "math"

// Waveform selects an Oscillator's generator function.
type Waveform int

const (
	WaveSawtooth Waveform = iota
	WaveSquare
	WaveSine
)

// Oscillator generates one of the three waveforms a Voice is built from
// (§4.6: main sawtooth, detuned square, sub-octave sine), plus the kick
// drum's dedicated sine sweep.
type Oscillator struct {
	Wave       Waveform
	Frequency  float64
	SampleRate float64
	phase      float64
}

// NewOscillator returns an Oscillator of the given wave at zero frequency.
func NewOscillator(wave Waveform, sampleRate float64) *Oscillator {
	return &Oscillator{Wave: wave, SampleRate: sampleRate}
}

// SetFrequency changes the oscillator frequency without resetting phase, so
// frequency sweeps (e.g. the kick's pitch envelope) stay continuous.
func (o *Oscillator) SetFrequency(freq float64) {
	o.Frequency = freq
}

// Reset zeros the phase accumulator.
func (o *Oscillator) Reset() {
	o.phase = 0
}

// Sample advances the phase by one sample period and returns the next
// waveform value in [-1, 1].
func (o *Oscillator) Sample() float64 {
	if o.Frequency <= 0 || o.SampleRate <= 0 {
		return 0
	}

	o.phase += o.Frequency / o.SampleRate
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}

	switch o.Wave {
	case WaveSquare:
		if o.phase < 0.5 {
			return 1
		}
		return -1
	case WaveSine:
		return math.Sin(2 * math.Pi * o.phase)
	default: // WaveSawtooth
		return 2*o.phase - 1
	}
}

// NoteFrequency converts a MIDI note number to frequency: 440*2^((note-69)/12).
func NoteFrequency(note int) float64 {
	return 440.0 * math.Pow(2.0, float64(note-69)/12.0)
}
