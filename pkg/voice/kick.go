package voice

const (
	kickSweepDur = 0.100 // 150Hz -> 40Hz over 100ms
	kickDecayDur = 0.200 // amplitude decays to near-zero over 200ms
	kickStartHz  = 150.0
	kickEndHz    = 40.0
)

// kick is the dedicated beat-triggered drum oscillator of §4.6
// handle_beat: a sine with a pitch sweep and an independent exponential
// amplitude decay, retriggerable on every Beat event.
type kick struct {
	osc     *Oscillator
	active  bool
	elapsed float64
	amp0    float64 // 2.0*intensity at trigger
}

func newKick(sampleRate float64) *kick {
	return &kick{osc: NewOscillator(WaveSine, sampleRate)}
}

// trigger restarts the sweep/decay from t=0 at the given beat intensity.
func (k *kick) trigger(intensity float64) {
	k.active = true
	k.elapsed = 0
	k.amp0 = 2.0 * intensity
	k.osc.Reset()
	k.osc.SetFrequency(kickStartHz)
}

func (k *kick) advance(dt float64) float64 {
	if !k.active {
		return 0
	}
	k.elapsed += dt

	if k.elapsed >= kickDecayDur {
		k.active = false
		return 0
	}

	sweepT := k.elapsed / kickSweepDur
	if sweepT > 1 {
		sweepT = 1
	}
	freq := kickStartHz + (kickEndHz-kickStartHz)*sweepT
	k.osc.SetFrequency(freq)

	amp := expApproach(k.amp0, 0, k.elapsed, kickDecayDur)
	return k.osc.Sample() * amp
}
