// Package timing implements the Clock Estimator (C2) and Phase Interpolator
// (C3): dual independent BPM estimation from MIDI clock pulses and Song
// Position Pointer deltas, a monotonic song-position counter, and
// continuous beat/bar phase interpolation between discrete MIDI updates.
package timing

import (
	"math"
	"sync"
	"time"

	"github.com/sonetlumiere/vj/pkg/bus"
	"github.com/sonetlumiere/vj/pkg/event"
)

const (
	minBPM = 20
	maxBPM = 300

	pulsesPerQuarter   = 24
	pulsesPerSixteenth = 6

	sppRingSize = 8

	staleAfter = 5 * time.Second
)

// State is a read-only snapshot of the Clock Estimator's timing state (§3
// Timing State), safe to read without holding the estimator's lock.
type State struct {
	BPM                     float64
	SongPositionSixteenths  int
	IsPlaying               bool
	LastClockInstant        time.Time
	LastSPPInstant          time.Time
	PositionStale           bool
}

// Estimator owns the Timing State described in spec §3 and publishes Beat
// and Transport(BpmUpdate) events to the bus as clock pulses and Song
// Position Pointer messages arrive.
type Estimator struct {
	mu sync.Mutex

	bus    *bus.Bus
	source string

	bpm       float64
	position  int // song_position_sixteenths
	isPlaying bool

	clockAnchorTime time.Time
	pulsesInWindow  int
	sixteenthPulses int

	lastClockInstant time.Time
	lastSPPInstant   time.Time
	lastSPPPosition  int

	sppRing    [sppRingSize]float64
	sppRingLen int
	sppRingPos int

	now func() time.Time
}

// NewEstimator returns an Estimator that publishes to b under the given
// source name.
func NewEstimator(b *bus.Bus, source string) *Estimator {
	return &Estimator{
		bus:    b,
		source: source,
		bpm:    120,
		now:    time.Now,
	}
}

// OnClockTick handles a single MIDI clock pulse (0xF8), implementing the
// sixteenth-note Beat cadence and the 24-pulse clock-tick BPM path.
func (e *Estimator) OnClockTick(now time.Time) {
	e.mu.Lock()

	if e.clockAnchorTime.IsZero() {
		// This pulse only anchors the first BPM window; it is not itself
		// counted, so the window still spans a full 24-pulse interval once
		// the 24th subsequent pulse arrives (otherwise the first window
		// would measure only 23 intervals and its BPM would read high).
		e.clockAnchorTime = now
		e.lastClockInstant = now
		e.mu.Unlock()
		return
	}

	e.lastClockInstant = now
	e.pulsesInWindow++
	e.sixteenthPulses++

	var beatEv event.Event
	emitBeat := false
	if e.sixteenthPulses >= pulsesPerSixteenth {
		e.sixteenthPulses = 0
		e.position++
		phase := math.Mod(float64(e.position)/4, 1)
		beatEv = event.Beat(e.source, phase, 1.0)
		emitBeat = true
	}

	var bpmEv event.Event
	emitBPM := false
	if e.pulsesInWindow >= pulsesPerQuarter {
		elapsed := now.Sub(e.clockAnchorTime)
		e.clockAnchorTime = now
		e.pulsesInWindow = 0

		if elapsed > 0 {
			bpm := math.Round(60000 / float64(elapsed.Milliseconds()))
			if bpm >= minBPM && bpm <= maxBPM {
				e.bpm = bpm
				bpmEv = event.TransportWithBPM(e.source, bpm)
				emitBPM = true
			}
		}
	}

	e.mu.Unlock()

	if emitBeat {
		e.bus.Publish(beatEv)
	}
	if emitBPM {
		e.bus.Publish(bpmEv)
	}
}

// OnSongPositionPointer handles an SPP message (0xF2). SPP always resets
// the position counter authoritatively; it additionally feeds the
// independent SPP-delta BPM path.
func (e *Estimator) OnSongPositionPointer(position int, now time.Time) {
	e.mu.Lock()

	e.position = position

	var publish float64
	shouldPublish := false

	if !e.lastSPPInstant.IsZero() {
		deltaPos := position - e.lastSPPPosition
		deltaT := now.Sub(e.lastSPPInstant)

		if deltaPos > 0 && deltaT > 100*time.Millisecond && deltaT < 5000*time.Millisecond {
			sample := math.Round((float64(deltaPos) / 4) / (float64(deltaT.Milliseconds()) / 60000))
			e.pushSPPSample(sample)

			mean := e.sppRingMean()
			if math.Abs(mean-e.bpm) >= 2 {
				publish = mean
				shouldPublish = true
			}
		}
	}

	e.lastSPPPosition = position
	e.lastSPPInstant = now

	// Any SPP resets the interpolation anchor: the next phase read derives
	// from this position and wall time (I2).
	e.clockAnchorTime = now
	e.sixteenthPulses = 0

	if shouldPublish && publish >= minBPM && publish <= maxBPM {
		e.bpm = publish
	} else {
		shouldPublish = false
	}

	bpm := e.bpm
	e.mu.Unlock()

	if shouldPublish {
		e.bus.Publish(event.TransportWithBPM(e.source, bpm))
	}
}

func (e *Estimator) pushSPPSample(sample float64) {
	e.sppRing[e.sppRingPos] = sample
	e.sppRingPos = (e.sppRingPos + 1) % sppRingSize
	if e.sppRingLen < sppRingSize {
		e.sppRingLen++
	}
}

func (e *Estimator) sppRingMean() float64 {
	if e.sppRingLen == 0 {
		return e.bpm
	}
	var sum float64
	for i := 0; i < e.sppRingLen; i++ {
		sum += e.sppRing[i]
	}
	return sum / float64(e.sppRingLen)
}

// OnStart handles MIDI Start (0xFA): resets position to 0 and marks playing.
func (e *Estimator) OnStart(now time.Time) {
	e.mu.Lock()
	e.position = 0
	e.isPlaying = true
	e.clockAnchorTime = now
	e.pulsesInWindow = 0
	e.sixteenthPulses = 0
	e.mu.Unlock()
}

// OnContinue handles MIDI Continue (0xFB): resumes without resetting position.
func (e *Estimator) OnContinue(now time.Time) {
	e.mu.Lock()
	e.isPlaying = true
	e.clockAnchorTime = now
	e.mu.Unlock()
}

// OnStop handles MIDI Stop (0xFC): clears is_playing, preserves position.
func (e *Estimator) OnStop() {
	e.mu.Lock()
	e.isPlaying = false
	e.mu.Unlock()
}

// Snapshot returns the current Timing State, including whether the
// interpolator's position should be considered stale (no SPP for > 5s).
func (e *Estimator) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	stale := false
	if e.lastSPPInstant.IsZero() {
		stale = false // no SPP ever received is not itself "stale"; it's "never positioned"
	} else if e.now().Sub(e.lastSPPInstant) > staleAfter {
		stale = true
	}

	return State{
		BPM:                    e.bpm,
		SongPositionSixteenths: e.position,
		IsPlaying:              e.isPlaying,
		LastClockInstant:       e.lastClockInstant,
		LastSPPInstant:         e.lastSPPInstant,
		PositionStale:          stale,
	}
}

// anchor returns the position/wall-time pair the Phase Interpolator should
// use as its current anchor.
func (e *Estimator) anchor() (position int, at time.Time, bpm float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position, e.clockAnchorTime, e.bpm
}
