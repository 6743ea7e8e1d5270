package voice

import (
	"sync/atomic"
	"time"

	"github.com/sonetlumiere/vj/pkg/event"
)

// PoolSize is the fixed voice-pool cardinality (§3).
const PoolSize = 8

// MasterGainCC is the CC number that sets master gain (§4.6 handle_cc).
const MasterGainCC = 7

// Engine is the Polyphonic Voice Engine (C6). Its Enqueue side runs on the
// bus/coordinator goroutine; Process runs on the audio callback. Process
// takes no locks and does no I/O, and drains commands into a preallocated
// scratch buffer, but it allocates a fresh output buffer on every call.
type Engine struct {
	sampleRate float64
	queue      *Queue

	slots [PoolSize]*slot
	kick  *kick

	masterGain float64 // set via CC7, default 1.0 pre-CC
	audible    atomic.Bool

	// deadlines tracks, per slot index, the generation a safety-
	// timeout deadline was armed for plus its deadline; checked at the top
	// of Process rather than via a system timer (§9 "Timer-based cleanup").
	deadlines [PoolSize]deadline

	cmdBuf []Command // audio-thread-owned scratch space for Queue.Drain

	tap *Tap // created by NewEngine; analyser reads through this
}

type deadline struct {
	generation uint64
	at         time.Time
	armed      bool
}

// NewEngine returns an Engine sized for sampleRate, with the speaker leg
// muted until SetAudible(true) or a command enables it.
func NewEngine(sampleRate float64) *Engine {
	e := &Engine{
		sampleRate: sampleRate,
		queue:      NewQueue(),
		kick:       newKick(sampleRate),
		masterGain: 1.0,
		cmdBuf:     make([]Command, 0, ringSize),
	}
	for i := range e.slots {
		e.slots[i] = newSlot(sampleRate)
	}
	e.tap = NewTap(e)
	return e
}

// Queue exposes the SPSC command queue so the coordinator/bus can enqueue
// note/control/beat commands without touching Engine state directly.
func (e *Engine) Queue() *Queue { return e.queue }

// EnqueueEvent translates a bus Event into a voice Command and enqueues it.
// Events the voice engine does not act on are ignored.
func (e *Engine) EnqueueEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindNote:
		if ev.Velocity > 0 {
			e.queue.Enqueue(Command{Kind: CmdNoteOn, Note: ev.Note, Velocity: ev.Velocity})
		} else {
			e.queue.Enqueue(Command{Kind: CmdNoteOff, Note: ev.Note})
		}
	case event.KindControl:
		e.queue.Enqueue(Command{Kind: CmdControl, ControlID: ev.ControlID, Value: ev.ControlValue})
	case event.KindBeat:
		e.queue.Enqueue(Command{Kind: CmdBeat, Value: ev.Intensity})
	}
}

// SetAudible enqueues a speaker-routing command; the analyser tap always
// receives signal regardless of this setting (§4.6 set_audible).
func (e *Engine) SetAudible(on bool) {
	e.queue.Enqueue(Command{Kind: CmdSetAudible, Audible: on})
}

// Process drains pending commands, advances every active voice and the
// kick oscillator by frameCount samples, and returns the mixed mono PCM
// buffer. It is the Engine's one audio-thread entry point.
func (e *Engine) Process(frameCount int) []float32 {
	pending := e.queue.Drain(e.cmdBuf[:0])
	for _, cmd := range pending {
		e.apply(cmd)
	}

	now := nowFunc()
	for i := range e.slots {
		d := &e.deadlines[i]
		if d.armed && d.generation == e.slots[i].generation && now.Sub(d.at) >= 0 {
			e.slots[i].forceRelease(d.generation)
			d.armed = false
		}
	}

	dt := 1.0 / e.sampleRate
	out := make([]float32, frameCount)
	for i := 0; i < frameCount; i++ {
		var mix float64
		for _, s := range e.slots {
			mix += s.advance(dt)
		}
		mix += e.kick.advance(dt)
		mix *= e.masterGain
		out[i] = float32(clampSample(mix))
	}
	return out
}

func clampSample(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// nowFunc is a var so tests can fake elapsed time for safety-timeout checks.
var nowFunc = time.Now

func (e *Engine) apply(cmd Command) {
	switch cmd.Kind {
	case CmdNoteOn:
		e.noteOn(cmd.Note, cmd.Velocity)
	case CmdNoteOff:
		e.noteOff(cmd.Note)
	case CmdControl:
		e.handleControl(cmd.ControlID, cmd.Value)
	case CmdBeat:
		e.kick.trigger(cmd.Value)
	case CmdSetAudible:
		e.audible.Store(cmd.Audible)
	}
}

// handleControl applies CC7 master-gain (§4.6 handle_cc). normalisedValue
// is already (v/127) by the time it reaches the bus (pkg/midi normalises
// CC values on decode), so the formula collapses to normalisedValue*0.5.
func (e *Engine) handleControl(id int, normalisedValue float64) {
	if id != MasterGainCC {
		return
	}
	e.masterGain = normalisedValue * 0.5
}

// noteOn selects the first idle voice; if the pool is full it steals slot 0
// unconditionally, matching spec.md's boundary behaviour ("the 9th
// concurrent note-on steals voice 0; the 10th steals what is now voice 0").
func (e *Engine) noteOn(note, velocity int) {
	idx := -1
	for i, s := range e.slots {
		if !s.active {
			idx = i
			break
		}
	}
	if idx == -1 {
		idx = 0
	}

	now := nowFunc()
	gen := e.slots[idx].assign(note, velocity, now)
	e.deadlines[idx] = deadline{generation: gen, at: now.Add(time.Duration(SafetyTimeout * float64(time.Second))), armed: true}
}

// noteOff releases the active voice holding note, if any.
func (e *Engine) noteOff(note int) {
	for _, s := range e.slots {
		if s.active && s.note == note {
			s.release(note)
			return
		}
	}
}

// Audible reports the current speaker-routing state.
func (e *Engine) Audible() bool { return e.audible.Load() }

// Tap returns the Engine's analyser.Source tap (§4.9, §6.2). The analyser
// receives signal regardless of Audible, per §4.6 set_audible.
func (e *Engine) Tap() *Tap { return e.tap }
