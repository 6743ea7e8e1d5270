package voice

import "sync"

// Tap implements the Audio source contract (§6.2) against the voice
// engine's own synthesised signal, so Milkdrop-style renderers (and the
// Frequency Analyser in general) can consume live-synth audio the same way
// they consume a microphone feed (§4.9's "prefer voice engine's analyser if
// MIDI source selected").
type Tap struct {
	mu      sync.Mutex
	engine  *Engine
	frames  chan []float32
	running bool
}

// NewTap returns a Tap reading from engine. Connect starts forwarding
// Engine.Process output (pulled on demand by the caller via Push) into the
// channel Frames() exposes.
func NewTap(engine *Engine) *Tap {
	return &Tap{engine: engine}
}

// Connect implements analyser.Source. deviceID is unused: the tap has a
// single, fixed source (the voice engine).
func (t *Tap) Connect(string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	t.frames = make(chan []float32, 32)
	t.running = true
	return nil
}

// Disconnect implements analyser.Source.
func (t *Tap) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.running = false
	close(t.frames)
	return nil
}

// Frames implements analyser.Source.
func (t *Tap) Frames() <-chan []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// SampleRate implements analyser.Source.
func (t *Tap) SampleRate() float64 { return t.engine.sampleRate }

// Push forwards a buffer produced by Engine.Process to the tap's Frames
// channel, dropping it (never blocking) if the analyser is not keeping up.
// Called from the same audio-callback goroutine that calls Process.
func (t *Tap) Push(buf []float32) {
	t.mu.Lock()
	frames := t.frames
	running := t.running
	t.mu.Unlock()

	if !running {
		return
	}
	select {
	case frames <- buf:
	default:
	}
}
