package render

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sonetlumiere/vj/pkg/analyser"
	"github.com/sonetlumiere/vj/pkg/event"
	"github.com/sonetlumiere/vj/pkg/logger"
)

// Canvas is the per-Kind visibility/size record of §3 Renderer State.
// Invariant I4: across every Canvas owned by a Multiplexer, at most one has
// Visible == true.
type Canvas struct {
	Kind    Kind
	Visible bool
	Width   int
	Height  int
}

// Multiplexer is the Renderer Multiplexer (C7): it owns exclusive-canvas
// policy across the renderer variants and the Preset Library Loader (C8)
// used to bring a variant online the first time it is selected.
type Multiplexer struct {
	mu sync.Mutex

	active    Kind
	hasActive bool

	backends    map[Kind]Backend
	initialised map[Kind]bool
	canvases    map[Kind]*Canvas

	loader *Loader

	width, height int

	audioSource analyser.Source

	onStateChange func(active Kind)
}

// New returns a Multiplexer with no backends registered; call Register for
// each variant the host supports before the first Switch.
func New() *Multiplexer {
	return &Multiplexer{
		backends:    make(map[Kind]Backend),
		initialised: make(map[Kind]bool),
		canvases:    make(map[Kind]*Canvas),
		loader:      NewLoader(),
		width:       1280,
		height:      720,
	}
}

// Register adds a backend under kind. Backends are constructed once by the
// caller (possibly lazily outside the multiplexer) and handed over here;
// Multiplexer only calls Initialise on first Switch to that kind.
func (m *Multiplexer) Register(kind Kind, backend Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[kind] = backend
	m.canvases[kind] = &Canvas{Kind: kind}
}

// OnStateChange installs a callback invoked after every successful Switch,
// for the application to relay a stateUpdate over the control channel.
func (m *Multiplexer) OnStateChange(fn func(active Kind)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// SetAudioSource records the current audio source so a newly-activated
// backend implementing AudioConnector is wired to it immediately (§4.9
// Milkdrop audio routing).
func (m *Multiplexer) SetAudioSource(src analyser.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioSource = src
	if m.hasActive {
		if connector, ok := m.backends[m.active].(AudioConnector); ok {
			if err := connector.ConnectAudio(src); err != nil {
				logger.GetLogger().Warn("render: connect audio to active backend failed", "kind", m.active, "error", err)
			}
		}
	}
}

// Backend returns the registered backend for kind, for callers (the
// coordinator) that need to reach a concrete backend's extra methods
// (e.g. Builtin.SetScene, Milkdrop.NextPreset) beyond the Backend
// contract.
func (m *Multiplexer) Backend(kind Kind) (Backend, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backends[kind]
	return b, ok
}

// Active reports the currently active Kind and whether any backend has
// ever been activated.
func (m *Multiplexer) Active() (Kind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.hasActive
}

// Resize sets the host viewport used to size a backend's canvas on
// activation, and resizes the currently active backend immediately.
func (m *Multiplexer) Resize(w, h int) {
	m.mu.Lock()
	m.width, m.height = w, h
	active, hasActive := m.active, m.hasActive
	var backend Backend
	if hasActive {
		backend = m.backends[active]
		m.canvases[active].Width = w
		m.canvases[active].Height = h
	}
	m.mu.Unlock()

	if backend != nil {
		backend.Resize(w, h)
	}
}

// Switch implements §4.7's five-step procedure: load the target's library
// if needed, stop every running renderer and hide its canvas, show and
// size the target canvas, construct it if this is its first activation,
// start it, connect the current audio source if applicable, and emit a
// state update. On any failure the previous renderer is left running
// (I4 holds across failure too).
func (m *Multiplexer) Switch(kind Kind) error {
	m.mu.Lock()
	backend, ok := m.backends[kind]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("render: no backend registered for %s", kind)
	}
	width, height := m.width, m.height
	prevKind, hadActive := m.active, m.hasActive
	var prevBackend Backend
	if hadActive {
		prevBackend = m.backends[prevKind]
	}
	alreadyInitialised := m.initialised[kind]
	src := m.audioSource
	m.mu.Unlock()

	if loadable, ok := backend.(LibraryLoadable); ok {
		if err := m.loader.Load(kind, loadable.LoadLibrary); err != nil {
			logger.GetLogger().Error("render: library load failed, keeping previous renderer", "kind", kind, "error", err)
			return fmt.Errorf("render: load library for %s: %w", kind, err)
		}
	}

	if hadActive && prevKind != kind {
		prevBackend.Stop()
		m.mu.Lock()
		m.canvases[prevKind].Visible = false
		m.mu.Unlock()
	}

	if !alreadyInitialised {
		if err := backend.Initialise(); err != nil {
			logger.GetLogger().Error("render: initialise failed, keeping previous renderer", "kind", kind, "error", err)
			if hadActive && prevKind != kind {
				prevBackend.Start()
				m.mu.Lock()
				m.canvases[prevKind].Visible = true
				m.mu.Unlock()
			}
			return fmt.Errorf("render: initialise %s: %w", kind, err)
		}
		m.mu.Lock()
		m.initialised[kind] = true
		m.mu.Unlock()
	}

	backend.Resize(width, height)

	if connector, ok := backend.(AudioConnector); ok && src != nil {
		if err := connector.ConnectAudio(src); err != nil {
			logger.GetLogger().Warn("render: connect audio failed", "kind", kind, "error", err)
		}
	}

	backend.Start()

	m.mu.Lock()
	m.canvases[kind].Visible = true
	m.canvases[kind].Width = width
	m.canvases[kind].Height = height
	m.active = kind
	m.hasActive = true
	cb := m.onStateChange
	m.mu.Unlock()

	if cb != nil {
		cb(kind)
	}
	return nil
}

// Dispatch forwards a bus Event to the active backend per §4.9's
// event-kind → action table (the coordinator calls the more specific
// On* methods directly for cases needing extra policy, e.g. builtin scene
// switching on Note 60-63; Dispatch covers the remaining passthrough).
func (m *Multiplexer) Dispatch(ev event.Event) {
	m.mu.Lock()
	if !m.hasActive {
		m.mu.Unlock()
		return
	}
	backend := m.backends[m.active]
	active := m.active
	m.mu.Unlock()

	switch ev.Kind {
	case event.KindBeat:
		backend.OnBeat(ev.Phase, ev.Intensity)
	case event.KindNote:
		backend.OnNote(ev.Note, ev.Velocity, ev.Channel)
	case event.KindControl:
		backend.OnControl(ev.ControlID, ev.ControlValue)
	case event.KindFrequency:
		if active == KindMilkdrop {
			return // Milkdrop consumes the analyser directly via ConnectAudio.
		}
		if consumer, ok := backend.(FrequencyConsumer); ok {
			consumer.OnFrequency(ev.FreqBands, ev.RMS)
		}
	}
}

// OnPhase forwards the Phase Interpolator's render-tick reading to the
// active backend, if it implements PhaseConsumer.
func (m *Multiplexer) OnPhase(beatPhase, barPhase float64, stale bool) {
	m.mu.Lock()
	if !m.hasActive {
		m.mu.Unlock()
		return
	}
	backend := m.backends[m.active]
	m.mu.Unlock()

	if consumer, ok := backend.(PhaseConsumer); ok {
		consumer.OnPhase(beatPhase, barPhase, stale)
	}
}

// Draw paints the active backend's canvas, if it implements Drawer.
func (m *Multiplexer) Draw(screen *ebiten.Image) {
	m.mu.Lock()
	if !m.hasActive {
		m.mu.Unlock()
		return
	}
	backend := m.backends[m.active]
	m.mu.Unlock()

	if drawer, ok := backend.(Drawer); ok {
		drawer.Draw(screen)
	}
}

// Canvases returns a snapshot of every registered canvas's visibility
// state, for diagnostics / invariant testing.
func (m *Multiplexer) Canvases() map[Kind]Canvas {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Kind]Canvas, len(m.canvases))
	for k, c := range m.canvases {
		out[k] = *c
	}
	return out
}

// LoadPreset forwards to the active backend's PresetLoader, if any.
func (m *Multiplexer) LoadPreset(handle any) error {
	m.mu.Lock()
	if !m.hasActive {
		m.mu.Unlock()
		return fmt.Errorf("render: no active renderer")
	}
	backend := m.backends[m.active]
	m.mu.Unlock()

	loader, ok := backend.(PresetLoader)
	if !ok {
		return fmt.Errorf("render: active renderer does not support preset loading")
	}
	return loader.LoadPreset(handle)
}
