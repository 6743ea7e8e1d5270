package render

import (
	"fmt"
	"sync"

	"github.com/sonetlumiere/vj/pkg/analyser"
)

// MilkdropPresetCount is the stand-in preset library size used to convert
// a CC-1 value into a preset index (§4.9: "map value·N to load_preset").
const MilkdropPresetCount = 64

// Milkdrop fronts the external music-visualiser library (Non-goals: "the
// external music-visualiser library" is out of scope). It is the one
// backend that consumes the analyser directly (AudioConnector) rather
// than per-frame band events; like ThreeD, its first activation goes
// through the Preset Library Loader (C8).
type Milkdrop struct {
	mu sync.Mutex

	loaded  bool
	running bool
	width   int
	height  int

	presetIndex int
	source      analyser.Source
}

// NewMilkdrop returns an unstarted Milkdrop backend.
func NewMilkdrop() *Milkdrop {
	return &Milkdrop{}
}

// LoadLibrary stands in for fetching the external visualiser's WASM/JS
// bundle. A real integration plugs the library's loader here; the
// multiplexer's Loader wraps it with idempotence and retry-after-failure.
func (m *Milkdrop) LoadLibrary() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = true
	return nil
}

func (m *Milkdrop) Initialise() error { return nil }

func (m *Milkdrop) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

func (m *Milkdrop) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *Milkdrop) Dispose() error {
	return m.Disconnect()
}

func (m *Milkdrop) Resize(w, h int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.width, m.height = w, h
}

// ConnectAudio wires the live analyser source Milkdrop consumes directly,
// per §4.9's audio routing policy (coordinator picks voice-tap vs
// microphone and calls this on every switch).
func (m *Milkdrop) ConnectAudio(src analyser.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = src
	return nil
}

func (m *Milkdrop) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = nil
	return nil
}

// OnBeat, OnNote, OnControl are no-ops: Milkdrop reacts to the audio
// signal it consumes directly rather than to discrete bus events, except
// for preset selection which arrives via LoadPreset.
func (m *Milkdrop) OnBeat(phase, intensity float64)    {}
func (m *Milkdrop) OnNote(note, velocity, channel int) {}
func (m *Milkdrop) OnControl(id int, value float64)    {}

// LoadPreset accepts either an int index directly or a float in [0, 1)
// scaled by MilkdropPresetCount (the CC-1 routing case of §4.9).
func (m *Milkdrop) LoadPreset(handle any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch v := handle.(type) {
	case int:
		m.presetIndex = clampPresetIndex(v)
	case float64:
		m.presetIndex = clampPresetIndex(int(v * float64(MilkdropPresetCount)))
	default:
		return fmt.Errorf("render: milkdrop preset handle must be int or float64, got %T", handle)
	}
	return nil
}

// NextPreset and PrevPreset back the SysEx 0x10/0x11 and OSC
// /preset/milkdrop/{next,prev} commands (§4.11, §6.4).
func (m *Milkdrop) NextPreset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presetIndex = (m.presetIndex + 1) % MilkdropPresetCount
}

func (m *Milkdrop) PrevPreset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presetIndex = (m.presetIndex - 1 + MilkdropPresetCount) % MilkdropPresetCount
}

func (m *Milkdrop) PresetIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presetIndex
}

func clampPresetIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i >= MilkdropPresetCount {
		return MilkdropPresetCount - 1
	}
	return i
}
