// Package render implements the Renderer Multiplexer (C7) and Preset
// Library Loader (C8): exclusive active-renderer policy over a small set
// of backend variants, with idempotent on-demand library activation.
package render

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sonetlumiere/vj/pkg/analyser"
	"github.com/sonetlumiere/vj/pkg/event"
)

// Kind identifies one of the renderer variants of §3 Renderer State.
type Kind int

const (
	KindBuiltin Kind = iota
	KindThreeD
	KindMilkdrop
	KindVideo
	KindBlank
)

func (k Kind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindThreeD:
		return "threed"
	case KindMilkdrop:
		return "milkdrop"
	case KindVideo:
		return "video"
	case KindBlank:
		return "blank"
	default:
		return "unknown"
	}
}

// ParseKind maps a renderer name (as used by §6.4 OSC /preset/mode and the
// §4.11 switchMode command) to a Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "builtin":
		return KindBuiltin, true
	case "threejs", "threed":
		return KindThreeD, true
	case "milkdrop":
		return KindMilkdrop, true
	case "video":
		return KindVideo, true
	case "blank":
		return KindBlank, true
	default:
		return KindBlank, false
	}
}

// Backend is the renderer backend contract of spec.md §6.1. Every variant
// (builtin scenes, the 3D preset host, Milkdrop, video, blank) implements
// this surface; the multiplexer never depends on a concrete type.
type Backend interface {
	Initialise() error
	Start() error
	Stop() error
	Resize(w, h int)
	OnBeat(phase, intensity float64)
	OnNote(note, velocity, channel int)
	OnControl(id int, value float64)
	Dispose() error
}

// FrequencyConsumer is the optional on_frequency leg of §6.1, implemented
// by backends that react to band-energy events directly (Builtin, ThreeD
// and Video; Milkdrop instead implements AudioConnector, and Blank
// implements neither).
type FrequencyConsumer interface {
	OnFrequency(bands event.Bands, rms float64)
}

// AudioConnector is the optional connect_audio leg of §6.1, implemented by
// backends (Milkdrop) that need a live analyser rather than per-frame band
// events.
type AudioConnector interface {
	ConnectAudio(src analyser.Source) error
}

// PresetLoader is the optional load_preset leg of §6.1.
type PresetLoader interface {
	LoadPreset(handle any) error
}

// Drawer is implemented by backends that paint directly onto the host
// canvas via ebiten (Builtin). Backends that own an external surface
// (Video, a hosted 3D canvas) may leave this unimplemented; the
// multiplexer only calls Draw when the active backend provides it.
type Drawer interface {
	Draw(screen *ebiten.Image)
}

// LibraryLoadable is implemented by backends whose first activation
// requires loading external assets (§4.8 Preset Library Loader). Backends
// without a library (Builtin, Blank) do not implement this and are
// activated directly.
type LibraryLoadable interface {
	LoadLibrary() error
}

// PhaseConsumer is the optional continuous-phase leg fed by the Phase
// Interpolator (C3) on every render tick, distinct from the discrete
// on_beat pulse: beatPhase/barPhase extrapolate position between MIDI
// clock ticks so a backend can animate smoothly even when ticks arrive
// sparsely; stale reports the Clock Estimator's own staleness verdict.
type PhaseConsumer interface {
	OnPhase(beatPhase, barPhase float64, stale bool)
}
