package render

import "github.com/sonetlumiere/vj/pkg/event"

// ThreeD fronts the external 3D scene-preset library (an out-of-scope
// external collaborator per spec.md's Non-goals — "the specific 3D scene
// preset bodies" are not implemented here). LoadLibrary models the
// asynchronous bring-up of that collaborator; Initialise/Start/Stop and
// the On* hooks are thin forwarding points a real integration would fill
// in with calls into the hosted preset runtime.
type ThreeD struct {
	loaded  bool
	running bool
	width   int
	height  int
}

// NewThreeD returns an unstarted ThreeD backend.
func NewThreeD() *ThreeD {
	return &ThreeD{}
}

// LoadLibrary stands in for fetching and initialising the external 3D
// preset runtime (§4.8's Preset Library Loader exercises this path).
func (t *ThreeD) LoadLibrary() error {
	t.loaded = true
	return nil
}

func (t *ThreeD) Initialise() error { return nil }

func (t *ThreeD) Start() error {
	t.running = true
	return nil
}

func (t *ThreeD) Stop() error {
	t.running = false
	return nil
}

func (t *ThreeD) Dispose() error { return nil }

func (t *ThreeD) Resize(w, h int) { t.width, t.height = w, h }

func (t *ThreeD) OnBeat(phase, intensity float64)      {}
func (t *ThreeD) OnNote(note, velocity, channel int)   {}
func (t *ThreeD) OnControl(id int, value float64)      {}
func (t *ThreeD) OnFrequency(bands event.Bands, rms float64) {}

// LoadPreset accepts any handle and returns nil; no preset is applied.
func (t *ThreeD) LoadPreset(handle any) error {
	return nil
}
