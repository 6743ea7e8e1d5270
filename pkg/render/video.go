package render

import "github.com/sonetlumiere/vj/pkg/event"

// Video fronts the camera-capture renderer, listed among spec.md's
// Non-goals ("the camera capture renderer" is an external collaborator).
// It models a passthrough canvas whose content is supplied by the host;
// its beat, note, control and frequency hooks do nothing.
type Video struct {
	running bool
	width   int
	height  int
}

// NewVideo returns an unstarted Video backend.
func NewVideo() *Video {
	return &Video{}
}

func (v *Video) Initialise() error { return nil }

func (v *Video) Start() error {
	v.running = true
	return nil
}

func (v *Video) Stop() error {
	v.running = false
	return nil
}

func (v *Video) Dispose() error { return nil }

func (v *Video) Resize(w, h int) { v.width, v.height = w, h }

func (v *Video) OnBeat(phase, intensity float64)      {}
func (v *Video) OnNote(note, velocity, channel int)   {}
func (v *Video) OnControl(id int, value float64)      {}
func (v *Video) OnFrequency(bands event.Bands, rms float64) {}
