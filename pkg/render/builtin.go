package render

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"github.com/sonetlumiere/vj/pkg/event"
)

// SceneCount is the number of builtin scenes, addressed by Note 60-63
// (§4.9) or SysEx switchScene (§6.3).
const SceneCount = 4

var sceneColors = [SceneCount]color.RGBA{
	{0x1F, 0x7E, 0x7F, 0xff}, // scene 0: teal
	{0x7F, 0x2A, 0x3E, 0xff}, // scene 1: wine
	{0x2A, 0x3E, 0x7F, 0xff}, // scene 2: indigo
	{0x3E, 0x7F, 0x2A, 0xff}, // scene 3: moss
}

// Builtin is the always-available, dependency-free renderer variant: a
// handful of beat-reactive scenes drawn directly with ebiten/vector. It
// requires no library load, so it does not implement LibraryLoadable.
type Builtin struct {
	width, height int
	scene         int

	pulse    float64 // decays each frame, kicked by a beat
	bands    event.Bands
	rms      float64
	lastNote int

	beatPhase float64 // continuous position from the Phase Interpolator
	phaseLive bool    // false until the first OnPhase call, to avoid a spurious ring at phase 0
}

// NewBuiltin returns an unstarted Builtin renderer on scene 0.
func NewBuiltin() *Builtin {
	return &Builtin{}
}

func (b *Builtin) Initialise() error { return nil }
func (b *Builtin) Start() error      { return nil }
func (b *Builtin) Stop() error       { return nil }
func (b *Builtin) Dispose() error    { return nil }

func (b *Builtin) Resize(w, h int) {
	b.width, b.height = w, h
}

// OnBeat kicks the scene's pulse; the draw loop decays it each frame
// rather than here, since Builtin has no frame ticker of its own.
func (b *Builtin) OnBeat(phase, intensity float64) {
	b.pulse = intensity
}

// OnNote selects the scene when a note in [60, 63] arrives directly (the
// coordinator normally does this switch itself per §4.9, but Builtin also
// honours it if wired to receive raw Note events).
func (b *Builtin) OnNote(note, velocity, channel int) {
	b.lastNote = note
	if note >= 60 && note < 60+SceneCount {
		b.scene = note - 60
	}
}

func (b *Builtin) OnControl(id int, value float64) {}

// OnFrequency stores the latest band energies for the scene draw.
func (b *Builtin) OnFrequency(bands event.Bands, rms float64) {
	b.bands = bands
	b.rms = rms
}

// OnPhase stores the continuously-interpolated beat position driving the
// orbiting tick mark, independent of the discrete pulse kicked by OnBeat.
func (b *Builtin) OnPhase(beatPhase, barPhase float64, stale bool) {
	b.beatPhase = beatPhase
	b.phaseLive = !stale
}

// SetScene switches scenes directly (SysEx 0x03 and the control channel's
// switchScene/rendererSelect commands route here through the coordinator).
func (b *Builtin) SetScene(scene int) {
	if scene < 0 {
		scene = 0
	}
	if scene >= SceneCount {
		scene = SceneCount - 1
	}
	b.scene = scene
}

func (b *Builtin) Scene() int { return b.scene }

// Draw paints the active scene: a pulsing disc sized by beat intensity and
// RMS, with bar-chart band bars across the bottom.
func (b *Builtin) Draw(screen *ebiten.Image) {
	if b.width == 0 || b.height == 0 {
		return
	}
	screen.Fill(sceneColors[b.scene])

	b.pulse *= 0.9 // frame-rate-coupled decay, matches ~60fps draw cadence

	cx, cy := float32(b.width)/2, float32(b.height)/2
	radius := float32(40) + float32(b.pulse)*float32(b.width)/6 + float32(b.rms)*float32(b.width)/10
	vector.DrawFilledCircle(screen, cx, cy, radius, highlightColor, false)

	if b.phaseLive {
		angle := b.beatPhase * 2 * math.Pi
		tickRadius := radius + 12
		tx := cx + tickRadius*float32(math.Cos(float64(angle)))
		ty := cy + tickRadius*float32(math.Sin(float64(angle)))
		vector.DrawFilledCircle(screen, tx, ty, 4, sceneColors[(b.scene+1)%SceneCount], false)
	}

	barW := float32(b.width) / 3
	bandValues := [3]float64{b.bands.Bass, b.bands.Mid, b.bands.High}
	for i, v := range bandValues {
		barH := float32(v) * float32(b.height) / 2
		x := float32(i) * barW
		vector.DrawFilledRect(screen, x, float32(b.height)-barH, barW-2, barH, bandColors[i], false)
	}

	text.Draw(screen, sceneLabel(b.scene), basicfont.Face7x13, 8, 16, color.White)
}

var bandColors = [3]color.RGBA{
	{0xff, 0x55, 0x55, 0xc0}, // bass
	{0x55, 0xff, 0x55, 0xc0}, // mid
	{0x55, 0x55, 0xff, 0xc0}, // high
}

var highlightColor = color.RGBA{255, 255, 255, 200}

func sceneLabel(scene int) string {
	switch scene {
	case 0:
		return "scene 0"
	case 1:
		return "scene 1"
	case 2:
		return "scene 2"
	case 3:
		return "scene 3"
	default:
		return "scene ?"
	}
}
