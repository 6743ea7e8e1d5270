// Package host implements the Host/Graphics Adaptor (C13): mobile-class
// detection and optimal-settings publication, plus the ebiten.Game glue
// that drives the render tick and reacts to graphics-context loss.
package host

import (
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sonetlumiere/vj/pkg/logger"
	"github.com/sonetlumiere/vj/pkg/render"
	"github.com/sonetlumiere/vj/pkg/timing"
)

// OptimalSettings is the §4.13 `optimal_settings` publication: parameters
// the rest of the engine should scale to the host's class.
type OptimalSettings struct {
	PixelRatio    float64
	FFTSize       int
	ParticleCount int
	Quality       string // "low", "medium", "high"
}

// desktopSettings and mobileSettings are the two profiles §4.13
// distinguishes between; there is no runtime mobile-detection hook in
// ebiten's desktop build, so the caller passes the Class to New explicitly
// (the application passes ClassDesktop).
var (
	desktopSettings = OptimalSettings{PixelRatio: 1.0, FFTSize: 4096, ParticleCount: 2000, Quality: "high"}
	mobileSettings  = OptimalSettings{PixelRatio: 2.0, FFTSize: 1024, ParticleCount: 400, Quality: "low"}
)

// Class is the host device class §4.13 detects between.
type Class int

const (
	ClassDesktop Class = iota
	ClassMobile
)

// OptimalSettingsFor returns the published settings for class.
func OptimalSettingsFor(class Class) OptimalSettings {
	if class == ClassMobile {
		return mobileSettings
	}
	return desktopSettings
}

// ContextEvent is a graphics-context lifecycle notification a host
// embedder (e.g. a browser shell wrapping a WebGL canvas) delivers to
// Adaptor. Desktop ebiten never loses its GL context, so this channel
// typically stays empty on that target; it exists for embedders that do
// observe the underlying loss/restore signal.
type ContextEvent int

const (
	ContextLost ContextEvent = iota
	ContextRestored
)

// Adaptor is the ebiten.Game implementation driving the active renderer's
// tick. It owns window sizing, the optimal-settings profile, and
// context-loss/restore handling.
type Adaptor struct {
	mux    *render.Multiplexer
	class  Class
	width  int
	height int

	interpolator *timing.Interpolator

	contextEvents chan ContextEvent
	lost          bool

	shutdown atomic.Bool
}

// New returns an Adaptor driving mux at the given class's profile.
func New(mux *render.Multiplexer, class Class) *Adaptor {
	return &Adaptor{
		mux:           mux,
		class:         class,
		width:         1280,
		height:        720,
		contextEvents: make(chan ContextEvent, 4),
	}
}

// Settings returns the currently published optimal settings.
func (a *Adaptor) Settings() OptimalSettings {
	return OptimalSettingsFor(a.class)
}

// SetInterpolator attaches the Phase Interpolator (C3) this Adaptor polls
// once per render tick and forwards to the active backend's PhaseConsumer.
func (a *Adaptor) SetInterpolator(ip *timing.Interpolator) {
	a.interpolator = ip
}

// NotifyContextEvent is called by a host embedder that observes the
// underlying graphics context being lost or restored.
func (a *Adaptor) NotifyContextEvent(ev ContextEvent) {
	select {
	case a.contextEvents <- ev:
	default: // drop rather than block a host callback thread
	}
}

// RequestShutdown tells the next Update to return ebiten.Termination,
// stopping ebiten.RunGame cleanly. Safe to call from another goroutine
// (e.g. a signal-driven context cancellation).
func (a *Adaptor) RequestShutdown() {
	a.shutdown.Store(true)
}

// Update implements ebiten.Game. It drains pending context events (stop
// on loss, reinitialise-and-restart on restore) before anything else, per
// §4.13.
func (a *Adaptor) Update() error {
	if a.shutdown.Load() {
		return ebiten.Termination
	}

	a.drainContextEvents()

	if a.interpolator != nil {
		phase := a.interpolator.Now()
		a.mux.OnPhase(phase.BeatPhase, phase.BarPhase, phase.Stale)
	}
	return nil
}

func (a *Adaptor) drainContextEvents() {
	for {
		select {
		case ev := <-a.contextEvents:
			a.handleContextEvent(ev)
		default:
			return
		}
	}
}

func (a *Adaptor) handleContextEvent(ev ContextEvent) {
	active, ok := a.mux.Active()
	if !ok {
		return
	}

	switch ev {
	case ContextLost:
		if a.lost {
			return
		}
		a.lost = true
		logger.GetLogger().Warn("host: graphics context lost, stopping active renderer", "renderer", active)
		if backend, ok := a.mux.Backend(active); ok {
			_ = backend.Stop()
		}
	case ContextRestored:
		if !a.lost {
			return
		}
		a.lost = false
		logger.GetLogger().Info("host: graphics context restored, restarting active renderer", "renderer", active)
		if err := a.mux.Switch(active); err != nil {
			logger.GetLogger().Error("host: restart after context restore failed", "error", err)
		}
	}
}

// Draw implements ebiten.Game: the active renderer paints directly when
// it is a Drawer; hosted external canvases (3D, Milkdrop, Video) paint
// outside ebiten's own screen and this is a no-op for them.
func (a *Adaptor) Draw(screen *ebiten.Image) {
	if a.lost {
		return
	}
	a.mux.Draw(screen)
}

// Layout implements ebiten.Game, sizing the canvas from the host viewport
// and propagating a change to the active renderer.
func (a *Adaptor) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != a.width || outsideHeight != a.height {
		a.width, a.height = outsideWidth, outsideHeight
		a.mux.Resize(outsideWidth, outsideHeight)
	}
	return a.width, a.height
}
