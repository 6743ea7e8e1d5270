package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonetlumiere/vj/pkg/render"
)

func TestOptimalSettingsForClass(t *testing.T) {
	desktop := OptimalSettingsFor(ClassDesktop)
	mobile := OptimalSettingsFor(ClassMobile)

	assert.Greater(t, desktop.FFTSize, mobile.FFTSize)
	assert.Greater(t, desktop.ParticleCount, mobile.ParticleCount)
	assert.Less(t, desktop.PixelRatio, mobile.PixelRatio)
}

func TestLayoutResizesActiveRenderer(t *testing.T) {
	mux := render.New()
	builtin := render.NewBuiltin()
	mux.Register(render.KindBuiltin, builtin)
	require.NoError(t, mux.Switch(render.KindBuiltin))

	a := New(mux, ClassDesktop)
	w, h := a.Layout(640, 480)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	canvases := mux.Canvases()
	assert.Equal(t, 640, canvases[render.KindBuiltin].Width)
	assert.Equal(t, 480, canvases[render.KindBuiltin].Height)
}

func TestContextLossStopsAndRestoreRestartsActiveRenderer(t *testing.T) {
	mux := render.New()
	mux.Register(render.KindBuiltin, render.NewBuiltin())
	require.NoError(t, mux.Switch(render.KindBuiltin))

	a := New(mux, ClassDesktop)

	a.NotifyContextEvent(ContextLost)
	require.NoError(t, a.Update())
	assert.True(t, a.lost)

	a.NotifyContextEvent(ContextRestored)
	require.NoError(t, a.Update())
	assert.False(t, a.lost)

	active, ok := mux.Active()
	require.True(t, ok)
	assert.Equal(t, render.KindBuiltin, active)
}
