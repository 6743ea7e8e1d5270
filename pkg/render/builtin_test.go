package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sonetlumiere/vj/pkg/event"
)

func TestBuiltinOnNoteSwitchesSceneWithinRange(t *testing.T) {
	b := NewBuiltin()
	b.OnNote(61, 100, 0)
	assert.Equal(t, 1, b.Scene())
}

func TestBuiltinOnNoteOutsideRangeLeavesSceneUnchanged(t *testing.T) {
	b := NewBuiltin()
	b.SetScene(2)
	b.OnNote(40, 100, 0)
	assert.Equal(t, 2, b.Scene())
}

func TestBuiltinSetSceneClampsToValidRange(t *testing.T) {
	b := NewBuiltin()
	b.SetScene(-1)
	assert.Equal(t, 0, b.Scene())
	b.SetScene(SceneCount + 5)
	assert.Equal(t, SceneCount-1, b.Scene())
}

func TestBuiltinOnBeatSetsPulse(t *testing.T) {
	b := NewBuiltin()
	b.OnBeat(0, 0.8)
	assert.Equal(t, 0.8, b.pulse)
}

func TestBuiltinOnPhaseStoresLiveContinuousPosition(t *testing.T) {
	b := NewBuiltin()
	assert.False(t, b.phaseLive, "no phase observed yet")

	b.OnPhase(0.4, 0.1, false)
	assert.True(t, b.phaseLive)
	assert.Equal(t, 0.4, b.beatPhase)

	b.OnPhase(0.6, 0.1, true)
	assert.False(t, b.phaseLive, "a stale reading must not be treated as live")
}

func TestBuiltinOnFrequencyStoresLatestBands(t *testing.T) {
	b := NewBuiltin()
	bands := event.Bands{Bass: 0.5, Mid: 0.2, High: 0.1}
	b.OnFrequency(bands, 0.3)
	assert.Equal(t, bands, b.bands)
	assert.Equal(t, 0.3, b.rms)
}
