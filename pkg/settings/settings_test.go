package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingFileKeepsDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, s.Load())
	assert.Equal(t, Default(), s.Get())
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := NewStore(path)
	s.Update(func(cur Settings) Settings {
		cur.LastScene = 2
		cur.VisualAudioSource = AudioSourceMicrophone
		cur.MIDISynthChannel = "3"
		return cur
	})
	require.NoError(t, s.Save())

	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())

	got := reloaded.Get()
	assert.Equal(t, 2, got.LastScene)
	assert.Equal(t, AudioSourceMicrophone, got.VisualAudioSource)
	assert.Equal(t, "3", got.MIDISynthChannel)
}
