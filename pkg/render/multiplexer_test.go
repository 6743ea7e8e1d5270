package render

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonetlumiere/vj/pkg/event"
)

func newTestMultiplexer() *Multiplexer {
	m := New()
	m.Register(KindBuiltin, NewBuiltin())
	m.Register(KindBlank, NewBlank())
	m.Register(KindMilkdrop, NewMilkdrop())
	return m
}

// TestSwitchExclusiveCanvas is invariant I4: after any sequence of
// switches, at most one registered canvas is visible.
func TestSwitchExclusiveCanvas(t *testing.T) {
	m := newTestMultiplexer()

	require.NoError(t, m.Switch(KindBuiltin))
	require.NoError(t, m.Switch(KindMilkdrop))
	require.NoError(t, m.Switch(KindBlank))

	visible := 0
	for _, c := range m.Canvases() {
		if c.Visible {
			visible++
		}
	}
	assert.Equal(t, 1, visible)

	active, ok := m.Active()
	assert.True(t, ok)
	assert.Equal(t, KindBlank, active)
}

func TestSwitchStopsPreviousRenderer(t *testing.T) {
	m := New()
	builtin := NewBuiltin()
	blank := NewBlank()
	m.Register(KindBuiltin, builtin)
	m.Register(KindBlank, blank)

	require.NoError(t, m.Switch(KindBuiltin))
	require.NoError(t, m.Switch(KindBlank))

	canvases := m.Canvases()
	assert.False(t, canvases[KindBuiltin].Visible)
	assert.True(t, canvases[KindBlank].Visible)
}

// failingLoadBackend implements LibraryLoadable and always fails, to
// exercise I4's failure clause: the previous renderer must stay active.
type failingLoadBackend struct{ Blank }

func (f *failingLoadBackend) LoadLibrary() error {
	return errors.New("library unavailable")
}

func TestSwitchLoadFailureKeepsPreviousRendererActive(t *testing.T) {
	m := New()
	m.Register(KindBuiltin, NewBuiltin())
	m.Register(KindVideo, &failingLoadBackend{})

	require.NoError(t, m.Switch(KindBuiltin))

	err := m.Switch(KindVideo)
	assert.Error(t, err)

	active, ok := m.Active()
	assert.True(t, ok)
	assert.Equal(t, KindBuiltin, active, "I4: a failed switch must not disturb the previously active renderer")

	canvases := m.Canvases()
	assert.True(t, canvases[KindBuiltin].Visible)
	assert.False(t, canvases[KindVideo].Visible)
}

func TestDispatchRoutesToActiveBackendOnly(t *testing.T) {
	m := newTestMultiplexer()
	require.NoError(t, m.Switch(KindBuiltin))

	builtin := m.backends[KindBuiltin].(*Builtin)
	m.Dispatch(event.Note("test", 62, 100, 0))
	assert.Equal(t, 2, builtin.Scene())
}

func TestOnPhaseForwardsToActiveBackendOnly(t *testing.T) {
	m := newTestMultiplexer()
	require.NoError(t, m.Switch(KindBuiltin))

	builtin := m.backends[KindBuiltin].(*Builtin)
	m.OnPhase(0.25, 0.5, false)
	assert.Equal(t, 0.25, builtin.beatPhase)
	assert.True(t, builtin.phaseLive)

	require.NoError(t, m.Switch(KindBlank))
	m.OnPhase(0.75, 0.5, false) // must not panic against Blank, which has no PhaseConsumer
}

// TestLoaderJoinsInFlightCall is C8's idempotence property: concurrent
// callers loading the same kind all observe the single underlying
// attempt's result, and the loader function runs exactly once.
func TestLoaderJoinsInFlightCall(t *testing.T) {
	l := NewLoader()
	start := make(chan struct{})
	var calls int
	var mu sync.Mutex

	loadFn := func() error {
		<-start
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.Load(KindMilkdrop, loadFn)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "C8: concurrent loads of the same kind must invoke loadFn exactly once")
}

func TestLoaderRetriesAfterFailure(t *testing.T) {
	l := NewLoader()
	attempt := 0
	loadFn := func() error {
		attempt++
		if attempt == 1 {
			return errors.New("first attempt fails")
		}
		return nil
	}

	err := l.Load(KindMilkdrop, loadFn)
	assert.Error(t, err)
	assert.False(t, l.Loaded(KindMilkdrop))

	err = l.Load(KindMilkdrop, loadFn)
	assert.NoError(t, err)
	assert.True(t, l.Loaded(KindMilkdrop))
	assert.Equal(t, 2, attempt)
}

func TestLoaderSkipsAlreadyLoaded(t *testing.T) {
	l := NewLoader()
	calls := 0
	loadFn := func() error {
		calls++
		return nil
	}

	require.NoError(t, l.Load(KindBuiltin, loadFn))
	require.NoError(t, l.Load(KindBuiltin, loadFn))
	assert.Equal(t, 1, calls)
}
