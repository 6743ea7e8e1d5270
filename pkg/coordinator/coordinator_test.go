package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonetlumiere/vj/pkg/bus"
	"github.com/sonetlumiere/vj/pkg/control"
	"github.com/sonetlumiere/vj/pkg/event"
	"github.com/sonetlumiere/vj/pkg/render"
	"github.com/sonetlumiere/vj/pkg/settings"
	"github.com/sonetlumiere/vj/pkg/voice"
)

const testSampleRate = 48000

// fakeVoiceEngine wraps a real voice.Engine but records every event it
// was handed, so tests can assert on routing decisions without depending
// on audio-thread timing.
type fakeVoiceEngine struct {
	*voice.Engine
	received []event.Event
	audible  []bool
}

func newFakeVoiceEngine() *fakeVoiceEngine {
	return &fakeVoiceEngine{Engine: voice.NewEngine(testSampleRate)}
}

func (f *fakeVoiceEngine) EnqueueEvent(ev event.Event) {
	f.received = append(f.received, ev)
	f.Engine.EnqueueEvent(ev)
}

func (f *fakeVoiceEngine) SetAudible(on bool) {
	f.audible = append(f.audible, on)
	f.Engine.SetAudible(on)
}

// fakeClockTransport records Start/Continue/Stop calls so tests can
// assert the coordinator's Transport-row wiring without depending on
// pkg/timing's own clock math.
type fakeClockTransport struct {
	starts    int
	continues int
	stops     int
}

func (f *fakeClockTransport) OnStart(now time.Time) {
	f.starts++
}

func (f *fakeClockTransport) OnContinue(now time.Time) {
	f.continues++
}

func (f *fakeClockTransport) OnStop() {
	f.stops++
}

func newTestCoordinator(t *testing.T) (*Coordinator, *bus.Bus, *render.Multiplexer, *fakeVoiceEngine, *settings.Store) {
	t.Helper()
	c, b, mux, ve, store, _ := newTestCoordinatorWithClock(t)
	return c, b, mux, ve, store
}

func newTestCoordinatorWithClock(t *testing.T) (*Coordinator, *bus.Bus, *render.Multiplexer, *fakeVoiceEngine, *settings.Store, *fakeClockTransport) {
	t.Helper()
	b := bus.New()
	mux := render.New()
	mux.Register(render.KindBuiltin, render.NewBuiltin())
	mux.Register(render.KindMilkdrop, render.NewMilkdrop())
	mux.Register(render.KindBlank, render.NewBlank())
	require.NoError(t, mux.Switch(render.KindBuiltin))

	store := settings.NewStore(t.TempDir() + "/settings.yaml")
	ve := newFakeVoiceEngine()
	clock := &fakeClockTransport{}

	c := New(b, mux, ve, store, nil, clock, "all")
	return c, b, mux, ve, store, clock
}

func TestNoteInSceneRangeSwitchesBuiltinScene(t *testing.T) {
	_, b, mux, ve, _ := newTestCoordinator(t)

	b.Publish(event.Note("midi", 62, 100, 0))

	builtin, ok := mux.Backend(render.KindBuiltin)
	require.True(t, ok)
	assert.Equal(t, 2, builtin.(*render.Builtin).Scene())
	assert.Empty(t, ve.received, "scene-switch notes must not reach the voice engine")
}

func TestNoteOutsideSceneRangeReachesVoiceEngine(t *testing.T) {
	_, b, _, ve, _ := newTestCoordinator(t)

	b.Publish(event.Note("midi", 64, 100, 0))

	require.Len(t, ve.received, 1)
	assert.Equal(t, 64, ve.received[0].Note)
}

func TestMIDIChannelFilterBlocksOtherChannels(t *testing.T) {
	c, b, _, ve, _ := newTestCoordinator(t)
	c.SetMIDIChannelFilter("3")

	b.Publish(event.Note("midi", 64, 100, 1))
	assert.Empty(t, ve.received, "note on a non-matching channel must not reach the voice engine")

	b.Publish(event.Note("midi", 64, 100, 3))
	assert.Len(t, ve.received, 1)
}

func TestControlChange1SelectsMilkdropPresetWhenActive(t *testing.T) {
	_, b, mux, _, _ := newTestCoordinator(t)
	require.NoError(t, mux.Switch(render.KindMilkdrop))

	b.Publish(event.Control("midi", MilkdropPresetCC, 0.5, 0))

	backend, ok := mux.Backend(render.KindMilkdrop)
	require.True(t, ok)
	assert.Equal(t, int(0.5*float64(render.MilkdropPresetCount)), backend.(*render.Milkdrop).PresetIndex())
}

func TestApplyCommandSwitchModeChangesActiveRenderer(t *testing.T) {
	c, _, mux, _, _ := newTestCoordinator(t)

	c.ApplyCommand(control.Envelope{Command: control.CmdSwitchMode, Data: "milkdrop"})

	active, ok := mux.Active()
	require.True(t, ok)
	assert.Equal(t, render.KindMilkdrop, active)
}

func TestApplyCommandMilkdropAudioSourceSwitchesTapVsMicrophone(t *testing.T) {
	c, _, mux, ve, store := newTestCoordinator(t)
	require.NoError(t, mux.Switch(render.KindMilkdrop))

	c.ApplyCommand(control.Envelope{Command: control.CmdMilkdropAudioSource, Data: "midi"})
	assert.Equal(t, settings.AudioSourceMIDI, store.Get().VisualAudioSource)

	backend, ok := mux.Backend(render.KindMilkdrop)
	require.True(t, ok)
	_ = backend.(*render.Milkdrop)
	assert.NotNil(t, ve.Tap(), "midi source should route the voice tap into Milkdrop")
}

func TestTransportEventsDriveClockStartContinueStop(t *testing.T) {
	_, b, _, _, _, clock := newTestCoordinatorWithClock(t)

	b.Publish(event.Transport("midi", event.TransportPlay))
	b.Publish(event.Transport("midi", event.TransportContinue))
	b.Publish(event.Transport("midi", event.TransportStop))

	assert.Equal(t, 1, clock.starts, "MIDI Start must reset the clock estimator's position")
	assert.Equal(t, 1, clock.continues)
	assert.Equal(t, 1, clock.stops)
}

func TestSysExSwitchSceneDispatchesThroughCoordinator(t *testing.T) {
	_, b, mux, _, _ := newTestCoordinator(t)

	b.Publish(event.SysEx("midi", control.ManufacturerID, []byte{0x03, 0x01}))

	backend, ok := mux.Backend(render.KindBuiltin)
	require.True(t, ok)
	assert.Equal(t, 1, backend.(*render.Builtin).Scene())
}
