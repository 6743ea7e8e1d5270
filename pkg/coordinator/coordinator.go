// Package coordinator implements the Application Coordinator (C10): the
// state machine that connects bus events to active-renderer behaviour,
// per spec.md §4.9, plus the Milkdrop audio-routing policy.
package coordinator

import (
	"strconv"
	"time"

	"github.com/sonetlumiere/vj/pkg/analyser"
	"github.com/sonetlumiere/vj/pkg/bus"
	"github.com/sonetlumiere/vj/pkg/control"
	"github.com/sonetlumiere/vj/pkg/event"
	"github.com/sonetlumiere/vj/pkg/logger"
	"github.com/sonetlumiere/vj/pkg/render"
	"github.com/sonetlumiere/vj/pkg/settings"
	"github.com/sonetlumiere/vj/pkg/voice"
)

const subscriberName = "coordinator"

// MilkdropPresetCC is the control change number routed to Milkdrop preset
// selection when it is the active renderer (§4.9).
const MilkdropPresetCC = 1

// VoiceEngine is the subset of pkg/voice.Engine the coordinator depends
// on, narrowed so tests can substitute a double.
type VoiceEngine interface {
	EnqueueEvent(ev event.Event)
	Tap() *voice.Tap
	SetAudible(on bool)
}

// ClockTransport is the subset of pkg/timing.Estimator the coordinator
// drives on MIDI Start/Continue/Stop, narrowed so tests can substitute a
// double.
type ClockTransport interface {
	OnStart(now time.Time)
	OnContinue(now time.Time)
	OnStop()
}

// Coordinator wires the bus, timing, voice engine, renderer multiplexer,
// and control channel together. It holds no audio-thread-critical state;
// everything here runs on the bus/render-tick thread.
type Coordinator struct {
	bus          *bus.Bus
	mux          *render.Multiplexer
	voiceEngine  VoiceEngine
	store        *settings.Store
	microphone   analyser.Source
	clock        ClockTransport
	midiChannel  int // -1 means "all"
	midiFilterOn bool
}

// New returns a Coordinator subscribed to b, driving mux and voiceEngine.
// midiChannel is "all" or a channel number "0"-"15" per §6.5's
// midiSynthChannel key. clock receives MIDI Start/Continue/Stop so the
// Clock Estimator's song position and is_playing flag (§4.2) track
// transport the same way its BPM estimate tracks clock pulses.
func New(b *bus.Bus, mux *render.Multiplexer, voiceEngine VoiceEngine, store *settings.Store, microphone analyser.Source, clock ClockTransport, midiChannel string) *Coordinator {
	c := &Coordinator{
		bus:         b,
		mux:         mux,
		voiceEngine: voiceEngine,
		store:       store,
		microphone:  microphone,
		clock:       clock,
		midiChannel: -1,
	}
	c.SetMIDIChannelFilter(midiChannel)
	c.subscribe()
	c.connectMilkdropAudio()
	return c
}

// SetMIDIChannelFilter updates the channel filter used when routing Note
// events to the voice engine ("all" disables filtering).
func (c *Coordinator) SetMIDIChannelFilter(channel string) {
	if channel == "all" || channel == "" {
		c.midiFilterOn = false
		c.midiChannel = -1
		return
	}
	n, err := strconv.Atoi(channel)
	if err != nil || n < 0 || n > 15 {
		c.midiFilterOn = false
		c.midiChannel = -1
		return
	}
	c.midiFilterOn = true
	c.midiChannel = n
}

func (c *Coordinator) subscribe() {
	c.bus.Subscribe(event.KindBeat, subscriberName, c.handleBeat)
	c.bus.Subscribe(event.KindNote, subscriberName, c.handleNote)
	c.bus.Subscribe(event.KindControl, subscriberName, c.handleControl)
	c.bus.Subscribe(event.KindTransport, subscriberName, c.handleTransport)
	c.bus.Subscribe(event.KindFrequency, subscriberName, c.handleFrequency)
	c.bus.Subscribe(event.KindSysEx, subscriberName, c.handleSysEx)
}

// Close detaches the coordinator from the bus.
func (c *Coordinator) Close() {
	c.bus.Unsubscribe(subscriberName)
}

// handleBeat implements §4.9's Beat row. The Clock Estimator has already
// moved its own anchor by the time this Beat event is published (see
// pkg/timing), so only the renderer forward and the voice engine's kick
// trigger remain here.
func (c *Coordinator) handleBeat(ev event.Event) {
	c.mux.Dispatch(ev)
	c.voiceEngine.EnqueueEvent(ev)
}

// handleNote implements §4.9's two Note rows: 60-63 switches the builtin
// scene when it is active, every other note is routed to the voice
// engine (subject to the channel filter) and forwarded to the renderer.
func (c *Coordinator) handleNote(ev event.Event) {
	if active, ok := c.mux.Active(); ok && active == render.KindBuiltin && ev.Note >= 60 && ev.Note <= 63 {
		if builtin, ok := c.builtinBackend(); ok {
			builtin.SetScene(ev.Note - 60)
		}
		return
	}

	if c.channelMatches(ev.Channel) {
		c.voiceEngine.EnqueueEvent(ev)
	}
	c.mux.Dispatch(ev)
}

func (c *Coordinator) channelMatches(channel int) bool {
	return !c.midiFilterOn || channel == c.midiChannel
}

// handleControl implements §4.9's Control row: CC 1 selects a Milkdrop
// preset when Milkdrop is active; every control is also enqueued on the
// voice engine (which applies CC7 as master gain) and forwarded to the
// active renderer's on_control hook.
func (c *Coordinator) handleControl(ev event.Event) {
	if ev.ControlID == MilkdropPresetCC {
		if active, ok := c.mux.Active(); ok && active == render.KindMilkdrop {
			if err := c.mux.LoadPreset(ev.ControlValue); err != nil {
				logger.GetLogger().Warn("coordinator: milkdrop preset load failed", "error", err)
			}
		}
	}
	c.voiceEngine.EnqueueEvent(ev)
	c.mux.Dispatch(ev)
}

// handleTransport implements §4.9's Transport row: Start/Continue/Stop
// drive the Clock Estimator's own is_playing flag and song position reset
// (§4.2), since the estimator never sees these System Real-Time bytes
// itself (pkg/midi.Parser turns them into Transport events rather than
// routing them through ClockSink). Renderer has no on_transport hook
// (§6.1); the active scene reacts to the phase it reads from the
// interpolator instead.
func (c *Coordinator) handleTransport(ev event.Event) {
	if c.clock == nil {
		return
	}
	switch ev.TransportState {
	case event.TransportPlay:
		c.clock.OnStart(time.Now())
	case event.TransportContinue:
		c.clock.OnContinue(time.Now())
	case event.TransportStop:
		c.clock.OnStop()
	}
}

// handleFrequency implements §4.9's Frequency row.
func (c *Coordinator) handleFrequency(ev event.Event) {
	c.mux.Dispatch(ev)
}

// handleSysEx implements §4.9's SysEx row: dispatch through C11's
// decoder and translate the result into the same actions a control-
// channel Envelope would trigger.
func (c *Coordinator) handleSysEx(ev event.Event) {
	env, ok := control.DecodeSysEx(ev)
	if !ok {
		return
	}
	c.ApplyCommand(env)
}

// ApplyCommand executes a control.Envelope's effect, whether it arrived
// over SysEx, the local/remote control channel, or OSC. It is the single
// place §4.9's SysEx row and §4.11/§4.12's command vocabularies converge.
func (c *Coordinator) ApplyCommand(env control.Envelope) {
	switch env.Command {
	case control.CmdSwitchMode:
		mode, _ := env.Data.(string)
		kind, ok := render.ParseKind(mode)
		if !ok {
			logger.GetLogger().Warn("coordinator: unknown renderer mode", "mode", mode)
			return
		}
		if err := c.mux.Switch(kind); err != nil {
			logger.GetLogger().Error("coordinator: switch renderer failed", "kind", kind, "error", err)
		}

	case control.CmdSwitchScene, control.CmdRendererSelect:
		scene, _ := env.Data.(int)
		if builtin, ok := c.builtinBackend(); ok {
			builtin.SetScene(scene)
		}

	case control.CmdMilkdropSelect:
		if err := c.mux.LoadPreset(env.Data); err != nil {
			logger.GetLogger().Warn("coordinator: milkdrop select failed", "error", err)
		}

	case control.CmdMilkdropNext:
		if m, ok := c.milkdropBackend(); ok {
			m.NextPreset()
		}

	case control.CmdMilkdropPrev:
		if m, ok := c.milkdropBackend(); ok {
			m.PrevPreset()
		}

	case control.CmdMilkdropAudioSource:
		source, _ := env.Data.(string)
		next := settings.AudioSource(source)
		c.store.Update(func(s settings.Settings) settings.Settings {
			s.VisualAudioSource = next
			return s
		})
		c.connectMilkdropAudio()

	case control.CmdMidiSynthAudible:
		audible, _ := env.Data.(bool)
		c.voiceEngine.SetAudible(audible)

	case control.CmdMidiSynthChannel:
		channel, _ := env.Data.(string)
		c.SetMIDIChannelFilter(channel)

	case control.CmdRequestState:
		// The coordinator takes no action on requestState; stateUpdate is
		// broadcast only by the multiplexer's state-change callback after
		// a successful Switch.
	}
}

// connectMilkdropAudio implements §4.9's audio-routing policy: prefer the
// voice engine's tap when the user has selected "midi" as the visual
// audio source, otherwise the microphone. Switching triggers an
// unregister/register cycle on the fusion bus per the same paragraph
// (the analyser sources here are not themselves bus subscribers, so this
// reduces to a ConnectAudio call on the active Milkdrop backend).
func (c *Coordinator) connectMilkdropAudio() {
	m, ok := c.milkdropBackend()
	if !ok {
		return
	}

	var source analyser.Source
	if c.store.Get().VisualAudioSource == settings.AudioSourceMIDI {
		source = c.voiceEngine.Tap()
	} else {
		source = c.microphone
	}

	c.mux.SetAudioSource(source)
	if err := m.ConnectAudio(source); err != nil {
		logger.GetLogger().Warn("coordinator: connect milkdrop audio failed", "error", err)
	}
}

func (c *Coordinator) builtinBackend() (*render.Builtin, bool) {
	return backendAs[*render.Builtin](c.mux, render.KindBuiltin)
}

func (c *Coordinator) milkdropBackend() (*render.Milkdrop, bool) {
	return backendAs[*render.Milkdrop](c.mux, render.KindMilkdrop)
}

func backendAs[T any](mux *render.Multiplexer, kind render.Kind) (T, bool) {
	backend, ok := mux.Backend(kind)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := backend.(T)
	return typed, ok
}
