// Package app wires the engine's components together behind a single Run
// entrypoint: sequential construction, one stage per component, wrapped
// errors that name the stage that failed.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/sonetlumiere/vj/pkg/analyser"
	"github.com/sonetlumiere/vj/pkg/bus"
	"github.com/sonetlumiere/vj/pkg/cli"
	"github.com/sonetlumiere/vj/pkg/cliconfig"
	"github.com/sonetlumiere/vj/pkg/control"
	"github.com/sonetlumiere/vj/pkg/coordinator"
	"github.com/sonetlumiere/vj/pkg/host"
	"github.com/sonetlumiere/vj/pkg/logger"
	"github.com/sonetlumiere/vj/pkg/midiio"
	"github.com/sonetlumiere/vj/pkg/render"
	"github.com/sonetlumiere/vj/pkg/settings"
	"github.com/sonetlumiere/vj/pkg/timing"
	"github.com/sonetlumiere/vj/pkg/voice"
)

const sampleRate = 48000

// sysexSourceName is the bus source name the Clock Estimator publishes its
// Beat and Transport(BpmUpdate) events under. SysEx itself arrives from the
// MIDI input as a regular event.Event, so no separate subscription is
// needed for it.
const sysexSourceName = "midi"

// Application owns the lifetime of every subsystem Run constructs. Fields
// are populated stage by stage so Close can unwind whatever was built even
// if a later stage fails.
type Application struct {
	log *slog.Logger

	config *cliconfig.Config

	bus          *bus.Bus
	store        *settings.Store
	estimator    *timing.Estimator
	interpolator *timing.Interpolator

	microphone *analyser.MicrophoneSource
	analyser   *analyser.Analyser

	voiceEngine *voice.Engine
	audioCtx    *audio.Context
	player      *voice.Player

	mux *render.Multiplexer

	midiInput *midiio.Input

	channel   *control.Channel
	oscServer *control.OSCServer

	coordinator *coordinator.Coordinator

	adaptor *host.Adaptor
}

// New returns an unstarted Application.
func New() *Application {
	return &Application{}
}

// Run parses args, wires every component, and blocks running the render
// loop until ctx is cancelled or the window closes. Each stage is wrapped
// with the name of the stage that failed.
func (app *Application) Run(ctx context.Context, args []string) error {
	raw, err := cli.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	if raw.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	config, err := cliconfig.FromCLI(raw)
	if err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	app.config = config

	if raw.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, raw.Timeout)
		defer cancel()
	}

	if err := logger.InitLogger(config.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log = logger.GetLogger()
	app.log.Info("application started", "renderer", config.Renderer, "headless", config.Headless)

	if err := app.initSettings(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	app.bus = bus.New()
	app.estimator = timing.NewEstimator(app.bus, sysexSourceName)
	app.interpolator = timing.NewInterpolator(app.estimator)

	if err := app.initAudio(); err != nil {
		return fmt.Errorf("failed to initialise audio: %w", err)
	}

	if err := app.initRenderers(); err != nil {
		return fmt.Errorf("failed to initialise renderers: %w", err)
	}

	app.coordinator = coordinator.New(app.bus, app.mux, app.voiceEngine, app.store, app.microphone, app.estimator, config.MIDIChannel)

	if err := app.initControlSurfaces(); err != nil {
		return fmt.Errorf("failed to initialise control surfaces: %w", err)
	}

	if err := app.initMIDI(); err != nil {
		return fmt.Errorf("failed to initialise MIDI input: %w", err)
	}

	app.log.Info("all subsystems wired, starting render loop")

	err = app.runDesktop(ctx)

	app.Close()
	if err != nil {
		return fmt.Errorf("render loop exited with error: %w", err)
	}
	app.log.Info("application terminated normally")
	return nil
}

func (app *Application) initSettings() error {
	app.store = settings.NewStore(app.config.SettingsPath)
	if err := app.store.Load(); err != nil {
		return err
	}
	app.store.Update(func(s settings.Settings) settings.Settings {
		s.EnableSysEx = app.config.EnableSysEx
		if app.config.MIDIInput != "" {
			s.MIDIInputID = app.config.MIDIInput
		}
		return s
	})
	return nil
}

func (app *Application) initAudio() error {
	app.microphone = analyser.NewMicrophoneSource(sampleRate)

	app.analyser = analyser.New(app.bus, "microphone", sampleRate, analyser.Config{
		FFTSize:    app.config.FFTSize,
		UpdateRate: time.Duration(app.config.UpdateRateMs) * time.Millisecond,
	})

	app.voiceEngine = voice.NewEngine(sampleRate)
	app.voiceEngine.SetAudible(app.config.MIDISynthAudio)

	app.audioCtx = audio.NewContext(sampleRate)
	player, err := voice.NewPlayer(app.audioCtx, app.voiceEngine)
	if err != nil {
		return fmt.Errorf("start voice player: %w", err)
	}
	app.player = player

	visualSource := app.analyserSource()
	go app.analyser.Run(visualSource)

	return nil
}

// analyserSource picks the frequency analyser's own input: the microphone,
// connecting it eagerly, independent of Milkdrop's separate audio routing
// policy (which the coordinator owns via connectMilkdropAudio).
func (app *Application) analyserSource() analyser.Source {
	deviceID := app.store.Get().AudioInput
	if err := app.microphone.Connect(deviceID); err != nil {
		app.log.Warn("microphone connect failed, frequency analysis disabled", "error", err)
	}
	return app.microphone
}

func (app *Application) initRenderers() error {
	app.mux = render.New()
	app.mux.Register(render.KindBuiltin, render.NewBuiltin())
	app.mux.Register(render.KindThreeD, render.NewThreeD())
	app.mux.Register(render.KindMilkdrop, render.NewMilkdrop())
	app.mux.Register(render.KindVideo, render.NewVideo())
	app.mux.Register(render.KindBlank, render.NewBlank())

	initial, ok := render.ParseKind(app.config.Renderer)
	if !ok {
		initial = render.KindBuiltin
	}
	if err := app.mux.Switch(initial); err != nil {
		return fmt.Errorf("activate initial renderer %s: %w", initial, err)
	}

	app.mux.OnStateChange(func(active render.Kind) {
		if app.channel != nil {
			app.channel.Broadcast(control.Envelope{
				Command: control.CmdStateUpdate,
				Data:    control.StateSnapshot{Renderer: active.String()},
			})
		}
	})

	return nil
}

func (app *Application) initControlSurfaces() error {
	app.channel = control.NewChannel()
	app.channel.Handle(app.coordinator.ApplyCommand)
	app.channel.AttachServer(fmt.Sprintf("0.0.0.0:%d", app.config.ControlPort))

	oscHost, oscPort, err := splitHostPort(app.config.OSCAddress)
	if err != nil {
		return fmt.Errorf("parse osc-address: %w", err)
	}
	app.oscServer = control.NewOSCServer(oscHost, oscPort)
	app.oscServer.Handle(app.coordinator.ApplyCommand)
	go func() {
		if err := app.oscServer.ListenAndServe(); err != nil {
			app.log.Error("osc server stopped", "error", err)
		}
	}()

	return nil
}

func (app *Application) initMIDI() error {
	input, err := midiio.Open(app.bus, app.store.Get().MIDIInputID, app.estimator)
	if err != nil {
		app.log.Warn("no MIDI input connected, continuing without one", "error", err)
		return nil
	}
	if err := input.Start(); err != nil {
		_ = input.Close()
		return fmt.Errorf("start MIDI listener: %w", err)
	}
	app.midiInput = input
	return nil
}

// runDesktop runs the render loop: headless mode blocks on ctx instead of
// opening a window; GUI mode opens the ebiten window and runs the game
// loop until it exits or ctx cancels.
func (app *Application) runDesktop(ctx context.Context) error {
	if app.config.Headless {
		app.log.Info("headless mode: skipping window")
		<-ctx.Done()
		return nil
	}

	app.adaptor = host.New(app.mux, host.ClassDesktop)
	app.adaptor.SetInterpolator(app.interpolator)

	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle("vj")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	go func() {
		<-ctx.Done()
		app.adaptor.RequestShutdown()
	}()

	if err := ebiten.RunGame(app.adaptor); err != nil && err != ebiten.Termination {
		return err
	}
	return nil
}

// Close closes the MIDI input, detaches the coordinator, stops the
// analyser, closes the voice player, disconnects the microphone and saves
// settings, logging but not failing on individual teardown errors. The
// control channel, the OSC server and the renderers are not stopped.
func (app *Application) Close() {
	if app.midiInput != nil {
		if err := app.midiInput.Close(); err != nil {
			app.log.Warn("close MIDI input failed", "error", err)
		}
	}
	if app.coordinator != nil {
		app.coordinator.Close()
	}
	if app.analyser != nil {
		app.analyser.Stop()
	}
	if app.player != nil {
		if err := app.player.Close(); err != nil {
			app.log.Warn("close voice player failed", "error", err)
		}
	}
	if app.microphone != nil {
		if err := app.microphone.Disconnect(); err != nil {
			app.log.Warn("disconnect microphone failed", "error", err)
		}
	}
	if app.store != nil {
		if err := app.store.Save(); err != nil {
			app.log.Warn("save settings failed", "error", err)
		}
	}
}

func splitHostPort(addr string) (string, int, error) {
	hostPart, portPart, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portPart)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portPart, err)
	}
	return hostPart, port, nil
}
