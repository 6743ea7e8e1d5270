// Package cliconfig turns a raw pkg/cli.Config into a validated runtime
// configuration, rejecting values the engine cannot safely start with.
package cliconfig

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/sonetlumiere/vj/pkg/cli"
)

// Config is the validated configuration the application coordinator wires
// the engine's subsystems from.
type Config struct {
	MIDIInput      string `validate:"omitempty"`
	Renderer       string `validate:"oneof=builtin threed milkdrop video blank"`
	SettingsPath   string `validate:"required"`
	ControlPort    int    `validate:"min=1,max=65535"`
	OSCAddress     string `validate:"required,hostname_port"`
	FFTSize        int    `validate:"oneof=1024 2048 4096 8192"`
	UpdateRateMs   int    `validate:"min=1,max=1000"`
	MIDIChannel    string `validate:"-"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	Headless       bool
	EnableSysEx    bool
	MIDISynthAudio bool
}

var validate = validator.New()

// FromCLI validates a cli.Config and returns the runtime Config, or the
// first validation error encountered.
func FromCLI(raw *cli.Config) (*Config, error) {
	cfg := &Config{
		MIDIInput:      raw.MIDIInput,
		Renderer:       raw.Renderer,
		SettingsPath:   raw.SettingsPath,
		ControlPort:    raw.ControlPort,
		OSCAddress:     raw.OSCAddress,
		FFTSize:        raw.FFTSize,
		UpdateRateMs:   raw.UpdateRateMs,
		MIDIChannel:    raw.MIDIChannel,
		LogLevel:       raw.LogLevel,
		Headless:       raw.Headless,
		EnableSysEx:    raw.EnableSysEx,
		MIDISynthAudio: raw.MIDISynthAudio,
	}

	if err := validateMIDIChannel(cfg.MIDIChannel); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func validateMIDIChannel(ch string) error {
	if ch == "all" {
		return nil
	}
	n, err := strconv.Atoi(ch)
	if err != nil || n < 0 || n > 15 {
		return fmt.Errorf("invalid midi-channel %q: must be \"all\" or 0-15", ch)
	}
	return nil
}
