package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"flag"

	"github.com/joho/godotenv"
)

// Config holds the settings parsed from command-line flags and environment
// variables before validation (see pkg/cliconfig for the validated form).
type Config struct {
	MIDIInput      string        // requested MIDI input device name, empty = first available
	Renderer       string        // initial renderer: builtin, threed, milkdrop, video, blank
	SettingsPath   string        // path to the persisted YAML settings file
	ControlPort    int           // local control-channel websocket listen port
	OSCAddress     string        // OSC listen address, host:port
	FFTSize        int           // frequency analyser window size
	UpdateRateMs   int           // frequency analyser publish interval
	MIDIChannel    string        // "all" or a channel number 0-15
	Timeout        time.Duration // 0 = unlimited
	LogLevel       string        // debug, info, warn, error
	Headless       bool          // run without opening a window
	EnableSysEx    bool          // allow SysEx command reception
	MIDISynthAudio bool          // route voice engine to speaker output
	ShowHelp       bool
}

// ParseArgs parses command-line flags, loading a .env file first (if present)
// so environment-variable fallbacks can be supplied that way too.
func ParseArgs(args []string) (*Config, error) {
	_ = godotenv.Load()

	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("vj", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "exit after N seconds (0 = unlimited)")
	fs.IntVar(&timeoutSec, "t", 0, "shorthand for -timeout")
	fs.StringVar(&config.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&config.LogLevel, "l", "info", "shorthand for -log-level")
	fs.BoolVar(&config.Headless, "headless", false, "run without opening a render window")
	fs.StringVar(&config.MIDIInput, "midi-input", "", "MIDI input device name")
	fs.StringVar(&config.Renderer, "renderer", "builtin", "initial renderer: builtin, threed, milkdrop, video, blank")
	fs.StringVar(&config.SettingsPath, "settings", "settings.yaml", "path to the persisted settings file")
	fs.IntVar(&config.ControlPort, "control-port", 7000, "local control-channel websocket port")
	fs.StringVar(&config.OSCAddress, "osc-address", "127.0.0.1:9000", "OSC listen address")
	fs.IntVar(&config.FFTSize, "fft-size", 8192, "frequency analyser FFT size")
	fs.IntVar(&config.UpdateRateMs, "update-rate", 50, "frequency analyser publish interval (ms)")
	fs.StringVar(&config.MIDIChannel, "midi-channel", "all", "MIDI channel filter: all or 0-15")
	fs.BoolVar(&config.EnableSysEx, "enable-sysex", true, "allow SysEx remote-control commands")
	fs.BoolVar(&config.MIDISynthAudio, "synth-audible", true, "route the voice engine to speaker output")
	fs.BoolVar(&config.ShowHelp, "help", false, "show this help")
	fs.BoolVar(&config.ShowHelp, "h", false, "shorthand for -help")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	return config, nil
}

// reorderArgs moves flags before positional arguments so flag.FlagSet can
// parse them regardless of the order the user typed them in.
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if arg != "-h" && arg != "--help" && arg != "--headless" {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp writes usage information to stdout.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `vj - real-time audio-visual performance engine

Usage:
  vj [options]

Options:
  -t, --timeout <seconds>     exit after N seconds (default: unlimited)
  -l, --log-level <level>     log level: debug, info, warn, error (default: info)
  --headless                  run without opening a render window
  --midi-input <name>         MIDI input device name (default: first available)
  --renderer <kind>           initial renderer: builtin, threed, milkdrop, video, blank
  --settings <path>           path to the persisted settings file
  --control-port <port>       local control-channel websocket port
  --osc-address <host:port>   OSC listen address
  --fft-size <n>              frequency analyser FFT size
  --update-rate <ms>          frequency analyser publish interval
  --midi-channel <all|0-15>   MIDI channel filter
  --enable-sysex              allow SysEx remote-control commands
  --synth-audible             route the voice engine to speaker output
  -h, --help                  show this help

Environment Variables:
  HEADLESS=1                  enable headless mode
  TIMEOUT=<seconds>            timeout in seconds
  LOG_LEVEL=<level>            log level

A .env file in the working directory is loaded automatically if present.
`)
}
