// Package midiio opens a real MIDI input device and feeds its raw byte
// stream into pkg/midi.Parser, publishing the resulting events to the bus
// and a DeviceChange event on connect/disconnect.
package midiio

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/sonetlumiere/vj/pkg/bus"
	"github.com/sonetlumiere/vj/pkg/event"
	"github.com/sonetlumiere/vj/pkg/logger"
	"github.com/sonetlumiere/vj/pkg/midi"
)

// Input owns one open drivers.In port and the Parser decoding it.
type Input struct {
	b      *bus.Bus
	port   drivers.In
	parser *midi.Parser
	stop   func()
}

// ListDevices returns the names of every MIDI input port the host driver
// currently sees.
func ListDevices() ([]string, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, fmt.Errorf("midiio: list inputs: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// Open finds the named input port (or the first available port if name is
// empty), opens it, and wires a Parser fed by clock for it. It does not
// start listening; call Start.
func Open(b *bus.Bus, name string, clock midi.ClockSink) (*Input, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, fmt.Errorf("midiio: list inputs: %w", err)
	}
	if len(ins) == 0 {
		return nil, fmt.Errorf("midiio: no MIDI input devices available")
	}

	port := ins[0]
	if name != "" {
		found := false
		for _, in := range ins {
			if in.String() == name {
				port = in
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("midiio: input port %q not found", name)
		}
	}

	if err := port.Open(); err != nil {
		return nil, fmt.Errorf("midiio: open %s: %w", port.String(), err)
	}

	return &Input{
		b:      b,
		port:   port,
		parser: midi.NewParser(port.String(), clock),
	}, nil
}

// Start begins listening on the port, publishing every decoded event to the
// bus under the port's name, plus a single DeviceChange(connected) event.
func (i *Input) Start() error {
	stop, err := i.port.Listen(i.onMessage, drivers.ListenConfig{})
	if err != nil {
		return fmt.Errorf("midiio: listen on %s: %w", i.port.String(), err)
	}
	i.stop = stop
	i.b.Publish(event.DeviceChange(i.port.String(), event.DeviceConnected))
	return nil
}

func (i *Input) onMessage(msg []byte, _ int32) {
	for _, ev := range i.parser.Feed(msg) {
		i.b.Publish(ev)
	}
}

// Close stops listening and closes the port, publishing a disconnected
// DeviceChange event.
func (i *Input) Close() error {
	if i.stop != nil {
		i.stop()
	}
	if err := i.port.Close(); err != nil {
		logger.GetLogger().Warn("midiio: close port failed", "port", i.port.String(), "error", err)
	}
	i.b.Publish(event.DeviceChange(i.port.String(), event.DeviceDisconnected))
	return nil
}
