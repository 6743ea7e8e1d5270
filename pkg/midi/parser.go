// Package midi decodes a raw MIDI byte stream into pkg/event.Event values,
// including SysEx reassembly with interleaved System Real-Time byte
// passthrough (invariant I5).
package midi

import (
	"time"

	"github.com/sonetlumiere/vj/pkg/event"
	"github.com/sonetlumiere/vj/pkg/logger"
)

const sysExCap = 64 * 1024

const (
	statusSysExStart = 0xF0
	statusSPP        = 0xF2
	statusSysExEnd   = 0xF7
	statusClock      = 0xF8
	statusStart      = 0xFA
	statusContinue   = 0xFB
	statusStop       = 0xFC
)

// ClockSink receives the clock-relevant bytes the parser recognises
// (0xF8 clock pulses and 0xF2 Song Position Pointer) so the Clock Estimator
// (C2) can derive BPM and the authoritative song position directly, instead
// of those bytes round-tripping through the generic event union.
type ClockSink interface {
	OnClockTick(now time.Time)
	OnSongPositionPointer(position int, now time.Time)
}

// PitchBendControlID is the Control event ControlID used for pitch-bend
// messages, distinguishing them from CC numbers (0-127).
const PitchBendControlID = -1

// Parser decodes a byte stream from a single named MIDI source. It is not
// safe for concurrent use; the host MIDI API delivers callbacks for one
// input serially.
type Parser struct {
	source string
	clock  ClockSink

	receivingSysEx  bool
	sysExBuf        []byte
	sysExOverflowed bool

	pendingStatus byte
	pendingData   []byte
	pendingLen    int

	DroppedCount       int
	SysExOverflowCount int
}

// NewParser returns a Parser for the named MIDI source. clock may be nil,
// in which case clock ticks and SPP messages are decoded but discarded.
func NewParser(source string, clock ClockSink) *Parser {
	return &Parser{source: source, clock: clock}
}

// Feed decodes as many complete messages as data contains and returns the
// events produced, in order. Clock ticks and Song Position Pointer messages
// are routed to the ClockSink rather than appearing in the returned slice.
func (p *Parser) Feed(data []byte) []event.Event {
	var out []event.Event
	now := time.Now()
	for _, b := range data {
		if ev, ok := p.feedByte(b, now); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (p *Parser) feedByte(b byte, now time.Time) (event.Event, bool) {
	switch {
	case b >= statusClock:
		// System Real-Time (0xF8-0xFF): dispatch immediately without
		// touching the SysEx buffer or any pending channel-voice/SPP
		// message (I5).
		return p.handleRealTime(b, now)

	case b == statusSysExStart:
		p.receivingSysEx = true
		p.sysExOverflowed = false
		p.sysExBuf = p.sysExBuf[:0]
		p.pendingStatus = 0
		return event.Event{}, false

	case b == statusSysExEnd:
		if !p.receivingSysEx {
			return event.Event{}, false
		}
		p.receivingSysEx = false
		if len(p.sysExBuf) == 0 {
			return event.Event{}, false
		}
		manufacturer := p.sysExBuf[0]
		payload := append([]byte(nil), p.sysExBuf[1:]...)
		if p.sysExOverflowed {
			logger.GetLogger().Warn("sysex payload truncated", "source", p.source, "cap", sysExCap)
		}
		return event.SysEx(p.source, manufacturer, payload), true

	case p.receivingSysEx:
		if len(p.sysExBuf) >= sysExCap {
			if !p.sysExOverflowed {
				p.SysExOverflowCount++
			}
			p.sysExOverflowed = true
			return event.Event{}, false
		}
		p.sysExBuf = append(p.sysExBuf, b)
		return event.Event{}, false

	case b == statusSPP:
		p.pendingStatus = b
		p.pendingData = p.pendingData[:0]
		p.pendingLen = 2
		return event.Event{}, false

	case b >= 0x80 && b <= 0xEF:
		p.pendingStatus = b
		p.pendingData = p.pendingData[:0]
		p.pendingLen = channelVoiceDataLen(b)
		return event.Event{}, false

	case b < 0x80 && p.pendingStatus != 0:
		p.pendingData = append(p.pendingData, b)
		if len(p.pendingData) < p.pendingLen {
			return event.Event{}, false
		}
		ev, ok := p.completeMessage(now)
		p.pendingStatus = 0
		p.pendingData = p.pendingData[:0]
		return ev, ok

	default:
		// Data byte with no pending status, or an unrecognised system
		// common byte: malformed/desynchronised, drop it.
		p.DroppedCount++
		return event.Event{}, false
	}
}

func channelVoiceDataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

func (p *Parser) handleRealTime(b byte, now time.Time) (event.Event, bool) {
	switch b {
	case statusClock:
		if p.clock != nil {
			p.clock.OnClockTick(now)
		}
		return event.Event{}, false
	case statusStart:
		return event.Transport(p.source, event.TransportPlay), true
	case statusContinue:
		return event.Transport(p.source, event.TransportContinue), true
	case statusStop:
		return event.Transport(p.source, event.TransportStop), true
	default:
		return event.Event{}, false
	}
}

func (p *Parser) completeMessage(now time.Time) (event.Event, bool) {
	status := p.pendingStatus
	d := p.pendingData
	channel := int(status & 0x0F)

	switch status & 0xF0 {
	case 0x80:
		// Note off.
		return event.Note(p.source, int(d[0]), 0, channel), true

	case 0x90:
		velocity := int(d[1])
		return event.Note(p.source, int(d[0]), velocity, channel), true

	case 0xB0:
		value := float64(d[1]) / 127.0
		return event.Control(p.source, int(d[0]), value, channel), true

	case 0xE0:
		raw := (int(d[1]) << 7) | int(d[0])
		value := float64(raw) / 16383.0
		return event.Control(p.source, PitchBendControlID, value, channel), true
	}

	if status == statusSPP {
		position := (int(d[1]) << 7) | int(d[0])
		if p.clock != nil {
			p.clock.OnSongPositionPointer(position, now)
		}
		return event.Event{}, false
	}

	p.DroppedCount++
	return event.Event{}, false
}
