package midi

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type noopClock struct{}

func (noopClock) OnClockTick(time.Time)                  {}
func (noopClock) OnSongPositionPointer(int, time.Time) {}

// TestProperty_RealTimeBytesDoNotCorruptSysEx verifies invariant I5: a
// System Real-Time byte (0xF8-0xFF) arriving between 0xF0 and 0xF7 is
// dispatched immediately and does not appear in, or otherwise disturb, the
// SysEx payload eventually emitted on 0xF7.
func TestProperty_RealTimeBytesDoNotCorruptSysEx(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	realTimeBytes := []byte{0xF8, 0xFA, 0xFB, 0xFC, 0xFE, 0xFF}

	properties.Property("interleaved real-time bytes never appear in the reassembled SysEx payload", prop.ForAll(
		func(manufacturer byte, payload []byte, insertAt int, rtIdx int) bool {
			p := NewParser("test", noopClock{})

			clean := append([]byte{0xF0, manufacturer}, payload...)
			clean = append(clean, 0xF7)

			withRT := append([]byte(nil), clean[:len(clean)-1]...) // everything up to but excluding 0xF7
			if insertAt < 0 {
				insertAt = 0
			}
			if insertAt > len(withRT) {
				insertAt = len(withRT)
			}
			rt := realTimeBytes[rtIdx%len(realTimeBytes)]

			stream := append([]byte(nil), withRT[:insertAt]...)
			stream = append(stream, rt)
			stream = append(stream, withRT[insertAt:]...)
			stream = append(stream, 0xF7)

			events := p.Feed(stream)

			var gotPayload []byte
			found := false
			for _, ev := range events {
				if ev.Kind.String() == "SysEx" {
					gotPayload = ev.Payload
					found = true
				}
			}

			if !found {
				return false
			}
			if len(gotPayload) != len(payload) {
				return false
			}
			for i := range payload {
				if gotPayload[i] != payload[i] {
					return false
				}
			}
			return true
		},
		gen.UInt8Range(0, 0x7F),
		gen.SliceOf(gen.UInt8Range(0, 0x7F)),
		gen.IntRange(0, 32),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func TestNoteOnVelocityZeroIsNoteOff(t *testing.T) {
	p := NewParser("test", noopClock{})
	events := p.Feed([]byte{0x90, 60, 0})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Velocity != 0 || events[0].Note != 60 {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestPitchBendNormalisation(t *testing.T) {
	p := NewParser("test", noopClock{})
	events := p.Feed([]byte{0xE0, 0x7F, 0x7F})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	want := float64((0x7F<<7)|0x7F) / 16383.0
	if events[0].ControlValue != want {
		t.Fatalf("want %f got %f", want, events[0].ControlValue)
	}
}

func TestMalformedChannelVoiceMessageIsDropped(t *testing.T) {
	p := NewParser("test", noopClock{})
	// A lone data byte with no preceding status is malformed.
	_ = p.Feed([]byte{0x10})
	if p.DroppedCount != 1 {
		t.Fatalf("expected 1 dropped message, got %d", p.DroppedCount)
	}
}
