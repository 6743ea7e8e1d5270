package control

import (
	"fmt"

	"github.com/sonetlumiere/vj/pkg/event"
	"github.com/sonetlumiere/vj/pkg/logger"
)

// ManufacturerID is the single manufacturer byte the SysEx Command
// Handler (C11) recognises; any other byte is not this system's traffic
// and is ignored upstream by the parser/coordinator.
const ManufacturerID byte = 0x7D

// SysEx command bytes, §4.10's handler table.
const (
	sysexSwitchMode   byte = 0x01
	sysexLoadMilkdrop byte = 0x02
	sysexSwitchScene  byte = 0x03
	sysexMilkdropNext byte = 0x10
	sysexMilkdropPrev byte = 0x11
)

// DecodeSysEx turns a reassembled SysEx payload (manufacturer byte
// already stripped by the parser into ev.ManufacturerID) into the
// equivalent Envelope, per §4.10's action table. ok is false for an
// unrecognised manufacturer or command byte, matching "other: logged;
// ignored".
func DecodeSysEx(ev event.Event) (Envelope, bool) {
	if ev.Kind != event.KindSysEx || ev.ManufacturerID != ManufacturerID {
		return Envelope{}, false
	}
	if len(ev.Payload) == 0 {
		return Envelope{}, false
	}

	cmd := ev.Payload[0]
	args := ev.Payload[1:]

	switch cmd {
	case sysexSwitchMode:
		if len(args) < 1 || args[0] > 2 {
			return Envelope{}, false
		}
		mode := [...]string{"builtin", "threejs", "milkdrop"}[args[0]]
		return Envelope{Command: CmdSwitchMode, Data: mode}, true

	case sysexLoadMilkdrop:
		if len(args) < 2 {
			return Envelope{}, false
		}
		index := int(args[0])<<7 | int(args[1])
		return Envelope{Command: CmdMilkdropSelect, Data: index}, true

	case sysexSwitchScene:
		if len(args) < 1 || args[0] > 3 {
			return Envelope{}, false
		}
		return Envelope{Command: CmdSwitchScene, Data: int(args[0])}, true

	case sysexMilkdropNext:
		return Envelope{Command: CmdMilkdropNext}, true

	case sysexMilkdropPrev:
		return Envelope{Command: CmdMilkdropPrev}, true

	default:
		logger.GetLogger().Debug("control: unrecognised sysex command", "cmd", fmt.Sprintf("0x%02X", cmd))
		return Envelope{}, false
	}
}

// EncodeSysEx is the reverse mapping, used by the MIDI-bridge leg of the
// control channel (§4.11: "a SysEx encoding is defined so that remote
// control can be transported through the same MIDI plumbing"). ok is
// false for an Envelope with no SysEx representation.
func EncodeSysEx(env Envelope) (payload []byte, ok bool) {
	switch env.Command {
	case CmdSwitchMode:
		mode, _ := env.Data.(string)
		var b byte
		switch mode {
		case "builtin":
			b = 0
		case "threejs", "threed":
			b = 1
		case "milkdrop":
			b = 2
		default:
			return nil, false
		}
		return []byte{sysexSwitchMode, b}, true

	case CmdMilkdropSelect:
		index, _ := env.Data.(int)
		if index < 0 {
			index = 0
		}
		return []byte{sysexLoadMilkdrop, byte(index>>7) & 0x7F, byte(index) & 0x7F}, true

	case CmdSwitchScene:
		scene, _ := env.Data.(int)
		if scene < 0 || scene > 3 {
			return nil, false
		}
		return []byte{sysexSwitchScene, byte(scene)}, true

	case CmdMilkdropNext:
		return []byte{sysexMilkdropNext}, true

	case CmdMilkdropPrev:
		return []byte{sysexMilkdropPrev}, true

	default:
		return nil, false
	}
}

// WrapSysEx builds the full `F0 7D <cmd> <data...> F7` wire envelope of
// §6.3 from a command payload (as returned by EncodeSysEx).
func WrapSysEx(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, 0xF0, ManufacturerID)
	out = append(out, payload...)
	out = append(out, 0xF7)
	return out
}
