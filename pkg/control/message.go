// Package control implements the remote Control Channel (C9), the SysEx
// Command Handler (C11), and the OSC Client (C12): the three surfaces
// through which a second client steers mode, scene, and preset selection.
package control

// Command names the envelope vocabulary of spec.md §4.11.
type Command string

const (
	CmdSwitchMode          Command = "switchMode"
	CmdSwitchScene         Command = "switchScene"
	CmdMilkdropNext        Command = "milkdropNext"
	CmdMilkdropPrev        Command = "milkdropPrev"
	CmdMilkdropSelect      Command = "milkdropSelect"
	CmdAudioDeviceSelect   Command = "audioDeviceSelect"
	CmdMidiSynthEnable     Command = "midiSynthEnable"
	CmdMilkdropAudioSource Command = "milkdropAudioSource"
	CmdMidiSynthChannel    Command = "midiSynthChannel"
	CmdMidiSynthAudible    Command = "midiSynthAudible"
	CmdMidiInputSelect     Command = "midiInputSelect"
	CmdSysexEnable         Command = "sysexEnable"
	CmdRendererSelect      Command = "rendererSelect"
	CmdOscServer           Command = "oscServer"
	CmdRequestState        Command = "requestState"

	// Reverse direction, host → client.
	CmdStateUpdate Command = "stateUpdate"
	CmdPresetList  Command = "presetList"
)

// Envelope is the wire message of §4.11: `{ command, data }`. Data's
// concrete type depends on Command — an int scene index, a string mode
// name, a bool flag, and so on; handlers type-assert it per command.
type Envelope struct {
	Command Command `json:"command"`
	Data    any     `json:"data"`
}

// StateSnapshot is the payload of a stateUpdate Envelope: the subset of
// application state a remote client needs to render its own UI.
type StateSnapshot struct {
	Mode             string `json:"mode"`
	Scene            int    `json:"scene"`
	MilkdropIndex    int    `json:"milkdropIndex"`
	Renderer         string `json:"renderer"`
	AudioInput       string `json:"audioInput"`
	MidiInputID      string `json:"midiInputId"`
	SysExEnabled     bool   `json:"sysexEnabled"`
	MidiSynthAudible bool   `json:"midiSynthAudible"`
}

// PresetListPayload is the payload of a presetList Envelope.
type PresetListPayload struct {
	Keys []string `json:"keys"`
}

// Handler is invoked for every Envelope arriving on any transport. The
// coordinator installs one handler per Channel to translate commands into
// component calls.
type Handler func(Envelope)
