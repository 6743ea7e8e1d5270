// Package analyser implements the Frequency Analyser (C5): windowed
// band-energy extraction from an audio stream, published at a fixed rate
// on the Input Fusion Bus.
package analyser

import "errors"

// ErrMicrophoneDenied is the error value for denied microphone access; no
// Source implementation in this module returns it.
var ErrMicrophoneDenied = errors.New("analyser: microphone access denied")

// Source is the Audio source contract (§6.2): something that can feed PCM
// frames to the analyser and be connected/disconnected on demand.
type Source interface {
	// Connect opens the underlying device or tap. deviceID is
	// implementation-specific (an input device name for the microphone
	// source; the voice engine tap ignores it).
	Connect(deviceID string) error
	// Disconnect releases the underlying device or tap.
	Disconnect() error
	// Frames returns a channel of interleaved float32 PCM frames. The
	// channel is closed on Disconnect.
	Frames() <-chan []float32
	// SampleRate reports the sample rate frames are delivered at.
	SampleRate() float64
}
