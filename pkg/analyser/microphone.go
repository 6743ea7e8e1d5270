package analyser

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/sonetlumiere/vj/pkg/logger"
)

// MicrophoneSource is the PortAudio-backed Source implementation of the
// Audio source contract (§6.2).
type MicrophoneSource struct {
	mu sync.Mutex

	stream     *portaudio.Stream
	frames     chan []float32
	sampleRate float64
}

// NewMicrophoneSource returns a MicrophoneSource; it does not open the
// device until Connect is called.
func NewMicrophoneSource(sampleRate float64) *MicrophoneSource {
	return &MicrophoneSource{sampleRate: sampleRate}
}

// Connect opens the named input device (or the default device when
// deviceID is empty) and starts streaming.
func (m *MicrophoneSource) Connect(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("analyser: portaudio init: %w", err)
	}

	device, err := resolveDevice(deviceID)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	m.frames = make(chan []float32, 32)

	const bufferSize = 512
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      m.sampleRate,
		FramesPerBuffer: bufferSize,
	}

	stream, err := portaudio.OpenStream(params, m.onFrames)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("analyser: open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("analyser: start stream: %w", err)
	}

	m.stream = stream
	return nil
}

func resolveDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("analyser: enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("analyser: input device %q not found", deviceID)
}

// onFrames is the PortAudio callback. It must not block or allocate beyond
// the non-blocking channel send below; a full channel drops the frame
// rather than stalling the audio thread.
func (m *MicrophoneSource) onFrames(in []float32) {
	frame := make([]float32, len(in))
	copy(frame, in)

	select {
	case m.frames <- frame:
	default:
		logger.GetLogger().Warn("analyser: dropped audio frame, consumer too slow")
	}
}

// Disconnect stops and closes the stream.
func (m *MicrophoneSource) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	var errs []error
	if err := m.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := m.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	m.stream = nil
	close(m.frames)
	portaudio.Terminate()

	if len(errs) > 0 {
		return fmt.Errorf("analyser: disconnect: %v", errs)
	}
	return nil
}

// Frames returns the channel of captured PCM frames.
func (m *MicrophoneSource) Frames() <-chan []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// SampleRate reports the configured sample rate.
func (m *MicrophoneSource) SampleRate() float64 {
	return m.sampleRate
}
