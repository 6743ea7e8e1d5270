package voice

import (
	"encoding/binary"
	"io"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// stream adapts Engine.Process into the io.Reader shape ebiten/audio.Player
// expects (16-bit little-endian stereo PCM), pulling fresh samples from the
// Engine on demand rather than buffering a file. This is the "route or mute
// the audio-context output leg" half of §4.6 set_audible: Process always
// runs (the analyser tap always gets signal); stream only feeds the
// speaker, and is silent while muted.
type stream struct {
	engine *Engine
}

const bytesPerFrame = 4 // 16-bit stereo: 2 channels * 2 bytes

// Read implements io.Reader, synthesising len(p)/4 (rounded down) mono frames,
// duplicated to stereo, and writing them as the engine's own Process buffer
// so the speaker leg and the analyser tap observe the identical signal.
func (s *stream) Read(p []byte) (int, error) {
	frameCount := len(p) / bytesPerFrame
	if frameCount == 0 {
		return 0, nil
	}

	mono := s.engine.Process(frameCount)
	s.engine.Tap().Push(mono)

	audible := s.engine.Audible()

	n := 0
	for _, sample := range mono {
		v := sample
		if !audible {
			v = 0
		}
		i16 := int16(v * 32767)
		binary.LittleEndian.PutUint16(p[n:], uint16(i16))
		binary.LittleEndian.PutUint16(p[n+2:], uint16(i16))
		n += bytesPerFrame
	}
	return n, nil
}

// Player wraps an ebiten/audio.Player streaming from the Engine, the
// teacher's own mechanism (pkg/vm/audio.WAVPlayer) generalised from
// playing a decoded file to streaming a live-synthesised PCM source.
type Player struct {
	player *audio.Player
}

// NewPlayer creates and starts a Player reading from engine via ctx.
func NewPlayer(ctx *audio.Context, engine *Engine) (*Player, error) {
	p, err := ctx.NewPlayer(&stream{engine: engine})
	if err != nil {
		return nil, err
	}
	p.Play()
	return &Player{player: p}, nil
}

// Close stops playback.
func (p *Player) Close() error {
	p.player.Pause()
	return nil
}

var _ io.Reader = (*stream)(nil)
