package analyser

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/sonetlumiere/vj/pkg/bus"
	"github.com/sonetlumiere/vj/pkg/event"
	"github.com/sonetlumiere/vj/pkg/logger"
)

// Frequency boundaries for the three bands (§4.5).
const (
	bassHz = 500
	midHz  = 4000
	highHz = 12000
)

// Analyser runs the windowed FFT band-energy extraction (C5) over the
// frames of the Source passed to Run, and publishes a Frequency event to
// the bus every UpdateRate. It does not connect or disconnect that Source.
type Analyser struct {
	mu sync.Mutex

	b      *bus.Bus
	source string

	fftSize    int
	sampleRate float64
	updateRate time.Duration
	smoothing  float64

	ring    []float64
	ringPos int

	fft *fourier.FFT
	win []float64

	prevBass, prevMid, prevHigh, prevRMS float64

	stopCh chan struct{}
	doneCh chan struct{}
}

// Config configures an Analyser.
type Config struct {
	FFTSize    int           // one of 1024, 2048, 4096, 8192
	UpdateRate time.Duration // default 50ms (20Hz)
	Smoothing  float64       // exponential smoothing coefficient, default 0
}

// New returns an Analyser publishing Frequency events to b under source
// name, for PCM frames delivered at sampleRate; the Source is given to Run.
func New(b *bus.Bus, source string, sampleRate float64, cfg Config) *Analyser {
	if cfg.FFTSize == 0 {
		cfg.FFTSize = 8192
	}
	if cfg.UpdateRate == 0 {
		cfg.UpdateRate = 50 * time.Millisecond
	}

	return &Analyser{
		b:          b,
		source:     source,
		fftSize:    cfg.FFTSize,
		sampleRate: sampleRate,
		updateRate: cfg.UpdateRate,
		smoothing:  cfg.Smoothing,
		ring:       make([]float64, cfg.FFTSize),
		fft:        fourier.NewFFT(cfg.FFTSize),
		win:        window.Hann(make([]float64, cfg.FFTSize)),
	}
}

// Run reads PCM frames from src until Stop is called or src's channel
// closes, publishing a Frequency event every UpdateRate.
func (a *Analyser) Run(src Source) {
	a.mu.Lock()
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	ticker := time.NewTicker(a.updateRate)
	defer ticker.Stop()
	defer close(a.doneCh)

	frames := src.Frames()

	for {
		select {
		case <-a.stopCh:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			a.absorb(f)
		case <-ticker.C:
			a.publish()
		}
	}
}

// Stop halts Run and blocks until it has returned.
func (a *Analyser) Stop() {
	a.mu.Lock()
	ch := a.stopCh
	done := a.doneCh
	a.mu.Unlock()
	if ch == nil {
		return
	}
	close(ch)
	<-done
}

func (a *Analyser) absorb(frame []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range frame {
		a.ring[a.ringPos] = float64(s)
		a.ringPos = (a.ringPos + 1) % a.fftSize
	}
}

func (a *Analyser) publish() {
	a.mu.Lock()
	windowed := make([]float64, a.fftSize)
	for i := 0; i < a.fftSize; i++ {
		idx := (a.ringPos + i) % a.fftSize
		windowed[i] = a.ring[idx] * a.win[i]
	}
	sampleRate := a.sampleRate
	fftSize := a.fftSize
	smoothing := a.smoothing
	a.mu.Unlock()

	coeffs := a.fft.Coefficients(nil, windowed)

	binHz := sampleRate / float64(fftSize)
	bassLo, bassHi := binRange(0, bassHz, binHz, len(coeffs))
	midLo, midHi := binRange(bassHz, midHz, binHz, len(coeffs))
	highLo, highHi := binRange(midHz, highHz, binHz, len(coeffs))

	bass := bandMagnitude(coeffs, bassLo, bassHi)
	mid := bandMagnitude(coeffs, midLo, midHi)
	high := bandMagnitude(coeffs, highLo, highHi)
	rms := rmsOf(windowed)

	a.mu.Lock()
	bass = smooth(smoothing, a.prevBass, bass)
	mid = smooth(smoothing, a.prevMid, mid)
	high = smooth(smoothing, a.prevHigh, high)
	rms = smooth(smoothing, a.prevRMS, rms)
	a.prevBass, a.prevMid, a.prevHigh, a.prevRMS = bass, mid, high, rms
	a.mu.Unlock()

	ev := event.Frequency(a.source, event.Bands{Bass: bass, Mid: mid, High: high}, rms)

	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error("analyser publish panicked", "panic", r)
		}
	}()
	a.b.Publish(ev)
}

func binRange(loHz, hiHz, binHz float64, nBins int) (int, int) {
	lo := int(loHz / binHz)
	hi := int(hiHz / binHz)
	if lo < 0 {
		lo = 0
	}
	if hi >= nBins {
		hi = nBins - 1
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func bandMagnitude(coeffs []complex128, lo, hi int) float64 {
	if hi < lo || hi >= len(coeffs) {
		return 0
	}
	var sum float64
	count := 0
	for i := lo; i <= hi; i++ {
		mag := cmplxAbs(coeffs[i])
		sum += normaliseMagnitude(mag)
		count++
	}
	if count == 0 {
		return 0
	}
	return clamp01(sum / float64(count))
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// normaliseMagnitude maps a raw FFT bin magnitude into a rough [0,1] range.
// The divisor is an empirical ceiling; band energies are a coarse
// descriptor, not calibrated SPL.
func normaliseMagnitude(mag float64) float64 {
	const ceiling = 64.0
	return mag / ceiling
}

func rmsOf(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		sumSq += s * s
	}
	return clamp01(math.Sqrt(sumSq / float64(len(samples))))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func smooth(coeff, prev, next float64) float64 {
	if coeff <= 0 {
		return next
	}
	return coeff*prev + (1-coeff)*next
}
