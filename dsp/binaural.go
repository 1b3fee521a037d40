package dsp

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"shac/pkg/ambisonic"
	"shac/pkg/hrtf"
)

// Binaural renders a rotated ambisonic bus block down to a stereo pair:
// either a scalar dot product against an HRTF matrix or a convolution
// against per-channel impulse responses. Decoder treats Binaural as
// opaque and picks whichever implementation was loaded at open time.
type Binaural interface {
	// Decode consumes one frame-major ACN block of bus.Samples frames and
	// bus.Channels channels, and writes bus.Samples interleaved L/R pairs
	// into out (len(out) == 2*bus.Samples). Must not allocate.
	Decode(bus *ambisonic.Buffer, out []float32)
	Channels() int
}

// NewBinaural builds the Binaural implementation matching table.Kind.
func NewBinaural(table *hrtf.Table, blockSize int) (Binaural, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("dsp: %w", err)
	}

	switch table.Kind {
	case hrtf.Matrix:
		return newBinauralMatrix(table), nil
	case hrtf.Convolution:
		return newBinauralConvolver(table, blockSize)
	default:
		return nil, fmt.Errorf("dsp: unknown hrtf kind %d", table.Kind)
	}
}

// BinauralMatrix implements the short-IR scalar approximation: each ear's
// output sample is a single dot product against that ear's gain row, no
// convolution state to carry across blocks.
type BinauralMatrix struct {
	left, right []float64
}

func newBinauralMatrix(table *hrtf.Table) *BinauralMatrix {
	return &BinauralMatrix{left: table.Scalar[0], right: table.Scalar[1]}
}

func (b *BinauralMatrix) Channels() int { return len(b.left) }

func (b *BinauralMatrix) Decode(bus *ambisonic.Buffer, out []float32) {
	for s := 0; s < bus.Samples; s++ {
		frame := bus.Frame(s)
		var l, r float64
		for k, v := range frame {
			l += b.left[k] * float64(v)
			r += b.right[k] * float64(v)
		}
		out[2*s] = float32(l)
		out[2*s+1] = float32(r)
	}
}

// BinauralConvolver implements the full impulse-response decode: every
// ambisonic channel is convolved against its own left and right IR via
// FFT overlap-add, and the per-channel results are summed per ear.
// Carries no allocation beyond open time across Decode calls.
type BinauralConvolver struct {
	blockSize int
	channels  int
	engines   [2][]*convEngine // engines[ear][channel]

	mixL, mixR []float32 // scratch accumulators, length blockSize
	chanBuf    []float32 // scratch single-channel extraction, length blockSize
}

func newBinauralConvolver(table *hrtf.Table, blockSize int) (*BinauralConvolver, error) {
	c := &BinauralConvolver{
		blockSize: blockSize,
		channels:  table.Channels,
		mixL:      make([]float32, blockSize),
		mixR:      make([]float32, blockSize),
		chanBuf:   make([]float32, blockSize),
	}

	for ear := 0; ear < 2; ear++ {
		c.engines[ear] = make([]*convEngine, table.Channels)
		for k := 0; k < table.Channels; k++ {
			ir64 := table.IR[ear][k]
			ir32 := make([]float32, len(ir64))
			for i, v := range ir64 {
				ir32[i] = float32(v)
			}
			eng, err := newConvEngine(ir32, blockSize)
			if err != nil {
				return nil, fmt.Errorf("dsp: building convolver for ear %d channel %d: %w", ear, k, err)
			}
			c.engines[ear][k] = eng
		}
	}

	return c, nil
}

func (c *BinauralConvolver) Channels() int { return c.channels }

func (c *BinauralConvolver) Decode(bus *ambisonic.Buffer, out []float32) {
	n := bus.Samples
	mixL, mixR, buf := c.mixL[:n], c.mixR[:n], c.chanBuf[:n]

	for i := range mixL {
		mixL[i] = 0
		mixR[i] = 0
	}

	for k := 0; k < c.channels; k++ {
		for s := 0; s < n; s++ {
			buf[s] = bus.At(s, k)
		}

		c.engines[0][k].process(buf, mixL)
		c.engines[1][k].process(buf, mixR)
	}

	for s := 0; s < n; s++ {
		out[2*s] = mixL[s]
		out[2*s+1] = mixR[s]
	}
}

// convEngine is a single-channel, single-ear FFT overlap-add convolver.
// process accumulates into a caller-owned buffer rather than allocating
// a fresh output slice per call, since the realtime decode path can't
// afford per-block allocation.
type convEngine struct {
	fftSize   int
	blockSize int
	irLen     int

	plan  *algofft.Plan[complex64]
	irFFT []complex64

	overlap []float32

	inputBuf      []complex64
	outputBuf     []complex64
	timeDomainOut []float32
}

func newConvEngine(ir []float32, blockSize int) (*convEngine, error) {
	irLen := len(ir)
	fftSize := nextPowerOf2(blockSize + irLen - 1)

	plan, err := algofft.NewPlan32(fftSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}

	e := &convEngine{
		fftSize:       fftSize,
		blockSize:     blockSize,
		irLen:         irLen,
		plan:          plan,
		irFFT:         make([]complex64, fftSize),
		overlap:       make([]float32, maxInt(irLen-1, 0)),
		inputBuf:      make([]complex64, fftSize),
		outputBuf:     make([]complex64, fftSize),
		timeDomainOut: make([]float32, fftSize),
	}

	irComplex := make([]complex64, fftSize)
	for i := 0; i < irLen; i++ {
		irComplex[i] = complex(ir[i], 0)
	}
	if err := plan.Forward(e.irFFT, irComplex); err != nil {
		return nil, fmt.Errorf("ir fft: %w", err)
	}

	return e, nil
}

// process convolves input (length <= e.blockSize) against the engine's
// IR and adds the result into dst (length >= len(input)), carrying the
// convolution tail in e.overlap across calls.
func (e *convEngine) process(input, dst []float32) {
	for i := 0; i < e.fftSize; i++ {
		if i < len(input) {
			e.inputBuf[i] = complex(input[i], 0)
		} else {
			e.inputBuf[i] = 0
		}
	}

	_ = e.plan.Forward(e.inputBuf, e.inputBuf)

	for i := range e.outputBuf {
		e.outputBuf[i] = e.inputBuf[i] * e.irFFT[i]
	}

	_ = e.plan.Inverse(e.outputBuf, e.outputBuf)

	for i := range e.timeDomainOut {
		e.timeDomainOut[i] = real(e.outputBuf[i])
	}

	n := len(input)
	for i := 0; i < len(e.overlap) && i < n; i++ {
		dst[i] += e.overlap[i]
	}
	for i := 0; i < n; i++ {
		dst[i] += e.timeDomainOut[i]
	}

	// Shift the carried tail forward past the n samples just emitted,
	// then add this call's tail on top of what remains.
	m := len(e.overlap)
	shift := n
	if shift > m {
		shift = m
	}
	copy(e.overlap, e.overlap[shift:])
	for i := m - shift; i < m; i++ {
		e.overlap[i] = 0
	}
	for i := 0; i < m; i++ {
		e.overlap[i] += e.timeDomainOut[n+i]
	}
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
