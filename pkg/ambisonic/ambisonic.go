// Package ambisonic defines the channel layout and buffer types shared by
// the encoder, rotator, and decoder: ACN channel indexing and the
// normalization scheme each ambisonic field is expressed in.
package ambisonic

import (
	"fmt"
	"math"
)

// Normalization is a tagged variant chosen once per file/decoder so inner
// loops see a resolved table instead of a runtime branch per sample.
type Normalization uint16

const (
	// SN3D is Schmidt semi-normalized 3D; the omnidirectional channel equals 1.
	SN3D Normalization = 1
	// N3D is fully normalized (orthonormal on the unit sphere).
	N3D Normalization = 2
)

// Valid reports whether n is a recognized normalization scheme.
func (n Normalization) Valid() bool {
	return n == SN3D || n == N3D
}

func (n Normalization) String() string {
	switch n {
	case SN3D:
		return "SN3D"
	case N3D:
		return "N3D"
	default:
		return fmt.Sprintf("Normalization(%d)", uint16(n))
	}
}

// MaxOrder is the highest ambisonic order the codec supports: the
// Legendre recurrences stay numerically stable in float32 up to L=7.
const MaxOrder = 7

// Channels returns N = (L+1)^2, the channel count for ambisonic order L.
func Channels(order int) int {
	return (order + 1) * (order + 1)
}

// ACN returns the Ambisonic Channel Number k = l^2 + l + m.
func ACN(l, m int) int {
	return l*l + l + m
}

// Degree splits an ACN index k back into its (l, m) pair:
// l = floor(sqrt(k)), m = k - l^2 - l.
func Degree(k int) (l, m int) {
	l = isqrt(k)
	m = k - l*l - l
	return l, m
}

// isqrt returns floor(sqrt(n)) for n >= 0, correcting math.Sqrt's float
// round-trip error near perfect squares.
func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// Buffer is a contiguous block of samples*N ambisonic coefficients,
// frame-major: Buffer.At(s, k) is sample s, channel k.
type Buffer struct {
	Samples  int
	Channels int
	Data     []float32
}

// NewBuffer allocates a zeroed buffer of the given shape.
func NewBuffer(samples, channels int) *Buffer {
	return &Buffer{
		Samples:  samples,
		Channels: channels,
		Data:     make([]float32, samples*channels),
	}
}

// At returns the value at frame s, channel k.
func (b *Buffer) At(s, k int) float32 {
	return b.Data[s*b.Channels+k]
}

// Set stores the value at frame s, channel k.
func (b *Buffer) Set(s, k int, v float32) {
	b.Data[s*b.Channels+k] = v
}

// Frame returns the slice of N channel values for frame s, without copying.
func (b *Buffer) Frame(s int) []float32 {
	start := s * b.Channels
	return b.Data[start : start+b.Channels]
}
