package dsp

import (
	"math"

	"shac/pkg/ambisonic"
	"shac/pkg/coord"
	"shac/pkg/sphharm"
)

// DefaultMinDistance is the r_min floor used by distance-gain attenuation
// at both encode and decode time.
const DefaultMinDistance = 1.0

// Encoder projects a mono source onto an ambisonic field at a fixed
// direction. An Encoder is immutable after construction and safe for
// concurrent use across layers, since offline encoding of independent
// layers may run in parallel.
type Encoder struct {
	order    int
	channels int
	table    *sphharm.Table

	applyDistanceGain bool
	minDistance       float64
}

// NewEncoder builds an Encoder for the given order and normalization
// scheme. When applyDistanceGain is true, EncodeMono attenuates by
// 1/max(r, minDistance); minDistance <= 0 falls back to DefaultMinDistance.
func NewEncoder(order int, norm ambisonic.Normalization, applyDistanceGain bool, minDistance float64) *Encoder {
	if minDistance <= 0 {
		minDistance = DefaultMinDistance
	}
	return &Encoder{
		order:             order,
		channels:          ambisonic.Channels(order),
		table:             sphharm.NewTable(order, norm),
		applyDistanceGain: applyDistanceGain,
		minDistance:       minDistance,
	}
}

// EncodeMono projects audio at position into a frame-major ACN ambisonic
// buffer: per-channel spherical-harmonic gains at the source's direction,
// optionally scaled by distance, applied sample by sample. The encoder
// performs no clipping; callers manage levels.
func (e *Encoder) EncodeMono(audio []float32, position coord.Vec3) *ambisonic.Buffer {
	theta, phi := position.Harmonic()

	coeffs := make([]float32, e.channels)
	e.table.EncodeCoeffs(theta, phi, coeffs)

	gain := float32(1.0)
	if e.applyDistanceGain {
		gain = float32(1.0 / math.Max(position.Length(), e.minDistance))
	}

	buf := ambisonic.NewBuffer(len(audio), e.channels)
	for s, sample := range audio {
		v := sample * gain
		frame := buf.Frame(s)
		for k, c := range coeffs {
			frame[k] = v * c
		}
	}

	return buf
}

// Order returns the ambisonic order this Encoder was built for.
func (e *Encoder) Order() int { return e.order }

// Channels returns the number of ACN channels this Encoder produces.
func (e *Encoder) Channels() int { return e.channels }
