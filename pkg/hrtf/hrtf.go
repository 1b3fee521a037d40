// Package hrtf defines the value-typed Head-Related Transfer Function
// table the decoder binaural-decodes against: either a scalar matrix
// or a per-channel impulse-response convolution, chosen at open time.
package hrtf

import "fmt"

// Table holds, per ACN ambisonic channel, the filter that maps that
// channel's signal onto the left and right ear. Exactly one of Scalar or
// the per-channel IR slices is populated, selected by Kind.
type Table struct {
	Order    int
	Channels int // must equal (Order+1)^2

	Kind Kind

	// Scalar holds a direct ambisonic-to-binaural gain matrix, used when
	// Kind == Matrix. Scalar[0] is the left-ear row, Scalar[1] the
	// right-ear row, each of length Channels.
	Scalar [2][]float64

	// IR holds time-domain impulse responses per channel, used when
	// Kind == Convolution. IR[0][k] is the left-ear IR for channel k,
	// IR[1][k] the right-ear IR.
	IR [2][][]float64
}

// Kind selects which binaural decode strategy a Table was loaded for.
type Kind int

const (
	// Matrix is the short-IR scalar approximation: one gain per channel
	// per ear, applied as a dot product with no convolution.
	Matrix Kind = iota
	// Convolution is the full impulse-response decode: each channel is
	// convolved against its own left/right IR before summing.
	Convolution
)

// Validate checks that a Table is internally consistent and usable to
// build a decoder.
func (t *Table) Validate() error {
	if t.Order < 0 || t.Order > 7 {
		return fmt.Errorf("hrtf: order %d out of range [0,7]", t.Order)
	}
	if t.Channels != (t.Order+1)*(t.Order+1) {
		return fmt.Errorf("hrtf: channel count %d does not match order %d", t.Channels, t.Order)
	}

	switch t.Kind {
	case Matrix:
		for ear := 0; ear < 2; ear++ {
			if len(t.Scalar[ear]) != t.Channels {
				return fmt.Errorf("hrtf: scalar row %d has %d gains, want %d", ear, len(t.Scalar[ear]), t.Channels)
			}
		}
	case Convolution:
		for ear := 0; ear < 2; ear++ {
			if len(t.IR[ear]) != t.Channels {
				return fmt.Errorf("hrtf: IR set %d has %d channels, want %d", ear, len(t.IR[ear]), t.Channels)
			}
			for k, ir := range t.IR[ear] {
				if len(ir) == 0 {
					return fmt.Errorf("hrtf: IR set %d channel %d is empty", ear, k)
				}
			}
		}
	default:
		return fmt.Errorf("hrtf: unknown kind %d", t.Kind)
	}

	return nil
}

// NewMatrix builds a scalar Table directly from left/right gain rows, one
// value per ambisonic channel.
func NewMatrix(order int, left, right []float64) *Table {
	n := (order + 1) * (order + 1)
	t := &Table{Order: order, Channels: n, Kind: Matrix}
	t.Scalar[0] = left
	t.Scalar[1] = right
	return t
}

// NewConvolution builds an impulse-response Table from per-channel
// left/right IRs.
func NewConvolution(order int, left, right [][]float64) *Table {
	n := (order + 1) * (order + 1)
	t := &Table{Order: order, Channels: n, Kind: Convolution}
	t.IR[0] = left
	t.IR[1] = right
	return t
}
