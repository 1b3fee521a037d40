package hrtf

import (
	"fmt"
	"io"
)

// LoadLibrary builds a convolution Table from a .hrtf library file (the
// container produced by cmd/hrtf-pack), reading one stereo impulse
// response per ambisonic channel directly by (channel, ear) — the
// library's index is keyed the same way a Table is, so no name-string
// convention is needed to find a channel's pair of entries.
func LoadLibrary(r io.ReadSeeker, order int) (*Table, error) {
	lr, err := NewLibraryReader(r)
	if err != nil {
		return nil, fmt.Errorf("hrtf: reading library: %w", err)
	}

	channels := (order + 1) * (order + 1)
	left := make([][]float64, channels)
	right := make([][]float64, channels)

	for k := 0; k < channels; k++ {
		l, err := lr.LoadChannelEar(k, Left)
		if err != nil {
			return nil, err
		}
		rt, err := lr.LoadChannelEar(k, Right)
		if err != nil {
			return nil, err
		}
		left[k] = toFloat64(l.Audio)
		right[k] = toFloat64(rt.Audio)
	}

	table := NewConvolution(order, left, right)
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("hrtf: loaded library failed validation: %w", err)
	}
	return table, nil
}

func toFloat64(samples []float32) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}
