package hrtf

import (
	"fmt"
	"os"

	"shac/pkg/ambisonic"
)

// Provider supplies the Table a decoder should open with for a given
// ambisonic order, deferring the choice of matrix-vs-convolution
// strategy to the concrete provider rather than the caller. Modeled on
// the crosstalk simulator's HRTFProvider.ImpulseResponses in the
// retrieved corpus, adapted from "always return one fixed IR set" to
// "return whichever Table kind this provider was built for".
type Provider interface {
	Load(order int) (*Table, error)
}

// FileProvider loads a convolution Table from a .hrtf library file on
// disk, opening and closing the file on every Load call.
type FileProvider struct {
	Path string
}

// Load implements Provider.
func (p FileProvider) Load(order int) (*Table, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("hrtf: opening library %s: %w", p.Path, err)
	}
	defer f.Close()

	table, err := LoadLibrary(f, order)
	if err != nil {
		return nil, fmt.Errorf("hrtf: loading library %s: %w", p.Path, err)
	}
	return table, nil
}

// FallbackMatrixProvider builds a crude but dependency-free scalar
// Table: the omni channel feeds both ears equally, and the left-right
// (X, ACN 3) channel, if present, pans between them, toward the right ear
// for sources at +X. It exists so a decoder can run without a measured
// HRTF library.
type FallbackMatrixProvider struct{}

// Load implements Provider.
func (FallbackMatrixProvider) Load(order int) (*Table, error) {
	channels := ambisonic.Channels(order)
	left := make([]float64, channels)
	right := make([]float64, channels)

	left[0] = 0.707
	right[0] = 0.707

	if side := ambisonic.ACN(1, 1); channels > side {
		left[side] = -0.5
		right[side] = 0.5
	}

	return NewMatrix(order, left, right), nil
}

// OpenProvider returns a FileProvider for path, or a FallbackMatrixProvider
// if path is empty — the dispatch cmd/shac-decode and cmd/shac-nav's
// loadTable functions otherwise duplicated.
func OpenProvider(path string) Provider {
	if path == "" {
		return FallbackMatrixProvider{}
	}
	return FileProvider{Path: path}
}
