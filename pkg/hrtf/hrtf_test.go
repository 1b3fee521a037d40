package hrtf

import (
	"io"
	"testing"
)

// memFile is an in-memory file satisfying io.ReadWriteSeeker, mirroring
// the fixture pattern used across the tree's other container tests.
type memFile struct {
	data []byte
	pos  int64
}

func (m *memFile) Write(p []byte) (int, error) {
	needed := int(m.pos) + len(p)
	if needed > len(m.data) {
		grown := make([]byte, needed)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:], p)
	m.pos += int64(len(p))
	return len(p), nil
}

func (m *memFile) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = m.pos + offset
	case io.SeekEnd:
		newPos = int64(len(m.data)) + offset
	}
	if newPos < 0 {
		return 0, io.EOF
	}
	m.pos = newPos
	return newPos, nil
}

func TestTableValidateMatrix(t *testing.T) {
	order := 1
	channels := (order + 1) * (order + 1)
	table := NewMatrix(order, make([]float64, channels), make([]float64, channels))
	if err := table.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestTableValidateOrderZero(t *testing.T) {
	table := NewMatrix(0, []float64{0.707}, []float64{0.707})
	if err := table.Validate(); err != nil {
		t.Fatalf("order 0 should validate, got: %v", err)
	}
}

func TestTableValidateMismatchedChannels(t *testing.T) {
	table := NewMatrix(1, []float64{1, 2, 3}, []float64{1, 2})
	if err := table.Validate(); err == nil {
		t.Fatal("expected validation error for mismatched row length")
	}
}

func TestTableValidateConvolutionEmptyIR(t *testing.T) {
	order := 0
	left := [][]float64{{}}
	right := [][]float64{{0.1}}
	table := NewConvolution(order, left, right)
	if err := table.Validate(); err == nil {
		t.Fatal("expected validation error for empty IR")
	}
}

func TestTableValidateOrderOutOfRange(t *testing.T) {
	table := &Table{Order: 8, Channels: 81, Kind: Matrix, Scalar: [2][]float64{make([]float64, 81), make([]float64, 81)}}
	if err := table.Validate(); err == nil {
		t.Fatal("expected validation error for order > 7")
	}
}

func buildLibrary(order int) *Library {
	lib := NewLibrary()
	channels := (order + 1) * (order + 1)
	for k := 0; k < channels; k++ {
		lib.Add(&Entry{Channel: k, Ear: Left, SampleRate: 48000, Audio: []float32{0.5, 0.25, 0.1}})
		lib.Add(&Entry{Channel: k, Ear: Right, SampleRate: 48000, Audio: []float32{0.4, 0.2, 0.05}})
	}
	return lib
}

func TestLoadLibraryRoundTrip(t *testing.T) {
	order := 1
	channels := (order + 1) * (order + 1)
	lib := buildLibrary(order)

	buf := &memFile{}
	if err := WriteLibrary(buf, lib); err != nil {
		t.Fatalf("WriteLibrary: %v", err)
	}
	buf.pos = 0

	table, err := LoadLibrary(buf, order)
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	if table.Kind != Convolution {
		t.Fatalf("Kind = %v, want Convolution", table.Kind)
	}
	if table.Channels != channels {
		t.Fatalf("Channels = %d, want %d", table.Channels, channels)
	}
	for k := 0; k < channels; k++ {
		if len(table.IR[0][k]) != 3 {
			t.Errorf("channel %d left IR length = %d, want 3", k, len(table.IR[0][k]))
		}
		if len(table.IR[1][k]) != 3 {
			t.Errorf("channel %d right IR length = %d, want 3", k, len(table.IR[1][k]))
		}
	}
}

func TestLoadLibraryMissingChannel(t *testing.T) {
	lib := NewLibrary()
	lib.Add(&Entry{Channel: 0, Ear: Left, SampleRate: 48000, Audio: []float32{0.5}})
	// channel 0's right ear is intentionally omitted.

	buf := &memFile{}
	if err := WriteLibrary(buf, lib); err != nil {
		t.Fatalf("WriteLibrary: %v", err)
	}
	buf.pos = 0

	if _, err := LoadLibrary(buf, 0); err == nil {
		t.Fatal("expected error for missing channel 0 right-ear entry")
	}
}

func TestLibraryReaderIndexListsWithoutDecodingAudio(t *testing.T) {
	lib := buildLibrary(0)
	buf := &memFile{}
	if err := WriteLibrary(buf, lib); err != nil {
		t.Fatalf("WriteLibrary: %v", err)
	}
	buf.pos = 0

	lr, err := NewLibraryReader(buf)
	if err != nil {
		t.Fatalf("NewLibraryReader: %v", err)
	}

	index := lr.Index()
	if len(index) != 2 {
		t.Fatalf("len(index) = %d, want 2", len(index))
	}
	if index[0].Channel != 0 || index[0].Ear != Left {
		t.Errorf("index[0] = %+v, want channel 0 ear Left", index[0])
	}
}

func TestProviderFallbackMatrixOmniOnly(t *testing.T) {
	table, err := FallbackMatrixProvider{}.Load(0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Kind != Matrix {
		t.Errorf("Kind = %v, want Matrix", table.Kind)
	}
	if table.Scalar[0][0] == 0 {
		t.Error("expected a nonzero omni gain in the fallback matrix")
	}
}

func TestOpenProviderDispatchesOnPath(t *testing.T) {
	if _, ok := OpenProvider("").(FallbackMatrixProvider); !ok {
		t.Error(`OpenProvider("") should return a FallbackMatrixProvider`)
	}
	if _, ok := OpenProvider("some.hrtf").(FileProvider); !ok {
		t.Error("OpenProvider(path) should return a FileProvider")
	}
}
