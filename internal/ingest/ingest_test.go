package ingest

import (
	"errors"
	"io"
	"math"
	"testing"
)

// mockSource is a fixed-length, deterministic Source for exercising
// MonoMixer and ReadAll without a real decoder.
type mockSource struct {
	sampleRate int
	channels   int
	total      int // total samples across all channels
	cursor     int
	value      func(sample, channel int) float32
	closed     bool
}

func (s *mockSource) SampleRate() int { return s.sampleRate }
func (s *mockSource) Channels() int   { return s.channels }
func (s *mockSource) Close() error    { s.closed = true; return nil }

func (s *mockSource) ReadSamples(dst []float32) (int, error) {
	remaining := s.total - s.cursor
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := len(dst)
	if n > remaining {
		n = remaining
	}
	for i := 0; i < n; i++ {
		abs := s.cursor + i
		frame := abs / s.channels
		channel := abs % s.channels
		dst[i] = s.value(frame, channel)
	}
	s.cursor += n
	if s.cursor >= s.total {
		return n, io.EOF
	}
	return n, nil
}

func TestMonoMixerPassthroughWhenAlreadyMono(t *testing.T) {
	src := &mockSource{sampleRate: 8000, channels: 1, total: 10, value: func(int, int) float32 { return 0.5 }}
	mixer := NewMonoMixer(src)

	buf := make([]float32, 10)
	n, err := mixer.ReadSamples(buf)
	if err != io.EOF || n != 10 {
		t.Fatalf("n=%d err=%v, want 10,io.EOF", n, err)
	}
	for i, v := range buf {
		if v != 0.5 {
			t.Errorf("buf[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestMonoMixerAveragesStereo(t *testing.T) {
	src := &mockSource{sampleRate: 8000, channels: 2, total: 20, value: func(_, channel int) float32 {
		if channel == 0 {
			return 0.4
		}
		return 0.6
	}}
	mixer := NewMonoMixer(src)
	if mixer.Channels() != 1 {
		t.Fatalf("Channels() = %d, want 1", mixer.Channels())
	}

	buf := make([]float32, 10)
	n, err := mixer.ReadSamples(buf)
	if err != io.EOF || n != 10 {
		t.Fatalf("n=%d err=%v, want 10,io.EOF", n, err)
	}
	for i, v := range buf {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Errorf("buf[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestMonoMixerEmptyDst(t *testing.T) {
	src := &mockSource{sampleRate: 8000, channels: 2, total: 10, value: func(int, int) float32 { return 0 }}
	mixer := NewMonoMixer(src)
	n, err := mixer.ReadSamples(nil)
	if n != 0 || err != nil {
		t.Fatalf("n=%d err=%v, want 0,nil", n, err)
	}
}

func TestReadAllDrainsWholeMonoSource(t *testing.T) {
	src := &mockSource{sampleRate: 8000, channels: 1, total: 5000, value: func(s, _ int) float32 {
		return float32(s%3) * 0.1
	}}

	out, err := ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 5000 {
		t.Fatalf("len(out) = %d, want 5000", len(out))
	}
}

func TestReadAllRejectsMultiChannel(t *testing.T) {
	src := &mockSource{sampleRate: 8000, channels: 2, total: 10, value: func(int, int) float32 { return 0 }}
	if _, err := ReadAll(src); err == nil {
		t.Fatal("expected an error reading a multi-channel source directly")
	}
}

func TestRegistryDispatchesByFormat(t *testing.T) {
	reg := NewRegistry()
	want := &mockSource{sampleRate: 44100, channels: 1, total: 1}
	reg.Register("wav", stubDecoder{src: want})

	src, err := reg.Decode("wav", nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if src != want {
		t.Error("Decode returned a different Source than the registered decoder produced")
	}
}

func TestRegistryUnknownFormat(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Decode("flac", nil); !errors.Is(err, ErrFormatNotRegistered) {
		t.Errorf("err = %v, want ErrFormatNotRegistered", err)
	}
}

type stubDecoder struct{ src Source }

func (d stubDecoder) Decode(io.Reader) (Source, error) { return d.src, nil }
