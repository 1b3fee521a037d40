// Package ingest provides the source ingestion pipeline that feeds
// dsp.Encoder: a decoder registry keyed by format, a shared Source
// interface every format implements, and a MonoMixer that collapses
// multi-channel input down to the single channel dsp.Encoder.EncodeMono
// expects. Generalized from ik5-audpbx's audio package.
package ingest

import (
	"errors"
	"io"
	"sync"
)

// ErrFormatNotRegistered is returned by Registry.Get for an unknown format key.
var ErrFormatNotRegistered = errors.New("ingest: format not registered")

// Source is a decoded PCM stream, normalized to float32 samples in
// [-1, 1]. Every format package (wav, aiff, mp3, vorbis) returns one.
type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels is the interleaved channel count (1 = mono, 2 = stereo, ...).
	Channels() int
	// ReadSamples fills dst with interleaved float32 samples. It returns
	// the number of float32 values written (not frames): when n == 0 and
	// err == io.EOF, the stream is finished.
	ReadSamples(dst []float32) (n int, err error)
	// Close releases any resources held by the underlying decoder.
	Close() error
}

// Decoder constructs a Source from a file's raw bytes.
type Decoder interface {
	Decode(r io.Reader) (Source, error)
}

// Registry maps a format key (e.g. "wav", "mp3") to the Decoder that
// handles it, so cmd/shac-encode can dispatch on a file extension
// without importing every format package's concrete type.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register binds format to d, overwriting any prior registration.
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[format] = d
}

// Get looks up the Decoder registered for format.
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[format]
	return d, ok
}

// Decode dispatches to the Decoder registered for format.
func (r *Registry) Decode(format string, rd io.Reader) (Source, error) {
	d, ok := r.Get(format)
	if !ok {
		return nil, ErrFormatNotRegistered
	}
	return d.Decode(rd)
}

// ReadAll drains src into a single mono float32 buffer, for the offline
// use case dsp.Encoder.EncodeMono expects: a complete signal rather than
// a stream. Multi-channel sources must be wrapped in a MonoMixer first.
func ReadAll(src Source) ([]float32, error) {
	if src.Channels() != 1 {
		return nil, errMonoOnly
	}

	var out []float32
	buf := make([]float32, 8192)
	for {
		n, err := src.ReadSamples(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

var errMonoOnly = errors.New("ingest: ReadAll requires a mono source, wrap multi-channel sources in a MonoMixer")
