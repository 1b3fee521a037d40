// Package vorbis decodes Ogg/Vorbis audio into an ingest.Source via
// jfreymuth/oggvorbis.
package vorbis

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"shac/internal/ingest"
)

// oggReader narrows *oggvorbis.Reader to what source needs, for testing.
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
}

// source wraps an oggvorbis.Reader, which already decodes straight to
// interleaved float32 frames, unlike the integer-PCM wav, aiff and mp3
// adapters.
type source struct {
	dec      oggReader
	frameBuf []float32
}

func (s *source) SampleRate() int { return s.dec.SampleRate() }
func (s *source) Channels() int   { return s.dec.Channels() }
func (s *source) Close() error    { return nil }

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	channels := s.dec.Channels()
	framesRequested := len(dst) / channels
	if framesRequested == 0 {
		framesRequested = 1
	}
	needed := framesRequested * channels

	if cap(s.frameBuf) < needed {
		s.frameBuf = make([]float32, needed)
	}
	s.frameBuf = s.frameBuf[:needed]

	framesRead, err := s.dec.Read(s.frameBuf)
	if framesRead == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	samplesRead := framesRead * channels
	copy(dst, s.frameBuf[:samplesRead])

	return samplesRead, err
}

// Decoder implements ingest.Decoder for Ogg/Vorbis files.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (ingest.Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("ingest/vorbis: %w", err)
	}

	return &source{dec: dec, frameBuf: make([]float32, 4096)}, nil
}
