package dsp

import (
	"fmt"
	"math"

	"shac/pkg/ambisonic"
	"shac/pkg/coord"
	"shac/pkg/hrtf"
	"shac/pkg/pose"
	"shac/pkg/shacfile"

	"shac/rotator"
)

// layerState holds one decoded layer's fixed audio and position, plus
// its per-layer gain.
type layerState struct {
	id       string
	position coord.Vec3
	gain     float64
	audio    *ambisonic.Buffer // Samples x Channels, read-only after open
}

// LayerGain is one layer's distance-attenuated gain as of the most
// recently produced block.
type LayerGain struct {
	ID   string
	Gain float64
}

// Stats is a read-only instrumentation snapshot of a Decoder, useful for
// a navigation UI or test harness to observe progress without touching
// the realtime state itself.
type Stats struct {
	BlocksProduced int64
	SamplesEmitted int64
	CacheMisses    int64 // cumulative rotation-matrix cache misses, from the decoder's Rotator
	LastPose       pose.Pose

	CursorPosition  int   // sample offset of the next block to be produced
	FramesRemaining int64 // samples left before Done

	// LayerGains holds each layer's current distance-attenuated gain,
	// in the order layers were added to the container.
	LayerGains []LayerGain
}

// Decoder renders a parsed .shac file to a stereo stream in fixed-size
// blocks. The bus, gain and binaural buffers are allocated at Open time
// and reused; ProduceBlock allocates only when a rotation-cache miss
// builds a new rotation matrix.
type Decoder struct {
	order    int
	channels int

	layers []layerState

	posePublisher *pose.Publisher
	rotator       *rotator.Rotator
	binaural      Binaural

	minDistance float64
	blockSize   int
	totalSamples int
	cursor      int

	bus *ambisonic.Buffer // blockSize x channels scratch, reused every block

	layerGains []LayerGain // scratch, length len(layers), reused every block

	stats Stats
}

// Open builds a Decoder from a parsed file and an HRTF table: it decodes
// every layer, builds a Rotator for the file's order and normalization,
// and preallocates the scratch buffers ProduceBlock reuses for the life
// of the decoder.
func Open(file *shacfile.File, table *hrtf.Table, posePublisher *pose.Publisher, blockSize int) (*Decoder, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("dsp: block size must be positive, got %d", blockSize)
	}
	if err := shacfile.Validate(file); err != nil {
		return nil, fmt.Errorf("dsp: %w", err)
	}

	order := int(file.Header.Order)
	channels := int(file.Header.Channels)
	if table.Channels != channels {
		return nil, fmt.Errorf("dsp: hrtf table has %d channels, file has %d", table.Channels, channels)
	}

	binaural, err := NewBinaural(table, blockSize)
	if err != nil {
		return nil, err
	}

	layers := make([]layerState, len(file.Layers))
	for i, l := range file.Layers {
		layers[i] = layerState{
			id:       l.ID,
			position: coord.Vec3{X: l.Metadata.Position[0], Y: l.Metadata.Position[1], Z: l.Metadata.Position[2]},
			gain:     l.Metadata.Gain,
			audio:    &ambisonic.Buffer{Samples: int(file.Header.Samples), Channels: channels, Data: l.Audio},
		}
	}

	norm := ambisonic.Normalization(file.Header.Normalization)

	d := &Decoder{
		order:        order,
		channels:     channels,
		layers:       layers,
		posePublisher: posePublisher,
		rotator:      rotator.New(order, norm),
		binaural:     binaural,
		minDistance:  DefaultMinDistance,
		blockSize:    blockSize,
		totalSamples: int(file.Header.Samples),
		bus:          ambisonic.NewBuffer(blockSize, channels),
		layerGains:   make([]LayerGain, len(layers)),
	}
	for i, l := range layers {
		d.layerGains[i].ID = l.id
	}

	return d, nil
}

// Done reports whether the cursor has reached the end of the stream.
func (d *Decoder) Done() bool { return d.cursor >= d.totalSamples }

// ProduceBlock renders the next block of audio into out, an interleaved
// L/R buffer of length >= 2*blockSize. It returns the number of stereo
// frames actually written, which is less than blockSize only for the
// stream's final, short block. Calling ProduceBlock
// after Done reports true returns (0, true).
//
// ProduceBlock allocates nothing on a rotation-cache hit; on a miss the
// Rotator builds the new matrix inline, which allocates. It never takes a
// lock that the pose publisher's writer could contend on.
func (d *Decoder) ProduceBlock(out []float32) (n int, done bool) {
	if d.Done() {
		return 0, true
	}

	remaining := d.totalSamples - d.cursor
	n = d.blockSize
	if remaining < n {
		n = remaining
	}

	snapshot := d.posePublisher.Snapshot()

	clearBuffer(d.bus.Data)

	for i, l := range d.layers {
		rel := l.position.Sub(snapshot.Position)
		distance := rel.Length()
		gain := l.gain / math.Max(distance, d.minDistance)
		d.layerGains[i].Gain = gain

		for s := 0; s < n; s++ {
			src := l.audio.Frame(d.cursor + s)
			dst := d.bus.Frame(s)
			for k, v := range src {
				dst[k] += v * float32(gain)
			}
		}
	}

	active := ambisonic.Buffer{Samples: n, Channels: d.channels, Data: d.bus.Data[:n*d.channels]}
	d.rotator.Apply(&active, snapshot.Yaw, snapshot.Pitch)

	stereo := out[:2*n]
	d.binaural.Decode(&active, stereo)
	sanitizeNonFinite(stereo)

	d.cursor += n
	d.stats.BlocksProduced++
	d.stats.SamplesEmitted += int64(n)
	d.stats.LastPose = snapshot
	d.stats.CacheMisses = d.rotator.CacheMisses()
	d.stats.CursorPosition = d.cursor
	d.stats.FramesRemaining = int64(d.totalSamples - d.cursor)

	return n, d.Done()
}

// Stats returns a snapshot of the decoder's instrumentation counters.
// Safe to call from a non-realtime thread; it copies rather than shares
// the decoder's internal counters, including a fresh copy of the
// per-layer gain slice so the caller can't observe a future block's
// in-place update of the decoder's own scratch slice.
func (d *Decoder) Stats() Stats {
	s := d.stats
	s.LayerGains = append([]LayerGain(nil), d.layerGains...)
	return s
}

// Reset rewinds the decoder to the start of the stream without
// reallocating any buffer.
func (d *Decoder) Reset() { d.cursor = 0 }

func clearBuffer(data []float32) {
	for i := range data {
		data[i] = 0
	}
}

// sanitizeNonFinite zeros any NaN or Inf sample in place so a single
// corrupted source or a degenerate HRTF filter can't propagate garbage
// into the output stream.
func sanitizeNonFinite(data []float32) {
	for i, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			data[i] = 0
		}
	}
}
