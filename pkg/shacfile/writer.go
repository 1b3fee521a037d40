package shacfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Writer is a stateful builder: it accumulates layers, then emits the
// complete .shac file in one Write call. A Writer is not safe for
// concurrent use.
type Writer struct {
	order         uint16
	channels      uint16
	sampleRate    uint32
	normalization Normalization

	samples uint32 // pinned by the first AddLayer call
	pinned  bool

	ids    map[string]struct{}
	layers []Layer
}

// New initializes a Writer for the given order, sample rate, and
// normalization scheme. Sample count is not yet fixed; it is pinned by
// the first AddLayer call.
func New(order int, sampleRate uint32, norm Normalization) (*Writer, error) {
	if order < MinOrder || order > MaxOrder {
		return nil, newErr(InvalidOrder, -1, fmt.Errorf("order %d out of range [%d,%d]", order, MinOrder, MaxOrder))
	}
	if !norm.Valid() {
		return nil, newErr(InvalidNormalization, -1, fmt.Errorf("normalization %d", uint16(norm)))
	}

	return &Writer{
		order:         uint16(order),
		channels:      uint16((order + 1) * (order + 1)),
		sampleRate:    sampleRate,
		normalization: norm,
		ids:           make(map[string]struct{}),
	}, nil
}

// AddLayer validates and appends a layer. audio must be frame-major
// ACN-ordered data of length samples*channels.
func (w *Writer) AddLayer(id string, samples int, audio []float32, meta Metadata) error {
	if len(id) < MinLayerIDLen || len(id) > MaxLayerIDLen {
		return layerErr(InvalidLayerId, id, fmt.Errorf("id length %d out of range [%d,%d]", len(id), MinLayerIDLen, MaxLayerIDLen))
	}
	if _, dup := w.ids[id]; dup {
		return layerErr(DuplicateLayerId, id, nil)
	}
	if err := meta.validate(); err != nil {
		return layerErr(InvalidMetadata, id, err)
	}

	want := samples * int(w.channels)
	if len(audio) != want {
		return layerErr(ShapeMismatch, id, fmt.Errorf("audio length %d, want %d (%d samples x %d channels)", len(audio), want, samples, w.channels))
	}

	if !w.pinned {
		w.samples = uint32(samples)
		w.pinned = true
	} else if uint32(samples) != w.samples {
		return layerErr(ShapeMismatch, id, fmt.Errorf("sample count %d does not match file's pinned sample count %d", samples, w.samples))
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return layerErr(InvalidMetadata, id, err)
	}
	if len(metaBytes) < MinMetaLen || len(metaBytes) > MaxMetaLen {
		return layerErr(MetadataTooLarge, id, fmt.Errorf("serialized metadata is %d bytes, limit %d", len(metaBytes), MaxMetaLen))
	}

	w.ids[id] = struct{}{}
	w.layers = append(w.layers, Layer{ID: id, Metadata: meta, Audio: append([]float32(nil), audio...)})
	return nil
}

// Write emits the full file to sink: magic, header, then each layer
// block in the order layers were added. Non-finite audio samples are
// passed through unchanged; it is the caller's responsibility to
// sanitize a source signal before encoding it.
func (w *Writer) Write(sink io.Writer) error {
	if _, err := sink.Write([]byte(Magic)); err != nil {
		return fmt.Errorf("shacfile: write magic: %w", err)
	}

	header := Header{
		Version:       CurrentVersion,
		Order:         w.order,
		Channels:      w.channels,
		SampleRate:    w.sampleRate,
		BitDepth:      RequiredBits,
		Samples:       w.samples,
		LayerCount:    uint16(len(w.layers)),
		Normalization: w.normalization,
	}
	if err := writeHeaderFields(sink, header); err != nil {
		return err
	}

	for _, layer := range w.layers {
		if err := writeLayer(sink, layer); err != nil {
			return err
		}
	}

	return nil
}

func writeHeaderFields(sink io.Writer, h Header) error {
	fields := []any{h.Version, h.Order, h.Channels, h.SampleRate, h.BitDepth, h.Samples, h.LayerCount, uint16(h.Normalization)}
	for _, f := range fields {
		if err := binary.Write(sink, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("shacfile: write header: %w", err)
		}
	}
	return nil
}

func writeLayer(sink io.Writer, l Layer) error {
	metaBytes, err := json.Marshal(l.Metadata)
	if err != nil {
		return layerErr(InvalidMetadata, l.ID, err)
	}

	idBytes := []byte(l.ID)
	if err := binary.Write(sink, binary.LittleEndian, uint16(len(idBytes))); err != nil {
		return fmt.Errorf("shacfile: write id_len: %w", err)
	}
	if err := binary.Write(sink, binary.LittleEndian, uint32(len(metaBytes))); err != nil {
		return fmt.Errorf("shacfile: write meta_len: %w", err)
	}
	if _, err := sink.Write(idBytes); err != nil {
		return fmt.Errorf("shacfile: write id: %w", err)
	}
	if _, err := sink.Write(metaBytes); err != nil {
		return fmt.Errorf("shacfile: write metadata: %w", err)
	}

	for _, sample := range l.Audio {
		if err := binary.Write(sink, binary.LittleEndian, sample); err != nil {
			return fmt.Errorf("shacfile: write audio: %w", err)
		}
	}

	return nil
}
