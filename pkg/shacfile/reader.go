package shacfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Parse reads a complete .shac file from r and produces an in-memory
// model. It is a stateless parser: it holds no state across calls and
// validates the header and every layer, failing on the first violation
// encountered.
func Parse(r io.Reader) (*File, error) {
	magic := make([]byte, 4)
	n, err := io.ReadFull(r, magic)
	if n == 0 && err == io.EOF {
		return nil, newErr(EmptyFile, 0, nil)
	}
	if err != nil {
		return nil, newErr(TruncatedData, 0, err)
	}
	if string(magic) != Magic {
		return nil, newErr(InvalidMagic, 0, fmt.Errorf("got %q", magic))
	}

	header, err := readHeaderFields(r)
	if err != nil {
		return nil, err
	}

	layers := make([]Layer, 0, header.LayerCount)
	ids := make(map[string]struct{}, header.LayerCount)
	offset := int64(HeaderSize)

	for i := 0; i < int(header.LayerCount); i++ {
		layer, consumed, err := readLayer(r, header, offset)
		if err != nil {
			return nil, err
		}
		if _, dup := ids[layer.ID]; dup {
			return nil, layerErr(DuplicateLayerId, layer.ID, nil)
		}
		ids[layer.ID] = struct{}{}
		layers = append(layers, layer)
		offset += consumed
	}

	return &File{Header: header, Layers: layers}, nil
}

func readHeaderFields(r io.Reader) (Header, error) {
	var h Header
	var norm uint16

	fields := []struct {
		offset int64
		dst    any
	}{
		{4, &h.Version},
		{6, &h.Order},
		{8, &h.Channels},
		{10, &h.SampleRate},
		{14, &h.BitDepth},
		{18, &h.Samples},
		{22, &h.LayerCount},
		{24, &norm},
	}

	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f.dst); err != nil {
			return h, newErr(TruncatedData, f.offset, err)
		}
	}
	h.Normalization = Normalization(norm)

	if h.Version != CurrentVersion {
		return h, newErr(UnsupportedVersion, 4, fmt.Errorf("got %d, want %d", h.Version, CurrentVersion))
	}
	if h.Order < MinOrder || h.Order > MaxOrder {
		return h, newErr(InvalidOrder, 6, fmt.Errorf("order %d out of range [%d,%d]", h.Order, MinOrder, MaxOrder))
	}
	want := (h.Order + 1) * (h.Order + 1)
	if h.Channels != want {
		return h, newErr(ChannelMismatch, 8, fmt.Errorf("channels %d, want %d for order %d", h.Channels, want, h.Order))
	}
	if h.BitDepth != RequiredBits {
		return h, newErr(InvalidBitDepth, 14, fmt.Errorf("bit depth %d, want %d", h.BitDepth, RequiredBits))
	}
	if h.SampleRate < MinSampleRate || h.SampleRate > MaxSampleRate {
		return h, newErr(InvalidSampleRate, 10, fmt.Errorf("sample rate %d out of range [%d,%d]", h.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if h.Samples == 0 {
		return h, newErr(TruncatedData, 18, fmt.Errorf("samples must be > 0"))
	}
	if h.LayerCount < 1 {
		return h, newErr(TruncatedData, 22, fmt.Errorf("layer count must be >= 1"))
	}
	if !h.Normalization.Valid() {
		return h, newErr(InvalidNormalization, 24, fmt.Errorf("normalization %d", norm))
	}

	return h, nil
}

func readLayer(r io.Reader, h Header, offset int64) (Layer, int64, error) {
	var idLen uint16
	var metaLen uint32

	if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
		return Layer{}, 0, newErr(TruncatedData, offset, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &metaLen); err != nil {
		return Layer{}, 0, newErr(TruncatedData, offset+2, err)
	}
	if idLen < MinLayerIDLen || idLen > MaxLayerIDLen {
		return Layer{}, 0, newErr(InvalidLayerId, offset, fmt.Errorf("id_len %d out of range [%d,%d]", idLen, MinLayerIDLen, MaxLayerIDLen))
	}
	if metaLen < MinMetaLen || metaLen > MaxMetaLen {
		return Layer{}, 0, newErr(MetadataTooLarge, offset+2, fmt.Errorf("meta_len %d out of range [%d,%d]", metaLen, MinMetaLen, MaxMetaLen))
	}

	idBytes := make([]byte, idLen)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return Layer{}, 0, newErr(TruncatedData, offset+6, err)
	}
	id := string(idBytes)

	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaBytes); err != nil {
		return Layer{}, 0, layerErr(TruncatedData, id, err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return Layer{}, 0, layerErr(InvalidMetadata, id, err)
	}

	want := int(h.Samples) * int(h.Channels)
	audio := make([]float32, want)
	for i := range audio {
		if err := binary.Read(r, binary.LittleEndian, &audio[i]); err != nil {
			return Layer{}, 0, layerErr(TruncatedData, id, fmt.Errorf("sample %d of %d: %w", i, want, err))
		}
	}

	consumed := int64(6) + int64(idLen) + int64(metaLen) + int64(want)*BytesPerSample
	return Layer{ID: id, Metadata: meta, Audio: audio}, consumed, nil
}
