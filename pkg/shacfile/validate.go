package shacfile

import "fmt"

// Validate re-checks a parsed File's invariants beyond what Parse
// already enforces on the wire bytes. It is useful after programs
// construct or mutate a File in memory before re-writing it.
func Validate(f *File) error {
	if f.Header.Samples == 0 {
		return newErr(TruncatedData, -1, fmt.Errorf("samples must be > 0"))
	}
	want := (f.Header.Order + 1) * (f.Header.Order + 1)
	if f.Header.Channels != want {
		return newErr(ChannelMismatch, -1, fmt.Errorf("channels %d, want %d", f.Header.Channels, want))
	}
	if int(f.Header.LayerCount) != len(f.Layers) {
		return newErr(InvalidMetadata, -1, fmt.Errorf("layer count %d does not match %d layers present", f.Header.LayerCount, len(f.Layers)))
	}

	ids := make(map[string]struct{}, len(f.Layers))
	for _, l := range f.Layers {
		if _, dup := ids[l.ID]; dup {
			return layerErr(DuplicateLayerId, l.ID, nil)
		}
		ids[l.ID] = struct{}{}

		want := int(f.Header.Samples) * int(f.Header.Channels)
		if len(l.Audio) != want {
			return layerErr(ShapeMismatch, l.ID, fmt.Errorf("audio length %d, want %d", len(l.Audio), want))
		}
		if err := l.Metadata.validate(); err != nil {
			return layerErr(InvalidMetadata, l.ID, err)
		}
	}

	return nil
}

// Size returns the expected on-disk byte length of f: 26 bytes of
// header plus, for every layer, 6 + id_len + meta_len +
// samples*channels*4 bytes.
func Size(f *File) (int64, error) {
	total := int64(HeaderSize)
	for _, l := range f.Layers {
		metaBytes, err := jsonSize(l.Metadata)
		if err != nil {
			return 0, layerErr(InvalidMetadata, l.ID, err)
		}
		total += 6 + int64(len(l.ID)) + int64(metaBytes) + int64(f.Header.Samples)*int64(f.Header.Channels)*BytesPerSample
	}
	return total, nil
}

func jsonSize(m Metadata) (int, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
