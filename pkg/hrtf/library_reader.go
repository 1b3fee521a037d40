package hrtf

import (
	"encoding/binary"
	"fmt"
	"io"

	"shac/pkg/f16"
)

// LibraryReader reads a .hrtf library file lazily: NewLibraryReader parses
// only the header and trailing index, and Load seeks to and decodes a
// single entry's audio on demand.
type LibraryReader struct {
	r       io.ReadSeeker
	version uint16
	count   uint32
	index   []IndexEntry
}

// NewLibraryReader parses r's header and index chunk, leaving entry audio
// unread until Load is called.
func NewLibraryReader(r io.ReadSeeker) (*LibraryReader, error) {
	lr := &LibraryReader{r: r}

	indexOffset, err := lr.readHeader()
	if err != nil {
		return nil, err
	}
	if err := lr.readIndex(indexOffset); err != nil {
		return nil, err
	}
	return lr, nil
}

func (lr *LibraryReader) readHeader() (uint64, error) {
	var magic [4]byte
	if _, err := io.ReadFull(lr.r, magic[:]); err != nil {
		return 0, fmt.Errorf("hrtf: reading magic: %w", err)
	}
	if string(magic[:]) != MagicNumber {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}

	if err := binary.Read(lr.r, binary.LittleEndian, &lr.version); err != nil {
		return 0, fmt.Errorf("hrtf: reading version: %w", err)
	}
	if lr.version != CurrentVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, lr.version)
	}

	if err := binary.Read(lr.r, binary.LittleEndian, &lr.count); err != nil {
		return 0, fmt.Errorf("hrtf: reading entry count: %w", err)
	}

	var indexOffset uint64
	if err := binary.Read(lr.r, binary.LittleEndian, &indexOffset); err != nil {
		return 0, fmt.Errorf("hrtf: reading index offset: %w", err)
	}
	return indexOffset, nil
}

func (lr *LibraryReader) readIndex(offset uint64) error {
	if _, err := lr.r.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("hrtf: seeking to index: %w", err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(lr.r, magic[:]); err != nil {
		return fmt.Errorf("hrtf: reading index magic: %w", err)
	}
	if string(magic[:]) != chunkTypeIndex {
		return fmt.Errorf("%w: expected index chunk, got %q", ErrInvalidChunk, magic)
	}

	var size uint64
	if err := binary.Read(lr.r, binary.LittleEndian, &size); err != nil {
		return fmt.Errorf("hrtf: reading index size: %w", err)
	}
	if size%uint64(indexEntryFixed) != 0 {
		return fmt.Errorf("%w: index size %d not a multiple of %d", ErrCorruptedData, size, indexEntryFixed)
	}

	lr.index = make([]IndexEntry, 0, lr.count)
	for n := uint64(0); n < size; n += uint64(indexEntryFixed) {
		entry, err := lr.readIndexEntry()
		if err != nil {
			return err
		}
		lr.index = append(lr.index, entry)
	}
	return nil
}

func (lr *LibraryReader) readIndexEntry() (IndexEntry, error) {
	var fields struct {
		Offset     uint64
		Channel    uint16
		Ear        uint8
		SampleRate float64
		Length     uint32
	}
	if err := binary.Read(lr.r, binary.LittleEndian, &fields); err != nil {
		return IndexEntry{}, fmt.Errorf("hrtf: reading index entry: %w", err)
	}
	return IndexEntry{
		Offset:     fields.Offset,
		Channel:    int(fields.Channel),
		Ear:        Ear(fields.Ear),
		SampleRate: fields.SampleRate,
		Length:     int(fields.Length),
	}, nil
}

// Version reports the library's on-disk format version.
func (lr *LibraryReader) Version() uint16 { return lr.version }

// Count reports the number of entries in the library.
func (lr *LibraryReader) Count() int { return len(lr.index) }

// Index returns the library's index entries, in on-disk order.
func (lr *LibraryReader) Index() []IndexEntry { return lr.index }

// Load decodes and returns the entry at i, seeking to its chunk and
// reading only that entry's audio.
func (lr *LibraryReader) Load(i int) (*Entry, error) {
	if i < 0 || i >= len(lr.index) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	return lr.readEntryChunk(lr.index[i])
}

// LoadChannelEar finds and decodes the entry for (channel, ear), scanning
// the index rather than requiring any name-string convention on disk.
func (lr *LibraryReader) LoadChannelEar(channel int, ear Ear) (*Entry, error) {
	for i, ie := range lr.index {
		if ie.Channel == channel && ie.Ear == ear {
			return lr.Load(i)
		}
	}
	return nil, fmt.Errorf("%w: channel %d ear %s", ErrEntryNotFound, channel, ear)
}

func (lr *LibraryReader) readEntryChunk(ie IndexEntry) (*Entry, error) {
	if _, err := lr.r.Seek(int64(ie.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("hrtf: seeking to entry at %d: %w", ie.Offset, err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(lr.r, magic[:]); err != nil {
		return nil, fmt.Errorf("hrtf: reading entry magic: %w", err)
	}
	if string(magic[:]) != chunkTypeEntry {
		return nil, fmt.Errorf("%w: expected entry chunk at %d, got %q", ErrInvalidChunk, ie.Offset, magic)
	}

	var size uint64
	if err := binary.Read(lr.r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("hrtf: reading entry chunk size: %w", err)
	}

	var fields struct {
		Channel    uint16
		Ear        uint8
		SampleRate float64
		Length     uint32
	}
	if err := binary.Read(lr.r, binary.LittleEndian, &fields); err != nil {
		return nil, fmt.Errorf("hrtf: reading entry fields: %w", err)
	}

	f16Data := make([]byte, int(fields.Length)*2)
	if _, err := io.ReadFull(lr.r, f16Data); err != nil {
		return nil, fmt.Errorf("hrtf: reading entry audio: %w", err)
	}

	return &Entry{
		Channel:    int(fields.Channel),
		Ear:        Ear(fields.Ear),
		SampleRate: fields.SampleRate,
		Audio:      f16.F16ToFloat32(f16Data),
	}, nil
}

// ReadLibrary reads every entry out of r in one pass, for callers that
// want the whole library rather than lazy, index-driven access.
func ReadLibrary(r io.ReadSeeker) (*Library, error) {
	lr, err := NewLibraryReader(r)
	if err != nil {
		return nil, err
	}

	lib := &Library{Version: lr.version, Entries: make([]*Entry, lr.Count())}
	for i := range lib.Entries {
		e, err := lr.Load(i)
		if err != nil {
			return nil, err
		}
		lib.Entries[i] = e
	}
	return lib, nil
}
