package hrtf

import "errors"

// Ear selects which ear an Entry's impulse response was measured for.
type Ear uint8

const (
	Left Ear = iota
	Right
)

func (e Ear) String() string {
	if e == Right {
		return "R"
	}
	return "L"
}

// Entry is one ACN ambisonic channel's impulse response for one ear —
// the unit a library file stores. Audio is mono by construction: an
// HRTF measurement is inherently single-channel per (channel, ear) pair,
// so unlike a general-purpose IR archive a library never needs a
// per-entry channel count or free-form tags.
type Entry struct {
	Channel    int
	Ear        Ear
	SampleRate float64
	Audio      []float32
}

// Library is an in-memory collection of Entry values, the unit WriteLibrary
// and ReadLibrary move to and from a .hrtf file.
type Library struct {
	Version uint16
	Entries []*Entry
}

// NewLibrary returns an empty Library at the current on-disk version.
func NewLibrary() *Library {
	return &Library{Version: CurrentVersion}
}

// Add appends e to the library.
func (l *Library) Add(e *Entry) {
	l.Entries = append(l.Entries, e)
}

// IndexEntry is one entry's position and shape as recorded in a library
// file's trailing index, readable without loading any audio.
type IndexEntry struct {
	Offset     uint64
	Channel    int
	Ear        Ear
	SampleRate float64
	Length     int
}

// On-disk format constants for the .hrtf library container: a file
// header, one chunk per Entry, and a trailing index chunk giving each
// entry's offset and shape so a reader can list entries without
// decoding any audio.
const (
	MagicNumber    = "SHTF"
	CurrentVersion = uint16(1)

	chunkTypeEntry = "CHIR"
	chunkTypeIndex = "INDX"

	fileHeaderSize  = 18 // magic(4) + version(2) + count(4) + indexOffset(8)
	chunkHeaderSize = 12 // type(4) + size(8)
	entryBodyFixed  = 15 // channel(2) + ear(1) + sampleRate(8) + length(4)
	indexEntryFixed = 23 // offset(8) + channel(2) + ear(1) + sampleRate(8) + length(4)
)

var (
	ErrInvalidMagic       = errors.New("hrtf: invalid library magic number")
	ErrUnsupportedVersion = errors.New("hrtf: unsupported library version")
	ErrInvalidChunk       = errors.New("hrtf: invalid chunk")
	ErrCorruptedData      = errors.New("hrtf: corrupted library data")
	ErrEntryNotFound      = errors.New("hrtf: entry not found")
	ErrInvalidIndex       = errors.New("hrtf: invalid entry index")
)
