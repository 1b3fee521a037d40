package hrtf

import (
	"encoding/binary"
	"fmt"
	"io"

	"shac/pkg/f16"
)

// LibraryWriter writes a .hrtf library file: a header, one chunk per
// entry, then a trailing index chunk. WriteHeader must be called once
// with the final entry count before any WriteEntry call, since the
// header is fixed-size and cannot grow to accommodate entries written
// after it; Close seeks back to patch in the real index offset once all
// entries are known.
type LibraryWriter struct {
	w io.WriteSeeker

	entries []IndexEntry
	pos     uint64
}

// NewLibraryWriter returns a LibraryWriter for w.
func NewLibraryWriter(w io.WriteSeeker) *LibraryWriter {
	return &LibraryWriter{w: w}
}

// WriteHeader writes the fixed-size file header with a placeholder index
// offset, patched by Close once the index chunk's real position is known.
func (lw *LibraryWriter) WriteHeader(count int) error {
	if _, err := lw.w.Write([]byte(MagicNumber)); err != nil {
		return fmt.Errorf("hrtf: writing magic: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, CurrentVersion); err != nil {
		return fmt.Errorf("hrtf: writing version: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, uint32(count)); err != nil {
		return fmt.Errorf("hrtf: writing entry count: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, uint64(0)); err != nil { // placeholder index offset
		return fmt.Errorf("hrtf: writing index offset placeholder: %w", err)
	}
	lw.pos = fileHeaderSize
	return nil
}

// WriteEntry writes e's chunk and records its offset and shape for the
// index Close will append.
func (lw *LibraryWriter) WriteEntry(e *Entry) error {
	f16Data := f16.Float32ToF16(e.Audio)
	bodySize := uint64(entryBodyFixed + len(f16Data))

	if _, err := lw.w.Write([]byte(chunkTypeEntry)); err != nil {
		return fmt.Errorf("hrtf: writing entry chunk magic: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, bodySize); err != nil {
		return fmt.Errorf("hrtf: writing entry chunk size: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, uint16(e.Channel)); err != nil {
		return fmt.Errorf("hrtf: writing entry channel: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, byte(e.Ear)); err != nil {
		return fmt.Errorf("hrtf: writing entry ear: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, e.SampleRate); err != nil {
		return fmt.Errorf("hrtf: writing entry sample rate: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, uint32(len(e.Audio))); err != nil {
		return fmt.Errorf("hrtf: writing entry length: %w", err)
	}
	if _, err := lw.w.Write(f16Data); err != nil {
		return fmt.Errorf("hrtf: writing entry audio: %w", err)
	}

	lw.entries = append(lw.entries, IndexEntry{
		Offset:     lw.pos,
		Channel:    e.Channel,
		Ear:        e.Ear,
		SampleRate: e.SampleRate,
		Length:     len(e.Audio),
	})
	lw.pos += uint64(chunkHeaderSize) + bodySize
	return nil
}

// Close writes the trailing index chunk and patches the file header's
// index-offset field to point at it.
func (lw *LibraryWriter) Close() error {
	indexOffset := lw.pos
	bodySize := uint64(len(lw.entries) * indexEntryFixed)

	if _, err := lw.w.Write([]byte(chunkTypeIndex)); err != nil {
		return fmt.Errorf("hrtf: writing index magic: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, bodySize); err != nil {
		return fmt.Errorf("hrtf: writing index size: %w", err)
	}
	for _, ie := range lw.entries {
		if err := binary.Write(lw.w, binary.LittleEndian, ie.Offset); err != nil {
			return fmt.Errorf("hrtf: writing index entry offset: %w", err)
		}
		if err := binary.Write(lw.w, binary.LittleEndian, uint16(ie.Channel)); err != nil {
			return fmt.Errorf("hrtf: writing index entry channel: %w", err)
		}
		if err := binary.Write(lw.w, binary.LittleEndian, byte(ie.Ear)); err != nil {
			return fmt.Errorf("hrtf: writing index entry ear: %w", err)
		}
		if err := binary.Write(lw.w, binary.LittleEndian, ie.SampleRate); err != nil {
			return fmt.Errorf("hrtf: writing index entry sample rate: %w", err)
		}
		if err := binary.Write(lw.w, binary.LittleEndian, uint32(ie.Length)); err != nil {
			return fmt.Errorf("hrtf: writing index entry length: %w", err)
		}
	}

	if _, err := lw.w.Seek(10, io.SeekStart); err != nil { // magic(4) + version(2) + count(4)
		return fmt.Errorf("hrtf: seeking to patch index offset: %w", err)
	}
	if err := binary.Write(lw.w, binary.LittleEndian, indexOffset); err != nil {
		return fmt.Errorf("hrtf: patching index offset: %w", err)
	}
	return nil
}

// WriteLibrary writes lib to w in one call: header, every entry, index.
func WriteLibrary(w io.WriteSeeker, lib *Library) error {
	lw := NewLibraryWriter(w)
	if err := lw.WriteHeader(len(lib.Entries)); err != nil {
		return err
	}
	for _, e := range lib.Entries {
		if err := lw.WriteEntry(e); err != nil {
			return err
		}
	}
	return lw.Close()
}
