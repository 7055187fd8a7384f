package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/klauspost/compress/zlib"

	"github.com/Faultbox/facefx-go/pkg/encoding"
)

// Writer builds an archive file. Entries are appended as they are added; the
// file table and header are written by Close.
type Writer struct {
	file    *os.File
	offset  uint64
	entries []Entry
	seen    map[string]bool
}

// Create creates an archive at path, truncating any existing file.
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	// Header placeholder, rewritten on Close.
	if _, err := file.Write(make([]byte, headerSize)); err != nil {
		file.Close()
		return nil, err
	}

	return &Writer{
		file:   file,
		offset: headerSize,
		seen:   make(map[string]bool),
	}, nil
}

// Add appends a file. Data is stored compressed when that makes it smaller.
func (w *Writer) Add(name string, data []byte) error {
	name = encoding.NormalizePath(name)
	if w.seen[name] {
		return fmt.Errorf("duplicate entry: %s", name)
	}

	stored := data
	flags := FlagFile
	if compressed, err := deflate(data); err == nil && len(compressed) < len(data) {
		stored = compressed
		flags |= FlagCompressed
	}

	if _, err := w.file.Write(stored); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	w.entries = append(w.entries, Entry{
		Name:       name,
		Flags:      flags,
		Offset:     w.offset,
		StoredSize: uint32(len(stored)),
		Size:       uint32(len(data)),
	})
	w.seen[name] = true
	w.offset += uint64(len(stored))
	return nil
}

// Close writes the file table and header and closes the file.
func (w *Writer) Close() error {
	defer w.file.Close()

	var table bytes.Buffer
	for _, e := range w.entries {
		var fixed [17]byte
		binary.Write(&table, binary.LittleEndian, uint16(len(e.Name)))
		table.WriteString(e.Name)
		fixed[0] = e.Flags
		binary.LittleEndian.PutUint64(fixed[1:], e.Offset)
		binary.LittleEndian.PutUint32(fixed[9:], e.StoredSize)
		binary.LittleEndian.PutUint32(fixed[13:], e.Size)
		table.Write(fixed[:])
	}

	compressed, err := deflate(table.Bytes())
	if err != nil {
		return fmt.Errorf("compressing table: %w", err)
	}

	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(table.Len()))
	if _, err := w.file.Write(sizes[:]); err != nil {
		return err
	}
	if _, err := w.file.Write(compressed); err != nil {
		return err
	}

	header := Header{
		Version:     packVersion,
		FileCount:   uint32(len(w.entries)),
		TableOffset: w.offset,
	}
	copy(header.Magic[:], packMagic)

	var hdr bytes.Buffer
	if err := binary.Write(&hdr, binary.LittleEndian, &header); err != nil {
		return err
	}
	if _, err := w.file.WriteAt(hdr.Bytes(), 0); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return w.file.Sync()
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
