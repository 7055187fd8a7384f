// Package pack reads and writes .ffxpack archives, the container used to ship
// compiled FaceFX assets (actor, bone-set, animation and id-table files).
package pack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/zlib"

	"github.com/Faultbox/facefx-go/pkg/encoding"
)

const (
	packMagic   = "FFXPACK"
	packVersion = 1
	headerSize  = 24

	// entrySize is the fixed part of a table entry; a uint16 name length
	// precedes it.
	entrySize = 17
	// maxInflateRatio is the largest expansion deflate can produce.
	maxInflateRatio = 1032
)

// Entry flags.
const (
	FlagFile       uint8 = 0x01
	FlagCompressed uint8 = 0x02
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("invalid ffxpack magic")
	ErrUnsupportedVersion = errors.New("unsupported ffxpack version")
	ErrTruncated          = errors.New("truncated ffxpack data")
	ErrCorrupt            = errors.New("corrupt ffxpack table")
	ErrNotFound           = errors.New("file not found in archive")
)

// Header contains the archive header.
type Header struct {
	Magic       [8]byte
	Version     uint32
	FileCount   uint32
	TableOffset uint64
}

// Entry represents a file entry in the archive.
type Entry struct {
	Name       string
	Flags      uint8
	Offset     uint64
	StoredSize uint32
	Size       uint32
}

// Compressed reports whether the entry data is zlib-compressed.
func (e *Entry) Compressed() bool {
	return e.Flags&FlagCompressed != 0
}

// Archive represents an opened archive. Read is safe for concurrent use.
type Archive struct {
	file     *os.File
	path     string
	size     uint64
	header   Header
	fileList map[string]*Entry
}

// Open opens an archive for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	archive := &Archive{
		file:     file,
		path:     path,
		size:     uint64(st.Size()),
		fileList: make(map[string]*Entry),
	}

	if err := archive.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if err := archive.readFileTable(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading file table: %w", err)
	}

	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// Path returns the file path the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Version returns the archive format version.
func (a *Archive) Version() uint32 {
	return a.header.Version
}

func (a *Archive) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := a.file.ReadAt(buf, 0); err != nil {
		return ErrTruncated
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &a.header); err != nil {
		return err
	}

	if encoding.TrimNullString(a.header.Magic[:]) != packMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != packVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	tableOffset := a.header.TableOffset
	if tableOffset < headerSize || tableOffset > a.size || a.size-tableOffset < 8 {
		return ErrTruncated
	}

	var sizes [8]byte
	if _, err := a.file.ReadAt(sizes[:], int64(tableOffset)); err != nil {
		return ErrTruncated
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	if uint64(compressedSize) > a.size-tableOffset-8 {
		return ErrTruncated
	}
	if uint64(uncompressedSize) > uint64(compressedSize)*maxInflateRatio {
		return fmt.Errorf("%w: table size %d", ErrCorrupt, uncompressedSize)
	}
	if uint64(a.header.FileCount)*(2+entrySize) > uint64(uncompressedSize) {
		return fmt.Errorf("%w: %d files", ErrCorrupt, a.header.FileCount)
	}

	compressed := make([]byte, compressedSize)
	if _, err := a.file.ReadAt(compressed, int64(tableOffset)+8); err != nil {
		return ErrTruncated
	}

	table, err := inflate(compressed, uncompressedSize)
	if err != nil {
		return fmt.Errorf("inflating table: %w", err)
	}

	offset := 0
	for i := uint32(0); i < a.header.FileCount; i++ {
		if offset+2 > len(table) {
			return ErrTruncated
		}
		nameLen := int(binary.LittleEndian.Uint16(table[offset:]))
		offset += 2
		if offset+nameLen+entrySize > len(table) {
			return ErrTruncated
		}
		name := string(table[offset : offset+nameLen])
		offset += nameLen

		entry := &Entry{
			Name:       encoding.NormalizePath(name),
			Flags:      table[offset],
			Offset:     binary.LittleEndian.Uint64(table[offset+1:]),
			StoredSize: binary.LittleEndian.Uint32(table[offset+9:]),
			Size:       binary.LittleEndian.Uint32(table[offset+13:]),
		}
		offset += entrySize

		if err := a.checkEntry(entry); err != nil {
			return err
		}
		if entry.Flags&FlagFile != 0 {
			a.fileList[entry.Name] = entry
		}
	}

	return nil
}

// checkEntry verifies that an entry's data lies in the data region and that
// its sizes agree.
func (a *Archive) checkEntry(e *Entry) error {
	if e.Offset < headerSize || e.Offset > a.header.TableOffset ||
		uint64(e.StoredSize) > a.header.TableOffset-e.Offset {
		return fmt.Errorf("%w: %s", ErrTruncated, e.Name)
	}
	if e.Compressed() {
		if uint64(e.Size) > uint64(e.StoredSize)*maxInflateRatio {
			return fmt.Errorf("%w: %s size %d", ErrCorrupt, e.Name, e.Size)
		}
	} else if e.Size != e.StoredSize {
		return fmt.Errorf("%w: %s size %d, stored %d", ErrCorrupt, e.Name, e.Size, e.StoredSize)
	}
	return nil
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for path := range a.fileList {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.fileList[encoding.NormalizePath(path)]
	return ok
}

// Stat returns the entry for path.
func (a *Archive) Stat(path string) (*Entry, bool) {
	e, ok := a.fileList[encoding.NormalizePath(path)]
	return e, ok
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	entry, ok := a.fileList[encoding.NormalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	stored := make([]byte, entry.StoredSize)
	n, err := a.file.ReadAt(stored, int64(entry.Offset))
	if n != len(stored) {
		return nil, fmt.Errorf("reading %s: %w", path, ErrTruncated)
	}
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if !entry.Compressed() {
		return stored, nil
	}
	return inflate(stored, entry.Size)
}

func inflate(data []byte, size uint32) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	result := make([]byte, size)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}
