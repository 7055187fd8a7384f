// Package formats provides parsers for the text side-files that accompany
// compiled FaceFX assets.
package formats

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Faultbox/facefx-go/pkg/encoding"
)

// IDMap format errors.
var (
	ErrInvalidIDMapLine = errors.New("invalid id map line: expected 'hexid:name'")
	ErrDuplicateID      = errors.New("duplicate id in id map")
)

// IDEntry maps one solver-assigned numeric id to a name.
type IDEntry struct {
	ID   uint64
	Name string
}

// IDMap is the numeric-id to name table of an actor dataset.
// Entries keep their file order; lookups go through an index built on parse.
type IDMap struct {
	Entries []IDEntry
	index   map[uint64]int
}

// NewIDMap builds an IDMap from entries. Duplicate ids are rejected.
func NewIDMap(entries []IDEntry) (IDMap, error) {
	m := IDMap{Entries: entries, index: make(map[uint64]int, len(entries))}
	for i, e := range entries {
		if _, dup := m.index[e.ID]; dup {
			return IDMap{}, fmt.Errorf("%w: %x", ErrDuplicateID, e.ID)
		}
		m.index[e.ID] = i
	}
	return m, nil
}

// Len returns the number of entries.
func (m IDMap) Len() int {
	return len(m.Entries)
}

// Lookup returns the name registered for id.
func (m IDMap) Lookup(id uint64) (string, bool) {
	i, ok := m.index[id]
	if !ok {
		return "", false
	}
	return m.Entries[i].Name, true
}

// ParseIDMap parses an id table. Each non-empty line is "hexid:name";
// lines starting with '#' are comments. Exported files may be UTF-8,
// UTF-16 with a BOM, or Windows-1252.
func ParseIDMap(data []byte) (IDMap, error) {
	text, err := encoding.DecodeText(data)
	if err != nil {
		return IDMap{}, fmt.Errorf("decoding id map: %w", err)
	}

	var entries []IDEntry
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		hexID, name, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return IDMap{}, fmt.Errorf("line %d: %w", lineNo, ErrInvalidIDMapLine)
		}

		hexID = strings.TrimPrefix(strings.TrimSpace(hexID), "0x")
		id, err := strconv.ParseUint(hexID, 16, 64)
		if err != nil {
			return IDMap{}, fmt.Errorf("line %d: %w", lineNo, ErrInvalidIDMapLine)
		}
		entries = append(entries, IDEntry{ID: id, Name: name})
	}
	if err := scanner.Err(); err != nil {
		return IDMap{}, err
	}

	return NewIDMap(entries)
}

// Format writes the map back to its text form, sorted by id.
func (m IDMap) Format() []byte {
	sorted := make([]IDEntry, len(m.Entries))
	copy(sorted, m.Entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	for _, e := range sorted {
		fmt.Fprintf(&b, "%x:%s\n", e.ID, e.Name)
	}
	return []byte(b.String())
}
