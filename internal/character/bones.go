package character

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/logger"
	"github.com/Faultbox/facefx-go/pkg/formats"
)

// ErrEmptyIDTable is returned when a dataset carries no id table.
var ErrEmptyIDTable = errors.New("actor id table is empty")

// BoneEntry maps a bone name to its slot in the solved transform array.
type BoneEntry struct {
	Name           string
	TransformIndex int
}

// BoneTable is the sparse, solver-ordered list of named bones of a loaded
// character.
type BoneTable struct {
	entries []BoneEntry
	index   map[string]int
	size    int
}

// BuildBoneTable resolves the solver's bone ids against the dataset's id
// table. Entries keep the solver's output order. Ids without a name, and
// names outside a non-empty filter, are skipped.
func BuildBoneTable(ids formats.IDMap, solverIDs []uint64, filter []string) (*BoneTable, error) {
	if ids.Len() == 0 {
		return nil, ErrEmptyIDTable
	}

	var allow map[string]struct{}
	if len(filter) > 0 {
		allow = make(map[string]struct{}, len(filter))
		for _, name := range filter {
			allow[name] = struct{}{}
		}
	}

	t := &BoneTable{
		entries: make([]BoneEntry, 0, len(solverIDs)),
		index:   make(map[string]int, len(solverIDs)),
		size:    len(solverIDs),
	}
	for i, id := range solverIDs {
		name, ok := ids.Lookup(id)
		if !ok {
			logger.Warn("bone id missing from id table", zap.String("id", fmt.Sprintf("%#x", id)))
			continue
		}
		if allow != nil {
			if _, ok := allow[name]; !ok {
				continue
			}
		}
		if _, dup := t.index[name]; dup {
			logger.Warn("duplicate bone name", zap.String("bone", name))
			continue
		}
		t.index[name] = i
		t.entries = append(t.entries, BoneEntry{Name: name, TransformIndex: i})
	}
	return t, nil
}

// Entries returns the mapped bones in solver order.
func (t *BoneTable) Entries() []BoneEntry {
	if t == nil {
		return nil
	}
	return t.entries
}

// Len returns the number of mapped bones.
func (t *BoneTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Size returns the length of the solved transform array, which includes
// unnamed bones.
func (t *BoneTable) Size() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Index returns the transform index of a bone.
func (t *BoneTable) Index(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.index[name]
	return i, ok
}
