package character

import (
	"errors"
	"testing"

	"github.com/Faultbox/facefx-go/internal/solver"
	"github.com/Faultbox/facefx-go/pkg/formats"
	"github.com/Faultbox/facefx-go/pkg/math"
)

func TestBuildBoneTable(t *testing.T) {
	ids, err := formats.NewIDMap([]formats.IDEntry{
		{ID: 1, Name: "root"},
		{ID: 2, Name: "jaw"},
		{ID: 3, Name: "tongue"},
	})
	if err != nil {
		t.Fatalf("NewIDMap: %v", err)
	}

	tests := []struct {
		name      string
		solverIDs []uint64
		filter    []string
		want      []BoneEntry
	}{
		{"all named", []uint64{1, 2, 3}, nil, []BoneEntry{{"root", 0}, {"jaw", 1}, {"tongue", 2}}},
		{"solver order kept", []uint64{3, 1}, nil, []BoneEntry{{"tongue", 0}, {"root", 1}}},
		{"sparse", []uint64{1, 42, 3}, nil, []BoneEntry{{"root", 0}, {"tongue", 2}}},
		{"filtered", []uint64{1, 2, 3}, []string{"jaw"}, []BoneEntry{{"jaw", 1}}},
		{"morph only", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := BuildBoneTable(ids, tt.solverIDs, tt.filter)
			if err != nil {
				t.Fatalf("BuildBoneTable: %v", err)
			}
			got := table.Entries()
			if len(got) != len(tt.want) {
				t.Fatalf("entries = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %v, want %v", i, got[i], tt.want[i])
				}
				idx, ok := table.Index(tt.want[i].Name)
				if !ok || idx != tt.want[i].TransformIndex {
					t.Errorf("Index(%q) = %d, %v", tt.want[i].Name, idx, ok)
				}
				if idx >= table.Size() {
					t.Errorf("Index(%q) = %d out of range %d", tt.want[i].Name, idx, table.Size())
				}
			}
			if table.Size() != len(tt.solverIDs) {
				t.Errorf("Size() = %d, want %d", table.Size(), len(tt.solverIDs))
			}
		})
	}
}

func TestBuildBoneTableEmptyIDs(t *testing.T) {
	_, err := BuildBoneTable(formats.IDMap{}, []uint64{1}, nil)
	if !errors.Is(err, ErrEmptyIDTable) {
		t.Errorf("got %v, want ErrEmptyIDTable", err)
	}
}

func TestNilBoneTable(t *testing.T) {
	var table *BoneTable
	if _, ok := table.Index("root"); ok {
		t.Error("nil table found a bone")
	}
	if table.Len() != 0 || table.Size() != 0 || table.Entries() != nil {
		t.Error("nil table is not empty")
	}
}

func TestAxisAdapters(t *testing.T) {
	raw := solver.RawXform{
		Pos:   [3]float32{1, 2, 3},
		Rot:   [4]float32{0.1, 0.2, 0.3, 0.9},
		Scale: [3]float32{1, 2, 1},
	}

	id := IdentityAxis(raw)
	if id.Translation != (math.Vec3{X: 1, Y: 2, Z: 3}) || id.Rotation != (math.Quat{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9}) {
		t.Errorf("IdentityAxis = %+v", id)
	}

	host := FaceFXToHost(raw)
	if host.Translation != (math.Vec3{X: 1, Y: -2, Z: 3}) {
		t.Errorf("translation = %+v", host.Translation)
	}
	if host.Rotation != (math.Quat{X: 0.1, Y: -0.2, Z: 0.3, W: -0.9}) {
		t.Errorf("rotation = %+v", host.Rotation)
	}
	if host.Scale != (math.Vec3{X: 1, Y: 2, Z: 1}) {
		t.Errorf("scale = %+v", host.Scale)
	}
}
