package character

import (
	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/logger"
	"github.com/Faultbox/facefx-go/pkg/formats"
)

// TrackValue is the evaluated value of a morph target or material
// parameter track.
type TrackValue struct {
	Name  string
	Value float32
}

// trackTable binds host-side names to solver track ids.
type trackTable struct {
	names  []string
	ids    []uint64
	values []float32
}

func buildTrackTable(ids formats.IDMap, trackIDs []uint64, names []string) trackTable {
	byName := make(map[string]uint64, len(trackIDs))
	for _, id := range trackIDs {
		if name, ok := ids.Lookup(id); ok {
			byName[name] = id
		}
	}

	var t trackTable
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			logger.Debug("no track for name", zap.String("track", name))
			continue
		}
		t.names = append(t.names, name)
		t.ids = append(t.ids, id)
	}
	t.values = make([]float32, len(t.ids))
	return t
}

func (t *trackTable) snapshot() []TrackValue {
	out := make([]TrackValue, len(t.ids))
	for i := range t.ids {
		out[i] = TrackValue{Name: t.names[i], Value: t.values[i]}
	}
	return out
}
