package character

import (
	"testing"

	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/internal/solver"
	"github.com/Faultbox/facefx-go/internal/solver/solvertest"
	"github.com/Faultbox/facefx-go/pkg/formats"
	"github.com/Faultbox/facefx-go/pkg/math"
)

var (
	smileAsset = &facefx.AnimationAsset{
		ID:    facefx.AnimID{Group: "default", Name: "smile"},
		Data:  []byte("smile"),
		Sound: &facefx.Sound{Path: "default/smile.wav", Data: []byte("RIFF")},
	}
	frownAsset = &facefx.AnimationAsset{
		ID:   facefx.AnimID{Group: "default", Name: "frown"},
		Data: []byte("frown"),
	}
	alienAsset = &facefx.AnimationAsset{
		ID:   facefx.AnimID{Group: "other", Name: "wave"},
		Data: []byte("alien"),
	}
	brokenAsset = &facefx.AnimationAsset{
		ID:   facefx.AnimID{Name: "broken"},
		Data: []byte("broken"),
	}
)

func key(t float64, pos math.Vec3) solvertest.Key {
	return solvertest.Key{Time: t, Pos: pos, Rot: math.QuatIdentity(), Scale: math.Vec3One()}
}

// newSolver registers actor "bob" with bones root, jaw, lip and one bone
// id missing from the id table.
func newSolver(t *testing.T) (*solvertest.Solver, *facefx.ActorDataset) {
	t.Helper()

	s := solvertest.New()
	s.AddActor([]byte("actor"), solvertest.Actor{
		Name:     "bob",
		BoneIDs:  []uint64{0x10, 0x11, 0x12, 0x99},
		TrackIDs: []uint64{0x20, 0x21},
	})
	s.AddAnimation([]byte("smile"), solvertest.Animation{
		Actor:      "bob",
		End:        2,
		AudioStart: 0.5,
		Bones: map[uint64][]solvertest.Key{
			0x11: {key(0, math.Vec3{}), key(2, math.Vec3{Y: 2})},
		},
		Tracks: map[uint64][]solvertest.TrackKey{
			0x20: {{Time: 0, Value: 0}, {Time: 2, Value: 1}},
		},
		Markers: []solvertest.Marker{{Time: 0.25, Payload: "blink"}},
	})
	s.AddAnimation([]byte("frown"), solvertest.Animation{Actor: "bob", End: 1, AudioStart: -1})
	s.AddAnimation([]byte("alien"), solvertest.Animation{Actor: "alice", End: 1, AudioStart: -1})
	s.AddAnimation([]byte("broken"), solvertest.Animation{Actor: "bob", Start: 1, End: 1, AudioStart: -1})

	ids, err := formats.NewIDMap([]formats.IDEntry{
		{ID: 0x10, Name: "root"},
		{ID: 0x11, Name: "jaw"},
		{ID: 0x12, Name: "lip"},
		{ID: 0x20, Name: "smile"},
		{ID: 0x21, Name: "gloss"},
	})
	if err != nil {
		t.Fatalf("NewIDMap: %v", err)
	}
	ds := &facefx.ActorDataset{
		Name:      "bob",
		ActorData: []byte("actor"),
		BoneData:  []byte("bones"),
		IDs:       ids,
	}
	return s, ds
}

func newLoaded(t *testing.T, opts Options) (*Character, *solvertest.Solver, *fakeAudio, *recorder) {
	t.Helper()
	s, ds := newSolver(t)
	audio := &fakeAudio{}
	opts.Owner = owner{audio}
	c := New(s, opts)
	rec := &recorder{}
	c.Subscribe(rec.handle)
	if !c.Load(ds, LoadOptions{}) {
		t.Fatal("Load failed")
	}
	return c, s, audio, rec
}

type owner []AudioTarget

func (o owner) AudioTargets() []AudioTarget { return o }

type fakeAudio struct {
	sound   *facefx.Sound
	plays   []float64
	playing bool
	paused  bool
	stops   int
	failSet error
}

func (a *fakeAudio) SetSound(s *facefx.Sound) error {
	if a.failSet != nil {
		return a.failSet
	}
	a.sound = s
	return nil
}

func (a *fakeAudio) Play(offset float64) error {
	a.plays = append(a.plays, offset)
	a.playing = true
	a.paused = false
	return nil
}

func (a *fakeAudio) Pause()          { a.paused = true; a.playing = false }
func (a *fakeAudio) Resume()         { a.paused = false; a.playing = true }
func (a *fakeAudio) Stop()           { a.stops++; a.playing = false }
func (a *fakeAudio) IsPlaying() bool { return a.playing }

type soundLoader map[string][]byte

func (l soundLoader) LoadSound(path string) ([]byte, error) {
	data, ok := l[path]
	if !ok {
		return nil, solver.Check("LoadSound", solver.ErrBadData)
	}
	return data, nil
}

type recorder struct {
	events []Event
}

func (r *recorder) handle(e Event) { r.events = append(r.events, e) }

func (r *recorder) reset() { r.events = nil }

func (r *recorder) stopped() []PlaybackStopped {
	var out []PlaybackStopped
	for _, e := range r.events {
		if ev, ok := e.(PlaybackStopped); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) count(match func(Event) bool) int {
	n := 0
	for _, e := range r.events {
		if match(e) {
			n++
		}
	}
	return n
}

func isAudioRequest(e Event) bool {
	_, ok := e.(AudioStartRequested)
	return ok
}

func isIncompatible(e Event) bool {
	_, ok := e.(PlayAssetIncompatible)
	return ok
}

// ticker feeds Tick with increasing frame numbers.
type ticker struct {
	c     *Character
	frame uint64
}

func (tk *ticker) tick(dt float64) {
	tk.frame++
	tk.c.Tick(tk.frame, dt)
}

func near(a, b, eps float64) bool {
	d := a - b
	return d < eps && d > -eps
}
