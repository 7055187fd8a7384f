// Package solvertest provides an in-memory solver.Solver for tests.
//
// Actors and animations are registered under the byte payload that
// CreateActor/CreateAnim will later receive. Bones are evaluated from
// keyframes, the audio-start flag is raised on the frame whose local time
// crosses the animation's audio start, and every handle is accounted so tests can
// assert that nothing leaks or is destroyed twice.
package solvertest

import (
	"github.com/Faultbox/facefx-go/internal/solver"
)

// Actor describes a compiled actor.
type Actor struct {
	Name     string
	BoneIDs  []uint64
	TrackIDs []uint64
}

// Marker is a user event baked into an animation.
type Marker struct {
	Time    float64
	Payload string
}

// Animation describes a compiled animation.
type Animation struct {
	Actor      string // compatible actor; empty = any
	Start, End float64
	AudioStart float64 // negative = no audio cue
	Bones      map[uint64][]Key
	Tracks     map[uint64][]TrackKey
	Markers    []Marker
	Code       solver.Code // returned by CreateAnim alongside the handle
}

type handleKind int

const (
	kindActor handleKind = iota
	kindBoneSet
	kindFrame
	kindAnim
	kindCount
)

type actorState struct {
	def     *Actor
	channel *channel
}

type channel struct {
	anim     *Animation
	start    float64
	paused   bool
	pausedAt float64
}

type frameState struct {
	actor   solver.ActorHandle
	ch      *channel
	anim    *Animation
	local   float64
	prev    float64
	started bool
	flags   solver.ChannelFlags
	events  []solver.Event
}

// Solver is an in-memory solver.Solver.
type Solver struct {
	actors map[string]*Actor
	anims  map[string]*Animation

	next      uint64
	live      map[uint64]handleKind
	created   [kindCount]int
	destroyed [kindCount]int
	zombies   int

	actorStates map[solver.ActorHandle]*actorState
	boneSets    map[solver.BoneSetHandle]solver.ActorHandle
	frames      map[solver.FrameState]*frameState
	animHandles map[solver.AnimHandle]*Animation

	calls    map[string]int
	failures map[string]failure
}

type failure struct {
	after int
	code  solver.Code
}

// New creates an empty solver.
func New() *Solver {
	return &Solver{
		actors:      make(map[string]*Actor),
		anims:       make(map[string]*Animation),
		live:        make(map[uint64]handleKind),
		actorStates: make(map[solver.ActorHandle]*actorState),
		boneSets:    make(map[solver.BoneSetHandle]solver.ActorHandle),
		frames:      make(map[solver.FrameState]*frameState),
		animHandles: make(map[solver.AnimHandle]*Animation),
		calls:       make(map[string]int),
		failures:    make(map[string]failure),
	}
}

// AddActor registers an actor under its compiled payload.
func (s *Solver) AddActor(data []byte, a Actor) {
	s.actors[string(data)] = &a
}

// AddAnimation registers an animation under its compiled payload.
func (s *Solver) AddAnimation(data []byte, a Animation) {
	s.anims[string(data)] = &a
}

// Fail makes op fail with code after it has succeeded `after` more times.
func (s *Solver) Fail(op string, after int, code solver.Code) {
	s.failures[op] = failure{after: after, code: code}
}

// ClearFailures removes all injected failures.
func (s *Solver) ClearFailures() {
	s.failures = make(map[string]failure)
}

// Calls returns how many times op was invoked.
func (s *Solver) Calls(op string) int {
	return s.calls[op]
}

// Live returns the number of handles that have not been destroyed.
func (s *Solver) Live() int {
	return len(s.live)
}

// LiveAnims returns the number of live animation handles.
func (s *Solver) LiveAnims() int {
	n := 0
	for _, k := range s.live {
		if k == kindAnim {
			n++
		}
	}
	return n
}

// Zombies returns how many Destroy calls targeted a dead handle.
func (s *Solver) Zombies() int {
	return s.zombies
}

// Balanced reports whether every created handle was destroyed exactly once.
func (s *Solver) Balanced() bool {
	return s.created == s.destroyed && s.zombies == 0
}

func (s *Solver) enter(op string) error {
	s.calls[op]++
	f, ok := s.failures[op]
	if !ok {
		return nil
	}
	if f.after > 0 {
		f.after--
		s.failures[op] = f
		return nil
	}
	return solver.Check(op, f.code)
}

func (s *Solver) alloc(kind handleKind) uint64 {
	s.next++
	s.live[s.next] = kind
	s.created[kind]++
	return s.next
}

func (s *Solver) free(op string, h uint64, kind handleKind) error {
	if err := s.enter(op); err != nil {
		return err
	}
	if k, ok := s.live[h]; !ok || k != kind {
		s.zombies++
		return solver.Check(op, solver.ErrZombieHandle)
	}
	delete(s.live, h)
	s.destroyed[kind]++
	return nil
}

func (s *Solver) alive(h uint64, kind handleKind) bool {
	k, ok := s.live[h]
	return ok && k == kind
}

// CreateActor implements solver.Solver.
func (s *Solver) CreateActor(actorData, boneData []byte) (solver.ActorHandle, error) {
	if err := s.enter("CreateActor"); err != nil {
		return 0, err
	}
	if len(actorData) == 0 || len(boneData) == 0 {
		return 0, solver.Check("CreateActor", solver.ErrInvalidArgument)
	}
	def, ok := s.actors[string(actorData)]
	if !ok {
		return 0, solver.Check("CreateActor", solver.ErrBadData)
	}
	h := solver.ActorHandle(s.alloc(kindActor))
	s.actorStates[h] = &actorState{def: def}
	return h, nil
}

// DestroyActor implements solver.Solver.
func (s *Solver) DestroyActor(h solver.ActorHandle) error {
	delete(s.actorStates, h)
	return s.free("DestroyActor", uint64(h), kindActor)
}

// CreateBoneSet implements solver.Solver.
func (s *Solver) CreateBoneSet(actor solver.ActorHandle, boneData []byte) (solver.BoneSetHandle, error) {
	if err := s.enter("CreateBoneSet"); err != nil {
		return 0, err
	}
	if !s.alive(uint64(actor), kindActor) {
		return 0, solver.Check("CreateBoneSet", solver.ErrZombieHandle)
	}
	if len(boneData) == 0 {
		return 0, solver.Check("CreateBoneSet", solver.ErrInvalidArgument)
	}
	h := solver.BoneSetHandle(s.alloc(kindBoneSet))
	s.boneSets[h] = actor
	return h, nil
}

// DestroyBoneSet implements solver.Solver.
func (s *Solver) DestroyBoneSet(h solver.BoneSetHandle) error {
	delete(s.boneSets, h)
	return s.free("DestroyBoneSet", uint64(h), kindBoneSet)
}

// CreateFrameState implements solver.Solver.
func (s *Solver) CreateFrameState(actor solver.ActorHandle) (solver.FrameState, error) {
	if err := s.enter("CreateFrameState"); err != nil {
		return 0, err
	}
	if !s.alive(uint64(actor), kindActor) {
		return 0, solver.Check("CreateFrameState", solver.ErrZombieHandle)
	}
	h := solver.FrameState(s.alloc(kindFrame))
	s.frames[h] = &frameState{actor: actor}
	return h, nil
}

// DestroyFrameState implements solver.Solver.
func (s *Solver) DestroyFrameState(h solver.FrameState) error {
	delete(s.frames, h)
	return s.free("DestroyFrameState", uint64(h), kindFrame)
}

// CreateAnim implements solver.Solver.
func (s *Solver) CreateAnim(animData []byte) (solver.AnimHandle, error) {
	if err := s.enter("CreateAnim"); err != nil {
		return 0, err
	}
	def, ok := s.anims[string(animData)]
	if !ok {
		return 0, solver.Check("CreateAnim", solver.ErrBadData)
	}
	h := solver.AnimHandle(s.alloc(kindAnim))
	s.animHandles[h] = def
	return h, solver.Check("CreateAnim", def.Code)
}

// DestroyAnim implements solver.Solver.
func (s *Solver) DestroyAnim(h solver.AnimHandle) error {
	if err := s.free("DestroyAnim", uint64(h), kindAnim); err != nil {
		return err
	}
	delete(s.animHandles, h)
	return nil
}

// BoneIDs implements solver.Solver.
func (s *Solver) BoneIDs(h solver.BoneSetHandle) ([]uint64, error) {
	if err := s.enter("BoneIDs"); err != nil {
		return nil, err
	}
	actor, ok := s.boneSets[h]
	if !ok {
		return nil, solver.Check("BoneIDs", solver.ErrZombieHandle)
	}
	return append([]uint64(nil), s.actorStates[actor].def.BoneIDs...), nil
}

// TrackIDs implements solver.Solver.
func (s *Solver) TrackIDs(h solver.ActorHandle) ([]uint64, error) {
	if err := s.enter("TrackIDs"); err != nil {
		return nil, err
	}
	st, ok := s.actorStates[h]
	if !ok {
		return nil, solver.Check("TrackIDs", solver.ErrZombieHandle)
	}
	return append([]uint64(nil), st.def.TrackIDs...), nil
}

// IsCompatible implements solver.Solver.
func (s *Solver) IsCompatible(actor solver.ActorHandle, anim solver.AnimHandle) (bool, error) {
	if err := s.enter("IsCompatible"); err != nil {
		return false, err
	}
	st, ok := s.actorStates[actor]
	def, ok2 := s.animHandles[anim]
	if !ok || !ok2 {
		return false, solver.Check("IsCompatible", solver.ErrZombieHandle)
	}
	return def.Actor == "" || def.Actor == st.def.Name, nil
}

// AnimBounds implements solver.Solver.
func (s *Solver) AnimBounds(anim solver.AnimHandle) (float64, float64, error) {
	if err := s.enter("AnimBounds"); err != nil {
		return 0, 0, err
	}
	def, ok := s.animHandles[anim]
	if !ok {
		return 0, 0, solver.Check("AnimBounds", solver.ErrZombieHandle)
	}
	return def.Start, def.End, nil
}

// Play implements solver.Solver.
func (s *Solver) Play(actor solver.ActorHandle, anim solver.AnimHandle, startTime float64) (solver.ChannelID, error) {
	if err := s.enter("Play"); err != nil {
		return 0, err
	}
	st, ok := s.actorStates[actor]
	def, ok2 := s.animHandles[anim]
	if !ok || !ok2 {
		return 0, solver.Check("Play", solver.ErrZombieHandle)
	}
	st.channel = &channel{anim: def, start: startTime}
	return 0, nil
}

// Pause implements solver.Solver.
func (s *Solver) Pause(actor solver.ActorHandle, time float64) error {
	if err := s.enter("Pause"); err != nil {
		return err
	}
	st, ok := s.actorStates[actor]
	if !ok || st.channel == nil || st.channel.paused {
		return solver.Check("Pause", solver.ErrNotPermitted)
	}
	st.channel.paused = true
	st.channel.pausedAt = time
	return nil
}

// Resume implements solver.Solver.
func (s *Solver) Resume(actor solver.ActorHandle, time float64) error {
	if err := s.enter("Resume"); err != nil {
		return err
	}
	st, ok := s.actorStates[actor]
	if !ok || st.channel == nil || !st.channel.paused {
		return solver.Check("Resume", solver.ErrNotPermitted)
	}
	st.channel.start += time - st.channel.pausedAt
	st.channel.paused = false
	return nil
}

// Stop implements solver.Solver.
func (s *Solver) Stop(actor solver.ActorHandle) error {
	if err := s.enter("Stop"); err != nil {
		return err
	}
	st, ok := s.actorStates[actor]
	if !ok {
		return solver.Check("Stop", solver.ErrZombieHandle)
	}
	st.channel = nil
	return nil
}

// ProcessFrame implements solver.Solver.
func (s *Solver) ProcessFrame(actor solver.ActorHandle, frame solver.FrameState, time float64) error {
	if err := s.enter("ProcessFrame"); err != nil {
		return err
	}
	st, ok := s.actorStates[actor]
	fs, ok2 := s.frames[frame]
	if !ok || !ok2 {
		return solver.Check("ProcessFrame", solver.ErrZombieHandle)
	}

	fs.flags = 0
	fs.events = nil
	ch := st.channel
	if ch == nil {
		fs.ch = nil
		fs.anim = nil
		fs.started = false
		return nil
	}

	t := time
	if ch.paused {
		t = ch.pausedAt
	}
	local := t - ch.start + ch.anim.Start

	// A new channel starts its event window at the animation start.
	if fs.ch != ch || !fs.started || local < fs.local {
		fs.prev = ch.anim.Start - 1e-9
	} else {
		fs.prev = fs.local
	}
	fs.ch = ch
	fs.anim = ch.anim
	fs.local = local
	fs.started = true

	fs.flags |= solver.ChannelFlagPlaying
	if ch.paused {
		fs.flags |= solver.ChannelFlagPaused
	}
	a := ch.anim
	// The cue fires on the frame that crosses it, whatever the step size.
	if a.AudioStart >= 0 && a.AudioStart > fs.prev && a.AudioStart <= local {
		fs.flags |= solver.ChannelFlagStartAudio
	}
	for _, m := range a.Markers {
		if m.Time > fs.prev && m.Time <= local {
			fs.events = append(fs.events, solver.Event{
				Channel:     0,
				ChannelTime: local,
				EventTime:   m.Time,
				Payload:     m.Payload,
			})
		}
	}
	return nil
}

// ChannelFlags implements solver.Solver.
func (s *Solver) ChannelFlags(frame solver.FrameState) ([]solver.ChannelFlags, error) {
	if err := s.enter("ChannelFlags"); err != nil {
		return nil, err
	}
	fs, ok := s.frames[frame]
	if !ok {
		return nil, solver.Check("ChannelFlags", solver.ErrZombieHandle)
	}
	return []solver.ChannelFlags{fs.flags}, nil
}

// Events implements solver.Solver.
func (s *Solver) Events(frame solver.FrameState) ([]solver.Event, error) {
	if err := s.enter("Events"); err != nil {
		return nil, err
	}
	fs, ok := s.frames[frame]
	if !ok {
		return nil, solver.Check("Events", solver.ErrZombieHandle)
	}
	return fs.events, nil
}

// ComputeBoneTransforms implements solver.Solver.
func (s *Solver) ComputeBoneTransforms(bones solver.BoneSetHandle, frame solver.FrameState, out []solver.RawXform) error {
	if err := s.enter("ComputeBoneTransforms"); err != nil {
		return err
	}
	actor, ok := s.boneSets[bones]
	fs, ok2 := s.frames[frame]
	if !ok || !ok2 {
		return solver.Check("ComputeBoneTransforms", solver.ErrZombieHandle)
	}
	ids := s.actorStates[actor].def.BoneIDs
	if len(out) < len(ids) {
		return solver.Check("ComputeBoneTransforms", solver.ErrBufferSize)
	}
	for i, id := range ids {
		if fs.anim == nil {
			out[i] = Rest()
			continue
		}
		out[i] = interpolateBone(fs.anim.Bones[id], fs.local)
	}
	return nil
}

// ComputeTrackValues implements solver.Solver.
func (s *Solver) ComputeTrackValues(frame solver.FrameState, ids []uint64, out []float32) error {
	if err := s.enter("ComputeTrackValues"); err != nil {
		return err
	}
	fs, ok := s.frames[frame]
	if !ok {
		return solver.Check("ComputeTrackValues", solver.ErrZombieHandle)
	}
	if len(out) < len(ids) {
		return solver.Check("ComputeTrackValues", solver.ErrBufferSize)
	}
	for i, id := range ids {
		if fs.anim == nil {
			out[i] = 0
			continue
		}
		out[i] = interpolateTrack(fs.anim.Tracks[id], fs.local)
	}
	return nil
}

var _ solver.Solver = (*Solver)(nil)
