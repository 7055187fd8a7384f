// Package character drives FaceFX playback for one actor.
//
// A Character owns the solver handles created from an ActorDataset, plays
// one animation at a time, keeps audio in sync with the animation and
// lazily computes the solved bone transforms consumed by pose.BlendNode.
// All methods must be called from the host's simulation thread.
package character

import (
	stdmath "math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/internal/logger"
	"github.com/Faultbox/facefx-go/internal/solver"
	"github.com/Faultbox/facefx-go/pkg/math"
)

// State is the playback state.
type State int

// Playback states.
const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Default audio sub-stepping limits.
const (
	DefaultMaxAudioSubstep = 1.0 / 60.0
	DefaultMaxSubsteps     = 4096
)

// Options configures a Character.
type Options struct {
	Owner  Owner
	Sounds SoundLoader

	// MaxAudioSubstep is the largest time step, in seconds, taken when
	// walking a span that may contain the audio start.
	MaxAudioSubstep float64
	// MaxSubsteps caps the steps of one walk; the step widens past it.
	MaxSubsteps int

	// Axis converts solver transforms when a dataset is loaded with
	// CompensateAxis. Defaults to FaceFXToHost.
	Axis AxisAdapter

	// BoneFilter restricts the bone table to these names when non-empty.
	BoneFilter []string
}

// LoadOptions controls how a dataset is bound.
type LoadOptions struct {
	CompensateAxis        bool
	DisableMorphTargets   bool
	DisableMaterialParams bool
	MorphTargetNames      []string
	MaterialParamNames    []string
}

// PendingDataset is a dataset that is still streaming in.
type PendingDataset interface {
	Done() bool
	Result() (*facefx.ActorDataset, error)
}

// Character is the FaceFX playback state machine of one actor.
type Character struct {
	emitter

	id     uuid.UUID
	solver solver.Solver
	opts   Options

	h       handles
	dataset *facefx.ActorDataset
	bones   *BoneTable
	axis    AxisAdapter

	raw            []solver.RawXform
	boneTransforms []math.Transform
	morphs         trackTable
	materials      trackTable

	pending     PendingDataset
	pendingOpts LoadOptions

	state       State
	anim        *facefx.AnimationAsset
	currentTime float64
	progress    float64
	duration    float64
	animStart   float64
	looping     bool
	dirty       bool

	audioTarget  AudioTarget
	activeAudio  AudioTarget
	sound        *facefx.Sound
	audioLatched bool

	lastFrame  uint64
	ticked     bool
	generation uint64
}

// New creates an unloaded character driven by s.
func New(s solver.Solver, opts Options) *Character {
	if opts.MaxAudioSubstep <= 0 {
		opts.MaxAudioSubstep = DefaultMaxAudioSubstep
	}
	if opts.MaxSubsteps <= 0 {
		opts.MaxSubsteps = DefaultMaxSubsteps
	}
	if opts.Axis == nil {
		opts.Axis = FaceFXToHost
	}
	return &Character{
		id:     uuid.New(),
		solver: s,
		opts:   opts,
		h:      handles{s: s},
		axis:   IdentityAxis,
	}
}

// ID returns the character's unique id.
func (c *Character) ID() uuid.UUID { return c.id }

// State returns the playback state.
func (c *Character) State() State { return c.state }

// Dataset returns the loaded dataset.
func (c *Character) Dataset() *facefx.ActorDataset { return c.dataset }

// CurrentAnim returns the animation last played, which stays set after it
// stops so it can be restarted.
func (c *Character) CurrentAnim() *facefx.AnimationAsset { return c.anim }

// CurrentTime returns the solver clock in seconds.
func (c *Character) CurrentTime() float64 { return c.currentTime }

// Progress returns the time into the current animation.
func (c *Character) Progress() float64 { return c.progress }

// Duration returns the length of the current animation.
func (c *Character) Duration() float64 { return c.duration }

// IsLooping reports whether the current animation loops.
func (c *Character) IsLooping() bool { return c.looping }

// Generation changes whenever the bone table may have changed.
func (c *Character) Generation() uint64 { return c.generation }

// Load binds a dataset, replacing whatever was loaded before. On failure
// the character is left unloaded.
func (c *Character) Load(ds *facefx.ActorDataset, opts LoadOptions) bool {
	c.Reset()

	if ds == nil {
		logger.Warn("load: no dataset")
		return false
	}
	if ds.IDs.Len() == 0 {
		logger.Error("load: invalid dataset", zap.String("dataset", ds.Name), zap.Error(ErrEmptyIDTable))
		return false
	}
	if !ds.IsValid() {
		logger.Error("load: dataset has no compiled data", zap.String("dataset", ds.Name))
		return false
	}

	if !c.acquire(ds, opts) {
		c.Reset()
		return false
	}

	c.dataset = ds
	c.generation++
	c.dirty = true
	logger.Debug("character loaded",
		zap.String("character", c.id.String()),
		zap.String("dataset", ds.Name),
		zap.Int("bones", c.bones.Len()))
	return true
}

func (c *Character) acquire(ds *facefx.ActorDataset, opts LoadOptions) bool {
	var err error
	if c.h.actor, err = c.solver.CreateActor(ds.ActorData, ds.BoneData); err != nil {
		logger.Error("create actor handle", zap.String("dataset", ds.Name), zap.Error(err))
		return false
	}
	if c.h.bones, err = c.solver.CreateBoneSet(c.h.actor, ds.BoneData); err != nil {
		logger.Error("create bone set", zap.String("dataset", ds.Name), zap.Error(err))
		return false
	}
	if c.h.frame, err = c.solver.CreateFrameState(c.h.actor); err != nil {
		logger.Error("create frame state", zap.String("dataset", ds.Name), zap.Error(err))
		return false
	}

	boneIDs, err := c.solver.BoneIDs(c.h.bones)
	if err != nil {
		logger.Error("read bone ids", zap.String("dataset", ds.Name), zap.Error(err))
		return false
	}
	if c.bones, err = BuildBoneTable(ds.IDs, boneIDs, c.opts.BoneFilter); err != nil {
		logger.Error("build bone table", zap.String("dataset", ds.Name), zap.Error(err))
		return false
	}
	c.raw = make([]solver.RawXform, len(boneIDs))
	c.boneTransforms = make([]math.Transform, len(boneIDs))
	for i := range c.boneTransforms {
		c.boneTransforms[i] = math.TransformIdentity()
	}

	if !opts.DisableMorphTargets || !opts.DisableMaterialParams {
		trackIDs, err := c.solver.TrackIDs(c.h.actor)
		if err != nil {
			logger.Error("read track ids", zap.String("dataset", ds.Name), zap.Error(err))
			return false
		}
		if !opts.DisableMorphTargets {
			c.morphs = buildTrackTable(ds.IDs, trackIDs, opts.MorphTargetNames)
		}
		if !opts.DisableMaterialParams {
			c.materials = buildTrackTable(ds.IDs, trackIDs, opts.MaterialParamNames)
		}
	}

	if opts.CompensateAxis {
		c.axis = c.opts.Axis
	} else {
		c.axis = IdentityAxis
	}
	return true
}

// LoadAsync defers Load until p is done. The load completes from
// IsLoading, which the host polls.
func (c *Character) LoadAsync(p PendingDataset, opts LoadOptions) bool {
	c.Reset()
	if p == nil {
		return false
	}
	c.pending = p
	c.pendingOpts = opts
	c.IsLoading()
	return true
}

// IsLoading reports whether a deferred dataset is still streaming. Once it
// is done the dataset is loaded and IsLoading returns false.
func (c *Character) IsLoading() bool {
	if c.pending == nil {
		return false
	}
	if !c.pending.Done() {
		return true
	}
	p, opts := c.pending, c.pendingOpts
	c.pending = nil

	ds, err := p.Result()
	if err != nil {
		logger.Error("streamed dataset failed", zap.Error(err))
		return false
	}
	c.Load(ds, opts)
	return false
}

// Reset stops playback and releases every solver handle.
func (c *Character) Reset() {
	if c.state != Stopped {
		c.Stop(false)
	}
	c.StopAudio()
	c.h.release()

	c.dataset = nil
	c.bones = nil
	c.raw = nil
	c.boneTransforms = nil
	c.morphs = trackTable{}
	c.materials = trackTable{}
	c.pending = nil
	c.axis = IdentityAxis

	c.state = Stopped
	c.anim = nil
	c.sound = nil
	c.currentTime = 0
	c.progress = 0
	c.duration = 0
	c.animStart = 0
	c.looping = false
	c.dirty = false
	c.audioLatched = false
	c.generation++
}

// Destroy stops and resets the character. It may be called in any state.
func (c *Character) Destroy() {
	c.Stop(false)
	c.Reset()
}

// IsLoaded reports whether a dataset is bound.
func (c *Character) IsLoaded() bool {
	return c.h.actor != 0 && c.dataset != nil
}

// IsTickable reports whether the host should call Tick.
func (c *Character) IsTickable() bool {
	return c.IsLoaded() && c.state == Playing
}

// preflight creates a handle for asset and validates it against the loaded
// actor without touching the current playback.
func (c *Character) preflight(asset *facefx.AnimationAsset) (h solver.AnimHandle, start, end float64, ok bool) {
	h, err := createAnim(c.solver, asset.Data)
	if err != nil {
		logger.Error("create anim handle", zap.String("anim", asset.ID.String()), zap.Error(err))
		return 0, 0, 0, false
	}
	release := func() { destroyAnim(c.solver, h) }

	compatible, err := c.solver.IsCompatible(c.h.actor, h)
	if err != nil {
		logger.Error("check compatibility", zap.String("anim", asset.ID.String()), zap.Error(err))
		release()
		return 0, 0, 0, false
	}
	if !compatible {
		logger.Warn("animation is incompatible with the loaded actor",
			zap.String("anim", asset.ID.String()),
			zap.String("dataset", c.dataset.Name))
		release()
		c.emit(PlayAssetIncompatible{Character: c.id, Asset: asset})
		return 0, 0, 0, false
	}

	start, end, err = c.solver.AnimBounds(h)
	if err != nil {
		logger.Error("read animation bounds", zap.String("anim", asset.ID.String()), zap.Error(err))
		release()
		return 0, 0, 0, false
	}
	if end-start <= 0 {
		logger.Error("animation has no duration",
			zap.String("anim", asset.ID.String()),
			zap.Float64("start", start),
			zap.Float64("end", end))
		release()
		return 0, 0, 0, false
	}
	return h, start, end, true
}

// Play starts asset from its beginning, stopping whatever played before.
// An incompatible asset raises PlayAssetIncompatible and leaves the current
// playback untouched.
func (c *Character) Play(asset *facefx.AnimationAsset, loop bool) bool {
	if !c.IsLoaded() {
		logger.Warn("play: character not loaded")
		return false
	}
	if !asset.IsValid() {
		logger.Warn("play: invalid animation asset")
		return false
	}

	h, start, end, ok := c.preflight(asset)
	if !ok {
		return false
	}

	if c.state != Stopped {
		c.Stop(false)
	}
	c.h.releaseAnim()
	c.h.anim = h

	if _, err := c.solver.Play(c.h.actor, c.h.anim, c.currentTime); err != nil {
		logger.Error("play animation", zap.String("anim", asset.ID.String()), zap.Error(err))
		c.h.releaseAnim()
		return false
	}

	if c.anim != asset {
		c.sound = nil
	}
	c.anim = asset
	c.looping = loop
	c.animStart = start
	c.duration = end - start
	c.progress = 0
	c.audioLatched = false
	c.dirty = true
	c.state = Playing

	c.emit(PlaybackStarted{Character: c.id, Anim: asset.ID})
	return true
}

// Pause pauses playback and its audio.
func (c *Character) Pause() bool {
	if !c.IsLoaded() {
		return false
	}
	if c.state != Playing {
		logger.Warn("pause: not playing", zap.String("state", c.state.String()))
		return false
	}
	if err := c.solver.Pause(c.h.actor, c.currentTime); err != nil {
		logger.Error("pause animation", zap.Error(err))
		return false
	}
	c.state = Paused
	c.PauseAudio()
	c.emit(PlaybackPaused{Character: c.id, Anim: c.anim.ID})
	return true
}

// Resume resumes paused playback and its audio.
func (c *Character) Resume() bool {
	if !c.IsLoaded() {
		return false
	}
	if c.state != Paused {
		logger.Warn("resume: not paused", zap.String("state", c.state.String()))
		return false
	}
	if err := c.solver.Resume(c.h.actor, c.currentTime); err != nil {
		logger.Error("resume animation", zap.Error(err))
		return false
	}
	c.state = Playing
	c.ResumeAudio()
	return true
}

// Stop ends playback and releases the animation handle. It returns false
// when already stopped, unless enforce is set.
func (c *Character) Stop(enforce bool) bool {
	if c.state == Stopped && !enforce {
		return false
	}
	wasActive := c.state != Stopped
	var id facefx.AnimID
	if c.anim != nil {
		id = c.anim.ID
	}

	if c.h.actor != 0 && c.h.anim != 0 {
		if err := c.solver.Stop(c.h.actor); err != nil {
			logger.Error("stop animation", zap.Error(err))
		}
	}
	c.h.releaseAnim()
	c.StopAudio()

	c.state = Stopped
	c.progress = 0
	c.audioLatched = false
	c.dirty = true

	if wasActive {
		c.emit(PlaybackStopped{Character: c.id, Anim: id})
	}
	return true
}

// Restart plays the current animation again from the start.
func (c *Character) Restart() bool {
	return c.JumpTo(0, false, nil)
}

// JumpTo plays asset, or the current animation when asset is nil, and
// walks it to position seconds. Audio whose start lies on the way is
// started with the skipped offset. With pause set playback ends paused.
func (c *Character) JumpTo(position float64, pause bool, asset *facefx.AnimationAsset) bool {
	return c.jumpTo(position, pause, asset, false)
}

// jumpTo is JumpTo with optional forwarding of the animation events met on
// the walk.
func (c *Character) jumpTo(position float64, pause bool, asset *facefx.AnimationAsset, forwardEvents bool) bool {
	loop := c.looping
	if asset == nil {
		asset = c.anim
	} else if asset != c.anim {
		loop = false
	}
	if asset == nil {
		logger.Warn("jump: no animation to jump within")
		return false
	}
	if !c.Play(asset, loop) {
		return false
	}

	if position < 0 {
		position = 0
	}
	if position > c.duration {
		position = c.duration
	}

	audio, ok := c.stepTo(position, forwardEvents)
	if !ok {
		c.Stop(false)
		return false
	}
	if audio {
		detected := c.progress
		if c.progress < position {
			if _, ok := c.stepTo(position, forwardEvents); !ok {
				c.Stop(false)
				return false
			}
		}
		c.PlayAudio(position - detected)
	}

	if pause {
		return c.Pause()
	}
	return true
}

// Tick advances playback by deltaTime seconds. A second call for the same
// frame is ignored.
func (c *Character) Tick(frame uint64, deltaTime float64) {
	if c.ticked && frame == c.lastFrame {
		return
	}
	c.ticked = true
	c.lastFrame = frame

	if c.IsLoading() || !c.IsTickable() || deltaTime <= 0 {
		return
	}

	next := c.progress + deltaTime
	if next >= c.duration {
		if c.looping {
			// Finish the current loop so its remaining events are delivered.
			for c.progress < c.duration {
				if _, ok := c.stepTo(c.duration, true); !ok {
					c.currentTime += c.duration - c.progress
					break
				}
			}
			c.jumpTo(stdmath.Mod(next, c.duration), false, nil, true)
			return
		}
		c.currentTime += deltaTime
		c.Stop(false)
		c.processFrame()
		return
	}

	if deltaTime > c.opts.MaxAudioSubstep {
		audio, ok := c.stepTo(next, true)
		if !ok {
			return
		}
		if audio {
			detected := c.progress
			if c.progress < next {
				if _, ok := c.stepTo(next, true); !ok {
					return
				}
			}
			c.PlayAudio(next - detected)
		}
		return
	}

	c.currentTime += deltaTime
	c.progress = next
	if !c.processFrame() {
		return
	}
	c.forwardEvents()
	if c.audioStartDetected() {
		c.PlayAudio(0)
	}
}

func (c *Character) processFrame() bool {
	if err := c.solver.ProcessFrame(c.h.actor, c.h.frame, c.currentTime); err != nil {
		logger.Error("process frame", zap.String("character", c.id.String()), zap.Error(err))
		return false
	}
	c.dirty = true
	return true
}

func (c *Character) forwardEvents() {
	if len(c.subs) == 0 || c.anim == nil {
		return
	}
	events, err := c.solver.Events(c.h.frame)
	if err != nil {
		logger.Warn("read animation events", zap.Error(err))
		return
	}
	for _, e := range events {
		c.emit(AnimationEvent{
			Character:   c.id,
			Anim:        c.anim.ID,
			Channel:     e.Channel,
			ChannelTime: e.ChannelTime,
			EventTime:   e.EventTime,
			Payload:     e.Payload,
		})
	}
}

// GetBoneTransforms returns the solved bone transforms, indexed by
// BoneEntry.TransformIndex. With updateIfDirty set a stale cache is
// recomputed first.
func (c *Character) GetBoneTransforms(updateIfDirty bool) []math.Transform {
	if updateIfDirty && c.dirty && c.IsLoaded() {
		c.updateTransforms()
	}
	return c.boneTransforms
}

func (c *Character) updateTransforms() {
	if err := c.solver.ComputeBoneTransforms(c.h.bones, c.h.frame, c.raw); err != nil {
		logger.Error("compute bone transforms", zap.Error(err))
		return
	}
	for i := range c.raw {
		c.boneTransforms[i] = c.axis(c.raw[i])
	}
	c.evalTracks(&c.morphs)
	c.evalTracks(&c.materials)
	c.dirty = false
}

func (c *Character) evalTracks(t *trackTable) {
	if len(t.ids) == 0 {
		return
	}
	if err := c.solver.ComputeTrackValues(c.h.frame, t.ids, t.values); err != nil {
		logger.Warn("compute track values", zap.Error(err))
	}
}

// MorphTargetWeights returns the morph target weights of the last frame.
func (c *Character) MorphTargetWeights() []TrackValue {
	c.GetBoneTransforms(true)
	return c.morphs.snapshot()
}

// MaterialParamValues returns the material parameter values of the last
// frame.
func (c *Character) MaterialParamValues() []TrackValue {
	c.GetBoneTransforms(true)
	return c.materials.snapshot()
}

// BoneEntries returns the mapped bones in solver order.
func (c *Character) BoneEntries() []BoneEntry {
	return c.bones.Entries()
}

// GetBoneNameTransformIndex returns the transform index of a bone.
func (c *Character) GetBoneNameTransformIndex(name string) (int, bool) {
	return c.bones.Index(name)
}

// IsAnimationActive reports whether id is playing or paused.
func (c *Character) IsAnimationActive(id facefx.AnimID) bool {
	return c.state != Stopped && c.anim != nil && c.anim.ID == id
}

// IsPlaying reports whether id is playing. A zero id matches any
// animation.
func (c *Character) IsPlaying(id facefx.AnimID) bool {
	return c.state == Playing && c.matches(id)
}

// IsPlayingOrPaused reports whether id is playing or paused. A zero id
// matches any animation.
func (c *Character) IsPlayingOrPaused(id facefx.AnimID) bool {
	return c.state != Stopped && c.matches(id)
}

func (c *Character) matches(id facefx.AnimID) bool {
	if id == (facefx.AnimID{}) {
		return true
	}
	return c.anim != nil && c.anim.ID == id
}

// IsCanPlay reports whether asset could be played on the loaded actor,
// without starting it.
func (c *Character) IsCanPlay(asset *facefx.AnimationAsset) bool {
	if !c.IsLoaded() || !asset.IsValid() {
		return false
	}
	h, err := createAnim(c.solver, asset.Data)
	if err != nil {
		logger.Warn("create anim handle", zap.String("anim", asset.ID.String()), zap.Error(err))
		return false
	}
	defer destroyAnim(c.solver, h)

	ok, err := c.solver.IsCompatible(c.h.actor, h)
	if err != nil {
		logger.Warn("check compatibility", zap.String("anim", asset.ID.String()), zap.Error(err))
		return false
	}
	return ok
}
