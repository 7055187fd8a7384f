package character

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/internal/logger"
	"github.com/Faultbox/facefx-go/internal/solver"
)

// AudioTarget is an audio playback capability.
type AudioTarget interface {
	SetSound(*facefx.Sound) error
	// Play starts the sound offset seconds in.
	Play(offset float64) error
	Pause()
	Resume()
	Stop()
	IsPlaying() bool
}

// Owner is the object a character belongs to. It is only used to find
// audio targets and is never owned by the character.
type Owner interface {
	AudioTargets() []AudioTarget
}

// SoundLoader loads sound data that is not resident yet.
type SoundLoader interface {
	LoadSound(path string) ([]byte, error)
}

// IsAudioStarted reports whether the last processed frame raised the
// start-audio flag on channel 0.
func (c *Character) IsAudioStarted() bool {
	if c.h.frame == 0 {
		return false
	}
	flags, err := c.solver.ChannelFlags(c.h.frame)
	if err != nil {
		logger.Warn("read channel flags", zap.Error(err))
		return false
	}
	return len(flags) > 0 && flags[0].Has(solver.ChannelFlagStartAudio)
}

// audioStartDetected latches the start-audio flag for the current
// playback session so it is reported once.
func (c *Character) audioStartDetected() bool {
	if c.audioLatched || !c.IsAudioStarted() {
		return false
	}
	c.audioLatched = true
	return true
}

// TickUntil advances the current animation to progress target in steps of
// at most MaxAudioSubstep, stopping early when the animation asks for its
// audio. On a solver failure the clock is restored and ok is false.
func (c *Character) TickUntil(target float64) (audioStarted, ok bool) {
	return c.stepTo(target, false)
}

func (c *Character) stepTo(target float64, forwardEvents bool) (audioStarted, ok bool) {
	if !c.IsLoaded() || c.h.anim == 0 {
		return false, false
	}
	savedTime, savedProgress := c.currentTime, c.progress

	span := target - c.progress
	if span <= 0 {
		if err := c.solver.ProcessFrame(c.h.actor, c.h.frame, c.currentTime); err != nil {
			logger.Error("process frame", zap.Error(err))
			return false, false
		}
		c.dirty = true
		if forwardEvents {
			c.forwardEvents()
		}
		return c.audioStartDetected(), true
	}

	step := c.opts.MaxAudioSubstep
	if span/step > float64(c.opts.MaxSubsteps) {
		step = span / float64(c.opts.MaxSubsteps)
	}

	for c.progress < target {
		next := c.progress + step
		if next >= target {
			next = target
		}
		c.currentTime += next - c.progress
		c.progress = next

		if err := c.solver.ProcessFrame(c.h.actor, c.h.frame, c.currentTime); err != nil {
			logger.Error("process frame", zap.Error(err), zap.Float64("progress", c.progress))
			c.currentTime, c.progress = savedTime, savedProgress
			return false, false
		}
		c.dirty = true
		if forwardEvents {
			c.forwardEvents()
		}
		if c.audioStartDetected() {
			return true, true
		}
	}
	return false, true
}

// SetAudioTarget assigns an explicit audio target, taking precedence over
// the owner's targets. nil clears it.
func (c *Character) SetAudioTarget(t AudioTarget) {
	c.audioTarget = t
}

// PlayingAudio returns the target playing the current animation's sound.
func (c *Character) PlayingAudio() AudioTarget {
	return c.activeAudio
}

func (c *Character) resolveAudioTarget() AudioTarget {
	if c.audioTarget != nil {
		return c.audioTarget
	}
	if c.opts.Owner == nil {
		return nil
	}
	targets := c.opts.Owner.AudioTargets()
	if len(targets) == 0 {
		return nil
	}
	return targets[0]
}

var errNoSoundLoader = errors.New("no sound loader configured")

func (c *Character) resolveSound() (*facefx.Sound, error) {
	src := c.anim.Sound
	if src.IsResident() {
		return src, nil
	}
	if c.sound != nil && c.sound.Path == src.Path {
		return c.sound, nil
	}
	if c.opts.Sounds == nil {
		return nil, errNoSoundLoader
	}
	data, err := c.opts.Sounds.LoadSound(src.Path)
	if err != nil {
		return nil, err
	}
	// Assets are shared, so the loaded copy stays with the character.
	c.sound = &facefx.Sound{Path: src.Path, Data: data}
	return c.sound, nil
}

// PlayAudio starts the current animation's sound offset seconds in and
// returns the target that plays it.
func (c *Character) PlayAudio(offset float64) (AudioTarget, bool) {
	if c.anim == nil || c.anim.Sound == nil {
		return nil, false
	}

	target := c.resolveAudioTarget()
	started := false
	defer func() {
		c.emit(AudioStartRequested{Character: c.id, Anim: c.anim.ID, Started: started, Target: target})
	}()

	if target == nil {
		logger.Debug("no audio target for animation", zap.String("anim", c.anim.ID.String()))
		return nil, false
	}
	sound, err := c.resolveSound()
	if err != nil {
		logger.Warn("load animation sound", zap.String("sound", c.anim.Sound.Path), zap.Error(err))
		return target, false
	}
	if err := target.SetSound(sound); err != nil {
		logger.Warn("assign sound", zap.String("sound", sound.Path), zap.Error(err))
		return target, false
	}
	if offset < 0 {
		offset = 0
	}
	if err := target.Play(offset); err != nil {
		logger.Warn("play sound", zap.String("sound", sound.Path), zap.Error(err))
		return target, false
	}

	c.activeAudio = target
	started = true
	return target, true
}

// PauseAudio pauses the sound started for the current animation.
func (c *Character) PauseAudio() bool {
	if c.activeAudio == nil || !c.activeAudio.IsPlaying() {
		return false
	}
	c.activeAudio.Pause()
	return true
}

// ResumeAudio resumes a paused sound.
func (c *Character) ResumeAudio() bool {
	if c.activeAudio == nil {
		return false
	}
	c.activeAudio.Resume()
	return true
}

// StopAudio stops the sound started for the current animation.
func (c *Character) StopAudio() bool {
	if c.activeAudio == nil {
		return false
	}
	c.activeAudio.Stop()
	c.activeAudio = nil
	return true
}
