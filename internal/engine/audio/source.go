package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/Faultbox/facefx-go/internal/facefx"
)

// ErrNoSound is returned by Play before a sound is assigned.
var ErrNoSound = errors.New("no sound assigned")

// Source plays one sound at a time for a character.
type Source struct {
	m *Manager

	mu     sync.Mutex
	sound  *facefx.Sound
	level  float64
	stream beep.StreamSeekCloser
	ctrl   *beep.Ctrl
	volume *effects.Volume
	paused bool
	// done is set from the mixer goroutine when the stream drains.
	done *atomic.Bool
}

// NewSource creates a source mixed by m.
func (m *Manager) NewSource() *Source {
	s := &Source{m: m, level: 1}
	m.register(s)
	return s
}

// Release stops the source and detaches it from its manager.
func (s *Source) Release() {
	s.Stop()
	s.m.unregister(s)
}

// SetSound assigns the sound played by the next Play.
func (s *Source) SetSound(sound *facefx.Sound) error {
	if !sound.IsResident() {
		return fmt.Errorf("sound %q is not loaded", soundPath(sound))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sound = sound
	return nil
}

// Sound returns the assigned sound.
func (s *Source) Sound() *facefx.Sound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sound
}

// SetVolume sets the source level (0.0 to 1.0), scaled by the master
// volume.
func (s *Source) SetVolume(level float64) {
	s.mu.Lock()
	s.level = clamp(level, 0, 1)
	s.mu.Unlock()
	s.applyVolume()
}

// Play starts the assigned sound offset seconds in, replacing whatever
// the source was playing.
func (s *Source) Play(offset float64) error {
	if !s.m.IsInitialized() {
		return ErrNotInitialized
	}
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sound == nil {
		return ErrNoSound
	}

	stream, format, err := Decode(s.sound.Path, s.sound.Data)
	if err != nil {
		return err
	}
	if offset > 0 {
		pos := format.SampleRate.N(time.Duration(offset * float64(time.Second)))
		if pos > stream.Len() {
			pos = stream.Len()
		}
		if err := stream.Seek(pos); err != nil {
			stream.Close()
			return fmt.Errorf("seek %s: %w", s.sound.Path, err)
		}
	}

	var resampled beep.Streamer = stream
	if rate := s.m.SampleRate(); format.SampleRate != rate {
		resampled = beep.Resample(4, format.SampleRate, rate, stream)
	}

	ctrl := &beep.Ctrl{Streamer: resampled}
	volume := &effects.Volume{Streamer: ctrl, Base: 2}
	done := &atomic.Bool{}
	s.stream, s.ctrl, s.volume, s.done = stream, ctrl, volume, done
	s.paused = false
	s.setVolumeLocked()

	s.m.play(beep.Seq(volume, beep.Callback(func() { done.Store(true) })))
	return nil
}

// Pause pauses playback.
func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return
	}
	s.m.lock()
	s.ctrl.Paused = true
	s.m.unlock()
	s.paused = true
}

// Resume resumes paused playback.
func (s *Source) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return
	}
	s.m.lock()
	s.ctrl.Paused = false
	s.m.unlock()
	s.paused = false
}

// Stop ends playback. Clearing the control's streamer drops the voice
// from the mixer on its next read.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return
	}
	s.m.lock()
	s.ctrl.Streamer = nil
	s.m.unlock()
	s.stream.Close()
	s.stream, s.ctrl, s.volume, s.done = nil, nil, nil, nil
	s.paused = false
}

// IsPlaying reports whether the source is audible.
func (s *Source) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl != nil && !s.paused && !s.done.Load()
}

func (s *Source) applyVolume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setVolumeLocked()
}

func (s *Source) setVolumeLocked() {
	if s.volume == nil {
		return
	}
	s.m.mu.RLock()
	vol := s.m.effectiveVolume(s.level)
	s.m.mu.RUnlock()

	s.m.lock()
	applyVolume(s.volume, vol)
	s.m.unlock()
}

func soundPath(sound *facefx.Sound) string {
	if sound == nil {
		return ""
	}
	return sound.Path
}
