// Package audio plays the sounds linked to FaceFX animations.
//
// A Manager owns the output mixer. Each character gets a Source, which
// implements character.AudioTarget and can start a sound at an offset so
// audio stays aligned after a jump.
package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// DefaultSampleRate is the default output sample rate.
const DefaultSampleRate = beep.SampleRate(44100)

// ErrNotInitialized is returned when playing before Init.
var ErrNotInitialized = errors.New("audio not initialized")

// Manager owns the output mixer and the master volume.
type Manager struct {
	mu sync.RWMutex

	initialized bool
	// offline managers are not connected to the speaker; the mixer is
	// pulled through Stream instead.
	offline    bool
	sampleRate beep.SampleRate
	mixer      *beep.Mixer

	masterVolume float64
	muted        bool

	sources map[*Source]struct{}
}

// New creates a new audio manager.
func New() *Manager {
	return &Manager{
		masterVolume: 1.0,
		mixer:        &beep.Mixer{},
		sources:      make(map[*Source]struct{}),
	}
}

// Init opens the speaker and starts the mixer.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	m.sampleRate = DefaultSampleRate
	err := speaker.Init(m.sampleRate, m.sampleRate.N(time.Second/30))
	if err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(m.mixer)

	m.initialized = true
	return nil
}

// InitOffline initializes the manager without an output device. Audio is
// produced only when Stream is called.
func (m *Manager) InitOffline(sampleRate beep.SampleRate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampleRate = sampleRate
	m.offline = true
	m.initialized = true
}

// Stream pulls mixed samples from an offline manager.
func (m *Manager) Stream(samples [][2]float64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.offline {
		return 0
	}
	n, _ := m.mixer.Stream(samples)
	return n
}

// Close stops every source and shuts the output down.
func (m *Manager) Close() {
	m.mu.Lock()
	sources := make([]*Source, 0, len(m.sources))
	for s := range m.sources {
		sources = append(sources, s)
	}
	m.mu.Unlock()

	for _, s := range sources {
		s.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized && !m.offline {
		speaker.Clear()
	}
	m.initialized = false
	m.offline = false
}

// IsInitialized returns whether the audio system is initialized.
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SampleRate returns the output sample rate.
func (m *Manager) SampleRate() beep.SampleRate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sampleRate
}

// SetMasterVolume sets the master volume (0.0 to 1.0).
func (m *Manager) SetMasterVolume(vol float64) {
	m.mu.Lock()
	m.masterVolume = clamp(vol, 0, 1)
	m.mu.Unlock()
	m.updateVolumes()
}

// GetMasterVolume returns the master volume.
func (m *Manager) GetMasterVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masterVolume
}

// SetMuted silences every source without changing the volume.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
	m.updateVolumes()
}

// IsMuted reports whether output is muted.
func (m *Manager) IsMuted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.muted
}

func (m *Manager) effectiveVolume(level float64) float64 {
	if m.muted {
		return 0
	}
	return m.masterVolume * level
}

func (m *Manager) updateVolumes() {
	m.mu.RLock()
	sources := make([]*Source, 0, len(m.sources))
	for s := range m.sources {
		sources = append(sources, s)
	}
	m.mu.RUnlock()

	for _, s := range sources {
		s.applyVolume()
	}
}

// lock guards streamers that the speaker goroutine may be reading.
func (m *Manager) lock() {
	if m.initialized && !m.offline {
		speaker.Lock()
	}
}

func (m *Manager) unlock() {
	if m.initialized && !m.offline {
		speaker.Unlock()
	}
}

func (m *Manager) play(s beep.Streamer) {
	m.lock()
	m.mixer.Add(s)
	m.unlock()
}

func (m *Manager) register(s *Source) {
	m.mu.Lock()
	m.sources[s] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) unregister(s *Source) {
	m.mu.Lock()
	delete(m.sources, s)
	m.mu.Unlock()
}

func applyVolume(v *effects.Volume, vol float64) {
	if vol <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = volumeExponent(vol)
}

// volumeExponent converts a 0-1 volume to the base-2 exponent effects.Volume
// expects: vol=1 -> 0, vol=0.5 -> -1.
func volumeExponent(vol float64) float64 {
	if vol <= 0 {
		return -100
	}
	return math.Log2(vol)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
