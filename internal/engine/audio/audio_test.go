package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"github.com/Faultbox/facefx-go/internal/facefx"
)

func TestVolumeExponent(t *testing.T) {
	tests := []struct {
		vol float64
		min float64
		max float64
	}{
		{1.0, -0.01, 0.01},
		{0.5, -1.01, -0.99},
		{0.25, -2.01, -1.99},
		{0.0, -200, -90},
	}

	for _, tt := range tests {
		got := volumeExponent(tt.vol)
		if got < tt.min || got > tt.max {
			t.Errorf("volumeExponent(%f) = %f, want between %f and %f", tt.vol, got, tt.min, tt.max)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, min, max, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-1, 0, 1, 0},
		{2, 0, 1, 1},
		{0, 0, 1, 0},
		{1, 0, 1, 1},
	}

	for _, tt := range tests {
		got := clamp(tt.v, tt.min, tt.max)
		if got != tt.want {
			t.Errorf("clamp(%f, %f, %f) = %f, want %f", tt.v, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestNewManager(t *testing.T) {
	m := New()
	if m.GetMasterVolume() != 1.0 {
		t.Errorf("default master volume = %f, want 1.0", m.GetMasterVolume())
	}
	if m.IsInitialized() || m.IsMuted() {
		t.Error("new manager should be uninitialized and unmuted")
	}

	m.SetMasterVolume(2.0)
	if m.GetMasterVolume() != 1.0 {
		t.Errorf("master volume = %f, want 1.0 (clamped)", m.GetMasterVolume())
	}
	m.SetMasterVolume(-1.0)
	if m.GetMasterVolume() != 0.0 {
		t.Errorf("master volume = %f, want 0.0 (clamped)", m.GetMasterVolume())
	}
}

func TestDecodeUnsupported(t *testing.T) {
	_, _, err := Decode("voice.flac", []byte("fLaC"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
	if _, _, err := Decode("voice.wav", []byte("not a wav")); err == nil {
		t.Error("expected decode error")
	}
}

// makeWAV encodes one second of a constant signal.
func makeWAV(t *testing.T, rate beep.SampleRate) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	signal := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{0.5, 0.5}
		}
		return len(samples), true
	})
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Take(rate.N(1e9), signal), format); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func loud(samples [][2]float64) bool {
	for _, s := range samples {
		if s[0] > 0.1 {
			return true
		}
	}
	return false
}

func TestSourcePlayback(t *testing.T) {
	const rate = beep.SampleRate(8000)
	m := New()
	m.InitOffline(rate)
	defer m.Close()

	src := m.NewSource()
	defer src.Release()

	if err := src.Play(0); !errors.Is(err, ErrNoSound) {
		t.Fatalf("Play without sound: %v", err)
	}
	if err := src.SetSound(&facefx.Sound{Path: "tone.wav"}); err == nil {
		t.Error("SetSound accepted a sound that is not loaded")
	}

	sound := &facefx.Sound{Path: "tone.wav", Data: makeWAV(t, rate)}
	if err := src.SetSound(sound); err != nil {
		t.Fatalf("SetSound: %v", err)
	}
	if err := src.Play(0.5); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !src.IsPlaying() {
		t.Fatal("source not playing")
	}

	buf := make([][2]float64, 1000)
	m.Stream(buf)
	if !loud(buf) {
		t.Error("expected signal while playing")
	}

	src.Pause()
	if src.IsPlaying() {
		t.Error("paused source reports playing")
	}
	m.Stream(buf)
	if loud(buf) {
		t.Error("expected silence while paused")
	}

	src.Resume()
	m.SetMuted(true)
	m.Stream(buf)
	if loud(buf) {
		t.Error("expected silence while muted")
	}
	m.SetMuted(false)

	// 0.5s were skipped and 1000 samples played, so the rest drains.
	for i := 0; i < 10; i++ {
		m.Stream(buf)
	}
	if src.IsPlaying() {
		t.Error("source still playing after the sound ended")
	}
}

func TestSourceStop(t *testing.T) {
	const rate = beep.SampleRate(8000)
	m := New()
	m.InitOffline(rate)
	defer m.Close()

	src := m.NewSource()
	src.SetSound(&facefx.Sound{Path: "tone.wav", Data: makeWAV(t, rate)})
	src.Play(0)
	src.Stop()
	src.Stop()

	buf := make([][2]float64, 500)
	m.Stream(buf)
	if loud(buf) || src.IsPlaying() {
		t.Error("stopped source still audible")
	}
}

func TestPlayRequiresInit(t *testing.T) {
	m := New()
	src := m.NewSource()
	if err := src.Play(0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("got %v, want ErrNotInitialized", err)
	}
}
