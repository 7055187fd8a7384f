// Package host wires the asset service, audio output, characters and
// blend nodes together from a Config.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/assets"
	"github.com/Faultbox/facefx-go/internal/character"
	"github.com/Faultbox/facefx-go/internal/config"
	"github.com/Faultbox/facefx-go/internal/engine/audio"
	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/internal/logger"
	"github.com/Faultbox/facefx-go/internal/pose"
	"github.com/Faultbox/facefx-go/internal/solver"
)

// ErrNoSolver is returned by New without a solver.
var ErrNoSolver = errors.New("host: no solver")

// Host owns the shared services of a FaceFX runtime.
type Host struct {
	cfg    *config.Config
	solver solver.Solver

	assets   *assets.Manager
	streamer *assets.Streamer
	audio    *audio.Manager
	watcher  *assets.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu         sync.Mutex
	characters []*character.Character
	sources    map[*character.Character]*audio.Source
	frame      uint64

	// OnAssetChange is called after a compiled asset changed on disk.
	OnAssetChange func(name string)
}

// New creates a host driving s.
func New(cfg *config.Config, s solver.Solver) (*Host, error) {
	if s == nil {
		return nil, ErrNoSolver
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Host{
		cfg:     cfg,
		solver:  s,
		assets:  assets.NewManager(),
		sources: make(map[*character.Character]*audio.Source),
	}
	h.streamer = assets.NewStreamer(h.assets)

	// Packs first so loose directories override them
	for _, p := range cfg.Data.PackPaths {
		if err := h.assets.AddPack(p); err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to add pack: %w", err)
		}
	}
	for _, dir := range cfg.Data.AssetDirs {
		if err := h.assets.AddDir(dir); err != nil {
			logger.Warn("skipping asset dir", zap.String("dir", dir), zap.Error(err))
		}
	}

	if cfg.Audio.Enabled {
		h.audio = audio.New()
		if err := h.audio.Init(); err != nil {
			// Headless hosts keep running without sound
			logger.Warn("audio unavailable", zap.Error(err))
			h.audio = nil
		} else {
			h.audio.SetMasterVolume(cfg.Audio.MasterVolume)
			h.audio.SetMuted(cfg.Audio.Muted)
		}
	}

	if cfg.Data.HotReload {
		if err := h.startWatcher(); err != nil {
			h.Close()
			return nil, err
		}
	}

	logger.Info("host initialized",
		zap.Int("packs", len(cfg.Data.PackPaths)),
		zap.Int("dirs", len(h.assets.Dirs())),
		zap.Bool("audio", h.audio != nil),
		zap.Bool("hot_reload", h.watcher != nil),
	)
	return h, nil
}

func (h *Host) startWatcher() error {
	w, err := assets.NewWatcher(h.assets, h.streamer, 0)
	if err != nil {
		return fmt.Errorf("failed to start hot reload: %w", err)
	}
	w.OnChange = func(name string) {
		if h.OnAssetChange != nil {
			h.OnAssetChange(name)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.watcher = w
	h.cancel = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("asset watcher stopped", zap.Error(err))
		}
	}()
	return nil
}

// Config returns the host configuration.
func (h *Host) Config() *config.Config { return h.cfg }

// Assets returns the asset manager.
func (h *Host) Assets() *assets.Manager { return h.assets }

// Streamer returns the dataset streamer.
func (h *Host) Streamer() *assets.Streamer { return h.streamer }

// Audio returns the audio manager, or nil when audio is off.
func (h *Host) Audio() *audio.Manager { return h.audio }

// CharacterOptions returns the character options derived from the config.
func (h *Host) CharacterOptions(owner character.Owner) character.Options {
	return character.Options{
		Owner:           owner,
		Sounds:          h.assets,
		MaxAudioSubstep: h.cfg.Playback.MaxAudioSubstep,
		MaxSubsteps:     h.cfg.Playback.MaxSubsteps,
		BoneFilter:      h.cfg.Bones.Filter,
	}
}

// LoadOptions returns the dataset load options derived from the config.
func (h *Host) LoadOptions() character.LoadOptions {
	return character.LoadOptions{
		CompensateAxis: h.cfg.Bones.CompensateAxis,
	}
}

// NewCharacter creates a character registered for Tick and Close. When
// audio is on and owner is nil, the character gets its own audio source.
func (h *Host) NewCharacter(owner character.Owner) *character.Character {
	c := character.New(h.solver, h.CharacterOptions(owner))

	h.mu.Lock()
	if owner == nil && h.audio != nil {
		src := h.audio.NewSource()
		h.sources[c] = src
		c.SetAudioTarget(src)
	}
	h.characters = append(h.characters, c)
	h.mu.Unlock()
	return c
}

// RemoveCharacter destroys c and stops ticking it.
func (h *Host) RemoveCharacter(c *character.Character) {
	h.mu.Lock()
	for i, other := range h.characters {
		if other == c {
			h.characters = append(h.characters[:i], h.characters[i+1:]...)
			break
		}
	}
	src := h.sources[c]
	delete(h.sources, c)
	h.mu.Unlock()
	destroy(c, src)
}

func destroy(c *character.Character, src *audio.Source) {
	c.Destroy()
	if src != nil {
		src.Release()
	}
}

// Characters returns the registered characters.
func (h *Host) Characters() []*character.Character {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*character.Character, len(h.characters))
	copy(out, h.characters)
	return out
}

// LoadCharacter starts streaming a dataset into c.
func (h *Host) LoadCharacter(c *character.Character, dataset string) bool {
	return c.LoadAsync(h.streamer.RequestDataset(dataset), h.LoadOptions())
}

// LoadCharacterSync loads a dataset into c before returning. On failure c
// is left unloaded.
func (h *Host) LoadCharacterSync(c *character.Character, dataset string) bool {
	ds, err := h.streamer.Dataset(dataset)
	if err != nil {
		c.Reset()
		logger.Error("failed to load dataset", zap.String("dataset", dataset), zap.Error(err))
		return false
	}
	return c.Load(ds, h.LoadOptions())
}

// Animation loads a compiled animation by id.
func (h *Host) Animation(id string) (*facefx.AnimationAsset, error) {
	return h.assets.LoadAnimation(facefx.ParseAnimID(id))
}

// Tick advances every registered character by dt seconds.
func (h *Host) Tick(dt float64) {
	h.mu.Lock()
	h.frame++
	frame := h.frame
	chars := make([]*character.Character, len(h.characters))
	copy(chars, h.characters)
	h.mu.Unlock()

	for _, c := range chars {
		c.Tick(frame, dt)
	}
}

// NewBlendNode creates a blend node configured from the blend section.
func (h *Host) NewBlendNode(locator pose.CharacterLocator) (*pose.BlendNode, error) {
	mode, err := pose.ParseBlendMode(h.cfg.Blend.Mode)
	if err != nil {
		return nil, err
	}
	scale, err := pose.ParseAdditiveScale(h.cfg.Blend.AdditiveScale)
	if err != nil {
		return nil, err
	}

	n := pose.NewBlendNode(locator)
	n.Mode = mode
	n.AdditiveScale = scale
	n.Alpha = h.cfg.Blend.Alpha
	n.LODThreshold = h.cfg.Blend.LODThreshold
	n.Debug = h.cfg.Blend.Debug
	return n, nil
}

// Close destroys every character and releases the services.
func (h *Host) Close() {
	logger.Info("closing host")

	h.mu.Lock()
	chars, sources := h.characters, h.sources
	h.characters = nil
	h.sources = make(map[*character.Character]*audio.Source)
	h.mu.Unlock()
	for _, c := range chars {
		destroy(c, sources[c])
	}

	if h.cancel != nil {
		h.cancel()
		h.wg.Wait()
		h.cancel = nil
	}
	if h.audio != nil {
		h.audio.Close()
	}
	h.assets.Close()
}
