// Package config handles runtime configuration loading and management.
package config

// Config holds all runtime settings.
type Config struct {
	Playback PlaybackConfig `yaml:"playback"`
	Blend    BlendConfig    `yaml:"blend"`
	Bones    BonesConfig    `yaml:"bones"`
	Audio    AudioConfig    `yaml:"audio"`
	Data     DataConfig     `yaml:"data"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PlaybackConfig controls how characters advance the solver.
type PlaybackConfig struct {
	// MaxAudioSubstep is the largest step, in seconds, used when walking
	// time so the solver's audio-start flag cannot be skipped.
	MaxAudioSubstep float64 `yaml:"max_audio_substep"`
	// MaxSubsteps bounds the number of steps for a single jump; the step
	// widens for very long spans.
	MaxSubsteps int `yaml:"max_substeps"`
}

// BlendConfig holds defaults for pose blend nodes.
type BlendConfig struct {
	Mode          string  `yaml:"mode"`           // "replace" or "additive"
	AdditiveScale string  `yaml:"additive_scale"` // "add" or "multiply"
	Alpha         float32 `yaml:"alpha"`
	LODThreshold  int     `yaml:"lod_threshold"` // -1 = every LOD
	Debug         bool    `yaml:"debug"`
}

// BonesConfig controls bone table construction.
type BonesConfig struct {
	Filter         []string `yaml:"filter"` // allow-list; empty = all bones
	CompensateAxis bool     `yaml:"compensate_axis"`
}

// AudioConfig holds audio settings.
type AudioConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MasterVolume float64 `yaml:"master_volume"`
	Muted        bool    `yaml:"muted"`
}

// DataConfig holds compiled asset locations.
type DataConfig struct {
	PackPaths []string `yaml:"pack_paths"` // .ffxpack archives, last = highest priority
	AssetDirs []string `yaml:"asset_dirs"` // loose directories, override packs
	HotReload bool     `yaml:"hot_reload"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Playback: PlaybackConfig{
			MaxAudioSubstep: 1.0 / 60.0,
			MaxSubsteps:     4096,
		},
		Blend: BlendConfig{
			Mode:          "replace",
			AdditiveScale: "add",
			Alpha:         1.0,
			LODThreshold:  -1,
		},
		Bones: BonesConfig{
			CompensateAxis: true,
		},
		Audio: AudioConfig{
			Enabled:      true,
			MasterVolume: 1.0,
		},
		Data: DataConfig{
			AssetDirs: []string{"facefx"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
