package config

import (
	"flag"
	"strings"
)

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging and blend sanity checks")
	flagPack      = flag.String("pack", "", "Comma-separated .ffxpack archives")
	flagAssets    = flag.String("assets", "", "Comma-separated loose asset directories")
	flagBlendMode = flag.String("blend-mode", "", "Blend mode: replace or additive")
	flagHotReload = flag.Bool("hot-reload", false, "Reload compiled assets when they change on disk")
	flagMute      = flag.Bool("mute", false, "Disable audio output")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Blend.Debug = true
	}
	if *flagPack != "" {
		cfg.Data.PackPaths = splitList(*flagPack)
	}
	if *flagAssets != "" {
		cfg.Data.AssetDirs = splitList(*flagAssets)
	}
	if *flagBlendMode != "" {
		cfg.Blend.Mode = *flagBlendMode
	}
	if *flagHotReload {
		cfg.Data.HotReload = true
	}
	if *flagMute {
		cfg.Audio.Muted = true
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
