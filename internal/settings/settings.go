// Package settings holds the shell client's persistent configuration,
// stored as YAML under the user config directory.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Layout remembers panel sizing between sessions.
type Layout struct {
	ChatWidth      int  `yaml:"chat_width"`
	TerminalHeight int  `yaml:"terminal_height"`
	ShowFiles      bool `yaml:"show_files"`
}

// Settings is the client configuration.
type Settings struct {
	ServerURL         string `yaml:"server_url"`
	FallbackURL       string `yaml:"fallback_url"`
	VoiceEnabled      bool   `yaml:"voice_enabled"`
	GestureHoldFrames int    `yaml:"gesture_hold_frames"`
	ZenMode           bool   `yaml:"zen_mode"`
	LogFile           string `yaml:"log_file"`
	Layout            Layout `yaml:"layout"`
}

// Defaults returns the settings used when no config file exists.
func Defaults() Settings {
	return Settings{
		ServerURL:         "ws://127.0.0.1:8765/ws",
		FallbackURL:       "https://www.google.com",
		VoiceEnabled:      false,
		GestureHoldFrames: 15,
		Layout: Layout{
			ChatWidth:      42,
			TerminalHeight: 10,
			ShowFiles:      true,
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "neurosurf", "config.yaml"), nil
}

// Load reads settings from path, filling gaps with defaults. A missing file
// is not an error.
func Load(path string) (Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("parse settings: %w", err)
	}
	if s.ServerURL == "" {
		s.ServerURL = Defaults().ServerURL
	}
	if s.FallbackURL == "" {
		s.FallbackURL = Defaults().FallbackURL
	}
	if s.GestureHoldFrames <= 0 {
		s.GestureHoldFrames = Defaults().GestureHoldFrames
	}
	return s, nil
}

// Save writes settings to path, creating parent directories.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
