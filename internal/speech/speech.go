// Package speech voices short status phrases through whatever TTS binary the
// host offers. Synthesis quality does not matter here; the phrases are one
// line long.
package speech

import (
	"context"
	"fmt"
	"os/exec"
)

// engines in preference order, each with its argument shape.
var engines = []struct {
	bin  string
	args func(text string) []string
}{
	{"say", func(text string) []string { return []string{text} }},
	{"espeak-ng", func(text string) []string { return []string{text} }},
	{"espeak", func(text string) []string { return []string{text} }},
	{"spd-say", func(text string) []string { return []string{"--wait", text} }},
}

// Speaker voices text via a detected host TTS binary.
type Speaker struct {
	bin  string
	args func(text string) []string
}

// Detect finds the first available TTS binary on PATH. Returns an error when
// none exists; callers treat that as voice-disabled.
func Detect() (*Speaker, error) {
	for _, e := range engines {
		if _, err := exec.LookPath(e.bin); err == nil {
			return &Speaker{bin: e.bin, args: e.args}, nil
		}
	}
	return nil, fmt.Errorf("no text-to-speech binary found")
}

// Say voices one phrase, blocking until playback ends or ctx is cancelled.
func (s *Speaker) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, s.bin, s.args(text)...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("speak with %s: %w", s.bin, err)
	}
	return nil
}
