// Package capture grabs screenshots through whatever capture binary the host
// offers, returning them as base64 data URLs for the realtime channel.
package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// engines in preference order, each writing a png to the given path.
var engines = []struct {
	bin  string
	args func(path string) []string
}{
	{"screencapture", func(path string) []string { return []string{"-x", path} }},
	{"grim", func(path string) []string { return []string{path} }},
	{"import", func(path string) []string { return []string{"-window", "root", path} }},
}

// Detect finds the first available capture binary on PATH and returns a
// capture function. Returns an error when none exists; callers treat that as
// capture-disabled.
func Detect() (func(ctx context.Context) (string, error), error) {
	for _, e := range engines {
		if _, err := exec.LookPath(e.bin); err == nil {
			bin, args := e.bin, e.args
			return func(ctx context.Context) (string, error) {
				return grab(ctx, bin, args)
			}, nil
		}
	}
	return nil, fmt.Errorf("no screen capture binary found")
}

func grab(ctx context.Context, bin string, args func(path string) []string) (string, error) {
	dir, err := os.MkdirTemp("", "neurosurf-capture-")
	if err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "screen.png")
	if err := exec.CommandContext(ctx, bin, args(path)...).Run(); err != nil {
		return "", fmt.Errorf("capture with %s: %w", bin, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read capture: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
