// NeuroSurf shell client: the terminal UI that talks to the neurod backend.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/neurosurf/neurosurf/internal/capture"
	"github.com/neurosurf/neurosurf/internal/dispatch"
	"github.com/neurosurf/neurosurf/internal/settings"
	"github.com/neurosurf/neurosurf/internal/speech"
	"github.com/neurosurf/neurosurf/internal/state"
	"github.com/neurosurf/neurosurf/internal/ui"
)

func main() {
	var serverURL, configPath string

	root := &cobra.Command{
		Use:   "neurosurf",
		Short: "Agentic browser shell",
		Long:  "NeuroSurf is a terminal shell around an agentic browser backend: tabs, an agent thought stream, a terminal panel, and gesture/voice controls.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(serverURL, configPath)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&serverURL, "server", "", "backend websocket URL (overrides config)")
	root.Flags().StringVar(&configPath, "config", "", "settings file path (default: user config dir)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(serverURL, configPath string) error {
	if configPath == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	cfg, err := settings.Load(configPath)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}

	// The terminal is the UI; logs go to a file or nowhere.
	if err := setupLogging(cfg.LogFile); err != nil {
		return err
	}

	store := state.New(cfg.FallbackURL)

	var speaker dispatch.Speaker
	if cfg.VoiceEnabled {
		sp, err := speech.Detect()
		if err != nil {
			slog.Warn("voice disabled", "error", err)
			cfg.VoiceEnabled = false
		} else {
			speaker = sp
		}
	}

	var capFn dispatch.CaptureFunc
	if fn, err := capture.Detect(); err == nil {
		capFn = fn
	} else {
		slog.Info("screen capture disabled", "error", err)
	}

	d := dispatch.New(dispatch.Config{
		URL:        cfg.ServerURL,
		Store:      store,
		Speaker:    speaker,
		Capture:    capFn,
		HoldFrames: cfg.GestureHoldFrames,
	})

	m := ui.New(store, d, cfg, configPath)
	p := ui.NewProgram(m)
	store.SetChangeHandler(func() { p.Send(ui.StoreChangedMsg{}) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	return ui.Run(p)
}

func setupLogging(path string) error {
	if path == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	return nil
}
