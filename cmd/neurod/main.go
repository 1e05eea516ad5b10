// NeuroSurf backend daemon: realtime agent, tools, and memory behind one
// websocket endpoint.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/neurosurf/neurosurf/internal/agent"
	"github.com/neurosurf/neurosurf/internal/config"
	"github.com/neurosurf/neurosurf/internal/container"
	"github.com/neurosurf/neurosurf/internal/memory"
	"github.com/neurosurf/neurosurf/internal/protocol"
	"github.com/neurosurf/neurosurf/internal/server"
	"github.com/neurosurf/neurosurf/internal/tools"
	"github.com/neurosurf/neurosurf/internal/watcher"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "model", cfg.Model, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Memory store.
	mem, err := memory.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := mem.Close(); closeErr != nil {
			slog.Error("Failed to close memory store", "error", closeErr)
		}
	}()
	if err := mem.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Workspace and command execution.
	workspace, err := tools.NewWorkspace(cfg.WorkspaceDir)
	if err != nil {
		slog.Error("Failed to initialize workspace", "error", err)
		os.Exit(1)
	}

	var executor tools.Executor
	if cfg.SandboxEnabled {
		sandbox, err := container.NewSandbox(cfg.SandboxImage, cfg.WorkspaceDir, cfg.CommandTimeout)
		if err != nil {
			slog.Error("Failed to initialize sandbox", "error", err)
			os.Exit(1)
		}
		if _, err := sandbox.Ensure(ctx); err != nil {
			slog.Error("Failed to start sandbox container", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := sandbox.Stop(stopCtx); err != nil {
				slog.Error("Failed to stop sandbox", "error", err)
			}
		}()
		executor = sandbox
		slog.Info("Sandbox ready", "image", cfg.SandboxImage)
	} else {
		executor = &tools.HostExecutor{Dir: cfg.WorkspaceDir, Timeout: cfg.CommandTimeout}
		slog.Info("Running commands on host", "dir", cfg.WorkspaceDir)
	}

	// Tools.
	web := tools.NewWebClient(cfg.CommandTimeout)
	docs, err := tools.NewDocumentWriter(cfg.ExportsDir)
	if err != nil {
		slog.Error("Failed to initialize document writer", "error", err)
		os.Exit(1)
	}

	hub := server.NewHub()

	registry := tools.NewRegistry()
	registry.Register(tools.NewTerminalTool(executor))
	registry.Register(tools.NewFSTool(workspace))
	registry.Register(tools.CalcTool{})
	registry.Register(tools.NewSearchTool(web))
	registry.Register(tools.NewScrapeTool(web))
	registry.Register(tools.NewDocumentTool(docs))
	registry.Register(tools.NewMemoryStoreTool(mem))
	registry.Register(tools.NewMemorySearchTool(mem))
	registry.Register(tools.NewOpenTabTool(func(url, title string) {
		hub.Broadcast(protocol.EventBrowserNewTab, protocol.NewTab{URL: url, Title: title})
	}))

	// Model client.
	llm, err := agent.NewOllamaClient(cfg.OllamaHost, cfg.Model)
	if err != nil {
		slog.Error("Failed to initialize model client", "error", err)
		os.Exit(1)
	}
	if err := llm.Healthcheck(ctx); err != nil {
		slog.Warn("Model server unreachable, agent commands will fail until it is up", "error", err)
	} else {
		slog.Info("Model server connected", "host", cfg.OllamaHost)
	}

	// Realtime layer.
	ag := agent.New(llm, registry, mem, hub)
	researcher := agent.NewResearcher(llm, web, docs, mem, hub)

	convlog, err := server.NewConversationLogger(cfg.ConversationLog)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := convlog.Close(); err != nil {
			slog.Error("Failed to close conversation logger", "error", err)
		}
	}()

	router := server.NewRouter(ag, researcher, hub, registry, executor, workspace, convlog)
	ws := server.NewWSHandler(hub, router, cfg.AllowedOrigin, cfg.IsDevelopment())

	// Push fresh workspace listings whenever the directory changes on disk.
	fsw, err := watcher.New(cfg.WorkspaceDir, 0, func() {
		entries, err := workspace.List(".")
		if err != nil {
			slog.Warn("Workspace listing failed after change", "error", err)
			return
		}
		items := make([]protocol.FileInfo, 0, len(entries))
		for _, e := range entries {
			items = append(items, protocol.FileInfo{Name: e.Name, IsDir: e.IsDir, Size: e.Size})
		}
		hub.Broadcast(protocol.EventFSListResult, protocol.FSListResult{Path: ".", Items: items})
	})
	if err != nil {
		slog.Error("Failed to watch workspace", "error", err)
		os.Exit(1)
	}
	go fsw.Run(ctx)

	status := server.StatusProvider{
		Hub:       hub,
		Model:     cfg.Model,
		ModelUp:   func() bool { return llm.Healthcheck(context.Background()) == nil },
		MemoryUp:  func() bool { return mem.Ping(context.Background()) == nil },
		SandboxOn: cfg.SandboxEnabled,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Routes(ws, status, cfg.AllowedOrigin),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming websocket responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
