// Package container provides an optional Docker sandbox for agent shell
// commands, so the terminal tool never touches the host when enabled.
package container

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	"github.com/neurosurf/neurosurf/internal/tools"
)

const (
	sandboxName     = "neurosurf-sandbox"
	sandboxWorkDir  = "/workspace"
	stopTimeoutSecs = 10

	// Resource limits.
	memoryLimitBytes = 512 * 1024 * 1024 // 512MB
	cpuQuota         = 50000             // 0.5 CPU
	pidsLimit        = 256
)

// Sandbox runs agent commands inside a single long-lived container with the
// workspace directory bind-mounted at /workspace.
type Sandbox struct {
	cli         *client.Client
	image       string
	workspace   string
	timeout     time.Duration
	containerID string
}

// NewSandbox creates a Docker client for the sandbox. The container itself
// is created lazily on first Ensure or Exec.
func NewSandbox(image, workspace string, timeout time.Duration) (*Sandbox, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	slog.Info("sandbox docker client initialized", "image", image)
	return &Sandbox{cli: cli, image: image, workspace: workspace, timeout: timeout}, nil
}

// Ensure makes sure the sandbox container exists and is running, creating or
// restarting it as needed. Returns the container ID.
func (s *Sandbox) Ensure(ctx context.Context) (string, error) {
	inspect, err := s.cli.ContainerInspect(ctx, sandboxName)
	if err == nil {
		if inspect.State.Running {
			s.containerID = inspect.ID
			return inspect.ID, nil
		}
		slog.Info("restarting stopped sandbox", "container_id", inspect.ID)
		if err := s.cli.ContainerStart(ctx, inspect.ID, dockercontainer.StartOptions{}); err != nil {
			return "", fmt.Errorf("restart sandbox %s: %w", inspect.ID, err)
		}
		s.containerID = inspect.ID
		return inspect.ID, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("inspect sandbox: %w", err)
	}

	slog.Info("creating sandbox container", "image", s.image)

	config := &dockercontainer.Config{
		Image:      s.image,
		WorkingDir: sandboxWorkDir,
		Tty:        false,
		// Keep the container alive so exec sessions can attach.
		Cmd: []string{"sleep", "infinity"},
	}
	hostConfig := &dockercontainer.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: s.workspace,
			Target: sandboxWorkDir,
		}},
		Resources: dockercontainer.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	resp, err := s.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, sandboxName)
	if err != nil {
		return "", fmt.Errorf("create sandbox: %w", err)
	}
	if err := s.cli.ContainerStart(ctx, resp.ID, dockercontainer.StartOptions{}); err != nil {
		if removeErr := s.cli.ContainerRemove(ctx, resp.ID, dockercontainer.RemoveOptions{Force: true}); removeErr != nil {
			slog.Warn("failed to remove sandbox after start failure", "container_id", resp.ID, "error", removeErr)
		}
		return "", fmt.Errorf("start sandbox %s: %w", resp.ID, err)
	}

	slog.Info("sandbox created and started", "container_id", resp.ID)
	s.containerID = resp.ID
	return resp.ID, nil
}

// Exec runs one command inside the sandbox, implementing tools.Executor.
func (s *Sandbox) Exec(ctx context.Context, command string) (*tools.ExecResult, error) {
	containerID, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	execConfig := dockercontainer.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"sh", "-c", command},
		WorkingDir:   sandboxWorkDir,
	}
	resp, err := s.cli.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("create exec in sandbox %s: %w", containerID, err)
	}

	attach, err := s.cli.ContainerExecAttach(ctx, resp.ID, dockercontainer.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec %s: %w", resp.ID, err)
	}
	defer attach.Close()

	// Demux before buffering: the tail buffer drops oldest bytes, and a drop
	// landing mid-header would desync every following frame.
	buf := tools.NewTailBuffer(0)
	if _, err := io.Copy(&demuxWriter{dst: buf}, attach.Reader); err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("read exec output: %w", err)
	}

	result := &tools.ExecResult{Output: tools.StripANSI(buf.String())}
	if ctx.Err() == context.DeadlineExceeded {
		result.Output += "\n[command timed out]"
		result.ExitCode = -1
		return result, nil
	}

	inspect, err := s.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec %s: %w", resp.ID, err)
	}
	result.ExitCode = inspect.ExitCode
	return result, nil
}

// Stop stops and removes the sandbox container. Idempotent.
func (s *Sandbox) Stop(ctx context.Context) error {
	if s.containerID == "" {
		return nil
	}
	slog.Info("stopping sandbox", "container_id", s.containerID)

	timeout := stopTimeoutSecs
	if err := s.cli.ContainerStop(ctx, s.containerID, dockercontainer.StopOptions{Timeout: &timeout}); err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Debug("sandbox stop returned error, continuing to remove", "error", err)
		}
	}
	if err := s.cli.ContainerRemove(ctx, s.containerID, dockercontainer.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) || strings.Contains(err.Error(), "is already in progress") {
			return nil
		}
		return fmt.Errorf("remove sandbox %s: %w", s.containerID, err)
	}
	s.containerID = ""
	return nil
}

// demuxWriter strips docker's 8-byte stream multiplexing headers from a
// non-TTY exec stream as the bytes arrive, forwarding only frame payloads.
// Headers may straddle Write boundaries. TTY streams carry no headers; the
// first byte decides passthrough.
type demuxWriter struct {
	dst    io.Writer
	header []byte // partial frame header carried between writes
	remain int    // payload bytes left in the current frame
	raw    bool
	seen   bool
}

func (d *demuxWriter) Write(p []byte) (int, error) {
	total := len(p)
	if !d.seen && total > 0 {
		d.seen = true
		// stdout and stderr frames open with stream ids 1 and 2.
		d.raw = p[0] != 1 && p[0] != 2
	}
	if d.raw {
		if _, err := d.dst.Write(p); err != nil {
			return 0, err
		}
		return total, nil
	}
	for len(p) > 0 {
		if d.remain > 0 {
			n := d.remain
			if n > len(p) {
				n = len(p)
			}
			if _, err := d.dst.Write(p[:n]); err != nil {
				return 0, err
			}
			d.remain -= n
			p = p[n:]
			continue
		}
		need := 8 - len(d.header)
		if need > len(p) {
			need = len(p)
		}
		d.header = append(d.header, p[:need]...)
		p = p[need:]
		if len(d.header) == 8 {
			d.remain = int(d.header[4])<<24 | int(d.header[5])<<16 |
				int(d.header[6])<<8 | int(d.header[7])
			d.header = d.header[:0]
		}
	}
	return total, nil
}

func ptr[T any](v T) *T { return &v }
