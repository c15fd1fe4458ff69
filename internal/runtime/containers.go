/*
   devc: a command-line implementation of the Development Containers spec
   Copyright (C) 2025  The devc authors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU General Public License for more details.
*/

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/docker/go-connections/nat"
	gonanoid "github.com/matoous/go-nanoid/v2"
	imagespec "github.com/moby/docker-image-spec/specs-go/v1"
	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	mobyclient "github.com/moby/moby/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/term"

	"github.com/devc-cli/devc/internal/devc"
)

// ExecInDevcontainer runs a command inside the primary devcontainer
// (the lone container in non-Compose configurations, or the one named
// by `service` otherwise).
func (c *Client) ExecInDevcontainer(ctx context.Context, remoteUser string, env devc.EnvVarMap, runInShell bool, args ...string) (bytes.Buffer, bytes.Buffer, error) {
	return c.ExecInContainer(ctx, c.ContainerID, remoteUser, env, runInShell, args...)
}

// ExecInContainer runs a command inside the container identified by
// containerID.
//
// When runInShell is true, args is run via `/bin/sh -c`; otherwise
// args[0] is the program name.
func (c *Client) ExecInContainer(ctx context.Context, containerID, remoteUser string, env devc.EnvVarMap, runInShell bool, args ...string) (cmdStdout, cmdStderr bytes.Buffer, err error) {
	if runInShell {
		args = append([]string{"/bin/sh", "-c"}, args...)
	}
	cmd := strings.Join(args, " ")
	slog.Info("running command in container", "container", containerID, "cmd", cmd)

	execCreateOpts := mobyclient.ExecCreateOptions{
		User:         remoteUser,
		TTY:          false,
		AttachStderr: true,
		AttachStdout: true,
		Cmd:          args,
	}
	for name, val := range env {
		execCreateOpts.Env = append(execCreateOpts.Env, fmt.Sprintf("%s=%s", name, val))
	}

	execCreateRes, err := c.mobyClient.ExecCreate(ctx, containerID, execCreateOpts)
	if err != nil {
		slog.Error("failed to prepare execution context", "error", err)
		return cmdStdout, cmdStderr, err
	}
	execAttachRes, err := c.mobyClient.ExecAttach(ctx, execCreateRes.ID, mobyclient.ExecAttachOptions{})
	if err != nil {
		slog.Error("failed to execute command", "error", err)
		return cmdStdout, cmdStderr, err
	}
	execInspectRes, err := c.mobyClient.ExecInspect(ctx, execCreateRes.ID, mobyclient.ExecInspectOptions{})
	if err != nil {
		slog.Error("failed to inspect execution context", "error", err)
		return cmdStdout, cmdStderr, err
	}

	if _, err = stdcopy.StdCopy(&cmdStdout, &cmdStderr, execAttachRes.Reader); err != nil {
		slog.Error("could not demultiplex command output", "cmd", cmd, "error", err)
		return cmdStdout, cmdStderr, err
	}

	slog.Debug("command output", "cmd", cmd, "stdout", cmdStdout.String(), "stderr", cmdStderr.String())
	if execInspectRes.ExitCode != 0 {
		err = fmt.Errorf("command returned non-zero exit code: %d", execInspectRes.ExitCode)
	}
	return cmdStdout, cmdStderr, err
}

// ExecInTempContainer spins up a container from containerCfg/hostCfg,
// runs a single command, tears the container back down, and returns
// its output.
func (c *Client) ExecInTempContainer(ctx context.Context, containerCfg *container.Config, hostCfg *container.HostConfig, env devc.EnvVarMap, args ...string) (cmdStdout, cmdStderr bytes.Buffer, err error) {
	sOut, sErr, err := c.MultiExecInTempContainer(ctx, containerCfg, hostCfg, env, [][]string{args})
	if err == nil && len(sOut) > 0 {
		cmdStdout, cmdStderr = sOut[0], sErr[0]
	}
	return cmdStdout, cmdStderr, err
}

// MultiExecInTempContainer spins up a container from containerCfg and
// hostCfg, runs each command in args in order, and returns their
// stdout/stderr in the same order.
func (c *Client) MultiExecInTempContainer(ctx context.Context, containerCfg *container.Config, hostCfg *container.HostConfig, env devc.EnvVarMap, args [][]string) (cmdStdout, cmdStderr []bytes.Buffer, err error) {
	name, err := gonanoid.New(16)
	if err != nil {
		return cmdStdout, cmdStderr, err
	}
	tempContainerID, err := c.StartContainer(ctx, nil, containerCfg, hostCfg, fmt.Sprintf("tmp--%s", name), false)
	if err != nil {
		return cmdStdout, cmdStderr, err
	}
	defer func() {
		if tempContainerID != "" {
			if stopErr := c.StopContainer(tempContainerID); stopErr != nil {
				slog.Warn("failed to stop temporary container", "container", tempContainerID, "error", stopErr)
			}
		}
	}()

	for _, arg := range args {
		sOut, sErr, execErr := c.ExecInContainer(ctx, tempContainerID, containerCfg.User, env, true, arg...)
		if execErr != nil {
			return cmdStdout, cmdStderr, execErr
		}
		cmdStdout = append(cmdStdout, sOut)
		cmdStderr = append(cmdStderr, sErr)
	}
	return cmdStdout, cmdStderr, nil
}

// StartDevcontainerContainer starts and attaches to a container based
// on configuration from a resolved devcontainer.json, using imageTag
// as the base image and containerName as the created container's name.
func (c *Client) StartDevcontainerContainer(ctx context.Context, p *devc.DevcontainerParser, imageTag, containerName string) (err error) {
	slog.Debug("starting devcontainer", "tag", imageTag, "name", containerName)
	containerCfg := c.buildContainerConfig(p, imageTag)
	hostCfg := c.buildHostConfig(p)

	if err = c.bindAppPorts(p, containerCfg, hostCfg); err != nil {
		return err
	}

	containerID, err := c.StartContainer(ctx, p, containerCfg, hostCfg, containerName, true)
	if containerID != "" {
		p.DevcontainerID = &containerID
	}
	return err
}

// StartContainer creates a container from containerCfg/hostCfg and
// starts it, driving the lifecycle channel through each stage when
// isDevcontainer is true.
func (c *Client) StartContainer(ctx context.Context, p *devc.DevcontainerParser, containerCfg *container.Config, hostCfg *container.HostConfig, containerName string, isDevcontainer bool) (containerID string, err error) {
	if isDevcontainer {
		if err = c.bindForwardPorts(p, containerCfg, hostCfg); err != nil {
			return "", err
		}
		c.bindMounts(p, hostCfg)

		if err = c.setContainerAndRemoteUser(p, containerCfg.Image); err != nil {
			return "", err
		}

		if p.Config.UpdateRemoteUserUID != nil && *p.Config.UpdateRemoteUserUID {
			if err = c.applyUpdateRemoteUserUID(ctx, p, containerCfg, hostCfg); err != nil {
				return "", err
			}
		}

		if err = c.driveLifecycle(LifecycleInitialize); err != nil {
			return "", err
		}
	}

	createResp, err := c.mobyClient.ContainerCreate(ctx, mobyclient.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
		Name:       containerName,
		Platform:   (*ocispec.Platform)(&c.Platform),
	})
	if err != nil {
		slog.Error("failed to create container", "error", err)
		return "", err
	}

	if isDevcontainer {
		c.ContainerID = createResp.ID
		attachResp, attachErr := c.mobyClient.ContainerAttach(ctx, c.ContainerID, mobyclient.ContainerAttachOptions{
			Logs: true, Stderr: true, Stdin: true, Stdout: true, Stream: true,
		})
		if attachErr != nil {
			return c.ContainerID, attachErr
		}
		c.attachResp = &attachResp
	}

	if _, err = c.mobyClient.ContainerStart(ctx, createResp.ID, mobyclient.ContainerStartOptions{}); err != nil {
		slog.Error("failed to start container", "error", err)
		return createResp.ID, err
	}

	if isDevcontainer {
		for _, ev := range []LifecycleEvent{LifecycleFeatureInstall, LifecycleOnCreate, LifecycleUpdateContent, LifecyclePostCreate, LifecyclePostStart} {
			if err = c.driveLifecycle(ev); err != nil {
				return c.ContainerID, err
			}
		}
	}

	return createResp.ID, nil
}

func (c *Client) driveLifecycle(ev LifecycleEvent) error {
	c.LifecycleChan <- ev
	if ok := <-c.LifecycleResp; !ok {
		return errors.New("lifecycle handler reported an error")
	}
	return nil
}

// ContainerTimestamps returns the container's creation and start
// timestamps, used to key lifecycle marker idempotency checks.
func (c *Client) ContainerTimestamps(ctx context.Context, containerID string) (createdAt, startedAt string, err error) {
	inspectRes, err := c.mobyClient.ContainerInspect(ctx, containerID, mobyclient.ContainerInspectOptions{})
	if err != nil {
		return "", "", err
	}
	return inspectRes.Container.Created, inspectRes.Container.State.StartedAt, nil
}

// StopContainer stops the container identified by containerID.
func (c *Client) StopContainer(containerID string) error {
	if _, err := c.mobyClient.ContainerStop(context.Background(), containerID, mobyclient.ContainerStopOptions{}); err != nil {
		slog.Error("failed to stop container", "container", containerID, "error", err)
		return err
	}
	return nil
}

// StopDevcontainer stops the primary devcontainer.
func (c *Client) StopDevcontainer() error {
	return c.StopContainer(c.ContainerID)
}

// AttachHostTerminalToDevcontainer wires the host terminal's stdin/
// stdout to the devcontainer's pseudo-TTY, switching the host terminal
// to raw mode for the duration.
func (c *Client) AttachHostTerminalToDevcontainer() (err error) {
	defer close(c.LifecycleChan)

	if c.attachResp == nil {
		return fmt.Errorf("attempted to attach host terminal without a container connection")
	}
	if c.isAttached {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("stdin is not a terminal")
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal")
	}
	c.isAttached = true

	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return err
	}
	if err = c.ResizeContainer(uint(h), uint(w)); err != nil { // #nosec G115
		return err
	}
	c.listenForTerminalResize()

	restoreTerm, err := c.switchTerminalToRaw()
	if err != nil {
		return err
	}
	defer restoreTerm()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := io.Copy(os.Stdout, c.attachResp.Reader); err != nil && err != io.EOF {
			slog.Error("error copying container output to stdout", "error", err)
		}
	}()
	go func() {
		if _, err := io.Copy(c.attachResp.Conn, os.Stdin); err != nil && !errors.Is(err, syscall.EPIPE) {
			slog.Error("error copying terminal input to container", "error", err)
		}
	}()

	if err = c.driveLifecycle(LifecyclePostAttach); err != nil {
		return err
	}

	wg.Wait()
	return nil
}

// ResizeContainer sets the devcontainer's pseudo-TTY dimensions.
func (c *Client) ResizeContainer(h, w uint) error {
	_, err := c.mobyClient.ContainerResize(context.Background(), c.ContainerID, mobyclient.ContainerResizeOptions{Height: h, Width: w})
	return err
}

func (c *Client) buildContainerConfig(p *devc.DevcontainerParser, tag string) *container.Config {
	var envs []string
	for key, val := range p.Config.ContainerEnv {
		envs = append(envs, fmt.Sprintf("%s=%s", key, val))
	}

	cfg := container.Config{
		Env:          envs,
		ExposedPorts: make(network.PortSet),
		Image:        tag,
		OpenStdin:    true,
		Tty:          true,
	}
	if p.Config.WorkspaceFolder != nil {
		cfg.WorkingDir = *p.Config.WorkspaceFolder
	}
	if p.Config.ContainerUser != nil {
		cfg.User = *p.Config.ContainerUser
	}
	return &cfg
}

func (c *Client) buildHostConfig(p *devc.DevcontainerParser) *container.HostConfig {
	hostCfg := container.HostConfig{
		AutoRemove:   true,
		PortBindings: make(network.PortMap),
	}
	if p.Config.Context != nil && p.Config.WorkspaceFolder != nil {
		hostCfg.Binds = []string{fmt.Sprintf("%s:%s", *p.Config.Context, *p.Config.WorkspaceFolder)}
	}
	hostCfg.CapAdd = p.Config.CapAdd
	if p.Config.Privileged != nil {
		hostCfg.Privileged = *p.Config.Privileged
	}
	return &hostCfg
}

// bindAppPorts binds `appPort` entries, elevating privileged ports the
// calling user can't bind directly.
func (c *Client) bindAppPorts(p *devc.DevcontainerParser, containerCfg *container.Config, hostCfg *container.HostConfig) error {
	if len(p.Config.AppPort) == 0 {
		return nil
	}

	exposedPorts, portMap, err := nat.ParsePortSpecs(p.Config.AppPort)
	if err != nil {
		return err
	}

	for port := range exposedPorts {
		np := network.MustParsePort(port.Port())
		if np.Num() < 1024 {
			up, ok := network.PortFrom(c.PrivilegedPortElevator(np.Num()), np.Proto())
			if !ok {
				return fmt.Errorf("could not convert privileged port into an unprivileged one: %#v", np)
			}
			containerCfg.ExposedPorts[up] = struct{}{}
		}
		containerCfg.ExposedPorts[np] = struct{}{}
	}

	for port, bindings := range portMap {
		var portBindings []network.PortBinding
		for _, binding := range bindings {
			hostIP := binding.HostIP
			if hostIP == "" {
				hostIP = "127.0.0.1"
			}
			hostPort := network.MustParsePort(binding.HostPort)
			if hostPort.Num() < 1024 {
				up, ok := network.PortFrom(c.PrivilegedPortElevator(hostPort.Num()), hostPort.Proto())
				if !ok {
					return fmt.Errorf("could not convert privileged appPort into an unprivileged one: %#v", hostPort)
				}
				binding.HostPort = strconv.Itoa(int(up.Num()))
			}
			portBindings = append(portBindings, network.PortBinding{HostIP: netip.MustParseAddr(hostIP), HostPort: binding.HostPort})
		}
		hostCfg.PortBindings[network.MustParsePort(port.Port())] = portBindings
	}
	return nil
}

// bindForwardPorts binds `forwardPorts` entries to 127.0.0.1 on the
// host, elevating privileged ports.
func (c *Client) bindForwardPorts(p *devc.DevcontainerParser, containerCfg *container.Config, hostCfg *container.HostConfig) error {
	if p == nil || len(p.Config.ForwardPorts) == 0 {
		return nil
	}

	for _, fp := range p.Config.ForwardPorts {
		port, err := network.ParsePort(fp)
		if err != nil {
			return err
		}
		containerCfg.ExposedPorts[port] = struct{}{}

		portNum, err := strconv.Atoi(fp)
		if err != nil {
			return err
		}
		hostPort := fp
		if portNum < 1024 {
			up, ok := network.PortFrom(c.PrivilegedPortElevator(uint16(portNum)), network.TCP) // #nosec G115
			if !ok {
				return fmt.Errorf("could not convert privileged forwardPorts into an unprivileged one: %d", portNum)
			}
			hostPort = strconv.Itoa(int(up.Num()))
		}
		hostCfg.PortBindings[port] = []network.PortBinding{{HostIP: netip.MustParseAddr("127.0.0.1"), HostPort: hostPort}}
	}
	return nil
}

func (c *Client) bindMounts(p *devc.DevcontainerParser, hostCfg *container.HostConfig) {
	if p == nil {
		return
	}
	for _, m := range p.Config.Mounts {
		hostCfg.Mounts = append(hostCfg.Mounts, (mount.Mount)(*m))
	}
}

// setContainerAndRemoteUser infers containerUser from image metadata
// and derives remoteUser from it when neither is explicitly set.
func (c *Client) setContainerAndRemoteUser(p *devc.DevcontainerParser, imageTag string) (err error) {
	if p.Config.ContainerUser == nil {
		var imageCfg *imagespec.DockerOCIImageConfig
		if imageCfg, err = c.InspectImage(imageTag); err == nil {
			imageUser := imageCfg.User
			if imageUser == "" {
				imageUser = "root"
			}
			p.Config.ContainerUser = &imageUser
		}
	}
	if err == nil && p.Config.RemoteUser == nil {
		p.Config.RemoteUser = p.Config.ContainerUser
	}
	return err
}

// applyUpdateRemoteUserUID resolves containerUser to a numeric UID
// (spawning a temporary root container if needed) and applies it via
// userns keep-id remapping.
func (c *Client) applyUpdateRemoteUserUID(ctx context.Context, p *devc.DevcontainerParser, containerCfg *container.Config, hostCfg *container.HostConfig) error {
	user := *p.Config.ContainerUser
	numericUID, parseErr := strconv.ParseUint(user, 10, 32)

	switch {
	case strings.Contains(user, ":"):
		parts := strings.SplitN(user, ":", 2)
		uid, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return err
		}
		gid, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return err
		}
		hostCfg.UsernsMode = container.UsernsMode(fmt.Sprintf("keep-id:uid=%d,gid=%d", uid, gid))

	case parseErr == nil:
		hostCfg.UsernsMode = container.UsernsMode(fmt.Sprintf("keep-id:uid=%d", numericUID))

	case user == "root":
		hostCfg.UsernsMode = "keep-id:uid=0,gid=0"

	default:
		dup := *containerCfg
		dup.User = "root"
		out, _, err := c.ExecInTempContainer(ctx, &dup, hostCfg, nil, fmt.Sprintf("id -u %s", user))
		if err != nil {
			return err
		}
		resolved, err := strconv.ParseUint(strings.TrimSpace(out.String()), 10, 32)
		if err != nil {
			return err
		}
		hostCfg.UsernsMode = container.UsernsMode(fmt.Sprintf("keep-id:uid=%d", resolved))
	}
	return nil
}

// switchTerminalToRaw puts the host terminal into raw mode and returns
// a function that restores its previous state.
func (c *Client) switchTerminalToRaw() (func(), error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := term.Restore(fd, oldState); err != nil {
			slog.Error("failed to restore terminal state", "error", err)
		}
	}, nil
}
