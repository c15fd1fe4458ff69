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

// Package runtime wraps the Moby client SDK to provide the container
// and image operations a devcontainer lifecycle needs, independent of
// whether the destination engine is Docker or Podman.
package runtime

import (
	"fmt"
	"log/slog"
	"os"

	mobyclient "github.com/moby/moby/client"

	"github.com/devc-cli/devc/internal/clierr"
)

// LifecycleEvent names a point in the devcontainer lifecycle that the
// runtime pauses at to let the caller run hooks before continuing.
type LifecycleEvent int

// Supported lifecycle events, in the order a non-Compose build/up
// cycle emits them.
const (
	LifecycleInitialize LifecycleEvent = iota
	LifecycleFeatureInstall
	LifecycleOnCreate
	LifecycleUpdateContent
	LifecyclePostCreate
	LifecyclePostStart
	LifecyclePostAttach
)

// Client wraps a connection to the container runtime's REST API and
// the channel pair used to hand control to the lifecycle engine at
// each LifecycleEvent.
type Client struct {
	ContainerID string
	SocketAddr  string
	Platform    Platform

	// PrivilegedPortElevator maps a requested privileged host port
	// (<1024) to an unprivileged one the current user can actually
	// bind; devc's default adds 10000 to the requested port.
	PrivilegedPortElevator func(uint16) uint16

	// LifecycleChan/LifecycleResp hand control between the runtime
	// (producer of lifecycle events) and the engine package (consumer
	// that executes the matching hooks).
	LifecycleChan chan LifecycleEvent
	LifecycleResp chan bool

	mobyClient *mobyclient.Client
	attachResp *mobyclient.HijackedResponse
	isAttached bool
	composer   *composerState
}

// Platform mirrors the subset of an OCI platform descriptor devc
// needs when creating containers and resolving image manifests.
type Platform struct {
	Architecture string
	OS           string
	Variant      string
}

// New returns a Client connected to socketAddr (or an auto-detected
// socket if empty).
func New(socketAddr string) (*Client, error) {
	c := &Client{
		SocketAddr:             resolveSocketAddr(socketAddr),
		LifecycleChan:          make(chan LifecycleEvent),
		LifecycleResp:          make(chan bool),
		PrivilegedPortElevator: func(p uint16) uint16 { return p + 10000 },
	}

	mc, err := mobyclient.New(mobyclient.WithHost(c.SocketAddr))
	if err != nil {
		return nil, &clierr.RuntimeMissing{Name: c.SocketAddr}
	}
	c.mobyClient = mc

	return c, nil
}

// Close releases the underlying Moby client connection.
func (c *Client) Close() error {
	return c.mobyClient.Close()
}

// resolveSocketAddr mirrors Docker/Podman CLI conventions: an explicit
// socketAddr wins, then DOCKER_HOST, then a per-UID rootless Podman
// socket under XDG_RUNTIME_DIR (falling back to /run/user/<uid> when
// that's unset).
func resolveSocketAddr(socketAddr string) string {
	if socketAddr != "" {
		return socketAddr
	}

	if envSocketAddr, ok := os.LookupEnv("DOCKER_HOST"); ok {
		slog.Debug("using socket nominated by DOCKER_HOST", "socket", envSocketAddr)
		return envSocketAddr
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = fmt.Sprintf("/run/user/%d", os.Getuid())
	}
	computed := fmt.Sprintf("unix://%s/podman/podman.sock", runtimeDir)
	slog.Debug("falling back to computed socket address", "socket", computed)
	return computed
}
