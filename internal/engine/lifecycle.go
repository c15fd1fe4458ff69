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

// Package engine drives the devcontainer lifecycle: Feature
// installation, ordered phase execution with idempotency markers,
// environment probing, and the dotfiles personalization step.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devc-cli/devc/internal/clierr"
	"github.com/devc-cli/devc/internal/devc"
	"github.com/devc-cli/devc/internal/features"
	"github.com/devc-cli/devc/internal/runtime"
)

// Result names the terminal outcome of a lifecycle run, per the
// `run-user-commands` success document's "result" field.
type Result string

// Supported lifecycle results.
const (
	ResultDone                   Result = "done"
	ResultSkipNonBlocking        Result = "skipNonBlocking"
	ResultPrebuild               Result = "prebuild"
	ResultStopForPersonalization Result = "stopForPersonalization"
)

// Options controls which phases a lifecycle run performs and which
// control flag stops it early, mirroring the CLI surface in §6.
type Options struct {
	ContainerDataFolder     string
	SkipNonBlockingCommands bool
	Prebuild                bool
	StopForPersonalization  bool
	SkipPostCreate          bool
	SkipPostAttach          bool
}

// Handler drives one container's lifecycle phases to completion,
// consuming events off a runtime.Client's lifecycle channel.
type Handler struct {
	rc   *runtime.Client
	inst *features.Installer
	opts Options

	remoteUser string
	remoteEnv  devc.EnvVarMap

	probeMode devc.UserEnvProbe
	probeOnce sync.Once
	probedEnv devc.EnvVarMap

	result Result
}

// NewHandler returns a Handler that will drive p's lifecycle in
// response to events produced on rc, installing Features via inst.
func NewHandler(rc *runtime.Client, inst *features.Installer, remoteUser string, remoteEnv devc.EnvVarMap, opts Options) *Handler {
	if opts.ContainerDataFolder == "" {
		opts.ContainerDataFolder = DefaultContainerDataFolder
	}
	return &Handler{rc: rc, inst: inst, opts: opts, remoteUser: remoteUser, remoteEnv: remoteEnv, result: ResultDone}
}

// Result returns the terminal outcome of the most recently completed
// Run call.
func (h *Handler) Result() Result { return h.result }

// Run consumes lifecycle events from h's runtime.Client until the
// channel is closed (by AttachHostTerminalToDevcontainer, once the
// waitFor phase's handler has attached the host terminal), driving
// each phase's commands, markers, and Feature installation.
func (h *Handler) Run(ctx context.Context, eg *errgroup.Group, p *devc.DevcontainerParser) (err error) {
	defer close(h.rc.LifecycleResp)

	h.probeMode = devc.UserEnvProbeLoginInteractiveShell
	if p.Config.UserEnvProbe != nil {
		h.probeMode = *p.Config.UserEnvProbe
	}

	for event := range h.rc.LifecycleChan {
		switch event {
		case runtime.LifecycleFeatureInstall:
			err = h.installFeatures(ctx, p)

		case runtime.LifecycleInitialize:
			if p.Config.InitializeCommand != nil {
				err = h.runCommand(ctx, p.Config.InitializeCommand, true)
			}
			h.maybeAttach(eg, p, devc.WaitForInitializeCommand)

		case runtime.LifecycleOnCreate:
			err = h.runPhase(ctx, p, PhaseOnCreate, p.Config.OnCreateCommand, false)
			h.maybeAttach(eg, p, devc.WaitForOnCreateCommand)

		case runtime.LifecycleUpdateContent:
			if h.opts.Prebuild {
				// Forces a rerun: skip the marker check outright.
				if p.Config.UpdateContentCommand != nil {
					err = h.runCommand(ctx, p.Config.UpdateContentCommand, false)
				}
				if err == nil {
					h.writePhaseMarker(ctx, p, PhaseUpdateContent)
					h.result = ResultPrebuild
				}
			} else {
				err = h.runPhase(ctx, p, PhaseUpdateContent, p.Config.UpdateContentCommand, false)
			}
			h.maybeAttach(eg, p, devc.WaitForUpdateContentCommand)

			if err == nil && (h.opts.SkipNonBlockingCommands || h.opts.Prebuild) {
				if h.opts.SkipNonBlockingCommands && h.result == ResultDone {
					h.result = ResultSkipNonBlocking
				}
				h.sendResponse(err)
				continue
			}

		case runtime.LifecyclePostCreate:
			if h.opts.SkipPostCreate {
				break
			}
			err = h.runPhase(ctx, p, PhasePostCreate, p.Config.PostCreateCommand, false)
			if err == nil {
				err = h.runDotfiles(ctx, p)
			}
			h.maybeAttach(eg, p, devc.WaitForPostCreateCommand)

			if err == nil && h.opts.StopForPersonalization {
				h.result = ResultStopForPersonalization
				h.sendResponse(err)
				continue
			}

		case runtime.LifecyclePostStart:
			if !h.opts.SkipPostCreate {
				err = h.runPhase(ctx, p, PhasePostStart, p.Config.PostStartCommand, false)
			}
			h.maybeAttach(eg, p, devc.WaitForPostStartCommand)

		case runtime.LifecyclePostAttach:
			if !h.opts.SkipPostCreate && !h.opts.SkipPostAttach {
				if p.Config.PostAttachCommand != nil {
					err = h.runCommand(ctx, p.Config.PostAttachCommand, false)
				}
				if err == nil {
					h.writePhaseMarker(ctx, p, PhasePostAttach)
				}
			}

		default:
			err = fmt.Errorf("received unhandled lifecycle event: %v", event)
		}

		if err != nil {
			err = &clierr.LifecycleCommandFailed{Phase: string(eventPhaseName(event)), ContainerID: h.rc.ContainerID, Err: err}
		}
		h.sendResponse(err)
		if err != nil {
			return err
		}
	}

	slog.Debug("exiting lifecycle handler")
	return nil
}

func (h *Handler) sendResponse(err error) {
	h.rc.LifecycleResp <- err == nil
}

// maybeAttach hands the host terminal over to the container once the
// phase named by waitFor (or the default, updateContentCommand, if
// unset) has completed.
func (h *Handler) maybeAttach(eg *errgroup.Group, p *devc.DevcontainerParser, waitFor devc.WaitFor) {
	target := devc.WaitForUpdateContentCommand
	if p.Config.WaitFor != nil {
		target = *p.Config.WaitFor
	}
	if target == waitFor {
		eg.Go(h.rc.AttachHostTerminalToDevcontainer)
	}
}

// runPhase runs a marker-bearing phase's command, skipping it (and the
// marker write) when a matching marker already exists.
func (h *Handler) runPhase(ctx context.Context, p *devc.DevcontainerParser, phase Phase, lc *devc.LifecycleCommand, runOnHost bool) error {
	if lc.IsEmpty() {
		return nil
	}

	expected := h.expectedTimestamp(ctx, p, phase)
	if markerSatisfied(ctx, h.rc, h.remoteUser, h.opts.ContainerDataFolder, phase, expected) {
		slog.Debug("lifecycle phase already satisfied by marker; skipping", "phase", phase)
		return nil
	}

	if err := h.runCommand(ctx, lc, runOnHost); err != nil {
		return err
	}
	h.writePhaseMarker(ctx, p, phase)
	return nil
}

func (h *Handler) writePhaseMarker(ctx context.Context, p *devc.DevcontainerParser, phase Phase) {
	expected := h.expectedTimestamp(ctx, p, phase)
	if expected == "" {
		return
	}
	writeMarker(ctx, h.rc, h.remoteUser, h.opts.ContainerDataFolder, phase, expected)
}

// expectedTimestamp returns the container timestamp a phase's marker
// must match: CreatedAt for create-time phases, StartedAt for
// post-start phases.
func (h *Handler) expectedTimestamp(ctx context.Context, p *devc.DevcontainerParser, phase Phase) string {
	createdAt, startedAt, err := h.rc.ContainerTimestamps(ctx, h.rc.ContainerID)
	if err != nil {
		slog.Warn("could not read container timestamps for marker comparison", "error", err)
		return ""
	}
	switch phase {
	case PhasePostStart, PhasePostAttach:
		return startedAt
	default:
		return createdAt
	}
}

func (h *Handler) runDotfiles(ctx context.Context, p *devc.DevcontainerParser) error {
	if p.Config.Dotfiles == nil {
		return nil
	}
	expected := h.expectedTimestamp(ctx, p, PhaseDotfiles)
	if markerSatisfied(ctx, h.rc, h.remoteUser, h.opts.ContainerDataFolder, PhaseDotfiles, expected) {
		return nil
	}
	if err := runDotfilesStep(ctx, h.rc, h.remoteUser, p.Config.Dotfiles); err != nil {
		return err
	}
	writeMarker(ctx, h.rc, h.remoteUser, h.opts.ContainerDataFolder, PhaseDotfiles, expected)
	return nil
}

// runCommand resolves the active command form and executes it, either
// on the host or inside the devcontainer, probing the remote
// environment on first use inside the container.
func (h *Handler) runCommand(ctx context.Context, lc *devc.LifecycleCommand, runOnHost bool) (err error) {
	switch {
	case lc.String != nil:
		if runOnHost {
			return runOnHostShell(ctx, *lc.String)
		}
		return h.runInContainer(ctx, true, *lc.String)

	case len(lc.StringArray) > 0:
		if runOnHost {
			return runOnHostArgv(ctx, lc.StringArray...)
		}
		return h.runInContainer(ctx, false, lc.StringArray...)

	case lc.ParallelCommands != nil:
		var wg sync.WaitGroup
		errChan := make(chan error, len(*lc.ParallelCommands))
		for _, sub := range *lc.ParallelCommands {
			wg.Add(1)
			go func(sub devc.CommandBase) {
				defer wg.Done()
				errChan <- h.runCommand(ctx, &devc.LifecycleCommand{CommandBase: sub}, runOnHost)
			}(sub)
		}
		wg.Wait()
		close(errChan)
		for e := range errChan {
			if e != nil {
				return e
			}
		}
	}
	return nil
}

func (h *Handler) runInContainer(ctx context.Context, runInShell bool, args ...string) error {
	env := h.effectiveEnv(ctx)
	_, _, err := h.rc.ExecInDevcontainer(ctx, h.remoteUser, env, runInShell, args...)
	return err
}

// effectiveEnv merges the probed login/interactive shell environment
// (captured once per Handler, and cached on disk across invocations)
// with the --remote-env values passed to NewHandler, which take
// precedence. devcontainer.json's remoteEnv is not merged here.
func (h *Handler) effectiveEnv(ctx context.Context) devc.EnvVarMap {
	h.probeOnce.Do(func() {
		h.probedEnv = h.probeEnvironment(ctx)
	})
	merged := devc.EnvVarMap{}
	maps.Copy(merged, h.probedEnv)
	maps.Copy(merged, h.remoteEnv)
	return merged
}

func (h *Handler) probeEnvironment(ctx context.Context) devc.EnvVarMap {
	if h.probeMode == devc.UserEnvProbeNone {
		return devc.EnvVarMap{}
	}

	containerID := h.rc.ContainerID
	if result, ok := LoadCachedProbe(containerID, h.remoteUser); ok {
		return result.Env
	}
	slog.Debug("environment probe cache miss", "container_id", containerID, "user", h.remoteUser)

	shellCmd := ShellForProbe(h.probeMode)
	stdout, _, err := h.rc.ExecInDevcontainer(ctx, h.remoteUser, nil, false, shellCmd...)
	if err != nil {
		slog.Warn("environment probe failed; continuing without probed variables", "error", err)
		return devc.EnvVarMap{}
	}
	vars := ParseExportOutput(stdout.String())
	SaveProbeCache(containerID, h.remoteUser, vars)
	return vars
}

func (h *Handler) installFeatures(ctx context.Context, p *devc.DevcontainerParser) error {
	levels, err := h.inst.InstallOrder(&p.Config.OverrideFeatureInstallOrder)
	if err != nil {
		return err
	}
	for _, level := range levels {
		for _, featureID := range level {
			scriptPath, err := h.inst.InstallScriptPath(featureID)
			if err != nil {
				return err
			}
			env, err := h.inst.FeatureEnv(featureID)
			if err != nil {
				return err
			}
			if _, _, err := h.rc.ExecInDevcontainer(ctx, "root", env, false, scriptPath); err != nil {
				return &clierr.InstallScriptFailed{FeatureID: featureID, ExitCode: exitCodeFromErr(err)}
			}
		}
	}
	return nil
}

func eventPhaseName(ev runtime.LifecycleEvent) Phase {
	switch ev {
	case runtime.LifecycleOnCreate:
		return PhaseOnCreate
	case runtime.LifecycleUpdateContent:
		return PhaseUpdateContent
	case runtime.LifecyclePostCreate:
		return PhasePostCreate
	case runtime.LifecyclePostStart:
		return PhasePostStart
	case runtime.LifecyclePostAttach:
		return PhasePostAttach
	default:
		return "initialize"
	}
}

func runOnHostShell(ctx context.Context, command string) error {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	slog.Info("running lifecycle command via shell on host", "shell", shell, "command", command)
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	out, err := cmd.CombinedOutput()
	slog.Info("command output", "cmd", cmd.String(), "output", string(out), "error", err)
	return err
}

func runOnHostArgv(ctx context.Context, args ...string) error {
	slog.Info("running lifecycle command directly on host", "args", args)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	slog.Info("command output", "cmd", cmd.String(), "output", string(out), "error", err)
	return err
}

var exitCodeRe = regexp.MustCompile(`exit code: (\d+)`)

// exitCodeFromErr best-effort extracts the numeric exit code from an
// ExecInContainer error, defaulting to 1 when none can be found.
func exitCodeFromErr(err error) int {
	m := exitCodeRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 1
	}
	code, parseErr := strconv.Atoi(m[1])
	if parseErr != nil {
		return 1
	}
	return code
}
