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

package engine

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/devc-cli/devc/internal/devc"
)

// ContainerEnvProbeResult is the result of probing a container's
// login/interactive shell environment, either freshly captured or
// loaded from the on-disk cache.
type ContainerEnvProbeResult struct {
	Env       devc.EnvVarMap
	ShellUsed string
	VarCount  int
}

// probeCachePath returns the path the probe result for containerID/user
// is cached at.
func probeCachePath(containerID, user string) (string, error) {
	cacheDir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "env_probe_"+containerID+"_"+user+".json"), nil
}

// LoadCachedProbe returns a previously-cached probe result for
// containerID/user, if one exists on disk and parses as a flat JSON
// object of string to string.
func LoadCachedProbe(containerID, user string) (ContainerEnvProbeResult, bool) {
	path, err := probeCachePath(containerID, user)
	if err != nil {
		return ContainerEnvProbeResult{}, false
	}
	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return ContainerEnvProbeResult{}, false
	}
	var vars devc.EnvVarMap
	if err := json.Unmarshal(raw, &vars); err != nil {
		slog.Warn("failed to parse cached environment probe; ignoring", "path", path, "error", err)
		return ContainerEnvProbeResult{}, false
	}
	slog.Debug("environment probe cache hit", "path", path, "var_count", len(vars))
	return ContainerEnvProbeResult{Env: vars, ShellUsed: "cache", VarCount: len(vars)}, true
}

// SaveProbeCache persists a probe result for containerID/user as a flat
// JSON object of string to string. Failure to write the cache is
// non-fatal: the probe will simply run again on the next invocation.
func SaveProbeCache(containerID, user string, vars devc.EnvVarMap) {
	path, err := probeCachePath(containerID, user)
	if err != nil {
		slog.Warn("could not resolve environment probe cache path", "error", err)
		return
	}
	raw, err := json.Marshal(vars)
	if err != nil {
		slog.Warn("could not marshal environment probe cache", "error", err)
		return
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil { // #nosec G306
		slog.Warn("could not persist environment probe cache", "path", path, "error", err)
		return
	}
	slog.Debug("environment probe cache written", "path", path, "var_count", len(vars))
}

// ParseExportOutput parses the NUL-delimited `NAME=value` records
// produced by the probe shell invocation, skipping shell function
// definitions (`BASH_FUNC_*`) that an exported environment may also
// carry. NUL-delimiting (rather than newline-delimiting) is required
// because a probed variable's value may itself contain embedded
// newlines, which would otherwise corrupt the split.
func ParseExportOutput(output string) devc.EnvVarMap {
	vars := devc.EnvVarMap{}
	for _, entry := range strings.Split(output, "\x00") {
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(name, "BASH_FUNC_") {
			continue
		}
		vars[name] = value
	}
	return vars
}

// ShellForProbe returns the login/interactive shell invocation
// appropriate for the requested devc.UserEnvProbe mode. Environment is
// captured via `env -0`, which NUL-terminates each entry instead of
// newline-terminating it.
func ShellForProbe(mode devc.UserEnvProbe) []string {
	switch mode {
	case devc.UserEnvProbeLoginShell:
		return []string{"/bin/sh", "-l", "-c", "env -0"}
	case devc.UserEnvProbeInteractiveShell:
		return []string{"/bin/sh", "-i", "-c", "env -0"}
	case devc.UserEnvProbeLoginInteractiveShell:
		return []string{"/bin/sh", "-l", "-i", "-c", "env -0"}
	default:
		return []string{"/bin/sh", "-c", "env -0"}
	}
}
