/*
   devc: a devcontainer.json parser and configuration resolver
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

package devc

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// ContainerEnv holds the environment captured from a started container,
// supplied by the caller once it becomes available so Phase 2
// substitution (`${containerEnv:...}`, `${containerWorkspaceFolder}`)
// can run.
type ContainerEnv struct {
	Vars            EnvVarMap
	WorkspaceFolder string
}

// The containerEnv field, when non-nil, supplies the Phase 2 values;
// ExpandEnv/expandEnv consult it after Parse's Phase 1 pass.
//
// ProcessSubstitutions is idempotent: applying it twice leaves the
// already-substituted strings unchanged, since a fully resolved string
// contains no more `${...}` placeholders for shell.Expand to act on.
func (p *DevcontainerParser) ProcessSubstitutions() {
	p.applySubstitution(nil)
}

// ProcessContainerSubstitutions runs the Phase 2 ("in-container")
// substitution pass once the container's environment is known.
func (p *DevcontainerParser) ProcessContainerSubstitutions(env ContainerEnv) {
	p.applySubstitution(&env)
}

func (p *DevcontainerParser) applySubstitution(containerEnv *ContainerEnv) {
	p.containerEnv = containerEnv

	if p.Config.ContainerEnv != nil {
		for key, val := range p.Config.ContainerEnv {
			p.Config.ContainerEnv[key] = p.ExpandEnv(val)
		}
	}
	for key, val := range p.Config.RemoteEnv {
		if val != nil {
			expanded := p.ExpandEnv(*val)
			p.Config.RemoteEnv[key] = &expanded
		}
	}
	for _, m := range p.Config.Mounts {
		m.Source = p.ExpandEnv(m.Source)
		m.Target = p.ExpandEnv(m.Target)
	}
}

// localEnvPrefixes strips the `env:`/`localEnv:` scope prefixes, which
// are just plain local variable lookups once parsed.
var localEnvPrefixes = regexp.MustCompile(`(\$\{)(env|localEnv):`)

// containerEnvPrefix rewrites `${containerEnv:` to a name that can't
// collide with a real environment variable, since the prefix itself
// would otherwise shadow or be shadowed by an unrelated host env var
// of the same spelling.
var containerEnvPrefix = regexp.MustCompile(`(\$\{containerEnv):`)

// ExpandEnv is a thin wrapper around shell.Expand that rewrites the
// devcontainer spec's scoped variable prefixes (`localEnv:`,
// `containerEnv:`, and the undocumented `env:`) into a form shell.Expand
// can parse as an ordinary shell parameter expansion, and supplies
// devcontainer-spec variables via expandEnv.
func (p *DevcontainerParser) ExpandEnv(v string) string {
	v = localEnvPrefixes.ReplaceAllString(v, "$1")
	v = containerEnvPrefix.ReplaceAllString(v, "${1}__")

	retval, err := shell.Expand(v, p.expandEnv)
	if err != nil {
		slog.Debug("error expanding variable", "value", v, "error", err)
	}
	return retval
}

// expandEnv is the variable lookup table shell.Expand consults.
func (p *DevcontainerParser) expandEnv(v string) string {
	switch {
	case v == "containerWorkspaceFolder":
		if p.containerEnv != nil && p.containerEnv.WorkspaceFolder != "" {
			return p.containerEnv.WorkspaceFolder
		}
		return DefWorkspacePath
	case v == "containerWorkspaceFolderBasename":
		if p.containerEnv != nil && p.containerEnv.WorkspaceFolder != "" {
			return filepath.Base(p.containerEnv.WorkspaceFolder)
		}
		return filepath.Base(DefWorkspacePath)
	case v == "devcontainerId":
		if p.DevcontainerID != nil {
			return *p.DevcontainerID
		}
		return ""
	case v == "localWorkspaceFolder":
		if p.Config.Context != nil {
			return *p.Config.Context
		}
		return ""
	case v == "localWorkspaceFolderBasename":
		if p.Config.Context != nil {
			return filepath.Base(*p.Config.Context)
		}
		return ""
	case strings.HasPrefix(v, "containerEnv__"):
		envKey := strings.SplitN(v, "__", 2)[1]
		if p.containerEnv != nil {
			if val, ok := p.containerEnv.Vars[envKey]; ok {
				return val
			}
		}
		if val, ok := p.Config.ContainerEnv[envKey]; ok {
			return val
		}
		return ""
	default:
		return os.Getenv(v)
	}
}
