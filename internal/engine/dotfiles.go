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
	"context"
	"fmt"

	"github.com/devc-cli/devc/internal/devc"
	"github.com/devc-cli/devc/internal/runtime"
)

// dotfilesInstallCandidates is the predefined, ordered set of install
// scripts probed for when no installCommand override is given.
var dotfilesInstallCandidates = []string{
	"install.sh", "install", "bootstrap.sh", "bootstrap", "setup.sh", "setup",
}

// runDotfilesStep clones (or updates) the configured dotfiles
// repository into the container and runs its install command. The
// clone/pull and install both happen inside the container, since
// that's where the target path lives; a host-side git client (used
// elsewhere to derive image tags) has no view into it.
func runDotfilesStep(ctx context.Context, rc *runtime.Client, remoteUser string, cfg *devc.DotfilesConfig) error {
	if cfg == nil || cfg.Repository == nil || *cfg.Repository == "" {
		return nil
	}

	target := "$HOME/dotfiles"
	if cfg.TargetPath != nil && *cfg.TargetPath != "" {
		target = *cfg.TargetPath
	}

	cloneCmd := fmt.Sprintf(
		"if [ -d %s/.git ]; then git -C %s pull; else git clone %s %s; fi",
		target, target, shellQuote(*cfg.Repository), target,
	)
	if _, _, err := rc.ExecInDevcontainer(ctx, remoteUser, nil, true, cloneCmd); err != nil {
		return err
	}

	installCmd := ""
	if cfg.InstallCommand != nil && *cfg.InstallCommand != "" {
		installCmd = *cfg.InstallCommand
	} else {
		for _, candidate := range dotfilesInstallCandidates {
			probe := fmt.Sprintf("test -x %s/%s -o -f %s/%s", target, candidate, target, candidate)
			if _, _, err := rc.ExecInDevcontainer(ctx, remoteUser, nil, true, probe); err == nil {
				installCmd = fmt.Sprintf("cd %s && sh ./%s", target, candidate)
				break
			}
		}
	}
	if installCmd == "" {
		return nil
	}
	_, _, err := rc.ExecInDevcontainer(ctx, remoteUser, nil, true, installCmd)
	return err
}
