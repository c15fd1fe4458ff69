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

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devc-cli/devc/internal/clierr"
	"github.com/devc-cli/devc/internal/devc"
	"github.com/devc-cli/devc/internal/features"
	"github.com/devc-cli/devc/internal/ociclient"
	"github.com/devc-cli/devc/internal/result"
)

// runOutdated reports, for every OCI-distributed Feature the target
// devcontainer.json references, its current/wanted/latest versions.
func (c *Command) runOutdated(args []string) clierr.ExitCode {
	p, err := c.loadParser()
	if err != nil {
		return c.emitError(err)
	}

	lockfile, err := devc.LoadFeatureLockfile(p.Filepath)
	if err != nil {
		slog.Warn("could not read devcontainer-lock.json; proceeding without pinned versions", "error", err)
		lockfile = devc.FeatureLockfile{}
	}

	oci := ociclient.New()
	reports, err := features.Outdated(context.Background(), oci, p.Config.Features, lockfile)
	if err != nil {
		return c.emitError(err)
	}

	doc := result.NewOutdated(reports)
	if err := c.emit(doc, fmt.Sprintf("%d feature(s) reported", len(reports))); err != nil {
		return c.emitError(err)
	}
	return clierr.ExitSuccess
}
