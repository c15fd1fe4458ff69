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
	"github.com/devc-cli/devc/internal/runtime"
)

// runExec runs an arbitrary command inside an already-running
// devcontainer selected by --container-id, which is required, as the
// remoteUser read off the workspace's devcontainer.json.
func (c *Command) runExec(args []string) clierr.ExitCode {
	if len(args) == 0 {
		return c.emitError(fmt.Errorf("exec requires a command"))
	}
	if c.Options.ContainerID == "" {
		return c.emitError(fmt.Errorf("exec requires --container-id"))
	}

	p, err := c.loadParser()
	if err != nil {
		return c.emitError(err)
	}
	remoteUser := ""
	if p.Config.RemoteUser != nil {
		remoteUser = *p.Config.RemoteUser
	}

	rc, err := runtime.New(c.Options.Socket)
	if err != nil {
		return c.emitError(err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			slog.Error("error closing runtime client", "error", cerr)
		}
	}()
	rc.ContainerID = c.Options.ContainerID

	stdout, _, err := rc.ExecInContainer(context.Background(), c.Options.ContainerID, remoteUser, parseRemoteEnv(c.Options.RemoteEnv), true, args...)
	if err != nil {
		return c.emitError(&clierr.RuntimeCommandFailed{Command: args[0], ExitCode: 1, Stderr: err.Error()})
	}
	fmt.Print(stdout.String())
	return clierr.ExitSuccess
}
