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
	"fmt"
	"os"

	"github.com/devc-cli/devc/internal/clierr"
)

// runTemplates dispatches the `templates` subcommand group. Template
// scaffolding is outside this build's core scope; the surface exists
// so scripts invoking it get the reserved "not implemented" exit code
// rather than an unrecognized-subcommand failure.
func (c *Command) runTemplates(args []string) clierr.ExitCode {
	fmt.Fprintln(os.Stderr, "devc: templates subcommands are not yet implemented")
	return clierr.ExitNotImplemented
}
