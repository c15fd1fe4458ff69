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

	"github.com/devc-cli/devc/internal/clierr"
)

// runReadConfiguration resolves and validates the target
// devcontainer.json, then prints its fully-merged configuration
// without starting anything.
func (c *Command) runReadConfiguration(args []string) clierr.ExitCode {
	p, err := c.loadParser()
	if err != nil {
		return c.emitError(err)
	}
	if err := c.emit(p.Config, fmt.Sprintf("configuration: %s", p.Filepath)); err != nil {
		return c.emitError(err)
	}
	return clierr.ExitSuccess
}
