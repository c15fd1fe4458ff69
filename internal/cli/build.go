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
	"log/slog"

	"github.com/devc-cli/devc/internal/clierr"
	"github.com/devc-cli/devc/internal/result"
	"github.com/devc-cli/devc/internal/runtime"
)

// runBuild builds (but does not start) the image a devcontainer.json
// names, for prebuild pipelines. --push and --output are mutually
// exclusive and are validated before any build runs.
func (c *Command) runBuild(args []string) clierr.ExitCode {
	if c.Options.Push && c.Options.Output != "" {
		return c.emitError(fmt.Errorf("--push and --output cannot be used together"))
	}

	p, err := c.loadParser()
	if err != nil {
		return c.emitError(err)
	}

	if p.Config.DockerFile == nil || *p.Config.DockerFile == "" {
		return c.emitError(fmt.Errorf("devcontainer.json does not declare a dockerFile to build"))
	}

	rc, err := runtime.New(c.Options.Socket)
	if err != nil {
		return c.emitError(err)
	}
	rc.Platform = runtime.Platform{Architecture: c.Options.PlatformArch, OS: c.Options.PlatformOS}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			slog.Error("error closing runtime client", "error", cerr)
		}
	}()

	imageName := createImageTagBase(p)
	imageTag := fmt.Sprintf("%s%s", ImageTagPrefix, imageName)
	if err := rc.BuildDevcontainerImage(p, imageTag, c.jsonMode()); err != nil {
		return c.emitError(err)
	}

	var pushed *bool
	exportPath := ""

	switch {
	case c.Options.Push:
		if err := rc.PushContainerImage(imageTag, c.jsonMode()); err != nil {
			return c.emitError(err)
		}
		ok := true
		pushed = &ok
	case c.Options.Output != "":
		if err := rc.SaveContainerImage(imageTag, c.Options.Output); err != nil {
			return c.emitError(err)
		}
		exportPath = c.Options.Output
	}

	doc := result.NewBuild(imageTag, pushed, exportPath)
	if err := c.emit(doc, fmt.Sprintf("built image %s", imageTag)); err != nil {
		return c.emitError(err)
	}
	return clierr.ExitSuccess
}
