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
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v6"
	"golang.org/x/sync/errgroup"

	"github.com/devc-cli/devc/internal/clierr"
	"github.com/devc-cli/devc/internal/devc"
	"github.com/devc-cli/devc/internal/engine"
	"github.com/devc-cli/devc/internal/features"
	"github.com/devc-cli/devc/internal/ociclient"
	"github.com/devc-cli/devc/internal/result"
	"github.com/devc-cli/devc/internal/runtime"
)

// ImageTagPrefix is the default prefix used for the tag of images devc
// builds from a devcontainer.json.
const ImageTagPrefix = "localhost/devc--"

// runUp resolves, validates, and starts the devcontainer named by the
// selected devcontainer.json, drives its lifecycle to the configured
// waitFor phase (or control-flag stopping point), and emits the `up`
// result document.
func (c *Command) runUp(args []string) clierr.ExitCode {
	ctx := context.Background()

	p, err := c.loadParser()
	if err != nil {
		return c.emitError(err)
	}

	rc, err := runtime.New(c.Options.Socket)
	if err != nil {
		return c.emitError(err)
	}
	rc.Platform = runtime.Platform{Architecture: c.Options.PlatformArch, OS: c.Options.PlatformOS}
	rc.PrivilegedPortElevator = c.privilegedPortElevator
	defer func() {
		if err := rc.Close(); err != nil {
			slog.Error("error closing runtime client", "error", err)
		}
	}()

	oci := ociclient.New()
	inst, err := features.NewInstaller(oci)
	if err != nil {
		return c.emitError(err)
	}

	applyDotfilesOverrides(&p.Config.Dotfiles, c.Options.DotfilesRepository, c.Options.DotfilesInstallCommand, c.Options.DotfilesTargetPath)
	if mode := userEnvProbeFromFlag(c.Options.DefaultUserEnvProbe); mode != nil && p.Config.UserEnvProbe == nil {
		p.Config.UserEnvProbe = mode
	}

	featureMap := mergeFeatureMaps(p.Config.Features, parseAdditionalFeatures(c.Options.AdditionalFeatures), c.Options.PreferCLIFeatures)
	if len(featureMap) > 0 {
		if err := inst.PrepareFeaturesData(ctx, p, featureMap); err != nil {
			return c.emitError(err)
		}
	}

	remoteUser := ""
	if p.Config.RemoteUser != nil {
		remoteUser = *p.Config.RemoteUser
	}

	handlerOpts := engine.Options{
		ContainerDataFolder:     c.Options.ContainerDataFolder,
		SkipNonBlockingCommands: c.Options.SkipNonBlockingCommands,
		Prebuild:                c.Options.Prebuild,
		StopForPersonalization:  c.Options.StopForPersonalization,
		SkipPostCreate:          c.Options.SkipPostCreate,
		SkipPostAttach:          c.Options.SkipPostAttach,
	}
	handler := engine.NewHandler(rc, inst, remoteUser, parseRemoteEnv(c.Options.RemoteEnv), handlerOpts)

	egCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(egCtx)
	eg.Go(func() error {
		defer cancel()
		return handler.Run(egCtx, eg, p)
	})
	eg.Go(func() error {
		return c.startDevcontainer(egCtx, rc, p)
	})

	if err := eg.Wait(); err != nil {
		return c.emitError(err)
	}

	if err := inst.SaveDigestCache(); err != nil {
		slog.Warn("could not persist feature digest cache", "error", err)
	}

	workspaceFolder := devc.DefWorkspacePath
	if p.Config.WorkspaceFolder != nil {
		workspaceFolder = *p.Config.WorkspaceFolder
	}

	var configuration, mergedConfiguration any
	if c.Options.IncludeConfiguration {
		configuration = p.Config
	}
	if c.Options.IncludeMergedConfiguration {
		mergedConfiguration = p.Config
	}

	composeProjectName := ""
	if p.Config.DockerComposeFile != nil && p.Config.Service != nil {
		composeProjectName = createImageTagBase(p)
	}

	doc := result.NewUp(rc.ContainerID, composeProjectName, remoteUser, workspaceFolder, configuration, mergedConfiguration)
	if err := c.emit(doc, fmt.Sprintf("container %s is up", rc.ContainerID)); err != nil {
		return c.emitError(err)
	}
	return clierr.ExitSuccess
}

// startDevcontainer builds or pulls the image the devcontainer.json
// names, resolves container/remote user, and starts the container,
// driving the runtime's lifecycle event producer.
func (c *Command) startDevcontainer(ctx context.Context, rc *runtime.Client, p *devc.DevcontainerParser) error {
	imageName := createImageTagBase(p)

	switch {
	case p.Config.DockerFile != nil && *p.Config.DockerFile != "":
		imageTag := fmt.Sprintf("%s%s", ImageTagPrefix, imageName)
		if err := rc.BuildDevcontainerImage(p, imageTag, true); err != nil {
			return err
		}
		return rc.StartDevcontainerContainer(ctx, p, imageTag, imageName)

	case p.Config.DockerComposeFile != nil && len(*p.Config.DockerComposeFile) > 0:
		return rc.DeployComposerProject(p, imageName, ImageTagPrefix, true)

	case p.Config.Image != nil && *p.Config.Image != "":
		imageTag := *p.Config.Image
		if err := rc.PullContainerImage(imageTag, true); err != nil {
			return err
		}
		return rc.StartDevcontainerContainer(ctx, p, imageTag, imageName)

	default:
		return fmt.Errorf("devcontainer.json specifies an unsupported mode of operation")
	}
}

// createImageTagBase derives a distinct, meaningful name for the
// generated OCI image from the workspace's git remote/branch, falling
// back to the context directory's basename outside a git repository.
func createImageTagBase(p *devc.DevcontainerParser) string {
	ctxDir := "."
	if p.Config.Context != nil {
		ctxDir = *p.Config.Context
	}
	retval := filepath.Base(ctxDir)

	repo, err := git.PlainOpenWithOptions(ctxDir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		slog.Debug("does not seem to be in a git repo; using default image tag base")
		return retval
	}

	cfg, err := repo.Config()
	if err != nil {
		slog.Error("could not open git repo configuration", "error", err)
		return retval
	}

	remote, ok := cfg.Remotes["origin"]
	if !ok || len(remote.URLs) == 0 {
		slog.Debug("remote named 'origin' not found; using default image tag base")
		return retval
	}

	repoName := strings.TrimSuffix(filepath.Base(remote.URLs[0]), ".git")

	headRef, err := repo.Head()
	if err != nil {
		slog.Error("unable to determine abbreviated reference name", "error", err)
		return repoName
	}

	if headRef.Name() == "HEAD" {
		retval = fmt.Sprintf("%s--%s", repoName, headRef.Hash().String())
	} else {
		retval = fmt.Sprintf("%s--%s", repoName, headRef.Name().Short())
	}
	return invalidContainerNamePattern.ReplaceAllString(retval, "_")
}

var invalidContainerNamePattern = regexp.MustCompile("[^a-zA-Z0-9_.-]")

// loadParser resolves, validates, parses, and phase-1-substitutes the
// devcontainer.json selected by --config-path/--override-config or the
// standard discovery order under --workspace-folder.
func (c *Command) loadParser() (*devc.DevcontainerParser, error) {
	configPath := c.Options.ConfigPath
	if c.Options.OverrideConfig != "" {
		configPath = c.Options.OverrideConfig
	}
	resolved, err := resolveConfigPath(c.Options.WorkspaceFolder, configPath)
	if err != nil {
		return nil, err
	}

	p, err := devc.NewResolvedDevcontainerParser(resolved)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, &clierr.ParseError{Source: resolved, Err: err}
	}
	if err := p.Parse(); err != nil {
		return nil, err
	}
	p.ProcessSubstitutions()
	return p, nil
}
