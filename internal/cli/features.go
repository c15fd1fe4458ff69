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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/devc-cli/devc/internal/clierr"
	"github.com/devc-cli/devc/internal/devc"
	"github.com/devc-cli/devc/internal/ociclient"
	"github.com/devc-cli/devc/internal/result"
)

// runFeatures dispatches the `features` subcommand group.
func (c *Command) runFeatures(args []string) clierr.ExitCode {
	if len(args) == 0 {
		return c.emitError(fmt.Errorf("features requires a sub-subcommand (publish)"))
	}
	switch args[0] {
	case "publish":
		return c.runFeaturesPublish(args[1:])
	default:
		return c.emitError(fmt.Errorf("features: unknown sub-subcommand %q", args[0]))
	}
}

// runFeaturesPublish publishes one or more Feature source directories
// (each containing a devcontainer-feature.json) to an OCI registry,
// computing and skipping tags that are already current.
func (c *Command) runFeaturesPublish(dirs []string) clierr.ExitCode {
	if len(dirs) == 0 {
		return c.emitError(fmt.Errorf("features publish requires at least one Feature directory"))
	}
	if c.Options.Registry == "" || c.Options.Namespace == "" {
		return c.emitError(fmt.Errorf("features publish requires --registry and --namespace"))
	}

	ctx := context.Background()
	oci := ociclient.New()

	var published []result.PublishedFeature
	for _, dir := range dirs {
		pf, err := c.publishFeatureDir(ctx, oci, dir)
		if err != nil {
			return c.emitError(err)
		}
		if pf != nil {
			published = append(published, *pf)
		}
	}

	doc := result.NewFeaturesPublish(published, "")
	if err := c.emit(doc, fmt.Sprintf("published %d feature(s)", len(published))); err != nil {
		return c.emitError(err)
	}
	return clierr.ExitSuccess
}

// publishFeatureDir parses dir's devcontainer-feature.json, computes
// its publish plan against the configured registry/namespace, and
// pushes any tags that are missing.
func (c *Command) publishFeatureDir(ctx context.Context, oci *ociclient.Client, dir string) (*result.PublishedFeature, error) {
	configPath := filepath.Join(dir, "devcontainer-feature.json")
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}

	fp, err := devc.NewDevcontainerFeatureParser(configPath, nil)
	if err != nil {
		return nil, err
	}
	if err := fp.Validate(); err != nil {
		return nil, &clierr.ParseError{Source: configPath, Err: err}
	}
	if err := fp.Parse(); err != nil {
		return nil, err
	}

	version, err := semver.NewVersion(fp.Config.Version)
	if err != nil {
		return nil, fmt.Errorf("feature %s: invalid version %q: %w", fp.Config.ID, fp.Config.Version, err)
	}

	repo := ociclient.Ref{Registry: c.Options.Registry, Namespace: c.Options.Namespace, Name: fp.Config.ID}
	plan, err := oci.ComputePublishPlan(ctx, repo, version)
	if err != nil {
		return nil, err
	}

	configJSON, err := json.Marshal(fp.Config)
	if err != nil {
		return nil, err
	}

	pushResult, err := oci.Push(ctx, dir, repo, configJSON, plan)
	if err != nil {
		return nil, err
	}

	pf := result.PublishedFeatureFrom(fp.Config.ID, fp.Config.Version, c.Options.Registry, c.Options.Namespace, pushResult)
	return &pf, nil
}
