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
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/devc-cli/devc/internal/clierr"
	"github.com/devc-cli/devc/internal/engine"
	"github.com/devc-cli/devc/internal/features"
	"github.com/devc-cli/devc/internal/ociclient"
	"github.com/devc-cli/devc/internal/result"
	"github.com/devc-cli/devc/internal/runtime"
)

// userCommandPhases is the event sequence run-user-commands drives
// against an already-running container: every phase after container
// creation. onCreate, updateContent, postCreate and postStart are each
// gated by their own idempotency marker; Feature installation and
// postAttach are not checked against a marker.
var userCommandPhases = []runtime.LifecycleEvent{
	runtime.LifecycleFeatureInstall,
	runtime.LifecycleOnCreate,
	runtime.LifecycleUpdateContent,
	runtime.LifecyclePostCreate,
	runtime.LifecyclePostStart,
	runtime.LifecyclePostAttach,
}

// runUserCommands reruns the container's lifecycle commands against an
// already-running container, honoring the markers of the marker-gated
// phases and the same control flags `up` accepts.
func (c *Command) runUserCommands(args []string) clierr.ExitCode {
	if c.Options.ContainerID == "" {
		return c.emitError(fmt.Errorf("run-user-commands requires --container-id"))
	}

	p, err := c.loadParser()
	if err != nil {
		return c.emitError(err)
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

	oci := ociclient.New()
	inst, err := features.NewInstaller(oci)
	if err != nil {
		return c.emitError(err)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return handler.Run(egCtx, eg, p)
	})
	eg.Go(func() error {
		return driveLifecyclePhases(rc, userCommandPhases)
	})

	if err := eg.Wait(); err != nil {
		return c.emitError(err)
	}

	doc := result.NewRunUserCommands(handler.Result())
	if err := c.emit(doc, fmt.Sprintf("result: %s", handler.Result())); err != nil {
		return c.emitError(err)
	}
	return clierr.ExitSuccess
}

// driveLifecyclePhases feeds events through rc's lifecycle channel pair
// in order, stopping (and closing the channel) on the first failure or
// once every phase has been offered to the handler.
func driveLifecyclePhases(rc *runtime.Client, phases []runtime.LifecycleEvent) error {
	defer close(rc.LifecycleChan)
	for _, ev := range phases {
		rc.LifecycleChan <- ev
		if ok, open := <-rc.LifecycleResp; !open {
			return nil
		} else if !ok {
			return errors.New("lifecycle handler reported an error")
		}
	}
	return nil
}
