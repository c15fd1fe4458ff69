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

package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/pkg/jsonmessage"
	imagespec "github.com/moby/docker-image-spec/specs-go/v1"
	archive "github.com/moby/go-archive"
	mobyclient "github.com/moby/moby/client"
	"github.com/moby/patternmatcher/ignorefile"
	"golang.org/x/term"

	"github.com/devc-cli/devc/internal/devc"
)

// BuildContainerImage builds the OCI image used by the devcontainer
// from the directory at contextPath, tagging the result imageTag.
func (c *Client) BuildContainerImage(contextPath, dockerfilePath, imageTag string, buildOpts *mobyclient.ImageBuildOptions, suppressOutput bool) (err error) {
	slog.Info("building container image", "tag", imageTag)

	archivePath, err := buildContextArchive(contextPath)
	if err != nil {
		return err
	}
	contextArchive, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := contextArchive.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if rerr := os.Remove(archivePath); rerr != nil && err == nil {
			slog.Warn("failed to clean up context archive", "path", archivePath, "error", rerr)
		}
	}()

	if buildOpts == nil {
		buildOpts = &mobyclient.ImageBuildOptions{
			Dockerfile:     dockerfilePath,
			Remove:         true,
			SuppressOutput: suppressOutput,
			Tags:           []string{imageTag},
		}
	}

	buildResp, err := c.mobyClient.ImageBuild(context.Background(), contextArchive, *buildOpts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := buildResp.Body.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	decoder := json.NewDecoder(buildResp.Body)
	for {
		var msg struct {
			Stream string `json:"stream"`
			Error  string `json:"error"`
		}
		if err = decoder.Decode(&msg); err == io.EOF {
			err = nil
			break
		} else if err != nil {
			return err
		}

		if msg.Stream != "" && !suppressOutput {
			printf := NewPrefixedPrintf("BUILD", imageTag)
			printf("%s", strings.ReplaceAll(msg.Stream, "\n", "\r\n"))
		}
		if msg.Error != "" {
			printf := NewPrefixedPrintfError("BUILD")
			printf("%s\r\n", msg.Error)
		}
	}
	return err
}

// BuildDevcontainerImage builds an OCI image based on the `build`
// options of a resolved devcontainer.json.
func (c *Client) BuildDevcontainerImage(p *devc.DevcontainerParser, imageTag string, suppressOutput bool) error {
	dockerfile := "Dockerfile"
	if p.Config.DockerFile != nil {
		dockerfile = *p.Config.DockerFile
	}
	context := "."
	if p.Config.Context != nil {
		context = *p.Config.Context
	}
	return c.BuildContainerImage(context, dockerfile, imageTag, nil, suppressOutput)
}

// PullContainerImage pulls tag from its remote registry.
func (c *Client) PullContainerImage(tag string, suppressOutput bool) (err error) {
	slog.Info("pulling image", "tag", tag)
	pullResp, err := c.mobyClient.ImagePull(context.Background(), tag, mobyclient.ImagePullOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pullResp.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if suppressOutput {
		return pullResp.Wait(context.Background())
	}

	stdoutFd := os.Stdout.Fd()
	isTerm := term.IsTerminal(int(stdoutFd))
	streamWriter := NewPrefixedStreamWriter(os.Stdout, "PULL", tag)
	return jsonmessage.DisplayJSONMessagesStream(pullResp, streamWriter, stdoutFd, isTerm, nil)
}

// PushContainerImage pushes tag to its remote registry.
func (c *Client) PushContainerImage(tag string, suppressOutput bool) (err error) {
	slog.Info("pushing image", "tag", tag)
	pushResp, err := c.mobyClient.ImagePush(context.Background(), tag, mobyclient.ImagePushOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pushResp.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if suppressOutput {
		return pushResp.Wait(context.Background())
	}

	stdoutFd := os.Stdout.Fd()
	isTerm := term.IsTerminal(int(stdoutFd))
	streamWriter := NewPrefixedStreamWriter(os.Stdout, "PUSH", tag)
	return jsonmessage.DisplayJSONMessagesStream(pushResp, streamWriter, stdoutFd, isTerm, nil)
}

// SaveContainerImage writes tag out as a tar archive at exportPath, for
// the `build --output` flow.
func (c *Client) SaveContainerImage(tag, exportPath string) (err error) {
	slog.Info("exporting image", "tag", tag, "path", exportPath)
	saveResp, err := c.mobyClient.ImageSave(context.Background(), []string{tag}, mobyclient.ImageSaveOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := saveResp.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	out, err := os.Create(exportPath) // #nosec G304
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, saveResp)
	return err
}

// InspectImage returns the OCI image config for tag.
func (c *Client) InspectImage(tag string) (*imagespec.DockerOCIImageConfig, error) {
	inspect, err := c.mobyClient.ImageInspect(context.Background(), tag, mobyclient.ImageInspectOptions{})
	if err != nil {
		return nil, err
	}
	return &imagespec.DockerOCIImageConfig{
		ImageConfig: imagespec.ImageConfig{
			User: inspect.Config.User,
			Env:  inspect.Config.Env,
		},
	}, nil
}

// buildContextExcludesList reads .containerignore/.dockerignore in
// ctxDir, if present, into a pattern-matcher exclude list.
func buildContextExcludesList(ctxDir string) []string {
	ignoreFile := filepath.Join(ctxDir, ".containerignore")
	if _, err := os.Stat(ignoreFile); os.IsNotExist(err) {
		ignoreFile = filepath.Join(ctxDir, ".dockerignore")
	}

	f, err := os.Open(ignoreFile)
	if err != nil {
		return nil
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close ignore file", "error", cerr)
		}
	}()

	excludes, err := ignorefile.ReadAll(f)
	if err != nil {
		slog.Warn("failed to parse ignore file", "path", ignoreFile, "error", err)
	}
	return excludes
}

// buildContextArchive tars up ctxDir into a uniquely-named temp file
// and returns its path.
func buildContextArchive(ctxDir string) (string, error) {
	tempFile, err := os.CreateTemp("", fmt.Sprintf(".ctx-%s-*.tar.gz", filepath.Base(ctxDir)))
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := tempFile.Close(); cerr != nil {
			slog.Warn("failed to close context archive temp file", "error", cerr)
		}
	}()

	tarOpts := &archive.TarOptions{
		ChownOpts:        &archive.ChownOpts{UID: 0, GID: 0},
		Compression:      archive.Gzip,
		ExcludePatterns:  buildContextExcludesList(ctxDir),
		IncludeSourceDir: false,
		NoLchown:         true,
	}

	ctxReader, err := archive.TarWithOptions(ctxDir, tarOpts)
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(tempFile, ctxReader); err != nil {
		return "", err
	}
	return tempFile.Name(), nil
}
