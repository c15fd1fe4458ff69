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

package features

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// CopyFeaturesToContextDirectory copies each prepared Feature's files
// from the cache (or local path) into a fresh directory rooted inside
// ctxPath, so an image build can stay rooted at a single, sane
// context directory.
func (inst *Installer) CopyFeaturesToContextDirectory(ctxPath string) (featuresBasePath string, err error) {
	featuresBasePath, err = os.MkdirTemp(ctxPath, ".features-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(featuresBasePath)
		}
	}()

	remotePathByID := make(map[string]string, len(inst.pathByID))
	for featureID, cachedPath := range inst.pathByID {
		featurePath, err := os.MkdirTemp(featuresBasePath, "feature-*")
		if err != nil {
			return "", err
		}
		if err := os.CopyFS(featurePath, os.DirFS(cachedPath)); err != nil {
			return "", err
		}
		remotePathByID[featureID] = featurePath
	}
	inst.pathByID = remotePathByID
	return featuresBasePath, nil
}

// GenerateContainerfileWithFeatures writes an ephemeral Containerfile
// under ctxPath that layers baseImage with every prepared Feature's
// files copied in, so the image build picks them up.
func (inst *Installer) GenerateContainerfileWithFeatures(ctxPath, baseImage, appName string) (containerfilePath string, err error) {
	containerfile, err := os.CreateTemp(ctxPath, fmt.Sprintf(".%s.Containerfile.*", appName))
	if err != nil {
		return "", err
	}
	defer containerfile.Close()

	remotePathByID := make(map[string]string, len(inst.pathByID))
	if _, err := containerfile.WriteString(fmt.Sprintf("FROM %s\n", baseImage)); err != nil {
		return "", err
	}

	for featureID, featurePath := range inst.pathByID {
		relFeaturePath, err := filepath.Rel(ctxPath, featurePath)
		if err != nil {
			return "", err
		}

		remotePath := fmt.Sprintf("/devcontainer-features/%d", rand.Int())
		remoteConfigPath := filepath.Join(remotePath, "devcontainer-feature.json")

		remotePathByID[featureID] = remotePath
		inst.parsersByID[featureID].Filepath = remoteConfigPath

		if _, err := containerfile.WriteString(fmt.Sprintf("COPY \"%s/*\" \"%s/\"\n", relFeaturePath, remotePath)); err != nil {
			return "", err
		}
	}
	inst.pathByID = remotePathByID

	return containerfile.Name(), nil
}
