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

package ociclient

import (
	"context"
	"encoding/json"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
)

// Artifact is a resolved Feature OCI artifact: its manifest digest
// and the raw bytes of the single tar layer the devcontainer Feature
// distribution spec expects.
type Artifact struct {
	Digest     string
	LayerBytes []byte
}

// FetchFeatureArtifact resolves ref, verifies its manifest media type,
// and returns the manifest digest plus the content of the first layer
// tagged FeatureLayerMediaType.
func (c *Client) FetchFeatureArtifact(ctx context.Context, ref Ref) (*Artifact, error) {
	repo, err := c.newRepository(ref.Repository())
	if err != nil {
		return nil, err
	}

	target := ref.Digest
	if target == "" {
		target = ref.Tag
	}

	desc, err := repo.Resolve(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", ref.String(), err)
	}
	if desc.MediaType != FeatureArtifactMediaType {
		return nil, fmt.Errorf("%s resolved to unsupported media type %q", ref.String(), desc.MediaType)
	}

	_, manifestContent, err := oras.FetchBytes(ctx, repo, target, oras.DefaultFetchBytesOptions)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest for %s: %w", ref.String(), err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestContent, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest for %s: %w", ref.String(), err)
	}

	for _, layer := range manifest.Layers {
		if layer.MediaType != FeatureLayerMediaType {
			continue
		}
		layerBytes, err := content.FetchAll(ctx, repo, layer)
		if err != nil {
			return nil, fmt.Errorf("fetching layer for %s: %w", ref.String(), err)
		}
		return &Artifact{Digest: desc.Digest.String(), LayerBytes: layerBytes}, nil
	}

	return nil, fmt.Errorf("%s manifest contains no %s layer", ref.String(), FeatureLayerMediaType)
}
