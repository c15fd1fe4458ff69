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
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	godigest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry/remote"
)

// PushResult reports the outcome of publishing a Feature artifact
// under a single manifest digest to one or more tags.
type PushResult struct {
	Digest        string
	PublishedTags []string
	SkippedTags   []string
	MovedLatest   bool
}

// Push packages sourceDir as a Feature OCI artifact and publishes it
// to every tag plan.ToPublish names, optionally moving "latest" per
// plan.MovedLatest. configJSON is the Feature's devcontainer-feature.json
// contents, stored as the manifest's config blob.
func (c *Client) Push(ctx context.Context, sourceDir string, repo Ref, configJSON []byte, plan PublishPlan) (*PushResult, error) {
	remoteRepo, err := c.newRepository(repo.Repository())
	if err != nil {
		return nil, err
	}

	configDesc := ocispec.Descriptor{
		MediaType: FeatureArtifactMediaType,
		Digest:    godigest.FromBytes(configJSON),
		Size:      int64(len(configJSON)),
	}
	if err := pushIfAbsent(ctx, remoteRepo, configDesc, configJSON, "config blob"); err != nil {
		return nil, err
	}

	layerData, err := createFeatureTar(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("archiving %s: %w", sourceDir, err)
	}
	layerDesc := ocispec.Descriptor{
		MediaType: FeatureLayerMediaType,
		Digest:    godigest.FromBytes(layerData),
		Size:      int64(len(layerData)),
	}
	if err := pushIfAbsent(ctx, remoteRepo, layerDesc, layerData, "content layer"); err != nil {
		return nil, err
	}

	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    configDesc,
		Layers:    []ocispec.Descriptor{layerDesc},
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	manifestDesc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    godigest.FromBytes(manifestJSON),
		Size:      int64(len(manifestJSON)),
	}
	if err := pushIfAbsent(ctx, remoteRepo, manifestDesc, manifestJSON, "manifest"); err != nil {
		return nil, err
	}

	result := &PushResult{Digest: manifestDesc.Digest.String(), SkippedTags: plan.SkippedTags()}
	for _, tag := range plan.ToPublish {
		if err := remoteRepo.Tag(ctx, manifestDesc, tag); err != nil {
			return nil, fmt.Errorf("tagging manifest as %s: %w", tag, err)
		}
		result.PublishedTags = append(result.PublishedTags, tag)
		if tag == "latest" {
			result.MovedLatest = true
		}
	}
	if plan.MovedLatest && !result.MovedLatest {
		if err := remoteRepo.Tag(ctx, manifestDesc, "latest"); err != nil {
			return nil, fmt.Errorf("moving latest tag: %w", err)
		}
		result.MovedLatest = true
	}

	return result, nil
}

// PushCollection publishes Feature/Template collection metadata as a
// standalone artifact addressed at repo:collection.
func (c *Client) PushCollection(ctx context.Context, repo Ref, collectionJSON []byte) (string, error) {
	remoteRepo, err := c.newRepository(repo.Repository())
	if err != nil {
		return "", err
	}

	desc := ocispec.Descriptor{
		MediaType: CollectionMediaType,
		Digest:    godigest.FromBytes(collectionJSON),
		Size:      int64(len(collectionJSON)),
	}
	if err := pushIfAbsent(ctx, remoteRepo, desc, collectionJSON, "collection metadata"); err != nil {
		return "", err
	}
	if err := remoteRepo.Tag(ctx, desc, "collection"); err != nil {
		return "", fmt.Errorf("tagging collection metadata: %w", err)
	}
	return desc.Digest.String(), nil
}

// pushIfAbsent tests whether desc is already present in repo before
// uploading content, so republishing an unchanged artifact performs no
// writes.
func pushIfAbsent(ctx context.Context, repo *remote.Repository, desc ocispec.Descriptor, content []byte, what string) error {
	exists, err := repo.Exists(ctx, desc)
	if err != nil {
		return fmt.Errorf("checking existence of %s: %w", what, err)
	}
	if exists {
		return nil
	}
	if err := repo.Push(ctx, desc, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("pushing %s: %w", what, err)
	}
	return nil
}

// createFeatureTar archives sourceDir as an uncompressed tar, the
// layer format the devcontainer Feature distribution spec expects
// for FeatureLayerMediaType.
func createFeatureTar(sourceDir string) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path) // #nosec G304
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
