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

// Package features resolves, orders, stages, and installs devcontainer
// Features: reusable, OCI-distributed (or HTTPS-tarball, or local)
// units of container setup declared in a devcontainer.json's
// `features` block.
package features

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeclysm/extract/v4"
	"github.com/devc-cli/devc/internal/devc"
	"github.com/devc-cli/devc/internal/engine"
	"github.com/devc-cli/devc/internal/ociclient"
)

// Installer resolves each Feature a devcontainer.json references to a
// local directory (downloading and caching it first, if necessary)
// and parses its devcontainer-feature.json.
type Installer struct {
	ociClient   *ociclient.Client
	digestCache *engine.DigestCache

	parsersByID map[string]*devc.DevcontainerFeatureParser
	pathByID    map[string]string
}

// NewInstaller returns an Installer backed by oci for OCI-distributed
// Features and the on-disk artifact digest cache for skip-if-unchanged
// downloads.
func NewInstaller(oci *ociclient.Client) (*Installer, error) {
	digestCache, err := engine.LoadDigestCache()
	if err != nil {
		return nil, err
	}
	return &Installer{
		ociClient:   oci,
		digestCache: digestCache,
		parsersByID: make(map[string]*devc.DevcontainerFeatureParser),
		pathByID:    make(map[string]string),
	}, nil
}

// Parsers returns the parsed devcontainer-feature.json configuration
// for every Feature prepared so far, keyed by the Feature identifier
// as declared in devcontainer.json.
func (inst *Installer) Parsers() map[string]*devc.DevcontainerFeatureParser {
	return inst.parsersByID
}

// SaveDigestCache persists any digest observations recorded for OCI
// Feature artifacts resolved during this invocation.
func (inst *Installer) SaveDigestCache() error {
	return inst.digestCache.Save()
}

// PrepareFeaturesData resolves each Feature in featureMap to a local
// directory — downloading and caching OCI artifacts and HTTPS
// tarballs, validating local paths in place — then parses its
// devcontainer-feature.json and recurses into its own `dependsOn`
// Features.
func (inst *Installer) PrepareFeaturesData(ctx context.Context, p *devc.DevcontainerParser, featureMap devc.FeatureMap) error {
	for featureID, optionValues := range featureMap {
		if _, ok := inst.parsersByID[featureID]; ok {
			slog.Debug("feature already prepared; skipping", "featureID", featureID)
			continue
		}

		slog.Debug("preparing feature", "feature", featureID)
		var featurePath string
		var err error
		switch {
		case strings.HasPrefix(featureID, "/"):
			// https://containers.dev/implementors/features-distribution/#addendum-locally-referenced
			return fmt.Errorf("locally-stored features may not be referenced by an absolute path: %s", featureID)

		case strings.HasPrefix(featureID, "./"):
			if featurePath, err = filepath.Abs(filepath.Join(filepath.Dir(p.Filepath), featureID)); err != nil {
				return err
			}
			if _, err = os.Stat(featurePath); errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("referenced a locally-stored feature that doesn't exist: %s", featurePath)
			}

		case strings.HasPrefix(featureID, "https://"):
			if featurePath, err = inst.prepareFeatureDataURI(ctx, featureID); err != nil {
				return err
			}

		default:
			if featurePath, err = inst.prepareFeatureDataArtifact(ctx, featureID); err != nil {
				return err
			}
		}

		featureParser, err := devc.NewDevcontainerFeatureParser(filepath.Join(featurePath, "devcontainer-feature.json"), p)
		if err != nil {
			return err
		}
		if err := featureParser.Validate(); err != nil {
			return fmt.Errorf("feature %s: %w", featureID, err)
		}
		if err := featureParser.Parse(); err != nil {
			return fmt.Errorf("feature %s: %w", featureID, err)
		}

		for optName, val := range optionValues {
			v := val
			if err := featureParser.SetOption(optName, &v); err != nil {
				return err
			}
		}

		inst.pathByID[featureID] = featurePath
		inst.parsersByID[featureID] = featureParser

		if err := inst.PrepareFeaturesData(ctx, p, featureParser.Config.DependsOn); err != nil {
			return err
		}
	}
	return nil
}

// prepareFeatureDataArtifact retrieves a Feature distributed as an OCI
// artifact, consulting and updating the digest cache so an unchanged
// artifact is never re-downloaded.
func (inst *Installer) prepareFeatureDataArtifact(ctx context.Context, featureID string) (string, error) {
	ref, err := ociclient.ParseRef(featureID)
	if err != nil {
		return "", err
	}

	cacheDir, err := engine.CacheDir()
	if err != nil {
		return "", err
	}
	cacheKey := filepath.Join(append([]string{cacheDir}, strings.Split(featureID, ":")...)...)

	_, statErr := os.Stat(cacheKey)
	cachedCopyExists := statErr == nil

	digest, err := inst.ociClient.Resolve(ctx, ref)
	if err != nil {
		if cachedCopyExists {
			slog.Warn("resolving OCI reference returned an error but a cached (possibly stale) copy already exists", "error", err)
			return cacheKey, nil
		}
		return "", err
	}

	if cached, ok := inst.digestCache.Get(featureID); ok && cachedCopyExists {
		if cached == digest {
			slog.Info("digest matches cached copy", "reference", featureID, "digest", digest)
			return cacheKey, nil
		}
		slog.Info("cached copy exists but digests don't match", "reference", featureID, "localDigest", cached, "remoteDigest", digest)
	}

	artifact, err := inst.ociClient.FetchFeatureArtifact(ctx, ref)
	if err != nil {
		return "", err
	}

	if !cachedCopyExists {
		if err := os.MkdirAll(cacheKey, 0o755); err != nil {
			return "", err
		}
	}
	if err := extract.Tar(ctx, bytes.NewReader(artifact.LayerBytes), cacheKey, nil); err != nil {
		return "", err
	}

	inst.digestCache.Set(featureID, artifact.Digest)
	return cacheKey, nil
}

// prepareFeatureDataURI retrieves a Feature distributed as a tarball
// hosted at a plain HTTPS endpoint
// (https://containers.dev/implementors/features-distribution/#addendum-supporting-http).
// The cache key is the SHA-256 of the URL, since no registry digest is
// available to key on.
func (inst *Installer) prepareFeatureDataURI(ctx context.Context, uri string) (string, error) {
	sum := sha256.Sum256([]byte(uri))
	cacheDir, err := engine.CacheDir()
	if err != nil {
		return "", err
	}
	cacheKey := filepath.Join(cacheDir, "https-features", hex.EncodeToString(sum[:]))

	if _, err := os.Stat(cacheKey); err == nil {
		slog.Debug("using cached copy of HTTPS-hosted feature tarball", "uri", uri, "path", cacheKey)
		return cacheKey, nil
	}

	slog.Debug("fetching HTTPS-hosted feature tarball", "uri", uri)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %s", uri, resp.Status)
	}

	if err := os.MkdirAll(cacheKey, 0o755); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", uri, err)
	}

	if err := extract.Archive(ctx, bytes.NewReader(body), cacheKey, nil); err != nil {
		_ = os.RemoveAll(cacheKey)
		return "", fmt.Errorf("extracting %s: %w", uri, err)
	}

	return cacheKey, nil
}
