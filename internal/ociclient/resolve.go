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
	"fmt"

	"github.com/Masterminds/semver/v3"
	"oras.land/oras-go/v2/registry/remote"
)

func (c *Client) newRepository(repo string) (*remote.Repository, error) {
	r, err := remote.NewRepository(repo)
	if err != nil {
		return nil, fmt.Errorf("creating repository client for %s: %w", repo, err)
	}
	r.PlainHTTP = c.plainHTTP
	r.Client = c.authClient
	return r, nil
}

// Resolve resolves ref's tag or digest to the manifest digest the
// registry currently has it pointing at.
func (c *Client) Resolve(ctx context.Context, ref Ref) (string, error) {
	repo, err := c.newRepository(ref.Repository())
	if err != nil {
		return "", err
	}

	target := ref.Digest
	if target == "" {
		target = ref.Tag
	}

	desc, err := repo.Resolve(ctx, target)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", ref.String(), err)
	}
	return desc.Digest.String(), nil
}

// ListTags returns every tag registered against ref's repository.
func (c *Client) ListTags(ctx context.Context, ref Ref) ([]string, error) {
	repo, err := c.newRepository(ref.Repository())
	if err != nil {
		return nil, err
	}

	var tags []string
	err = repo.Tags(ctx, "", func(batch []string) error {
		tags = append(tags, batch...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tags for %s: %w", ref.Repository(), err)
	}
	return tags, nil
}

// SemverTags filters tags to those that parse as SemVer versions,
// sorted ascending.
func SemverTags(tags []string) []*semver.Version {
	var versions []*semver.Version
	for _, t := range tags {
		v, err := semver.NewVersion(t)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && versions[j-1].GreaterThan(versions[j]); j-- {
			versions[j-1], versions[j] = versions[j], versions[j-1]
		}
	}
	return versions
}

// HighestSemverTag returns the raw tag string of the highest SemVer
// version among tags, or "" if none parse as SemVer.
func HighestSemverTag(tags []string) string {
	versions := SemverTags(tags)
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1].Original()
}

// HighestStableSemverTag returns the raw tag string of the highest
// non-pre-release SemVer version among tags, or "" if none qualify.
// This is the candidate set for `latest` tag movement.
func HighestStableSemverTag(tags []string) string {
	versions := SemverTags(tags)
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Prerelease() == "" {
			return versions[i].Original()
		}
	}
	return ""
}

// HighestSatisfying returns the highest tag among tags that satisfies
// the given SemVer constraint (e.g. "^1.2.0"), or "" if none do.
func HighestSatisfying(tags []string, constraint string) (string, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", fmt.Errorf("parsing version constraint %q: %w", constraint, err)
	}

	versions := SemverTags(tags)
	for i := len(versions) - 1; i >= 0; i-- {
		if c.Check(versions[i]) {
			return versions[i].Original(), nil
		}
	}
	return "", nil
}

// ResolveLatestVersion lists ref's repository tags and returns ref
// addressed at the highest SemVer tag found.
func (c *Client) ResolveLatestVersion(ctx context.Context, ref Ref) (Ref, error) {
	tags, err := c.ListTags(ctx, ref)
	if err != nil {
		return Ref{}, err
	}
	latest := HighestSemverTag(tags)
	if latest == "" {
		return Ref{}, fmt.Errorf("no semver tags found for %s", ref.Repository())
	}
	return ref.WithTag(latest), nil
}
