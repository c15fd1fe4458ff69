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
)

// PublishPlan is the computed set of tags a `features publish`
// invocation will create versus skip, for one Feature version.
type PublishPlan struct {
	DesiredTags  []string
	ExistingTags []string
	ToPublish    []string
	MovedLatest  bool
}

// SkippedTags returns the desired tags that are already present on
// the registry and therefore need no upload.
func (p PublishPlan) SkippedTags() []string {
	existing := make(map[string]bool, len(p.ExistingTags))
	for _, t := range p.ExistingTags {
		existing[t] = true
	}
	publishing := make(map[string]bool, len(p.ToPublish))
	for _, t := range p.ToPublish {
		publishing[t] = true
	}

	var skipped []string
	for _, t := range p.DesiredTags {
		if !publishing[t] && existing[t] {
			skipped = append(skipped, t)
		}
	}
	return skipped
}

// DesiredTagsForVersion computes the tags a SemVer version publishes
// under: its major, major.minor, and full version, plus "latest" iff
// the version carries no pre-release identifiers.
//
// Masterminds/semver/v3's Prerelease() accessor is used directly
// (rather than a raw version-string comparison) so pre-release
// versions that sort higher than a prior stable release under naive
// comparison still never win "latest" — some SemVer libraries get
// this wrong.
func DesiredTagsForVersion(v *semver.Version) []string {
	full := fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	if v.Prerelease() != "" {
		full += "-" + v.Prerelease()
	}
	tags := []string{
		fmt.Sprintf("%d", v.Major()),
		fmt.Sprintf("%d.%d", v.Major(), v.Minor()),
		full,
	}
	if v.Prerelease() == "" {
		tags = append(tags, "latest")
	}
	return tags
}

// ComputePublishPlan lists repo's existing tags and computes which of
// the tags version publishes under are already present. When every
// desired tag but "latest" already exists and only "latest" needs to
// move (a stable point upgrade), ToPublish is left empty and
// MovedLatest is set instead of republishing unchanged tags.
func (c *Client) ComputePublishPlan(ctx context.Context, repo Ref, version *semver.Version) (PublishPlan, error) {
	desired := DesiredTagsForVersion(version)

	existing, err := c.ListTags(ctx, repo)
	if err != nil {
		return PublishPlan{}, err
	}
	existingSet := make(map[string]bool, len(existing))
	for _, t := range existing {
		existingSet[t] = true
	}

	plan := PublishPlan{DesiredTags: desired, ExistingTags: existing}

	wantsLatest := false
	var toPublish []string
	for _, tag := range desired {
		if tag == "latest" {
			wantsLatest = true
			continue
		}
		if !existingSet[tag] {
			toPublish = append(toPublish, tag)
		}
	}

	if len(toPublish) == 0 && wantsLatest {
		// Stable point upgrade: every versioned tag already exists, so
		// only "latest" needs to move.
		plan.MovedLatest = true
		return plan, nil
	}

	if wantsLatest {
		toPublish = append(toPublish, "latest")
	}
	plan.ToPublish = toPublish
	return plan, nil
}
