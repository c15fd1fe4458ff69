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
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/devc-cli/devc/internal/devc"
	"github.com/devc-cli/devc/internal/ociclient"
)

// VersionReport is the per-feature body of the `outdated` subcommand's
// result document. Fields are left empty (never serialized) when they
// can't be resolved, per spec.
type VersionReport struct {
	Current     string `json:"current,omitempty"`
	Wanted      string `json:"wanted,omitempty"`
	WantedMajor string `json:"wantedMajor,omitempty"`
	Latest      string `json:"latest,omitempty"`
	LatestMajor string `json:"latestMajor,omitempty"`
}

// Outdated computes a VersionReport for every OCI-distributed Feature
// in featureMap, keyed by Feature identifier. Non-OCI identifiers
// (local paths, HTTPS tarball URLs) are excluded from the report
// entirely, as they carry no queryable version history. lockfile
// supplies each Feature's pinned version, if any was recorded the last
// time it was installed; a nil or empty lockfile is treated as "no
// Feature has a pinned version".
func Outdated(ctx context.Context, oci *ociclient.Client, featureMap devc.FeatureMap, lockfile devc.FeatureLockfile) (map[string]VersionReport, error) {
	reports := make(map[string]VersionReport)

	for featureID := range featureMap {
		if !ociclient.IsOCIIdentifier(featureID) {
			continue
		}

		ref, err := ociclient.ParseRef(featureID)
		if err != nil {
			continue
		}

		tags, err := oci.ListTags(ctx, ref)
		if err != nil {
			return nil, err
		}

		report := VersionReport{}

		// wanted is only derived from the declared tag/range when the
		// Feature isn't pinned by digest. A digest-pinned Feature has
		// no declared range to satisfy, so wanted stays unresolved
		// unless the Feature's own metadata supplies one (not modeled
		// here: no metadata fetch precedes the registry tag listing).
		if ref.Digest == "" && ref.Tag != "latest" {
			if wanted, err := ociclient.HighestSatisfying(tags, constraintFromTag(ref.Tag)); err == nil && wanted != "" {
				report.Wanted = wanted
				if v, err := semver.NewVersion(wanted); err == nil {
					report.WantedMajor = majorTag(v)
				}
			}
		}

		if latest := ociclient.HighestStableSemverTag(tags); latest != "" {
			report.Latest = latest
			if v, err := semver.NewVersion(latest); err == nil {
				report.LatestMajor = majorTag(v)
			}
			if report.Wanted == "" && ref.Digest == "" {
				report.Wanted = latest
				report.WantedMajor = report.LatestMajor
			}
		}

		// current = lockfile.version ?? wanted.
		if entry, ok := lockfile[featureID]; ok && entry.Version != "" {
			report.Current = entry.Version
		} else if report.Wanted != "" {
			report.Current = report.Wanted
		}

		if report != (VersionReport{}) {
			reports[featureID] = report
		}
	}

	return reports, nil
}

// constraintFromTag turns a declared tag/range like "1" or "1.2" into
// a caret-style SemVer constraint ("^1.0.0", "^1.2.0"); an already
// fully-qualified version is used as an exact constraint.
func constraintFromTag(tag string) string {
	if strings.Count(tag, ".") >= 2 {
		return "=" + tag
	}
	return "^" + tag + strings.Repeat(".0", 2-strings.Count(tag, "."))
}

func majorTag(v *semver.Version) string {
	return fmt.Sprintf("%d", v.Major())
}
