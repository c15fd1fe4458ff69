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
	"fmt"
	"strings"
)

// Ref is a parsed OCI reference: registry/namespace/name[:tag|@digest].
// A missing tag canonicalizes to "latest" during version resolution;
// identifiers that are local paths or HTTPS tarball URLs are not OCI
// references at all and are excluded from tag-based version queries
// (see IsOCIIdentifier).
type Ref struct {
	Registry  string
	Namespace string
	Name      string
	Tag       string
	Digest    string
}

// IsOCIIdentifier reports whether a Feature identifier names an OCI
// artifact, as opposed to a local path (prefixed "./" or "/") or an
// HTTPS-hosted tarball URL.
func IsOCIIdentifier(identifier string) bool {
	return !strings.HasPrefix(identifier, "./") &&
		!strings.HasPrefix(identifier, "/") &&
		!strings.HasPrefix(identifier, "https://")
}

// ParseRef parses a Feature identifier of the form
// "registry/namespace/name[:tag|@digest]" into its components. A
// missing tag is canonicalized to "latest".
func ParseRef(identifier string) (Ref, error) {
	if !IsOCIIdentifier(identifier) {
		return Ref{}, fmt.Errorf("not an OCI reference: %s", identifier)
	}

	rest := identifier
	var digest string
	if idx := strings.Index(rest, "@"); idx >= 0 {
		digest = rest[idx+1:]
		rest = rest[:idx]
	}

	tag := "latest"
	pathPart := rest
	if digest == "" {
		if idx := strings.LastIndex(rest, ":"); idx >= 0 {
			// Guard against the colon that separates a registry host
			// from its port rather than a name from its tag, e.g.
			// "localhost:5000/acme/feature".
			if !strings.Contains(rest[idx+1:], "/") {
				tag = rest[idx+1:]
				pathPart = rest[:idx]
			}
		}
	}

	segments := strings.Split(pathPart, "/")
	if len(segments) < 3 {
		return Ref{}, fmt.Errorf("OCI reference %q must have at least registry/namespace/name", identifier)
	}

	return Ref{
		Registry:  segments[0],
		Namespace: strings.Join(segments[1:len(segments)-1], "/"),
		Name:      segments[len(segments)-1],
		Tag:       tag,
		Digest:    digest,
	}, nil
}

// Repository returns the registry/namespace/name portion, without a
// tag or digest.
func (r Ref) Repository() string {
	return r.Registry + "/" + r.Namespace + "/" + r.Name
}

// String renders the reference back to its canonical textual form.
func (r Ref) String() string {
	if r.Digest != "" {
		return r.Repository() + "@" + r.Digest
	}
	return r.Repository() + ":" + r.Tag
}

// WithTag returns a copy of r addressed at the given tag instead of
// its digest or current tag.
func (r Ref) WithTag(tag string) Ref {
	r.Tag = tag
	r.Digest = ""
	return r
}
