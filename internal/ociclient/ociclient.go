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

// Package ociclient talks to OCI distribution registries on behalf of
// the Feature installer and the `features publish` / `templates
// publish` subcommands: resolving references, listing tags, fetching
// Feature artifacts, and pushing new ones under a SemVer tag policy.
package ociclient

import (
	"oras.land/oras-go/v2/registry/remote/auth"
)

// FeatureArtifactMediaType is the manifest media type a devcontainer
// Feature OCI artifact is published under.
const FeatureArtifactMediaType string = "application/vnd.oci.image.manifest.v1+json"

// FeatureLayerMediaType is the media type of the tar layer inside a
// Feature artifact manifest that holds the Feature's files.
const FeatureLayerMediaType string = "application/vnd.devcontainers.layer.v1+tar"

// CollectionMediaType is the media type of the Feature/Template
// collection metadata artifact published alongside individual
// Features under the tag "collection".
const CollectionMediaType string = "application/vnd.devcontainer.collection+json"

const defaultConcurrency = 10

// Client resolves, lists, fetches, and pushes OCI artifacts against
// one or more distribution registries, authenticating lazily per
// registry host.
type Client struct {
	plainHTTP   bool
	authClient  *auth.Client
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithPlainHTTP disables TLS for registry communication, for use
// against local/insecure test registries.
func WithPlainHTTP(plain bool) Option {
	return func(c *Client) { c.plainHTTP = plain }
}

// WithConcurrency bounds the number of concurrent blob transfers a
// single Push performs. Defaults to 10.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRegistryAuthEnv names an environment variable holding a
// base64-encoded Docker config JSON blob to consult before falling
// back to on-disk credential stores.
func WithRegistryAuthEnv(envName string) Option {
	return func(c *Client) {
		c.authClient = newAuthClient(envName)
	}
}

// New returns a Client that resolves credentials from Docker/Podman
// config files (and, if WithRegistryAuthEnv is supplied, an
// environment variable first), falling back to anonymous access.
func New(opts ...Option) *Client {
	c := &Client{
		authClient:  newAuthClient(""),
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}
