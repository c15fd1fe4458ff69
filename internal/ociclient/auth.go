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
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"oras.land/oras-go/v2/registry/remote/auth"
)

// dockerConfig is the subset of the Docker/Podman credential config
// file format devc understands.
type dockerConfig struct {
	Auths map[string]dockerAuthEntry `json:"auths"`
}

type dockerAuthEntry struct {
	Auth string `json:"auth"`
}

func newAuthClient(registryAuthEnv string) *auth.Client {
	return &auth.Client{
		Client: http.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(_ context.Context, hostport string) (auth.Credential, error) {
			return resolveCredential(registryAuthEnv, hostport), nil
		},
	}
}

// resolveCredential resolves registry credentials, in priority order:
//  1. registryAuthEnv, if set: a base64-encoded Docker config JSON blob
//  2. ~/.docker/config.json
//  3. $XDG_RUNTIME_DIR/containers/auth.json (Podman)
//  4. anonymous access
func resolveCredential(registryAuthEnv, hostport string) auth.Credential {
	if registryAuthEnv != "" {
		if envAuth := os.Getenv(registryAuthEnv); envAuth != "" {
			if cred, ok := credentialFromEnv(envAuth, hostport); ok {
				return cred
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		if cred, ok := credentialFromFile(filepath.Join(home, ".docker", "config.json"), hostport); ok {
			return cred
		}
	}

	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		if cred, ok := credentialFromFile(filepath.Join(runtimeDir, "containers", "auth.json"), hostport); ok {
			return cred
		}
	}

	return auth.EmptyCredential
}

func credentialFromEnv(envValue, hostport string) (auth.Credential, bool) {
	data, err := base64.StdEncoding.DecodeString(envValue)
	if err != nil {
		return auth.EmptyCredential, false
	}
	return credentialFromJSON(data, hostport)
}

func credentialFromFile(path, hostport string) (auth.Credential, bool) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return auth.EmptyCredential, false
	}
	return credentialFromJSON(data, hostport)
}

func credentialFromJSON(data []byte, hostport string) (auth.Credential, bool) {
	var cfg dockerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return auth.EmptyCredential, false
	}

	entry, ok := cfg.Auths[hostport]
	if !ok {
		host := hostport
		if idx := strings.LastIndex(host, ":"); idx > 0 {
			host = host[:idx]
		}
		entry, ok = cfg.Auths[host]
	}
	if !ok {
		return auth.EmptyCredential, false
	}

	decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
	if err != nil {
		return auth.EmptyCredential, false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return auth.EmptyCredential, false
	}

	return auth.Credential{Username: parts[0], Password: parts[1]}, true
}
