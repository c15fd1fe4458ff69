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

// Package engine drives the devcontainer lifecycle: feature
// installation order, the create/update/start hook sequence, and the
// disk caches (environment probe results, Feature artifact digests)
// that make repeated runs cheap.
package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"mvdan.cc/sh/v3/shell"
)

const appName = "devc"

// resolveCacheDirBase returns the appName subdirectory of the first
// prefix that resolves to an existing directory, creating that
// subdirectory if it does not exist yet, falling all the way back to
// fallbackPattern (a %s format string applied to appName) if none of
// prefixes exist at all.
func resolveCacheDirBase(prefixes []string, fallbackPattern string) (string, error) {
	for _, prefix := range prefixes {
		resolved, err := shell.Expand(prefix, nil)
		if err != nil {
			return "", err
		}
		if resolved == "" {
			continue
		}
		if _, err := os.Stat(resolved); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		cacheDir, err := filepath.Abs(filepath.Join(resolved, appName))
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(cacheDir); errors.Is(err, fs.ErrNotExist) {
			if err := os.MkdirAll(cacheDir, 0o755); err != nil {
				return "", err
			}
		}
		return cacheDir, nil
	}

	fallback, err := shell.Expand(fmt.Sprintf(fallbackPattern, appName), nil)
	if err != nil {
		return "", err
	}
	slog.Debug("no configured cache prefix exists; using fallback", "path", fallback)
	if err := os.MkdirAll(fallback, 0o755); err != nil {
		return "", err
	}
	return fallback, nil
}

// CacheDir returns the directory devc uses to persist the environment
// probe cache and the Feature artifact digest table, creating it if
// necessary, following the XDG Base Directory convention.
func CacheDir() (string, error) {
	return resolveCacheDir()
}
