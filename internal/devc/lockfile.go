/*
   devc: a devcontainer.json parser and configuration resolver
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

package devc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

// lockfileName is the sibling file next to a devcontainer.json that
// pins each resolved Feature's version, digest, and integrity hash.
const lockfileName = "devcontainer-lock.json"

// FeatureLockEntry records a Feature's resolved identity as of the last
// time it was installed, read from devcontainer-lock.json.
type FeatureLockEntry struct {
	Version   string `json:"version,omitempty"`
	Resolved  string `json:"resolved,omitempty"`
	Integrity string `json:"integrity,omitempty"`
}

// FeatureLockfile maps a Feature identifier to its lockfile entry.
type FeatureLockfile map[string]FeatureLockEntry

type featureLockfileDocument struct {
	Features FeatureLockfile `json:"features"`
}

// LoadFeatureLockfile reads devcontainer-lock.json from the same
// directory as devcontainerPath. A missing lockfile is not an error:
// it simply means no Feature in the configuration carries a pinned
// version, and every resolution falls back to live registry tags.
func LoadFeatureLockfile(devcontainerPath string) (FeatureLockfile, error) {
	path := filepath.Join(filepath.Dir(devcontainerPath), lockfileName)
	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FeatureLockfile{}, nil
		}
		return nil, err
	}

	var doc featureLockfileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		slog.Warn("failed to parse devcontainer-lock.json; ignoring", "path", path, "error", err)
		return FeatureLockfile{}, nil
	}
	if doc.Features == nil {
		doc.Features = FeatureLockfile{}
	}
	return doc.Features, nil
}
