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

package engine

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// DigestEntry is one row of the Feature artifact digest table: the
// last digest devc observed for a given Feature+version reference,
// used to skip re-downloading an artifact whose manifest is unchanged.
type DigestEntry struct {
	FeatureRef string `csv:"feature_ref"`
	Digest     string `csv:"digest"`
}

// DigestCache is a CSV-backed lookup table of Feature artifact
// digests, persisted under the cache directory between runs.
type DigestCache struct {
	path    string
	Entries map[string]*DigestEntry
}

// LoadDigestCache reads the digest table from the cache directory,
// creating an empty one if it doesn't exist yet.
func LoadDigestCache() (*DigestCache, error) {
	cacheDir, err := CacheDir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(cacheDir, "digests.csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close digest cache file", "error", cerr)
		}
	}()

	var rows []*DigestEntry
	if err := gocsv.UnmarshalFile(f, &rows); err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return nil, err
	}

	dc := &DigestCache{path: path, Entries: make(map[string]*DigestEntry, len(rows))}
	for _, row := range rows {
		dc.Entries[row.FeatureRef] = row
	}
	return dc, nil
}

// Get returns the cached digest for ref, if any.
func (dc *DigestCache) Get(ref string) (string, bool) {
	entry, ok := dc.Entries[ref]
	if !ok {
		return "", false
	}
	return entry.Digest, true
}

// Set records the digest observed for ref.
func (dc *DigestCache) Set(ref, digest string) {
	dc.Entries[ref] = &DigestEntry{FeatureRef: ref, Digest: digest}
}

// Save persists the digest table back to disk.
func (dc *DigestCache) Save() error {
	if len(dc.Entries) == 0 {
		return nil
	}

	f, err := os.OpenFile(dc.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) // #nosec G304
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close digest cache file", "error", cerr)
		}
	}()

	rows := make([]*DigestEntry, 0, len(dc.Entries))
	for _, entry := range dc.Entries {
		rows = append(rows, entry)
	}
	return gocsv.MarshalFile(&rows, f)
}
