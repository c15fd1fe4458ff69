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
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/devc-cli/devc/internal/clierr"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// NewResolvedDevcontainerParser resolves the extends chain rooted at
// configPath and returns a DevcontainerParser over the merged
// document, ready for Validate/Parse exactly like NewDevcontainerParser.
func NewResolvedDevcontainerParser(configPath string) (*DevcontainerParser, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}

	merged, provenance, err := ResolveExtends(abs)
	if err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, &clierr.ParseError{Source: abs, Err: err}
	}

	p := &DevcontainerParser{
		Provenance: provenance,
		Parser: Parser{
			Filepath:         abs,
			IsValidConfig:    false,
			defaultValues:    make(map[string]any),
			jsonSchema:       devcontainerJSONSchema,
			jsonSchemaPath:   devcontainerJSONSchemaPath,
			standardizedJSON: mergedJSON,
		},
	}
	return p, nil
}

// layer is one file in an extends chain, already standardized to
// plain JSON and decoded into a raw key/value view.
type layer struct {
	path   string
	fields map[string]json.RawMessage
}

// ResolveExtends follows the `extends` property of the devcontainer.json
// at rootPath, merges every layer per §4.1's rules, and returns the
// merged raw JSON plus provenance (field name -> layer path that
// supplied the final value).
//
// Merge order is bottom-of-chain first, then each parent in
// declaration order, then the root file itself; "last writer wins" for
// scalars, shallow key-merge for maps, later-overrides-earlier for
// lifecycle command arrays, per-key merge for `features`, and
// declaration-order append for `runArgs`.
func ResolveExtends(rootPath string) (map[string]json.RawMessage, map[string]string, error) {
	chain, err := collectChain(rootPath, map[string]bool{})
	if err != nil {
		return nil, nil, err
	}

	merged := map[string]json.RawMessage{}
	provenance := map[string]string{}
	for _, l := range chain {
		mergeLayer(merged, provenance, l)
	}
	return merged, provenance, nil
}

// collectChain performs a depth-first walk of the extends graph,
// returning layers ordered bottom-of-chain first (i.e. the root file's
// own extends targets, recursively, before the root file itself).
func collectChain(path string, visiting map[string]bool) ([]layer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if visiting[abs] {
		return nil, &clierr.ExtendsCycle{PathStack: []string{abs}}
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	raw, err := standardizeFile(abs)
	if err != nil {
		return nil, &clierr.ExtendsNotFound{Path: abs}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &clierr.ParseError{Source: abs, Err: err}
	}

	var parents []layer
	if extendsRaw, ok := fields["extends"]; ok {
		var ref ExtendsRef
		if err := ref.UnmarshalJSON(extendsRaw); err != nil {
			return nil, &clierr.ParseError{Source: abs, Err: err}
		}
		for _, parentRef := range ref.StringArray {
			parentPath := parentRef
			if !filepath.IsAbs(parentPath) {
				parentPath = filepath.Join(filepath.Dir(abs), parentPath)
			}
			parentChain, err := collectChain(parentPath, visiting)
			if err != nil {
				return nil, err
			}
			parents = append(parents, parentChain...)
		}
	}

	return append(parents, layer{path: abs, fields: fields}), nil
}

func standardizeFile(path string) ([]byte, error) {
	contents, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return hujson.Standardize(contents)
}

// lifecycleCommandKeys names the fields merged with "later layer
// replaces earlier" rather than "last scalar wins" semantics, matching
// how the devcontainer spec treats lifecycle command declarations as
// atomic per layer.
var lifecycleCommandKeys = map[string]bool{
	"initializeCommand":    true,
	"onCreateCommand":      true,
	"updateContentCommand": true,
	"postCreateCommand":    true,
	"postStartCommand":     true,
	"postAttachCommand":    true,
}

func mergeLayer(merged map[string]json.RawMessage, provenance map[string]string, l layer) {
	for key, val := range l.fields {
		switch {
		case key == "features":
			merged[key] = mergeFeatureFields(merged[key], val)
		case key == "runArgs":
			merged[key] = appendStringArrayFields(merged[key], val)
		case lifecycleCommandKeys[key]:
			merged[key] = val
		default:
			if existing, ok := merged[key]; ok && isObject(existing) && isObject(val) {
				merged[key] = shallowMergeObjects(existing, val)
			} else {
				merged[key] = val
			}
		}
		provenance[key] = l.path
	}
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

func shallowMergeObjects(a, b json.RawMessage) json.RawMessage {
	var am, bm map[string]json.RawMessage
	if err := json.Unmarshal(a, &am); err != nil {
		return b
	}
	if err := json.Unmarshal(b, &bm); err != nil {
		return a
	}
	for k, v := range bm {
		am[k] = v
	}
	out, err := json.Marshal(am)
	if err != nil {
		slog.Warn("failed to re-marshal merged object", "error", err)
		return b
	}
	return out
}

// mergeFeatureFields merges the `features` map by key, with the later
// layer's per-feature options overriding the earlier layer's, per
// §4.1's feature merge semantics.
func mergeFeatureFields(a, b json.RawMessage) json.RawMessage {
	if a == nil {
		return b
	}
	return shallowMergeObjects(a, b)
}

// appendStringArrayFields concatenates two `runArgs`-shaped JSON
// arrays in declaration order.
func appendStringArrayFields(a, b json.RawMessage) json.RawMessage {
	if a == nil {
		return b
	}
	var av, bv []json.RawMessage
	if err := json.Unmarshal(a, &av); err != nil {
		return b
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return a
	}
	out, err := json.Marshal(append(av, bv...))
	if err != nil {
		return b
	}
	return out
}
