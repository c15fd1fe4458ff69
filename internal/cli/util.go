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

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/devc-cli/devc/internal/devc"
)

func marshalJSON(doc any) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// loadSecretsFile reads secret name/value pairs from path, for
// --secrets-file: one KEY=VALUE per line. Blank lines, lines starting
// with "#" and lines without "=" are skipped.
func loadSecretsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	secrets := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, value, ok := strings.Cut(line, "="); ok {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// parseKeyValuePairs splits a list of "NAME=VALUE" strings into a map,
// used for --remote-env.
func parseKeyValuePairs(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[name] = value
	}
	return out
}

// parseRemoteEnv turns --remote-env values into an EnvVarMap.
func parseRemoteEnv(pairs []string) devc.EnvVarMap {
	return devc.EnvVarMap(parseKeyValuePairs(pairs))
}

// parseAdditionalFeatures decodes --additional-features's JSON object
// form into a FeatureMap, returning an empty map on an empty or
// unparsable value.
func parseAdditionalFeatures(raw string) devc.FeatureMap {
	if raw == "" {
		return devc.FeatureMap{}
	}
	var fm devc.FeatureMap
	if err := json.Unmarshal([]byte(raw), &fm); err != nil {
		return devc.FeatureMap{}
	}
	return fm
}

// mergeFeatureMaps layers extra over base. When preferExtra is true,
// keys present in both take extra's value; otherwise base wins.
func mergeFeatureMaps(base, extra devc.FeatureMap, preferExtra bool) devc.FeatureMap {
	merged := devc.FeatureMap{}
	for id, vals := range base {
		merged[id] = vals
	}
	for id, vals := range extra {
		if _, exists := merged[id]; !exists || preferExtra {
			merged[id] = vals
		}
	}
	return merged
}

// resolveConfigPath applies the --config-path / --workspace-folder
// selection rule, falling back to devc.FindConfig's discovery order.
func resolveConfigPath(workspaceFolder, explicitPath string) (string, error) {
	return devc.FindConfig(workspaceFolder, explicitPath)
}

func userEnvProbeFromFlag(value string) *devc.UserEnvProbe {
	if value == "" {
		return nil
	}
	mode := devc.UserEnvProbe(value)
	return &mode
}

func applyDotfilesOverrides(cfg **devc.DotfilesConfig, repo, install, target string) {
	if repo == "" && install == "" && target == "" {
		return
	}
	if *cfg == nil {
		*cfg = &devc.DotfilesConfig{}
	}
	if repo != "" {
		(*cfg).Repository = &repo
	}
	if install != "" {
		(*cfg).InstallCommand = &install
	}
	if target != "" {
		(*cfg).TargetPath = &target
	}
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
