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
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/devc-cli/devc/internal/devc"
)

var (
	reNonWord    = regexp.MustCompile(`[^\w]`)
	reLeadDigits = regexp.MustCompile(`^[\d_]+`)
)

// InstallScriptPath returns the path (inside the Feature's staged
// directory) to the Feature's install.sh entry point.
func (inst *Installer) InstallScriptPath(featureID string) (string, error) {
	parser, ok := inst.parsersByID[featureID]
	if !ok {
		return "", fmt.Errorf("feature not prepared: %s", featureID)
	}
	return filepath.Join(filepath.Dir(parser.Filepath), "install.sh"), nil
}

// FeatureEnv computes the environment variables an install.sh script
// expects its option values under: each option name uppercased, with
// every non-word character replaced by "_" and a leading run of
// digits/underscores replaced by a single "_", per
// https://containers.dev/implementors/features/#option-resolution.
func (inst *Installer) FeatureEnv(featureID string) (devc.EnvVarMap, error) {
	parser, ok := inst.parsersByID[featureID]
	if !ok {
		return nil, fmt.Errorf("feature not prepared: %s", featureID)
	}

	env := devc.EnvVarMap{}
	for optName, opt := range parser.Config.Options {
		key := reLeadDigits.ReplaceAllLiteralString(reNonWord.ReplaceAllLiteralString(optName, "_"), "_")
		key = strings.ToUpper(key)

		val := opt.EffectiveValue()
		if val == nil {
			continue
		}
		switch opt.Type {
		case devc.FeatureOptionTypeBoolean:
			if val.Bool != nil {
				env[key] = strconv.FormatBool(*val.Bool)
			}
		case devc.FeatureOptionTypeString:
			if val.String != nil {
				env[key] = *val.String
			}
		}
	}
	return env, nil
}
