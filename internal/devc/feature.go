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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

//go:embed specs/devContainerFeature.schema.json
var devcontainerFeatureJSONSchema string

const devcontainerFeatureJSONSchemaPath string = "devContainerFeature.schema.json"

// DevcontainerFeatureConfig represents the contents of a
// devcontainer-feature.json file.
type DevcontainerFeatureConfig struct {
	ID               string                    `json:"id"`
	Version          string                    `json:"version"`
	Name             *string                   `json:"name,omitempty"`
	DocumentationURL *string                   `json:"documentationURL,omitempty"`
	LicenseURL       *string                   `json:"licenseURL,omitempty"`
	Description      *string                   `json:"description,omitempty"`
	Options          map[string]FeatureOption  `json:"options,omitempty"`
	ContainerEnv     EnvVarMap                 `json:"containerEnv,omitempty"`
	Privileged       *bool                     `json:"privileged,omitempty"`
	Init             *bool                     `json:"init,omitempty"`
	CapAdd           []string                  `json:"capAdd,omitempty"`
	SecurityOpt      []string                  `json:"securityOpt,omitempty"`
	Entrypoint       *string                   `json:"entrypoint,omitempty"`
	InstallsAfter    []string                  `json:"installsAfter,omitempty"`
	DependsOn        FeatureMap                `json:"dependsOn,omitempty"`
	Customizations   map[string]any            `json:"customizations,omitempty"`
	Mounts           []*MobyMount              `json:"mounts,omitempty"`
}

// FeatureOptionType names the accepted primitive type of a Feature
// option.
type FeatureOptionType string

// Supported values for FeatureOptionType.
const (
	FeatureOptionTypeBoolean FeatureOptionType = "boolean"
	FeatureOptionTypeString  FeatureOptionType = "string"
)

// FeatureOption describes one entry of a Feature's `options` map.
type FeatureOption struct {
	Type        FeatureOptionType `json:"type"`
	Default     *FeatureValue     `json:"default,omitempty"`
	Value       *FeatureValue     `json:"-"`
	Description *string           `json:"description,omitempty"`
	Enum        []string          `json:"enum,omitempty"`
	Proposals   []string          `json:"proposals,omitempty"`
}

// SetOption records the effective value supplied for this option by
// the consuming devcontainer.json, distinct from the Feature's own
// declared Default.
func (o *FeatureOption) SetOption(val *FeatureValue) {
	o.Value = val
}

// EffectiveValue returns the option's explicitly set Value if present,
// otherwise its Default.
func (o *FeatureOption) EffectiveValue() *FeatureValue {
	if o.Value != nil {
		return o.Value
	}
	return o.Default
}

// DevcontainerFeatureParser parses and validates a
// devcontainer-feature.json file.
type DevcontainerFeatureParser struct {
	Config DevcontainerFeatureConfig
	Parent *DevcontainerParser

	Parser
}

// NewDevcontainerFeatureParser returns a parser targeting the
// devcontainer-feature.json at configPath.
func NewDevcontainerFeatureParser(configPath string, parent *DevcontainerParser) (*DevcontainerFeatureParser, error) {
	parser, err := NewParser(configPath)
	if err != nil {
		return nil, err
	}
	parser.jsonSchema = devcontainerFeatureJSONSchema
	parser.jsonSchemaPath = devcontainerFeatureJSONSchemaPath
	return &DevcontainerFeatureParser{
		Parser: *parser,
		Parent: parent,
	}, nil
}

// Parse unmarshals the contents of the target devcontainer-feature.json
// into Config. Refuses to run unless Validate has already succeeded.
func (p *DevcontainerFeatureParser) Parse() error {
	if !p.IsValidConfig {
		return errors.New("devcontainer-feature.json flagged invalid")
	}

	slog.Debug("unmarshalling devcontainer-feature.json", "path", p.Filepath)
	if err := json.Unmarshal(p.standardizedJSON, &p.Config); err != nil {
		slog.Error("failed to unmarshal JSON", "path", p.Filepath, "error", err)
		return err
	}

	slog.Debug("feature configuration parsed", "id", p.Config.ID, "version", p.Config.Version)
	return nil
}

// SetOption records the value a consuming devcontainer.json supplied
// for one of this Feature's declared options, by name.
func (p *DevcontainerFeatureParser) SetOption(name string, val *FeatureValue) error {
	opt, ok := p.Config.Options[name]
	if !ok {
		return fmt.Errorf("feature %s declares no option named %q", p.Config.ID, name)
	}
	opt.SetOption(val)
	p.Config.Options[name] = opt
	return nil
}
