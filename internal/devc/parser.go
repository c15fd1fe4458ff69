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
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tailscale/hujson"

	"github.com/devc-cli/devc/internal/clierr"
)

// DefWorkspacePath is the default path to which the context directory
// is mounted inside the container when no workspaceFolder is given.
const DefWorkspacePath string = "/workspace"

//go:embed specs/devContainer.base.schema.json
var devcontainerJSONSchema string

const devcontainerJSONSchemaPath string = "devContainer.base.schema.json"

// Parser holds the information needed to validate a JSON configuration
// file (with comments) against its corresponding JSON Schema.
type Parser struct {
	Filepath      string
	IsValidConfig bool

	defaultValues    map[string]any
	jsonSchema       string
	jsonSchemaPath   string
	standardizedJSON []byte
}

// DevcontainerParser holds metadata about a target devcontainer.json
// file, along with the parsed and (eventually) substituted
// configuration itself.
type DevcontainerParser struct {
	Config         DevcontainerConfig
	DevcontainerID *string

	// Provenance records, for every top-level property actually set,
	// which extends layer (by resolved path, the root file included)
	// supplied its value. Populated by ResolveExtends.
	Provenance map[string]string

	// containerEnv holds the Phase 2 substitution source, set by
	// ProcessContainerSubstitutions once the container environment is
	// known. nil until then, so ExpandEnv falls back to Phase 1 defaults.
	containerEnv *ContainerEnv

	Parser
}

// NewParser returns a Parser targeting the JSON file at configPath.
func NewParser(configPath string) (p *Parser, err error) {
	if configPath, err = filepath.Abs(configPath); err != nil {
		return nil, err
	}
	p = &Parser{
		Filepath:      configPath,
		IsValidConfig: false,
		defaultValues: make(map[string]any),
	}
	if err = p.standardizeJSON(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewDevcontainerParser returns a DevcontainerParser targeting a
// devcontainer.json via filepath.
func NewDevcontainerParser(configPath string) (p *DevcontainerParser, err error) {
	parser, err := NewParser(configPath)
	if err != nil {
		return nil, err
	}
	parser.jsonSchema = devcontainerJSONSchema
	parser.jsonSchemaPath = devcontainerJSONSchemaPath
	return &DevcontainerParser{Parser: *parser}, nil
}

// Validate runs the contents of the target JSON file against a
// snapshot of the corresponding JSON Schema.
//
// A successful validation returns err == nil and sets p.IsValidConfig
// accordingly; until then, p.IsValidConfig should not be considered
// definitive.
func (p *Parser) Validate() error {
	slog.Debug("initializing JSON schema validator", "path", p.Filepath)
	dcSchema, err := jsonschema.UnmarshalJSON(strings.NewReader(p.jsonSchema))
	if err != nil {
		slog.Error("unable to unmarshal embedded JSON schema", "error", err)
		return err
	}
	c := jsonschema.NewCompiler()
	if err = c.AddResource(p.jsonSchemaPath, dcSchema); err != nil {
		slog.Error("unable to add embedded JSON schema as resource", "error", err)
		return err
	}
	sch, err := c.Compile(p.jsonSchemaPath)
	if err != nil {
		slog.Error("unable to compile JSON schema", "error", err)
		return err
	}

	slog.Debug("unmarshalling configuration for validation", "path", p.Filepath)
	valInput, err := jsonschema.UnmarshalJSON(bytes.NewReader(p.standardizedJSON))
	if err != nil {
		slog.Error("failed to unmarshal JSON for validation", "error", err)
		return err
	}

	if err = sch.Validate(valInput); err != nil {
		slog.Error("configuration failed schema validation", "path", p.Filepath, "error", err)
		return err
	}

	p.IsValidConfig = true
	return nil
}

// standardizeJSON converts the contents of the target JSON config,
// which could be JSONC, into standard JSON suitable for validation
// and parsing.
func (p *Parser) standardizeJSON() error {
	slog.Debug("standardizing JSON config contents", "path", p.Filepath)
	file, err := os.Open(p.Filepath)
	if err != nil {
		slog.Error("failed to open JSON config", "error", err, "path", p.Filepath)
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Error("could not close JSON file while standardizing", "error", cerr)
		}
	}()

	fileInput, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read contents of JSON config", "error", err, "path", p.Filepath)
		return err
	}

	if p.standardizedJSON, err = hujson.Standardize(fileInput); err != nil {
		slog.Error("failed to standardize JSON config contents", "error", err, "path", p.Filepath)
		return err
	}
	return nil
}

// Parse unmarshals the contents of the target devcontainer.json into
// Config. It refuses to run unless the file has already been
// confirmed to conform to the JSON Schema via Validate.
//
// Parse performs only the first ("pre-container") substitution pass;
// callers that need containerEnv/containerWorkspaceFolder expansion
// must call ProcessContainerSubstitutions once the container
// environment is known.
func (p *DevcontainerParser) Parse() error {
	if !p.IsValidConfig {
		return errors.New("devcontainer.json flagged invalid")
	}

	if err := p.setDefaultValues(); err != nil {
		slog.Error("encountered an error while setting default values", "error", err)
		return err
	}

	slog.Debug("unmarshalling devcontainer.json", "path", p.Filepath)
	if err := json.Unmarshal(p.standardizedJSON, &p.Config); err != nil {
		slog.Error("failed to unmarshal JSON", "path", p.Filepath, "error", err)
		return err
	}

	if p.Config.RunArgs != nil {
		slog.Warn("devcontainer.json uses runArgs, which is currently unsupported", "runArgs", p.Config.RunArgs)
	}

	if err := p.normalizeValues(); err != nil {
		slog.Error("encountered an error while normalizing values", "error", err)
		return err
	}

	slog.Debug("configuration parsed", "path", p.Filepath)
	return nil
}

// normalizeValues massages a devcontainer.json's values after
// unmarshaling: converting relative paths to absolute/buildable ones,
// applying port-attribute defaults, and expanding phase-1 variables.
func (p *DevcontainerParser) normalizeValues() error {
	slog.Debug("performing value normalization")

	if p.Config.Context == nil {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		p.Config.Context = &cwd
	} else if !filepath.IsAbs(*p.Config.Context) {
		contextPath := filepath.Join(filepath.Dir(p.Filepath), *p.Config.Context)
		*p.Config.Context = contextPath
	}

	if p.Config.DockerFile != nil {
		buildablePath, err := filepath.Rel(*p.Config.Context, filepath.Join(filepath.Dir(p.Filepath), *p.Config.DockerFile))
		if err != nil {
			slog.Error("unable to build relative path", "dockerFile", *p.Config.DockerFile, "error", err)
			return err
		}
		*p.Config.DockerFile = filepath.ToSlash(buildablePath)
	}

	if p.Config.DockerComposeFile != nil {
		composeFiles := make([]string, 0, len(*p.Config.DockerComposeFile))
		for _, compose := range *p.Config.DockerComposeFile {
			buildablePath, err := filepath.Rel(*p.Config.Context, filepath.Join(filepath.Dir(p.Filepath), compose))
			if err != nil {
				slog.Error("unable to build relative path", "dockerComposeFile", compose, "error", err)
				return err
			}
			composeFiles = append(composeFiles, filepath.ToSlash(buildablePath))
		}
		*p.Config.DockerComposeFile = composeFiles
	}

	if len(p.Config.ForwardPorts) > 0 {
		slog.Debug("applying default port attributes")
		if def, ok := p.defaultValues["otherPortsAttributes"].(PortAttributes); ok {
			if err := mergo.Merge(p.Config.OtherPortsAttributes, def); err != nil {
				slog.Error("unable to merge default values for otherPortsAttributes", "error", err)
				return err
			}
		}
		if p.Config.PortsAttributes == nil {
			p.Config.PortsAttributes = map[string]PortAttributes{}
		}
		for _, portIdx := range p.Config.ForwardPorts {
			attrs := p.Config.PortsAttributes[portIdx]
			if err := mergo.Merge(&attrs, p.Config.OtherPortsAttributes); err != nil {
				slog.Error("unable to merge default port attributes", "port", portIdx, "error", err)
				return err
			}
			p.Config.PortsAttributes[portIdx] = attrs
		}
	}

	if p.Config.ContainerEnv != nil {
		slog.Debug("expanding variables", "section", "containerEnv")
		for key, val := range p.Config.ContainerEnv {
			p.Config.ContainerEnv[key] = p.ExpandEnv(val)
		}
	}

	if p.Config.Mounts != nil {
		slog.Debug("expanding variables", "section", "mounts")
		for _, m := range p.Config.Mounts {
			m.Source = p.ExpandEnv(m.Source)
			m.Target = p.ExpandEnv(m.Target)
		}
	}

	// Defaults to true when building from a Dockerfile/image, false when
	// referencing a Compose file.
	if p.Config.OverrideCommand == nil {
		defOverride := p.Config.DockerComposeFile == nil
		p.Config.OverrideCommand = &defOverride
	}

	return nil
}

// setDefaultValues assigns default values to fields computable
// without referencing other not-yet-parsed values.
func (p *DevcontainerParser) setDefaultValues() error {
	slog.Debug("setting up default values")

	defFalse := false
	defTrue := true
	defForwardNotify := OnAutoForwardNotify
	// Not one of the explicitly declared values, but the spec states
	// that implementations should treat unset as "tcp".
	defProtocol := ProtocolTCP
	defWorkspacePath := DefWorkspacePath

	defPortAttributes := PortAttributes{
		Label:            nil,
		Protocol:         &defProtocol,
		OnAutoForward:    &defForwardNotify,
		RequireLocalPort: &defFalse,
		ElevateIfNeeded:  &defFalse,
	}
	p.defaultValues["otherPortsAttributes"] = defPortAttributes

	p.Config.Init = &defFalse
	p.Config.OtherPortsAttributes = &defPortAttributes
	p.Config.PortsAttributes = map[string]PortAttributes{}
	p.Config.Privileged = &defFalse
	p.Config.UpdateRemoteUserUID = &defTrue
	p.Config.WorkspaceFolder = &defWorkspacePath

	if p.Config.ShutdownAction == nil {
		defShutdownAction := ShutdownActionStopContainer
		if p.Config.DockerComposeFile != nil {
			defShutdownAction = ShutdownActionStopCompose
		}
		p.Config.ShutdownAction = &defShutdownAction
	}

	if p.Config.WaitFor == nil {
		defWaitFor := WaitForUpdateContentCommand
		p.Config.WaitFor = &defWaitFor
	}

	return nil
}

// FindConfig implements the discovery rule from §4.1: given a
// workspace folder and an optional explicit path, locate the
// devcontainer.json that governs it.
//
// Discovery order when explicitPath is empty:
// `${workspace}/.devcontainer/devcontainer.json`, then
// `${workspace}/.devcontainer.json`. First match wins.
func FindConfig(workspace, explicitPath string) (string, error) {
	if explicitPath != "" {
		base := filepath.Base(explicitPath)
		if base != "devcontainer.json" && base != ".devcontainer.json" {
			return "", &clierr.InvalidFilename{Path: explicitPath}
		}
		return explicitPath, nil
	}

	candidates := []string{
		filepath.Join(workspace, ".devcontainer", "devcontainer.json"),
		filepath.Join(workspace, ".devcontainer.json"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no devcontainer.json found in %s", clierr.ErrConfigNotFound, workspace)
}
