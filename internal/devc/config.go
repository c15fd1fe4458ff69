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

// Package devc houses a validating parser and configuration resolver
// for devcontainer.json files.
package devc

import (
	"github.com/moby/moby/api/types/mount"
)

// DevcontainerConfig represents the contents of a devcontainer.json
// file after unmarshaling. Fields are pointers so the resolver can
// tell "absent" from "zero value" when merging extends layers and
// applying defaults.
//
// Initially shaped against
// https://raw.githubusercontent.com/devcontainers/spec/main/schemas/devContainer.base.schema.json
type DevcontainerConfig struct {
	// Docker build-related options.
	Build *BuildOptions `json:"build,omitempty"`
	// The location of the context folder for building the Docker image. The path is relative to
	// the folder containing the `devcontainer.json` file.
	Context *string `json:"context,omitempty"`
	// The location of the Dockerfile that defines the contents of the container. The path is
	// relative to the folder containing the `devcontainer.json` file.
	DockerFile *string `json:"dockerFile,omitempty"`
	// The docker image that will be used to create the container.
	Image *string `json:"image,omitempty"`
	// Application ports that are exposed by the container.
	AppPort *AppPort `json:"appPort,omitempty"`
	// Whether to overwrite the command specified in the image. Defaults to
	// false when referencing a Compose project; otherwise, defaults to true.
	OverrideCommand *bool `json:"overrideCommand,omitempty"`
	// The arguments required when starting in the container.
	RunArgs []string `json:"runArgs,omitempty"`
	// Action to take when the user disconnects from the container.
	ShutdownAction *ShutdownAction `json:"shutdownAction,omitempty"`
	// The path of the workspace folder inside the container.
	WorkspaceFolder *string `json:"workspaceFolder,omitempty"`
	// The --mount parameter for docker run.
	WorkspaceMount *string `json:"workspaceMount,omitempty"`
	// The name of the docker-compose file(s) used to start the services.
	DockerComposeFile *DockerComposeFile `json:"dockerComposeFile,omitempty"`
	// An array of services that should be started and stopped.
	RunServices []string `json:"runServices,omitempty"`
	// The service you want to work on.
	Service *string `json:"service,omitempty"`
	// The JSON schema of the `devcontainer.json` file.
	Schema *string `json:"$schema,omitempty"`
	// One or more config files this configuration extends.
	Extends *ExtendsRef `json:"extends,omitempty"`
	// Passes docker capabilities to include when creating the dev container.
	CapAdd []string `json:"capAdd,omitempty"`
	// Container-wide environment variables.
	ContainerEnv EnvVarMap `json:"containerEnv,omitempty"`
	// The user the container will be started with.
	ContainerUser *string `json:"containerUser,omitempty"`
	// Tool-specific configuration blobs.
	Customizations map[string]any `json:"customizations,omitempty"`
	// Features to add to the dev container.
	Features FeatureMap `json:"features,omitempty"`
	// Ports forwarded from the container to the local machine.
	ForwardPorts ForwardPorts `json:"forwardPorts,omitempty"`
	// Host hardware requirements.
	HostRequirements *HostRequirements `json:"hostRequirements,omitempty"`
	// Passes the --init flag when creating the dev container.
	Init *bool `json:"init,omitempty"`
	// A command to run locally before anything else.
	InitializeCommand *LifecycleCommand `json:"initializeCommand,omitempty"`
	// Mount points to set up when creating the container.
	Mounts []*MobyMount `json:"mounts,omitempty"`
	// A name for the dev container which can be displayed to the user.
	Name *string `json:"name,omitempty"`
	// A command to run when creating the container.
	OnCreateCommand      *LifecycleCommand `json:"onCreateCommand,omitempty"`
	OtherPortsAttributes *PortAttributes   `json:"otherPortsAttributes,omitempty"`
	// Declared Feature install order, used as a tiebreak for installsAfter.
	OverrideFeatureInstallOrder []string                  `json:"overrideFeatureInstallOrder,omitempty"`
	PortsAttributes             map[string]PortAttributes `json:"portsAttributes,omitempty"`
	// A command to run when attaching to the container.
	PostAttachCommand *LifecycleCommand `json:"postAttachCommand,omitempty"`
	// A command to run after creating the container.
	PostCreateCommand *LifecycleCommand `json:"postCreateCommand,omitempty"`
	// A command to run after starting the container.
	PostStartCommand *LifecycleCommand `json:"postStartCommand,omitempty"`
	// Passes the --privileged flag when creating the dev container.
	Privileged *bool `json:"privileged,omitempty"`
	// Remote environment variables set for processes spawned in the container.
	RemoteEnv map[string]*string `json:"remoteEnv,omitempty"`
	// The username used for spawning processes in the container.
	RemoteUser *string `json:"remoteUser,omitempty"`
	// Recommended secrets for this dev container.
	Secrets *Secrets `json:"secrets,omitempty"`
	// Passes docker security options to include when creating the dev container.
	SecurityOpt []string `json:"securityOpt,omitempty"`
	// A command to run when creating the container, rerun on content update.
	UpdateContentCommand *LifecycleCommand `json:"updateContentCommand,omitempty"`
	// Whether the container's user should be updated to the local user's UID/GID.
	UpdateRemoteUserUID *bool `json:"updateRemoteUserUID,omitempty"`
	// Which environment probe mode to run.
	UserEnvProbe *UserEnvProbe `json:"userEnvProbe,omitempty"`
	// The phase to wait for before returning control to the caller.
	WaitFor *WaitFor `json:"waitFor,omitempty"`
	// Dotfiles personalization settings.
	Dotfiles *DotfilesConfig `json:"dotfiles,omitempty"`
}

// ExtendsRef is either a single reference or an ordered list of
// references to other devcontainer.json files this one extends.
type ExtendsRef struct {
	StringArray []string
}

// DotfilesConfig describes the optional dotfiles personalization step
// run after postCreateCommand.
type DotfilesConfig struct {
	Repository     *string `json:"repository,omitempty"`
	InstallCommand *string `json:"installCommand,omitempty"`
	TargetPath     *string `json:"targetPath,omitempty"`
}

// BuildOptions represents Docker build-related options.
type BuildOptions struct {
	Context    *string           `json:"context,omitempty"`
	Dockerfile *string           `json:"dockerfile,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
	CacheFrom  *CacheFrom        `json:"cacheFrom,omitempty"`
	Options    []string          `json:"options,omitempty"`
	Target     *string           `json:"target,omitempty"`
}

// DockerComposeFile contains either a path or an ordered list of paths
// to Docker Compose files relative to the devcontainer.json file.
type DockerComposeFile []string

// FeatureMap maps a Feature identifier to its declared option values.
type FeatureMap map[string]FeatureValues

// FeatureValues maps a Feature's option name to its declared value.
type FeatureValues map[string]FeatureValue

// FeatureValue is a scalar Feature option value: either a string or a
// boolean. Shorthand string declarations (`"feature": "1.0"`) are
// expanded by UnmarshalJSON on FeatureValues into {"version": "1.0"}
// per the containers.dev spec.
type FeatureValue struct {
	String *string
	Bool   *bool
}

// HostRequirements represent hardware requirements of the devcontainer.
type HostRequirements struct {
	Cpus    *int64    `json:"cpus,omitempty"`
	GPU     *GPUUnion `json:"gpu,omitempty"`
	Memory  *string   `json:"memory,omitempty"`
	Storage *string   `json:"storage,omitempty"`
}

// GPUUnion is a union struct representing possible input for the GPU
// host requirement.
type GPUUnion struct {
	Bool     *bool
	Enum     *GPUEnum
	GPUClass *GPUClass
}

// GPUEnum represents the possible string values for the GPU field.
type GPUEnum string

// Supported values for GPUEnum.
const (
	GPUOptional GPUEnum = "optional"
)

// GPUClass configures detailed GPU requirements.
type GPUClass struct {
	Cores  *int64  `json:"cores,omitempty"`
	Memory *string `json:"memory,omitempty"`
}

// PortAttributes represent configuration applied to a port binding
// named in forwardPorts, appPort, or otherPortsAttributes.
type PortAttributes struct {
	ElevateIfNeeded  *bool          `json:"elevateIfNeeded,omitempty"`
	Label            *string        `json:"label,omitempty"`
	OnAutoForward    *OnAutoForward `json:"onAutoForward,omitempty"`
	Protocol         *Protocol      `json:"protocol,omitempty"`
	RequireLocalPort *bool          `json:"requireLocalPort,omitempty"`
}

// Secrets represent recommended secrets for this dev container.
type Secrets map[string]SecretMetadata

// SecretMetadata is the optional metadata attached to a recommended
// secret environment variable key.
type SecretMetadata struct {
	Description *string `json:"description,omitempty"`
}

// OnAutoForward defines the action taken when a port is discovered for
// automatic forwarding.
type OnAutoForward string

// Supported values for OnAutoForward.
const (
	OnAutoForwardIgnore      OnAutoForward = "ignore"
	OnAutoForwardNotify      OnAutoForward = "notify"
	OnAutoForwardOpenBrowser OnAutoForward = "openBrowser"
	OnAutoForwardOpenPreview OnAutoForward = "openPreview"
	OnAutoForwardSilent      OnAutoForward = "silent"
)

// Protocol specifies the protocol used when forwarding a given port.
type Protocol string

// Supported values for Protocol.
const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	// Not one of the explicitly declared schema values, but the spec
	// states implementations should behave as though unset means "tcp".
	ProtocolTCP Protocol = "tcp"
)

// ShutdownAction represents the action to take when the user
// disconnects from the container in their editor.
type ShutdownAction string

// Supported values for ShutdownAction.
const (
	ShutdownActionNone          ShutdownAction = "none"
	ShutdownActionStopCompose   ShutdownAction = "stopCompose"
	ShutdownActionStopContainer ShutdownAction = "stopContainer"
)

// UserEnvProbe specifies the environment probe mode to run.
type UserEnvProbe string

// Supported values for UserEnvProbe.
const (
	UserEnvProbeNone                  UserEnvProbe = "none"
	UserEnvProbeLoginShell            UserEnvProbe = "loginShell"
	UserEnvProbeInteractiveShell      UserEnvProbe = "interactiveShell"
	UserEnvProbeLoginInteractiveShell UserEnvProbe = "loginInteractiveShell"
)

// WaitFor represents the last phase that blocks the CLI's success
// return, as named in the devcontainer.json's "waitFor" property.
type WaitFor string

// Supported values for WaitFor.
const (
	WaitForInitializeCommand    WaitFor = "initializeCommand"
	WaitForOnCreateCommand      WaitFor = "onCreateCommand"
	WaitForUpdateContentCommand WaitFor = "updateContentCommand"
	WaitForPostCreateCommand    WaitFor = "postCreateCommand"
	WaitForPostStartCommand     WaitFor = "postStartCommand"
)

// phaseOrder lists every lifecycle phase in fixed execution order,
// including the host-side initialize phase.
var phaseOrder = []WaitFor{
	WaitForInitializeCommand,
	WaitForOnCreateCommand,
	WaitForUpdateContentCommand,
	WaitForPostCreateCommand,
	WaitForPostStartCommand,
}

// Index returns the phase's 0-based ordinal in the fixed phase order,
// or -1 if w does not name a known phase.
func (w WaitFor) Index() int {
	for i, p := range phaseOrder {
		if p == w {
			return i
		}
	}
	return -1
}

// AppPort is a list of ports exposed by the container; elements may be
// a bare port number or a "host:port" string.
type AppPort []string

// CacheFrom specifies the image(s) to consider as a build cache.
type CacheFrom struct {
	String      *string
	StringArray []string
}

// ForwardPorts is a list of ports forwarded from the container to the
// local machine.
type ForwardPorts []string

// CommandBase represents the scalar or argv forms a lifecycle command
// may take.
type CommandBase struct {
	String      *string
	StringArray []string
}

// LifecycleCommand represents a lifecycle command, which may be a
// scalar string (run through a shell), an argv array (run without a
// shell), or a map of named sub-commands run concurrently.
type LifecycleCommand struct {
	CommandBase
	ParallelCommands *map[string]CommandBase
}

// IsEmpty reports whether no command form was populated.
func (l *LifecycleCommand) IsEmpty() bool {
	if l == nil {
		return true
	}
	return l.String == nil && len(l.StringArray) == 0 && l.ParallelCommands == nil
}

// MobyMount is a thin wrapper around the Moby Mount struct so a custom
// UnmarshalJSON can accept the devcontainer spec's struct, long-form
// CSV string, and short-form string mount syntaxes.
type MobyMount mount.Mount

// EnvVarMap is a simple string-keyed environment variable table, used
// for both containerEnv and the resolved output of variable
// substitution.
type EnvVarMap map[string]string
