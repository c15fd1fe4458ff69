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

// Package cli wires devc's subcommands together: configuration
// resolution, the container runtime, Feature installation, the
// lifecycle engine, and the OCI client, reading flags the way the
// pack's CLI tooling does and emitting the stable JSON result
// documents or human-readable text described in the external
// interfaces.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/golang-cz/devslog"
	"github.com/pborman/options"

	"github.com/devc-cli/devc/internal/clierr"
	"github.com/devc-cli/devc/internal/redact"
)

// PrivilegedPortOffset is added to privileged port bindings encountered
// while starting a container, to raise them past 1023.
const PrivilegedPortOffset uint16 = 8000

// VersionText is the message printed when version information is
// requested.
var VersionText = heredoc.Doc(`
    %s, version %s
    A command-line implementation of the Development Containers specification.

    License GPLv3+: GNU GPL version 3 or later <http://gnu.org/licenses/gpl.html>

    This is free software; you are free to change and redistribute it.
    There is NO WARRANTY, to the extent permitted by law.
`)

// Options is the flat set of flags shared across every subcommand; each
// subcommand consults only the fields relevant to it. Modeled on the
// CLI surface enumerated in the external interfaces.
type Options struct {
	Help    options.Help  `getopt:"-h --help display this help message"`
	Config  options.Flags `getopt:"-c --config=PATH path to rc file"`
	Debug   bool          `getopt:"-d --debug enable debug messages (implies -v)"`
	Verbose bool          `getopt:"-v --verbose enable diagnostic messages"`
	Version bool          `getopt:"--version display version information then exit"`

	// Selectors.
	WorkspaceFolder string   `getopt:"--workspace-folder=PATH the local workspace folder to operate on"`
	ConfigPath      string   `getopt:"--config-path=PATH explicit path to a devcontainer.json"`
	OverrideConfig  string   `getopt:"--override-config=PATH devcontainer.json overriding the resolved one"`
	ContainerID     string   `getopt:"--container-id=ID operate on an already-running container by id"`
	IDLabel         []string `getopt:"--id-label=NAME=VALUE container label selector, may repeat; accepted but not read by any subcommand"`

	// Lifecycle controls.
	SkipPostCreate          bool `getopt:"--skip-post-create skip postCreate, postStart, postAttach, and dotfiles"`
	SkipPostAttach          bool `getopt:"--skip-post-attach skip only postAttach"`
	SkipNonBlockingCommands bool `getopt:"--skip-non-blocking-commands stop after the waitFor phase"`
	Prebuild                bool `getopt:"--prebuild force a rerun of updateContentCommand, then stop"`
	StopForPersonalization  bool `getopt:"--stop-for-personalization stop after dotfiles personalization"`

	// Environment.
	RemoteEnv            []string `getopt:"--remote-env=NAME=VALUE set a remote environment variable, may repeat"`
	SecretsFile          string   `getopt:"--secrets-file=PATH file of KEY=VALUE secret lines to redact"`
	DefaultUserEnvProbe  string   `getopt:"--default-user-env-probe=MODE environment probe mode when devcontainer.json doesn't set one"`

	// Caching.
	ContainerDataFolder        string `getopt:"--container-data-folder=PATH in-container directory for lifecycle markers"`
	ContainerSessionDataFolder string `getopt:"--container-session-data-folder=PATH in-container directory for session-scoped state; accepted but not read by any subcommand"`

	// Runtime.
	Socket       string `getopt:"-s --socket=ADDR URI to the Podman/Docker socket"`
	PlatformArch string `getopt:"-a --platform-arch target architecture for the container; defaults to amd64"`
	PlatformOS   string `getopt:"-o --platform-os target operating system for the container; defaults to linux"`
	PortOffset   uint16 `getopt:"-p --port-offset=UINT number to offset privileged ports by"`

	// Dotfiles.
	DotfilesRepository     string `getopt:"--dotfiles-repository=URL dotfiles repository to clone into the container"`
	DotfilesInstallCommand string `getopt:"--dotfiles-install-command=CMD override the detected dotfiles install command"`
	DotfilesTargetPath     string `getopt:"--dotfiles-target-path=PATH in-container clone target for dotfiles"`

	// Features.
	AdditionalFeatures string   `getopt:"--additional-features=JSON extra Features merged in ahead of devcontainer.json's own"`
	FeatureInstallOrder []string `getopt:"--feature-install-order=ID Feature install order tiebreak, may repeat; accepted but not read by any subcommand"`
	PreferCLIFeatures  bool     `getopt:"--prefer-cli-features let --additional-features win ties against devcontainer.json"`

	// Registry (features/templates publish, outdated).
	Registry  string `getopt:"--registry=HOST OCI registry host to publish to or query"`
	Namespace string `getopt:"--namespace=PATH OCI repository namespace to publish under"`

	// Build outputs.
	Push   bool   `getopt:"--push push the built image to its registry after a successful build"`
	Output string `getopt:"--output=PATH write the built image as a tar archive to PATH instead of pushing"`

	// Redaction and output shape.
	NoRedact                  bool   `getopt:"--no-redact disable secret redaction in command output"`
	OutputFormat              string `getopt:"--output-format=FORMAT text or json"`
	IncludeConfiguration      bool   `getopt:"--include-configuration include the resolved configuration in the result document"`
	IncludeMergedConfiguration bool  `getopt:"--include-merged-configuration include the merged configuration in the result document"`
}

// Command holds the state shared by every subcommand invocation.
type Command struct {
	Arguments []string
	Options   Options

	redactor *redact.Registry
}

// NewCommand parses arguments, dispatches to the named subcommand, and
// returns the process exit code.
func NewCommand(appName, appVersion string) clierr.ExitCode {
	var cmd Command
	cmd.parseOptions(appName, appVersion)

	if len(cmd.Arguments) == 0 {
		fmt.Fprintln(os.Stderr, "devc: a subcommand is required (up, build, exec, run-user-commands, read-configuration, outdated, features, templates)")
		return clierr.ExitFatal
	}

	cmd.redactor = redact.NewRegistry(cmd.secretsFromFile())

	sub, rest := cmd.Arguments[0], cmd.Arguments[1:]
	switch sub {
	case "up":
		return cmd.runUp(rest)
	case "build":
		return cmd.runBuild(rest)
	case "exec":
		return cmd.runExec(rest)
	case "run-user-commands":
		return cmd.runUserCommands(rest)
	case "read-configuration":
		return cmd.runReadConfiguration(rest)
	case "outdated":
		return cmd.runOutdated(rest)
	case "features":
		return cmd.runFeatures(rest)
	case "templates":
		return cmd.runTemplates(rest)
	default:
		fmt.Fprintf(os.Stderr, "devc: unknown subcommand %q\n", sub)
		return clierr.ExitFatal
	}
}

// parseOptions parses the command-line options and configures logging,
// mirroring the devslog-based setup used throughout the rest of this
// codebase.
func (c *Command) parseOptions(appName, appVersion string) {
	options.SetDisplayWidth(80)
	options.SetHelpColumn(40)
	options.SetParameters("<subcommand> [flags]")
	options.Register(&c.Options)
	c.setFlagsFile(appName)
	c.Arguments = options.Parse()

	if c.Options.Version {
		fmt.Printf(VersionText, appName, appVersion)
		os.Exit(int(clierr.ExitSuccess))
	}

	logLevel := new(slog.LevelVar)
	switch {
	case c.Options.Debug:
		logLevel.Set(slog.LevelDebug)
	case c.Options.Verbose:
		logLevel.Set(slog.LevelInfo)
	default:
		logLevel.Set(slog.LevelWarn)
	}

	slog.SetDefault(slog.New(devslog.NewHandler(os.Stderr, &devslog.Options{
		HandlerOptions: &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
		},
		NewLineAfterLog:   false,
		SortKeys:          true,
		StringIndentation: true,
	})))

	if c.Options.PlatformArch == "" {
		c.Options.PlatformArch = "amd64"
	}
	if c.Options.PlatformOS == "" {
		c.Options.PlatformOS = "linux"
	}
	if c.Options.PortOffset == 0 {
		c.Options.PortOffset = PrivilegedPortOffset
	}
	if c.Options.OutputFormat == "" {
		c.Options.OutputFormat = "text"
	}
	if c.Options.WorkspaceFolder == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.Options.WorkspaceFolder = cwd
		}
	}
}

// setFlagsFile goes through a list of supported paths for the flags
// file and assigns the first valid hit for parsing.
func (c *Command) setFlagsFile(appName string) {
	defConfigPaths := []string{
		os.ExpandEnv(fmt.Sprintf("${USERPROFILE}/.%src", appName)),
		os.ExpandEnv(fmt.Sprintf("${XDG_CONFIG_HOME}/%src", appName)),
		os.ExpandEnv(fmt.Sprintf("${HOME}/.config/%src", appName)),
		os.ExpandEnv(fmt.Sprintf("${HOME}/.%src", appName)),
	}
	for _, defConfigPath := range defConfigPaths {
		if _, err := os.Stat(defConfigPath); os.IsNotExist(err) {
			continue
		}
		if err := c.Options.Config.Set(fmt.Sprintf("?%s", defConfigPath), nil); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(int(clierr.ExitFatal))
		}
	}
}

// privilegedPortElevator is the function handed to runtime.Client for
// privileged host port bindings.
func (c *Command) privilegedPortElevator(port uint16) uint16 {
	return port + c.Options.PortOffset
}

// jsonMode reports whether the command should emit a JSON result
// document on stdout instead of human-readable text.
func (c *Command) jsonMode() bool {
	return c.Options.OutputFormat == "json"
}

// emit writes doc as the command's single stdout JSON document in JSON
// mode, or renders fallback as plain text otherwise. Secret redaction
// is applied to both unless --no-redact was given.
func (c *Command) emit(doc any, fallback string) error {
	var out []byte
	var err error
	if c.jsonMode() {
		out, err = marshalJSON(doc)
		if err != nil {
			return err
		}
		out = append(out, '\n')
	} else {
		out = []byte(fallback + "\n")
	}
	if !c.Options.NoRedact {
		out = c.redactor.Redact(out)
	}
	_, err = os.Stdout.Write(out)
	return err
}

// emitError writes err as the standard error document and returns the
// exit code the process should terminate with.
func (c *Command) emitError(err error) clierr.ExitCode {
	doc := clierr.ToDocument(err)
	var out []byte
	if c.jsonMode() {
		var merr error
		out, merr = marshalJSON(doc)
		if merr == nil {
			out = append(out, '\n')
		}
	} else {
		out = []byte(doc.Message + "\n")
	}
	if !c.Options.NoRedact && out != nil {
		out = c.redactor.Redact(out)
	}
	w := os.Stderr
	if c.jsonMode() {
		w = os.Stdout
	}
	w.Write(out)
	return clierr.ExitFatal
}

// secretsFromFile loads name/value pairs from --secrets-file, if given,
// for registration with the redaction Registry.
func (c *Command) secretsFromFile() map[string]string {
	if c.Options.SecretsFile == "" {
		return nil
	}
	secrets, err := loadSecretsFile(c.Options.SecretsFile)
	if err != nil {
		slog.Warn("could not load secrets file", "path", c.Options.SecretsFile, "error", err)
		return nil
	}
	return secrets
}
