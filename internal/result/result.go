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

// Package result assembles the stable JSON success documents each
// subcommand emits on stdout in --output-format json mode, per §6 of
// the specification.
package result

import (
	"encoding/json"

	"github.com/devc-cli/devc/internal/engine"
	"github.com/devc-cli/devc/internal/features"
	"github.com/devc-cli/devc/internal/ociclient"
)

// Up is the success document for the `up` subcommand.
type Up struct {
	Outcome               string `json:"outcome"`
	ContainerID           string `json:"containerId"`
	ComposeProjectName    string `json:"composeProjectName,omitempty"`
	RemoteUser            string `json:"remoteUser"`
	RemoteWorkspaceFolder string `json:"remoteWorkspaceFolder"`
	Configuration         any    `json:"configuration,omitempty"`
	MergedConfiguration   any    `json:"mergedConfiguration,omitempty"`
}

// NewUp builds the `up` success document.
func NewUp(containerID, composeProjectName, remoteUser, remoteWorkspaceFolder string, configuration, mergedConfiguration any) Up {
	return Up{
		Outcome:               "success",
		ContainerID:           containerID,
		ComposeProjectName:    composeProjectName,
		RemoteUser:            remoteUser,
		RemoteWorkspaceFolder: remoteWorkspaceFolder,
		Configuration:         configuration,
		MergedConfiguration:   mergedConfiguration,
	}
}

// RunUserCommands is the success document for the `run-user-commands`
// subcommand.
type RunUserCommands struct {
	Outcome string        `json:"outcome"`
	Result  engine.Result `json:"result"`
}

// NewRunUserCommands builds the `run-user-commands` success document.
func NewRunUserCommands(r engine.Result) RunUserCommands {
	return RunUserCommands{Outcome: "success", Result: r}
}

// Build is the success document for the `build` subcommand.
type Build struct {
	Outcome    string `json:"outcome"`
	ImageName  any    `json:"imageName"`
	Pushed     *bool  `json:"pushed,omitempty"`
	ExportPath string `json:"exportPath,omitempty"`
}

// NewBuild builds the `build` success document. imageName is either a
// single string or a []string, per §6.
func NewBuild(imageName any, pushed *bool, exportPath string) Build {
	return Build{Outcome: "success", ImageName: imageName, Pushed: pushed, ExportPath: exportPath}
}

// Outdated is the success document for the `outdated` subcommand.
type Outdated struct {
	Features map[string]features.VersionReport `json:"features"`
}

// NewOutdated builds the `outdated` success document.
func NewOutdated(reports map[string]features.VersionReport) Outdated {
	return Outdated{Features: reports}
}

// PublishedFeature is one entry of the `features publish` success
// document's "features" array.
type PublishedFeature struct {
	FeatureID     string   `json:"featureId"`
	Version       string   `json:"version"`
	Digest        string   `json:"digest"`
	PublishedTags []string `json:"publishedTags"`
	SkippedTags   []string `json:"skippedTags"`
	MovedLatest   bool     `json:"movedLatest"`
	Registry      string   `json:"registry"`
	Namespace     string   `json:"namespace"`
}

// FeaturesPublish is the success document for the `features publish`
// subcommand.
type FeaturesPublish struct {
	Features   []PublishedFeature `json:"features"`
	Collection *collectionDigest  `json:"collection,omitempty"`
	Summary    publishSummary     `json:"summary"`
}

type collectionDigest struct {
	Digest string `json:"digest"`
}

type publishSummary struct {
	Features      int `json:"features"`
	PublishedTags int `json:"publishedTags"`
	SkippedTags   int `json:"skippedTags"`
}

// NewFeaturesPublish builds the `features publish` success document
// from one PublishedFeature per published Feature, plus an optional
// collection manifest digest.
func NewFeaturesPublish(published []PublishedFeature, collectionDigestValue string) FeaturesPublish {
	doc := FeaturesPublish{Features: published}
	if collectionDigestValue != "" {
		doc.Collection = &collectionDigest{Digest: collectionDigestValue}
	}
	for _, f := range published {
		doc.Summary.Features++
		doc.Summary.PublishedTags += len(f.PublishedTags)
		doc.Summary.SkippedTags += len(f.SkippedTags)
	}
	return doc
}

// PublishedFeatureFrom adapts an ociclient.PushResult plus the
// identifying metadata the OCI client doesn't itself track into a
// PublishedFeature document entry.
func PublishedFeatureFrom(featureID, version, registry, namespace string, pr *ociclient.PushResult) PublishedFeature {
	return PublishedFeature{
		FeatureID:     featureID,
		Version:       version,
		Digest:        pr.Digest,
		PublishedTags: pr.PublishedTags,
		SkippedTags:   pr.SkippedTags,
		MovedLatest:   pr.MovedLatest,
		Registry:      registry,
		Namespace:     namespace,
	}
}

// Marshal renders a document as indented JSON, suitable for the single
// stdout write a JSON-mode subcommand makes.
func Marshal(doc any) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
