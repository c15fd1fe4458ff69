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

package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	compose "github.com/compose-spec/compose-go/cli"
	composetypes "github.com/compose-spec/compose-go/types"
	"github.com/heimdalr/dag"
	"github.com/moby/moby/api/types/container"
	mobyclient "github.com/moby/moby/client"

	"github.com/devc-cli/devc/internal/devc"
)

// composerState holds the resolved Compose project and its service
// dependency graph for the lifetime of an `up`/`down` cycle.
type composerState struct {
	project     *composetypes.Project
	servicesDAG *dag.DAG
}

// DeployComposerProject provisions the Compose project named by a
// devcontainer.json's `dockerComposeFile`, equivalent to `docker
// compose up` run against the workspace.
func (c *Client) DeployComposerProject(p *devc.DevcontainerParser, projName, imageTagPrefix string, suppressOutput bool) error {
	projOptions, err := compose.NewProjectOptions(
		[]string(p.Config.DockerComposeFile),
		compose.WithConsistency(true),
		compose.WithContext(context.Background()),
		compose.WithInterpolation(true),
		compose.WithName(projName),
		compose.WithNormalization(true),
		compose.WithResolvedPaths(true),
		compose.WithWorkingDirectory(*p.Config.Context),
	)
	if err != nil {
		return err
	}

	project, err := compose.ProjectFromOptions(projOptions)
	if err != nil {
		return err
	}

	servicesDAG := dag.NewDAG()
	for _, service := range project.AllServices() {
		if err := servicesDAG.AddVertexByID(service.Name, &service); err != nil {
			return err
		}
	}
	for _, service := range project.AllServices() {
		for _, dependency := range service.GetDependencies() {
			if err := servicesDAG.AddEdge(dependency, service.Name); err != nil {
				return err
			}
		}
	}

	if p.Config.Service != nil {
		if _, err := servicesDAG.GetVertex(*p.Config.Service); err != nil {
			return fmt.Errorf("service %q named in devcontainer.json is not defined in the Compose project", *p.Config.Service)
		}
	}

	c.composer = &composerState{project: project, servicesDAG: servicesDAG}

	if err := c.createComposerNetworks(project.Networks); err != nil {
		return err
	}
	if err := c.createComposerVolumes(project.Volumes); err != nil {
		return err
	}

	spinUpDAG, err := servicesDAG.Copy()
	if err != nil {
		return err
	}
	return c.createComposerServices(p, spinUpDAG, imageTagPrefix, suppressOutput)
}

// TeardownComposerProject tears down the services DeployComposerProject
// created and removes the project's non-external networks; named
// volumes are left in place.
func (c *Client) TeardownComposerProject() error {
	if c.composer == nil {
		return nil
	}

	teardownDAG, err := c.composer.servicesDAG.Copy()
	if err != nil {
		return err
	}
	if err := c.teardownComposerServices(teardownDAG); err != nil {
		return err
	}

	ctx := context.Background()
	for _, networkCfg := range c.composer.project.Networks {
		if networkCfg.External.External {
			continue
		}
		if _, err := c.mobyClient.NetworkRemove(ctx, networkCfg.Name, mobyclient.NetworkRemoveOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) buildServiceBuildOpts(buildCfg *composetypes.BuildConfig, suppressOutput bool) (*mobyclient.ImageBuildOptions, error) {
	if buildCfg == nil {
		return nil, nil
	}

	if len(buildCfg.DockerfileInline) > 0 {
		containerfilePath, err := c.synthesizeInlineContainerfile(buildCfg.Context, buildCfg.DockerfileInline)
		if err != nil {
			return nil, err
		}
		buildCfg.Dockerfile = containerfilePath
	}

	buildOpts := &mobyclient.ImageBuildOptions{
		Tags:           buildCfg.Tags,
		SuppressOutput: suppressOutput,
		NoCache:        buildCfg.NoCache,
		PullParent:     buildCfg.Pull,
		Isolation:      container.Isolation(buildCfg.Isolation),
		Dockerfile:     buildCfg.Dockerfile,
		BuildArgs:      buildCfg.Args,
		Labels:         buildCfg.Labels,
		CacheFrom:      buildCfg.CacheFrom,
		Target:         buildCfg.Target,
	}
	for name, ulimit := range buildCfg.Ulimits {
		buildOpts.Ulimits = append(buildOpts.Ulimits, &container.Ulimit{
			Name: name,
			Hard: int64(ulimit.Hard),
			Soft: int64(ulimit.Soft),
		})
	}
	return buildOpts, nil
}

func (c *Client) buildServiceContainerConfig(p *devc.DevcontainerParser, serviceCfg *composetypes.ServiceConfig) *container.Config {
	containerCfg := c.buildContainerConfig(p, serviceCfg.Image)
	containerCfg.Hostname = serviceCfg.Hostname
	containerCfg.Domainname = serviceCfg.DomainName
	containerCfg.Tty = serviceCfg.Tty
	containerCfg.OpenStdin = serviceCfg.StdinOpen
	containerCfg.Cmd = serviceCfg.Command
	for key, val := range serviceCfg.Environment {
		if val != nil {
			containerCfg.Env = append(containerCfg.Env, fmt.Sprintf("%s=%s", key, *val))
		}
	}
	return containerCfg
}

func (c *Client) buildServiceHostConfig(serviceCfg *composetypes.ServiceConfig) *container.HostConfig {
	hostCfg := container.HostConfig{
		AutoRemove: false,
		CapAdd:     serviceCfg.CapAdd,
		Privileged: serviceCfg.Privileged,
	}
	for _, v := range serviceCfg.Volumes {
		hostCfg.Binds = append(hostCfg.Binds, fmt.Sprintf("%s:%s", v.Source, v.Target))
	}
	return &hostCfg
}

// convertNetworkConfig converts a Compose NetworkConfig into the
// create options the runtime's API expects. IPAM configuration is not
// supported: the devcontainer spec's own network customization is
// limited to default bridge networking, so a project relying on custom
// IPAM has stepped outside what devc drives directly.
func (c *Client) convertNetworkConfig(networkCfg composetypes.NetworkConfig) (*mobyclient.NetworkCreateOptions, error) {
	if len(networkCfg.Ipam.Driver) > 0 || networkCfg.Ipam.Config != nil {
		return nil, fmt.Errorf("network %q: custom IPAM configuration is not supported", networkCfg.Name)
	}

	enableIPv4 := true
	return &mobyclient.NetworkCreateOptions{
		Driver:     networkCfg.Driver,
		Scope:      "local",
		EnableIPv4: &enableIPv4,
		EnableIPv6: &networkCfg.EnableIPv6,
		Internal:   networkCfg.Internal,
		Attachable: networkCfg.Attachable,
	}, nil
}

func (c *Client) createComposerNetworks(networks map[string]composetypes.NetworkConfig) error {
	for _, networkCfg := range networks {
		if networkCfg.External.External {
			continue
		}
		opts, err := c.convertNetworkConfig(networkCfg)
		if err != nil {
			return err
		}
		res, err := c.mobyClient.NetworkCreate(context.Background(), networkCfg.Name, *opts)
		if err != nil {
			return err
		}
		for _, warning := range res.Warning {
			slog.Warn(warning)
		}
	}
	return nil
}

// createComposerVolumes provisions every named volume declared by the
// Compose project that isn't marked external.
func (c *Client) createComposerVolumes(volumes composetypes.Volumes) error {
	for name, volumeCfg := range volumes {
		if volumeCfg.External.External {
			continue
		}
		opts := mobyclient.VolumeCreateOptions{
			Driver:     volumeCfg.Driver,
			DriverOpts: volumeCfg.DriverOpts,
			Labels:     volumeCfg.Labels,
			Name:       name,
		}
		if _, err := c.mobyClient.VolumeCreate(context.Background(), opts); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) synthesizeInlineContainerfile(contextPath, inlinedContainerfile string) (string, error) {
	containerfilePath := filepath.Join(contextPath, "Containerfile")
	return containerfilePath, os.WriteFile(containerfilePath, []byte(inlinedContainerfile), 0o644) // #nosec G306
}

func (c *Client) createComposerService(p *devc.DevcontainerParser, serviceCfg *composetypes.ServiceConfig, imageTagPrefix string, suppressOutput bool) error {
	containerName := fmt.Sprintf("%s--%s", c.composer.project.Name, serviceCfg.Name)
	imageTag := fmt.Sprintf("%s%s", imageTagPrefix, containerName)

	if err := c.waitForServiceDependencies(serviceCfg.DependsOn); err != nil {
		return err
	}

	containerCfg := c.buildServiceContainerConfig(p, serviceCfg)
	hostCfg := c.buildServiceHostConfig(serviceCfg)

	switch {
	case serviceCfg.Build != nil:
		buildOpts, err := c.buildServiceBuildOpts(serviceCfg.Build, suppressOutput)
		if err != nil {
			return err
		}
		buildOpts.Tags = append(buildOpts.Tags, imageTag)
		if err := c.BuildContainerImage(serviceCfg.Build.Context, serviceCfg.Build.Dockerfile, imageTag, buildOpts, suppressOutput); err != nil {
			return err
		}
		containerCfg.Image = imageTag
	case serviceCfg.Image != "":
		if err := c.PullContainerImage(serviceCfg.Image, suppressOutput); err != nil {
			return err
		}
		containerCfg.Image = serviceCfg.Image
	}

	isPrimary := p.Config.Service != nil && *p.Config.Service == serviceCfg.Name
	if isPrimary {
		if p.Config.ContainerUser != nil {
			containerCfg.User = *p.Config.ContainerUser
		}
		if p.Config.WorkspaceFolder != nil {
			containerCfg.WorkingDir = *p.Config.WorkspaceFolder
		}
	}

	_, err := c.StartContainer(context.Background(), p, containerCfg, hostCfg, containerName, isPrimary)
	return err
}

// createComposerServices walks servicesDAG breadth-first from its
// roots, spinning up each wave of services concurrently once their
// dependencies have started.
func (c *Client) createComposerServices(p *devc.DevcontainerParser, servicesDAG *dag.DAG, imageTagPrefix string, suppressOutput bool) error {
	roots := servicesDAG.GetRoots()
	for len(roots) > 0 {
		errChan := make(chan error, len(roots))
		var wg sync.WaitGroup

		for raw := range maps.Values(roots) {
			serviceCfg, ok := raw.(*composetypes.ServiceConfig)
			if !ok {
				return fmt.Errorf("value for vertex is of unexpected type")
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				errChan <- c.createComposerService(p, serviceCfg, imageTagPrefix, suppressOutput)
			}()
		}
		wg.Wait()
		close(errChan)
		for err := range errChan {
			if err != nil {
				return err
			}
		}

		for id := range roots {
			if err := servicesDAG.DeleteVertex(id); err != nil {
				return err
			}
		}
		roots = servicesDAG.GetRoots()
	}
	return nil
}

func (c *Client) teardownComposerServices(servicesDAG *dag.DAG) error {
	leaves := servicesDAG.GetLeaves()
	for len(leaves) > 0 {
		var wg sync.WaitGroup
		errChan := make(chan error, len(leaves))

		for raw := range maps.Values(leaves) {
			serviceCfg, ok := raw.(*composetypes.ServiceConfig)
			if !ok {
				return fmt.Errorf("value for vertex is of unexpected type")
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				containerName := fmt.Sprintf("%s--%s", c.composer.project.Name, serviceCfg.Name)
				if _, err := c.mobyClient.ContainerStop(context.Background(), containerName, mobyclient.ContainerStopOptions{}); err != nil {
					errChan <- err
					return
				}
				if _, err := c.mobyClient.ContainerRemove(context.Background(), containerName, mobyclient.ContainerRemoveOptions{}); err != nil {
					errChan <- err
				}
			}()
		}
		wg.Wait()
		close(errChan)
		for err := range errChan {
			if err != nil {
				return err
			}
		}

		for id := range leaves {
			if err := servicesDAG.DeleteVertex(id); err != nil {
				return err
			}
		}
		leaves = servicesDAG.GetLeaves()
	}
	return nil
}

// waitForServiceDependencies blocks until every dependency in dependsOn
// satisfies its declared condition (service_started,
// service_healthy, or service_completed_successfully).
func (c *Client) waitForServiceDependencies(dependsOn composetypes.DependsOnConfig) error {
	if len(dependsOn) < 1 {
		return nil
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(dependsOn))

	for containerBasename, dependency := range dependsOn {
		containerName := fmt.Sprintf("%s--%s", c.composer.project.Name, containerBasename)
		condition := dependency.Condition
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			ticker := time.NewTicker(1 * time.Second)
			defer ticker.Stop()

			var loopCtr uint
			for range ticker.C {
				inspectRes, err := c.mobyClient.ContainerInspect(ctx, containerName, mobyclient.ContainerInspectOptions{})
				if err != nil {
					errChan <- err
					return
				}
				switch condition {
				case "service_completed_successfully":
					if !inspectRes.Container.State.Running {
						if inspectRes.Container.State.ExitCode != 0 {
							errChan <- fmt.Errorf("service %s needed to complete successfully but exited %d", containerName, inspectRes.Container.State.ExitCode)
						}
						return
					}
				case "service_healthy":
					if !inspectRes.Container.State.Running {
						errChan <- fmt.Errorf("service %s needed to be healthy but isn't running", containerName)
						return
					}
					if inspectRes.Container.State.Health == nil || inspectRes.Container.State.Health.Status == container.NoHealthcheck {
						errChan <- fmt.Errorf("service %s has no healthcheck defined", containerName)
						return
					}
					if inspectRes.Container.State.Health.Status != container.Healthy {
						if loopCtr >= 30 {
							errChan <- fmt.Errorf("timed out waiting for service %s to become healthy", containerName)
							return
						}
						loopCtr++
						continue
					}
					return
				case "service_started":
					if !inspectRes.Container.State.Running {
						errChan <- fmt.Errorf("service %s needed to be running but isn't", containerName)
						return
					}
					return
				default:
					errChan <- fmt.Errorf("unknown dependency condition: %s", condition)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}
