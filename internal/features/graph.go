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
	"sort"
	"strings"

	"github.com/devc-cli/devc/internal/clierr"
	"github.com/heimdalr/dag"
)

// vertexID strips a version tag from a Feature identifier, so that
// "ghcr.io/acme/repo/feature:1.2.3" and "ghcr.io/acme/repo/feature:1.3.0"
// referenced from two different devcontainer.json files in an
// `extends` chain are treated as the same installable unit.
func vertexID(featureID string) string {
	if strings.HasPrefix(featureID, "https://") {
		return featureID
	}
	return strings.Split(featureID, ":")[0]
}

// BuildInstallationGraph builds a directed acyclic graph of this
// Installer's Features, edges running from a Feature to the Features
// that must install after it (those naming it in `dependsOn` or
// `installsAfter`). overrideOrder is not used here: it affects neither
// vertices nor edges; InstallOrder applies it as a tiebreak.
func (inst *Installer) BuildInstallationGraph(overrideOrder *[]string) (*dag.DAG, error) {
	installDAG := dag.NewDAG()
	for featureID, parser := range inst.parsersByID {
		if err := installDAG.AddVertexByID(vertexID(featureID), parser); err != nil {
			return nil, err
		}
	}

	for featureID, parser := range inst.parsersByID {
		for dependencyID := range parser.Config.DependsOn {
			if err := installDAG.AddEdge(vertexID(dependencyID), vertexID(featureID)); err != nil {
				return nil, &clierr.InstallOrderCycle{Nodes: []string{vertexID(dependencyID), vertexID(featureID)}}
			}
		}
	}

	// installsAfter entries are soft dependencies: they only apply an
	// ordering edge when the named Feature is actually part of this
	// install set.
	//
	// https://containers.dev/implementors/features/#installsAfter
	for featureID, parser := range inst.parsersByID {
		for _, dependency := range parser.Config.InstallsAfter {
			if _, err := installDAG.GetVertex(vertexID(dependency)); err != nil {
				continue
			}
			if err := installDAG.AddEdge(vertexID(dependency), vertexID(featureID)); err != nil {
				return nil, &clierr.InstallOrderCycle{Nodes: []string{vertexID(dependency), vertexID(featureID)}}
			}
		}
	}

	return installDAG, nil
}

// InstallOrder peels BuildInstallationGraph's DAG level by level: each
// returned slice is a set of Feature IDs with no remaining unresolved
// dependency, safe to install concurrently, in the declared-order
// tiebreak given by overrideOrder.
func (inst *Installer) InstallOrder(overrideOrder *[]string) ([][]string, error) {
	installDAG, err := inst.BuildInstallationGraph(overrideOrder)
	if err != nil {
		return nil, err
	}

	tiebreak := declaredOrderIndex(overrideOrder)
	featureIDs := make(map[string]string, len(inst.parsersByID))
	for featureID := range inst.parsersByID {
		featureIDs[vertexID(featureID)] = featureID
	}

	var levels [][]string
	roots := installDAG.GetRoots()
	for len(roots) > 0 {
		level := make([]string, 0, len(roots))
		for id := range roots {
			level = append(level, id)
		}
		sortByDeclaredOrder(level, tiebreak)

		for i, id := range level {
			if err := installDAG.DeleteVertex(id); err != nil {
				return nil, err
			}
			level[i] = featureIDs[id]
		}
		levels = append(levels, level)
		roots = installDAG.GetRoots()
	}

	return levels, nil
}

// declaredOrderIndex returns a lookup from Feature ID to its position
// in the user's declared feature order, for use as a sort tiebreak.
func declaredOrderIndex(overrideOrder *[]string) map[string]int {
	idx := make(map[string]int)
	if overrideOrder == nil {
		return idx
	}
	for i, id := range *overrideOrder {
		idx[vertexID(id)] = i
	}
	return idx
}

func sortByDeclaredOrder(ids []string, tiebreak map[string]int) {
	sort.SliceStable(ids, func(i, j int) bool {
		pi, iok := tiebreak[ids[i]]
		pj, jok := tiebreak[ids[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok:
			return true
		case jok:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
