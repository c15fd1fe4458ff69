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

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devc-cli/devc/internal/runtime"
)

// DefaultContainerDataFolder is the in-container directory lifecycle
// markers and other per-container state are written under, when the
// caller hasn't overridden it with --container-data-folder. Left as a
// shell expression rather than resolved host-side, since it's always
// evaluated by a shell running as the target remote user.
const DefaultContainerDataFolder = "$HOME/.devcontainer"

// Phase names a point in the devcontainer lifecycle that carries its
// own idempotency marker.
type Phase string

// Supported marker-bearing phases, in execution order.
const (
	PhaseOnCreate      Phase = "onCreate"
	PhaseUpdateContent Phase = "updateContent"
	PhasePostCreate    Phase = "postCreate"
	PhasePostStart     Phase = "postStart"
	PhasePostAttach    Phase = "postAttach"
	PhaseDotfiles      Phase = "dotfiles"
)

func markerPath(dataFolder string, phase Phase) string {
	return fmt.Sprintf("%s/.%sCommandMarker", dataFolder, phase)
}

// markerSatisfied reports whether phase's marker already exists inside
// the container with content matching expectedTimestamp.
func markerSatisfied(ctx context.Context, rc *runtime.Client, remoteUser, dataFolder string, phase Phase, expectedTimestamp string) bool {
	if expectedTimestamp == "" {
		return false
	}
	path := markerPath(dataFolder, phase)
	stdout, _, err := rc.ExecInDevcontainer(ctx, remoteUser, nil, true, fmt.Sprintf("cat %s 2>/dev/null", path))
	if err != nil {
		return false
	}
	return strings.TrimSpace(stdout.String()) == expectedTimestamp
}

// writeMarker atomically records that phase completed successfully at
// timestamp. Failure is logged at WARN and otherwise ignored: a
// missing marker only means the phase will run again next time.
func writeMarker(ctx context.Context, rc *runtime.Client, remoteUser, dataFolder string, phase Phase, timestamp string) {
	path := markerPath(dataFolder, phase)
	tmp := path + ".tmp"
	cmd := fmt.Sprintf("mkdir -p %s && printf '%%s' %s > %s && mv %s %s", dataFolder, shellQuote(timestamp), tmp, tmp, path)
	if _, _, err := rc.ExecInDevcontainer(ctx, remoteUser, nil, true, cmd); err != nil {
		slog.Warn("failed to write lifecycle marker", "phase", phase, "path", path, "error", err)
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
