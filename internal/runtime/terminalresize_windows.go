//go:build windows

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
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"
)

// listenForTerminalResize polls the host terminal's dimensions on an
// interval, since Windows consoles have no SIGWINCH equivalent.
func (c *Client) listenForTerminalResize() {
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		fd := int(os.Stdout.Fd())
		if !term.IsTerminal(fd) {
			slog.Debug("not a terminal", "fd", fd)
			return
		}

		for range ticker.C {
			w, h, err := term.GetSize(fd)
			if err != nil {
				slog.Error("could not get terminal's size", "error", err)
				return
			}
			if err := c.ResizeContainer(uint(h), uint(w)); err != nil { // #nosec G115
				slog.Error("could not resize container pseudo-TTY", "error", err)
			}
		}
	}()
}
