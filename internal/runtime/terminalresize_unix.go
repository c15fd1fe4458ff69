//go:build !windows

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
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// listenForTerminalResize hooks into SIGWINCH to keep the container's
// pseudo-TTY in sync with the host terminal's dimensions.
func (c *Client) listenForTerminalResize() {
	resizeCh := make(chan os.Signal, 1)
	signal.Notify(resizeCh, syscall.SIGWINCH)

	go func() {
		for range resizeCh {
			fd := int(os.Stdin.Fd())
			if !term.IsTerminal(fd) {
				slog.Debug("not a terminal", "fd", fd)
				return
			}
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
