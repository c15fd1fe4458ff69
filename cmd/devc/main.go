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

// Package main houses the entrypoint for the devc CLI.
package main

import (
	"os"

	"github.com/devc-cli/devc/internal/cli"
)

const AppName string = "devc"
const AppVersion string = "0.1.0"

func main() {
	os.Exit(int(cli.NewCommand(AppName, AppVersion)))
}
