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
	"bytes"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// NewPrefixedPrintfError returns a fmt.Printf-alike for error output
// carrying a standardized action prefix.
func NewPrefixedPrintfError(action string) func(format string, a ...any) (int, error) {
	return func(format string, a ...any) (int, error) {
		cAction := color.New(color.FgGreen).SprintFunc()
		cError := color.New(color.BgHiRed, color.FgBlack, color.Bold).SprintFunc()
		params := []any{cAction(" " + action + " "), cError(" ERROR ")}
		params = append(params, a...)
		return fmt.Fprintf(color.Output, "%s %s "+format, params...)
	}
}

// NewPrefixedPrintf returns a fmt.Printf-alike carrying a standardized
// action/context prefix.
func NewPrefixedPrintf(action, context string) func(format string, a ...any) (int, error) {
	return func(format string, a ...any) (int, error) {
		cAction := color.New(color.BgHiGreen, color.FgBlack).SprintFunc()
		cContext := color.New(color.FgHiWhite).SprintFunc()
		params := []any{cAction(" " + action + " "), cContext(context)}
		params = append(params, a...)
		return fmt.Fprintf(color.Output, "%s %s "+format, params...)
	}
}

// StreamWriter prefixes every line of a streamed write with a
// standardized label before forwarding it to the wrapped io.Writer.
type StreamWriter struct {
	w       io.Writer
	prefix  []byte
	atStart bool
}

// NewPrefixedStreamWriter returns a StreamWriter using the standard
// action/context color scheme.
func NewPrefixedStreamWriter(w io.Writer, action, context string) *StreamWriter {
	cAction := color.New(color.BgHiGreen, color.FgBlack).SprintFunc()
	cContext := color.New(color.FgHiWhite).SprintFunc()
	prefix := fmt.Sprintf("%s %s ", cAction(" "+action+" "), cContext(context))
	return NewStreamWriter(w, prefix)
}

// NewStreamWriter returns a StreamWriter with an arbitrary prefix.
func NewStreamWriter(w io.Writer, prefix string) *StreamWriter {
	return &StreamWriter{w: w, prefix: []byte(prefix), atStart: true}
}

// Write implements io.Writer, inserting the prefix at the start of
// every line.
func (sw *StreamWriter) Write(data []byte) (int, error) {
	var buf bytes.Buffer

	for _, b := range data {
		if sw.atStart {
			buf.Write(sw.prefix)
			sw.atStart = false
		}
		if b == '\n' || b == '\r' {
			sw.atStart = true
		}
		buf.WriteByte(b)
	}

	if _, err := sw.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(data), nil
}
