// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the revdep CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Arrow     lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Arrow:     lipgloss.NewStyle().Foreground(ColorTealDeep),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "➞"
	IconCycle   Icon = "↻"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError, IconCycle:
		return Styles.Error.Render(string(i))
	case IconArrow:
		return Styles.Arrow.Render(string(i))
	default:
		return string(i)
	}
}

// ColorEnabled reports whether w is a terminal that should receive ANSI
// styling. NO_COLOR and TERM=dumb disable styling.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes styled lines to a writer. With color disabled every
// helper writes the bare text, so output stays pipeable.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w     io.Writer
	color bool
	err   error
}

// NewPrinter creates a printer for w.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// Color reports whether the printer styles its output.
func (p *Printer) Color() bool {
	return p.color
}

// Err returns the first write error, if any.
func (p *Printer) Err() error {
	return p.err
}

// Render applies style to text when color is enabled.
func (p *Printer) Render(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}

// Icon returns the icon, styled when color is enabled.
func (p *Printer) Icon(i Icon) string {
	if !p.color {
		return string(i)
	}
	return i.Render()
}

// Println writes a line of already rendered text.
func (p *Printer) Println(text string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, text)
}

// Printf writes formatted text.
func (p *Printer) Printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// Title prints a styled title
func (p *Printer) Title(text string) {
	p.Println(p.Render(Styles.Title, text))
}

// Muted prints muted/secondary text
func (p *Printer) Muted(text string) {
	p.Println(p.Render(Styles.Muted, text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	p.Println(p.Icon(IconSuccess) + " " + p.Render(Styles.Success, text))
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	p.Println(p.Icon(IconWarning) + " " + p.Render(Styles.Warning, text))
}

// Error prints an error message
func (p *Printer) Error(text string) {
	p.Println(p.Icon(IconError) + " " + p.Render(Styles.Error, text))
}

// Separator prints a muted rule of width underscores.
func (p *Printer) Separator(width int) {
	p.Muted(repeatChar('_', width))
}

// Pad right-pads text with spaces to width runes.
func Pad(text string, width int) string {
	n := lipgloss.Width(text)
	if n >= width {
		return text
	}
	return text + strings.Repeat(" ", width-n)
}

func repeatChar(c rune, n int) string {
	if n <= 0 {
		return ""
	}
	result := make([]rune, n)
	for i := range result {
		result[i] = c
	}
	return string(result)
}
