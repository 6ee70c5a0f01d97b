// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides rich terminal output styling for the AuditPilot CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// AuditPilot color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	// Semantic colors
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorInfo    = lipgloss.Color("#9FB4BD")
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

	Box        lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// severityStyles maps insight severities to their display styles.
var severityStyles = map[string]lipgloss.Style{
	"CRITICAL": lipgloss.NewStyle().Bold(true).Foreground(ColorError),
	"HIGH":     lipgloss.NewStyle().Foreground(ColorError),
	"MEDIUM":   lipgloss.NewStyle().Foreground(ColorWarning),
	"LOW":      lipgloss.NewStyle().Foreground(ColorTealPrimary),
	"INFO":     lipgloss.NewStyle().Foreground(ColorInfo),
}

// SeverityBadge renders a severity label in its semantic color.
func SeverityBadge(severity string) string {
	if style, ok := severityStyles[severity]; ok {
		return style.Render(severity)
	}
	return severity
}

// IsInteractive reports whether stdin and stdout are attached to a
// terminal. Interactive prompts degrade to plain text when false.
func IsInteractive() bool {
	return (isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())) &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
}

// PrintTitle prints a styled section title.
func PrintTitle(text string) {
	fmt.Println(Styles.Title.Render(text))
}

// PrintSuccess prints a success message.
func PrintSuccess(text string) {
	fmt.Println(Styles.Success.Render("✓ " + text))
}

// PrintWarning prints a warning message.
func PrintWarning(text string) {
	fmt.Println(Styles.Warning.Render("⚠ " + text))
}

// PrintError prints an error message to stderr.
func PrintError(text string) {
	fmt.Fprintln(os.Stderr, Styles.Error.Render("✗ "+text))
}
