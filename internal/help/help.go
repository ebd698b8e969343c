// Package help renders command usage for the terminal.
package help

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// HelpFlag is the option every command accepts.
const (
	HelpFlag        = "-h, --help"
	HelpDescription = "output usage information"
)

// Width is the column at which descriptions wrap.
const Width = 80

// Option is one row of a command's option table.
type Option struct {
	Flag        string
	Description string
}

// Usage describes how to invoke one command.
type Usage struct {
	Program     string
	Command     string
	Description string
	Options     []Option
	Synopsis    []string
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	flagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0B7A75", Dark: "#5FD7D7"}).
			PaddingLeft(2).
			PaddingRight(3)

	descStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#4A4A4A", Dark: "#BCBCBC"})

	synopsisStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}).
			PaddingLeft(2)
)

// Options merges command options with the default help option. A command
// option using HelpFlag keeps its position but takes the default description.
func Options(custom []Option) []Option {
	out := make([]Option, 0, len(custom)+1)
	seen := make(map[string]int, len(custom)+1)
	for _, o := range custom {
		if i, ok := seen[o.Flag]; ok {
			out[i].Description = o.Description
			continue
		}
		seen[o.Flag] = len(out)
		out = append(out, o)
	}
	if i, ok := seen[HelpFlag]; ok {
		out[i].Description = HelpDescription
	} else {
		out = append(out, Option{Flag: HelpFlag, Description: HelpDescription})
	}
	return out
}

// Synopsis drops repeated lines, keeping first occurrences.
func Synopsis(lines []string) []string {
	out := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Render formats u as a usage block.
func Render(u Usage) string {
	program := u.Program
	if program == "" {
		program = "tapkit"
	}
	command := u.Command
	if command == "" {
		command = "<command>"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Usage: " + program + " " + command + " [options]"))
	b.WriteString("\n")
	if u.Description != "" {
		b.WriteString("\n" + descStyle.Render(wordwrap.String(u.Description, Width)) + "\n")
	}

	if len(u.Options) > 0 {
		b.WriteString(sectionStyle.Render("Options:"))
		b.WriteString("\n")
		width := 0
		for _, o := range u.Options {
			width = max(width, lipgloss.Width(o.Flag))
		}
		key := flagStyle.Width(width + 5)
		wrap := max(Width-width-5, 20)
		for _, o := range u.Options {
			desc := descStyle.Render(wordwrap.String(o.Description, wrap))
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, key.Render(o.Flag), desc))
			b.WriteString("\n")
		}
	}

	if len(u.Synopsis) > 0 {
		b.WriteString(sectionStyle.Render("Synopsis:"))
		b.WriteString("\n")
		for _, s := range u.Synopsis {
			b.WriteString(synopsisStyle.Render("$ " + s))
			b.WriteString("\n")
		}
	}
	return b.String()
}
