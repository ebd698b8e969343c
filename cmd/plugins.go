package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zjrosen/tapkit/internal/kernel"
	"github.com/zjrosen/tapkit/internal/tracing"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

func newPluginsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List loaded presets, plugins, commands, platforms and hooks",
		Long: `Load the project's presets and plugins without running a command and
print what they registered. Hooks are listed with their handlers in
execution order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := tracing.NewProvider(tracing.Config{})
			if err != nil {
				return err
			}
			k, err := newKernel(opts, cmd.OutOrStdout(), provider)
			if err != nil {
				return err
			}
			defer k.Close()

			if err := k.Load(commandContext(cmd)); err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderPlugins(k))
			return err
		},
	}
}

func renderPlugins(k *kernel.Kernel) string {
	var b strings.Builder

	plugins := newTable("Identity", "Kind", "Path")
	for _, d := range k.Plugins() {
		plugins.Row(d.ID, d.Kind.String(), d.Path)
	}
	writeSection(&b, "Presets and plugins", plugins)

	commands := newTable("Command", "Plugin", "Description")
	for _, c := range k.Commands() {
		owner, _ := k.CommandOwner(c.Name)
		commands.Row(c.Name, owner, c.Description)
	}
	writeSection(&b, "Commands", commands)

	platforms := newTable("Platform", "Config section")
	for _, p := range k.Platforms() {
		platforms.Row(p.Name, p.UseConfigName)
	}
	writeSection(&b, "Platforms", platforms)

	hooks := newTable("Hook", "Kind", "Handlers")
	for _, h := range k.Hooks() {
		handlers := strings.Join(h.Plugins, " -> ")
		if h.Err != nil {
			handlers = "error: " + h.Err.Error()
		}
		hooks.Row(h.Name, h.Kind.String(), handlers)
	}
	writeSection(&b, "Hooks", hooks)

	return b.String()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func writeSection(b *strings.Builder, title string, t *table.Table) {
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n\n")
}
