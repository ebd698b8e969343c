package builtin

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/zjrosen/tapkit/internal/kernel"
)

func infoPlugin(out io.Writer) kernel.ApplyFunc {
	return func(c *kernel.Context, _ map[string]any) (*kernel.Yield, error) {
		return nil, c.RegisterCommand(kernel.Command{
			Name:        "info",
			Description: "Print project paths, plugins, commands and platforms",
			Synopsis:    []string{"tapkit info"},
			Fn: func(context.Context, any, any) (any, error) {
				_, err := io.WriteString(out, renderInfo(c))
				return nil, err
			},
		})
	}
}

func renderInfo(c *kernel.Context) string {
	var b strings.Builder

	section(&b, "Paths")
	pathMap := c.Paths().Map()
	keys := make([]string, 0, len(pathMap))
	for k := range pathMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][2]string, len(keys))
	for i, k := range keys {
		rows[i] = [2]string{k, pathMap[k]}
	}
	table(&b, rows)

	section(&b, "Plugins")
	rows = rows[:0]
	for _, d := range c.Plugins().List() {
		rows = append(rows, [2]string{d.ID, d.Kind.String()})
	}
	table(&b, rows)

	section(&b, "Commands")
	rows = rows[:0]
	for _, cmd := range c.Commands() {
		rows = append(rows, [2]string{cmd.Name, cmd.Description})
	}
	table(&b, rows)

	section(&b, "Platforms")
	platforms := c.Platforms()
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	rows = rows[:0]
	for _, name := range names {
		rows = append(rows, [2]string{name, "config: " + platforms[name].UseConfigName})
	}
	table(&b, rows)

	return b.String()
}

func section(b *strings.Builder, title string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(title + ":\n")
}

// table writes two aligned columns, measuring display width so wide
// characters in paths line up.
func table(b *strings.Builder, rows [][2]string) {
	if len(rows) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}
	for _, r := range rows {
		fmt.Fprintf(b, "  %s  %s\n", runewidth.FillRight(r[0], width), r[1])
	}
}
