package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/zjrosen/tapkit/internal/config"
	"github.com/zjrosen/tapkit/internal/kernel"
)

func initPlugin(out io.Writer) kernel.ApplyFunc {
	return func(c *kernel.Context, _ map[string]any) (*kernel.Yield, error) {
		return nil, c.RegisterCommand(kernel.Command{
			Name:        "init",
			Description: "Create config/index.yaml for a new project",
			OptionsMap: []kernel.Option{
				{Flag: "-o name=[name]", Description: "Project name (defaults to the first argument, then the directory name)"},
			},
			Synopsis: []string{"tapkit init", "tapkit init shop"},
			Fn: func(_ context.Context, opts any, _ any) (any, error) {
				ro, _ := opts.(kernel.RunOpts)
				name := ro.Text("name")
				if name == "" && len(ro.Args) > 0 {
					name = ro.Args[0]
				}
				if name == "" {
					name = filepath.Base(c.AppPath())
				}

				path, err := config.WriteProjectSkeleton(c.AppPath(), name)
				if errors.Is(err, config.ErrProjectExists) {
					_, _ = fmt.Fprintf(out, "Project configuration already exists: %s\n", path)
					return path, nil
				}
				if err != nil {
					return nil, err
				}
				_, _ = fmt.Fprintf(out, "Created %s\n", path)
				return path, nil
			},
		})
	}
}
