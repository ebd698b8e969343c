package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/tapkit/internal/config"
	"github.com/zjrosen/tapkit/internal/log"
)

var version = "dev"

// cliOptions holds the flags of one root command.
type cliOptions struct {
	cfgFile  string
	appPath  string
	platform string
	watch    bool
	options  []string
	debug    bool
	noColor  bool

	cfg     config.Config
	cfgUsed string
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "tapkit <command> [args]",
		Short: "A build tool driven by presets and plugins",
		Long: `tapkit runs commands contributed by presets and plugins.

The built-in preset provides:
  info    print project paths, plugins, commands and platforms
  build   build the project for a platform (-t web | -t mini, --watch)
  init    create config/index.yaml

Projects add their own presets and plugins in config/index.yaml; local
Go files ("./tools/plugin.go") are loaded as scripts.`,
		Example: `  tapkit build -t web
  tapkit build -t mini -w
  tapkit build -h
  tapkit init shop
  tapkit deploy -o env=staging`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runCommand(cmd, opts, args[0], args[1:], false)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default: ~/.config/tapkit/config.yaml)")
	pf.StringVarP(&opts.appPath, "app", "a", "", "project directory (default: nearest directory with config/index.yaml)")
	pf.BoolVar(&opts.debug, "debug", false, "write a debug log (also TAPKIT_DEBUG=1, filtered by TAPKIT_LOG_LEVEL)")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	f := root.Flags()
	f.StringVarP(&opts.platform, "platform", "t", "", "target platform")
	f.BoolVarP(&opts.watch, "watch", "w", false, "watch for changes")
	f.StringArrayVarP(&opts.options, "option", "o", nil, "command option as key=value (repeatable)")

	// -h with a command name shows that command's usage from its plugin.
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		rest := cmd.Flags().Args()
		if cmd != root || len(rest) == 0 {
			defaultHelp(cmd, args)
			return
		}
		if err := opts.setup(); err != nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			return
		}
		if err := runCommand(cmd, opts, rest[0], rest[1:], true); err != nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
	})

	root.AddCommand(newPluginsCmd(opts))
	return root
}

// setup reads the tool configuration and applies the global flags. It runs
// once per command.
func (o *cliOptions) setup() error {
	if err := o.loadConfig(); err != nil {
		return err
	}
	if o.noColor || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if o.debug || os.Getenv("TAPKIT_DEBUG") != "" {
		path := o.cfg.DebugLog
		if path == "" {
			path = config.Defaults().DebugLog
		}
		if _, err := log.Init(path); err != nil {
			return fmt.Errorf("init debug log: %w", err)
		}
		if level := os.Getenv("TAPKIT_LOG_LEVEL"); level != "" {
			log.SetMinLevel(log.ParseLevel(level))
		}
		log.Info(log.CatCLI, "tapkit starting", "version", version, "config", o.cfgUsed)
	}
	return nil
}

// loadConfig reads the tool configuration with viper. Lookup order:
// --config, .tapkit/config.yaml, ~/.config/tapkit/config.yaml. When none
// exists the default file is written to the user config directory.
func (o *cliOptions) loadConfig() error {
	v := viper.New()
	defaults := config.Defaults()
	v.SetDefault("flags", defaults.Flags)
	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	v.SetDefault("debug_log", defaults.DebugLog)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	home, _ := os.UserHomeDir()
	userConfig := filepath.Join(home, ".config", "tapkit", "config.yaml")

	switch {
	case o.cfgFile != "":
		v.SetConfigFile(o.cfgFile)
	case fileExists(filepath.Join(".tapkit", "config.yaml")):
		v.SetConfigFile(filepath.Join(".tapkit", "config.yaml"))
	default:
		v.AddConfigPath(filepath.Dir(userConfig))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		if home != "" {
			if writeErr := config.WriteDefaultConfig(userConfig); writeErr == nil {
				v.SetConfigFile(userConfig)
				_ = v.ReadInConfig()
			}
		}
	}

	o.cfgUsed = v.ConfigFileUsed()
	if err := v.Unmarshal(&o.cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if err := config.Validate(o.cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
