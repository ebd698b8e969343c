package kernel

import (
	"github.com/zjrosen/tapkit/internal/help"
	"github.com/zjrosen/tapkit/internal/hook"
)

// Option is one flag of a command's option table.
type Option = help.Option

// Command is a CLI command contributed by a plugin. Fn, when set, is tapped
// on the extension point named after the command.
type Command struct {
	Name        string
	Alias       string
	Description string
	// OptionsMap lists flag and description pairs in display order.
	OptionsMap []Option
	Synopsis   []string
	Fn         hook.Func
}

// Platform is a build target contributed by a plugin. Fn, when set, is tapped
// on the extension point named after the platform.
type Platform struct {
	Name string
	// UseConfigName selects the project configuration section overlaid onto
	// the platform's named view.
	UseConfigName string
	Fn            hook.Func
}

// RunOpts are the options of one command run.
type RunOpts struct {
	// Args are the positional arguments after the command name.
	Args []string
	// Options holds parsed flags by long name, e.g. "platform", "watch".
	Options map[string]any
	IsHelp  bool
	// Config is the named configuration view of the selected platform. Set by
	// Run before the command's extension point fires.
	Config map[string]any
}

// Platform returns the selected platform name, or "".
func (o RunOpts) Platform() string {
	s, _ := o.Options["platform"].(string)
	return s
}

// Bool returns a boolean option.
func (o RunOpts) Bool(name string) bool {
	b, _ := o.Options[name].(bool)
	return b
}

// Text returns a string option.
func (o RunOpts) Text(name string) string {
	s, _ := o.Options[name].(string)
	return s
}

// Usage describes a command for help output.
type Usage = help.Usage
