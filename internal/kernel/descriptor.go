package kernel

// Kind distinguishes presets from plugins.
type Kind int

const (
	KindPreset Kind = iota
	KindPlugin
)

func (k Kind) String() string {
	switch k {
	case KindPreset:
		return "preset"
	case KindPlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// ApplyFunc is a preset or plugin entry point. A preset returns the further
// presets and plugins it contributes; plugins usually return nil.
type ApplyFunc func(ctx *Context, opts map[string]any) (*Yield, error)

// Yield carries raw declarations, in any form descriptor.Normalize accepts.
type Yield struct {
	Presets []any
	Plugins []any
}

// Module is a resolved, loadable preset or plugin.
type Module struct {
	// Path is where the module came from: a file path or a catalog name.
	Path  string
	Apply ApplyFunc
}

// Descriptor is a registered preset or plugin.
type Descriptor struct {
	ID      string
	Path    string
	Kind    Kind
	Options map[string]any
	Apply   ApplyFunc
}
