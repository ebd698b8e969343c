package tracing

// Span attribute keys for kernel runs. Hook attributes live in the hook
// package next to the engine that records them.
const (
	AttrRunID      = "run.id"
	AttrCommand    = "run.command"
	AttrPlatform   = "run.platform"
	AttrAppPath    = "run.app_path"
	AttrPhase      = "kernel.phase"
	AttrPluginID   = "plugin.id"
	AttrPluginKind = "plugin.kind"

	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span names.
const (
	SpanRun          = "kernel.run"
	SpanLoad         = "kernel.load"
	SpanPrefixApply  = "apply."
	SpanPrefixHandle = "handler."
)

// Event names recorded on kernel spans.
const (
	EventPhaseChanged   = "phase.changed"
	EventPresetApplied  = "preset.applied"
	EventPluginApplied  = "plugin.applied"
	EventOptionsChecked = "options.checked"
)
