package kernel

// Phase is a step of the orchestration lifecycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseConfigLoaded
	PhasePathsResolved
	PhasePresetsResolved
	PhasePluginsResolved
	PhaseReady
	PhaseStarted
	PhaseCommandExecuting
	PhaseTerminal
)

var phaseNames = [...]string{
	PhaseUninitialized:    "uninitialized",
	PhaseConfigLoaded:     "config_loaded",
	PhasePathsResolved:    "paths_resolved",
	PhasePresetsResolved:  "presets_resolved",
	PhasePluginsResolved:  "plugins_resolved",
	PhaseReady:            "ready",
	PhaseStarted:          "started",
	PhaseCommandExecuting: "command_executing",
	PhaseTerminal:         "terminal",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// PhaseEvent is published on every phase transition and when a run fails.
type PhaseEvent struct {
	RunID   string
	Phase   Phase
	Command string
	// Err is set on failure events; Phase is then the phase that failed.
	Err error
}
