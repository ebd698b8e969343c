package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		hookName string
		expected Kind
	}{
		{name: "modify prefix is waterfall", hookName: "modifyWebpackChain", expected: KindWaterfall},
		{name: "add prefix is collect", hookName: "addPluginOptsSchema", expected: KindCollect},
		{name: "on prefix is event", hookName: "onBuildStart", expected: KindEvent},
		{name: "command name is event", hookName: "build", expected: KindEvent},
		{name: "platform name is event", hookName: "web", expected: KindEvent},
		{name: "empty name is event", hookName: "", expected: KindEvent},
		{name: "prefix is case sensitive", hookName: "ModifyConfig", expected: KindEvent},
		{name: "modify wins over on", hookName: "modifyonReady", expected: KindWaterfall},
		{name: "bare modify is waterfall", hookName: "modify", expected: KindWaterfall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Classify(tt.hookName))
		})
	}
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "event", KindEvent.String())
	require.Equal(t, "waterfall", KindWaterfall.String())
	require.Equal(t, "collect", KindCollect.String())
}

func TestRegistration_Precedes(t *testing.T) {
	reg := Registration{Hook: Hook{Before: []string{"a", "self"}}, Plugin: "self"}

	require.True(t, reg.precedes("a"))
	require.False(t, reg.precedes("self"), "a plugin never precedes itself")
	require.False(t, reg.precedes("b"))
}
