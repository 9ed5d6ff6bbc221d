package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReorderInterspersedFlags(t *testing.T) {
	tests := []struct {
		name       string
		arguments  []string
		valueFlags map[string]bool
		expected   []string
	}{
		{
			name:       "value_flags_keep_their_values",
			arguments:  []string{"policy.yaml", "--now", "2026-03-01", "manifest.json", "--json"},
			valueFlags: map[string]bool{"now": true},
			expected:   []string{"--now", "2026-03-01", "--json", "policy.yaml", "manifest.json"},
		},
		{
			name:      "inline_values",
			arguments: []string{"a=b.json", "--policy=p.yaml"},
			expected:  []string{"--policy=p.yaml", "a=b.json"},
		},
		{
			name:       "double_dash_stops_reordering",
			arguments:  []string{"p.yaml", "--json", "--", "--not-a-flag"},
			valueFlags: nil,
			expected:   []string{"--json", "--", "p.yaml", "--not-a-flag"},
		},
		{
			name:       "trailing_value_flag",
			arguments:  []string{"p.yaml", "--agent"},
			valueFlags: map[string]bool{"agent": true},
			expected:   []string{"--agent", "p.yaml"},
		},
		{
			name:      "single_dash_is_positional",
			arguments: []string{"-", "--json"},
			expected:  []string{"--json", "-"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, reorderInterspersedFlags(test.arguments, test.valueFlags))
		})
	}
}

func TestSplitCSV(t *testing.T) {
	require.Nil(t, splitCSV("  "))
	require.Equal(t, []string{"eu", "japan"}, splitCSV(" eu, ,japan "))
}
