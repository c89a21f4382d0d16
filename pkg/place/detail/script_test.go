package detail

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgrund/gridplace/pkg/errors"
)

func TestParseScriptDefault(t *testing.T) {
	for _, input := range []string{"", "   ", ";;"} {
		script, err := ParseScript(input)
		require.NoError(t, err)
		require.Equal(t, DefaultScript(), script)
	}
}

func TestParseScriptFull(t *testing.T) {
	script, err := ParseScript("mis -p 10 -t 0.005; gs; vs; ro -w 4; default -p 5")
	require.NoError(t, err)
	require.Len(t, script, 5)

	require.Equal(t, Operator{Kind: OpMatching, Passes: 10, Tolerance: 0.005}, script[0])
	require.Equal(t, Operator{Kind: OpGlobalSwap, Passes: 1, Tolerance: 0.005}, script[1])
	require.Equal(t, Operator{Kind: OpVerticalSwap, Passes: 1, Tolerance: 0.005}, script[2])
	require.Equal(t, Operator{Kind: OpReorder, Passes: 1, Tolerance: 0.005, Window: 4}, script[3])
	require.Equal(t, Operator{Kind: OpRandom, Passes: 5, Tolerance: 0.005}, script[4])
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown operator", "annealing -p 3"},
		{"missing flag value", "gs -p"},
		{"bad pass count", "gs -p zero"},
		{"negative passes", "gs -p -1"},
		{"bad tolerance", "mis -t lots"},
		{"unknown flag", "gs -q 3"},
		{"window too small", "ro -w 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(tt.input)
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrCodeInvalidScript))
		})
	}
}

func TestScriptStringRoundTrips(t *testing.T) {
	script, err := ParseScript("mis -p 2; ro -w 3")
	require.NoError(t, err)

	again, err := ParseScript(script.String())
	require.NoError(t, err)
	require.Equal(t, script, again)
}
