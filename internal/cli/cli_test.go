package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/etude/internal/optimizer"
)

func TestParse_PositionalModelPath(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, shouldExit, err := Parse([]string{"model.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, "model.hcl", cfg.ModelPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.WorkerCount)
	assert.Equal(t, 16, cfg.InputLength)
	assert.Equal(t, optimizer.FlagAll, cfg.OptFlags)
}

func TestParse_ModelFlagWinsOverPositional(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, _, err := Parse([]string{"-model", "a.hcl", "b.hcl"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "a.hcl", cfg.ModelPath)

	cfg, _, err = Parse([]string{"-m", "short.hcl"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "short.hcl", cfg.ModelPath)
}

func TestParse_NoModelPrintsUsage(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, shouldExit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_HelpFlag(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, shouldExit, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidFlagValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-bogus", "model.hcl"}},
		{"bad log format", []string{"-log-format", "xml", "model.hcl"}},
		{"bad log level", []string{"-log-level", "loud", "model.hcl"}},
		{"bad opt pass", []string{"-opt", "vectorize", "model.hcl"}},
		{"negative workers", []string{"-workers", "-1", "model.hcl"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestParseOptFlags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want optimizer.Flags
	}{
		{"all", optimizer.FlagAll},
		{"none", 0},
		{"", 0},
		{"fusion", optimizer.FlagFusion},
		{"deadcode", optimizer.FlagDeadCode},
		{"memory", optimizer.FlagMemory},
		{"fusion,memory", optimizer.FlagFusion | optimizer.FlagMemory},
		{"Fusion, DeadCode", optimizer.FlagFusion | optimizer.FlagDeadCode},
	}

	for _, tc := range cases {
		got, err := parseOptFlags(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}

	_, err := parseOptFlags("fusion,unroll")
	require.Error(t, err)
}
