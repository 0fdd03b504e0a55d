package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoprank/shoprank/pkg/version"
)

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_HelpListsCommands(t *testing.T) {
	// Given: the root command
	// When: asking for help
	out, err := runCLI(t, "--help")

	// Then: every top-level command is listed
	require.NoError(t, err)
	for _, name := range []string{
		"search", "similar", "complementary", "product", "categories", "stats",
		"generate", "build", "serve", "mcp", "config", "logs", "doctor", "validate", "version",
	} {
		assert.Contains(t, out, name)
	}
}

func TestVersionCmd_Short(t *testing.T) {
	out, err := runCLI(t, "version", "--short")

	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)
}

func TestVersionCmd_JSON(t *testing.T) {
	// Given: version --json
	out, err := runCLI(t, "version", "--json")
	require.NoError(t, err)

	// Then: the output is a BuildInfo document
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestVersionCmd_Default(t *testing.T) {
	out, err := runCLI(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "shoprank "+version.Version)
}

func TestParseWeightFlags(t *testing.T) {
	t.Run("empty yields nil", func(t *testing.T) {
		w, err := parseWeightFlags(nil)
		require.NoError(t, err)
		assert.Nil(t, w)
	})

	t.Run("numbers are parsed", func(t *testing.T) {
		w, err := parseWeightFlags(map[string]string{"price_score": "0.5", "rating_score": "1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"price_score": 0.5, "rating_score": 1}, w)
	})

	t.Run("non-numeric value is rejected", func(t *testing.T) {
		_, err := parseWeightFlags(map[string]string{"price_score": "high"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "price_score")
	})
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, checkRange("top-k", 1, 1, 50))
	assert.NoError(t, checkRange("top-k", 50, 1, 50))
	assert.Error(t, checkRange("top-k", 0, 1, 50))
	assert.Error(t, checkRange("top-k", 51, 1, 50))
}
