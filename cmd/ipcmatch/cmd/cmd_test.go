package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureCorpus = "../../../internal/engine/testdata/fixture.json"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	base := []string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--corpus", fixtureCorpus,
		"--log-level", "error",
	}
	rootCmd.SetArgs(append(args, base...))
	t.Cleanup(func() {
		flagQueryJSON, flagQuerySummary, flagSectionsJSON, flagEvalJSON = false, false, false, false
		flagEvalMinF1, flagEvalCases = 0, ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestQueryCommand(t *testing.T) {
	out, err := run(t, "query", "Someone", "stole", "my", "phone")
	require.NoError(t, err)
	assert.Contains(t, out, "Section 379")
	assert.Contains(t, out, "average confidence")
}

func TestQueryCommandJSON(t *testing.T) {
	out, err := run(t, "query", "--json", "--summary", "Someone stole my phone")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.NotEmpty(t, decoded["sections"])
	assert.Equal(t, "frequency", decoded["summary_source"])
}

func TestSectionsCommand(t *testing.T) {
	out, err := run(t, "sections")
	require.NoError(t, err)
	assert.Contains(t, out, "500    Defamation")
	assert.Contains(t, out, "4 sections")
}

func TestEvalCommandMinF1(t *testing.T) {
	out, err := run(t, "eval", "--min-f1", "1.01")
	assert.ErrorContains(t, err, "below required")
	assert.Contains(t, out, "ASSESSMENT:")
}

func TestMissingCorpus(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"sections", "--config", filepath.Join(t.TempDir(), "none.yaml"), "--corpus", filepath.Join(t.TempDir(), "nope.json")})
	assert.Error(t, rootCmd.Execute())
}
