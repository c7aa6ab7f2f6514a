package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulist/fabula/internal/ir"
)

const greetRules = `
rule Greet {
  priority 5
  likelihood 1.0
  when {
    energy >= 10
  }
  then {
    modify_attribute(char-a, mood, "calm")
    tracery_generate("greeting", {name: "Asha"})
  }
}
`

func writeRulesFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompileValidRules(t *testing.T) {
	path := writeRulesFile(t, "greet.insimul", greetRules)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 1 rule(s)")
	assert.Contains(t, output, "insimul/greet")
}

func TestCompileValidRulesJSON(t *testing.T) {
	path := writeRulesFile(t, "greet.insimul", greetRules)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestCompileOutputToFile(t *testing.T) {
	path := writeRulesFile(t, "greet.insimul", greetRules)
	outputFile := filepath.Join(t.TempDir(), "rules.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--output", outputFile})

	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	rules, err := ir.UnmarshalRules(data)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "insimul/greet", rules[0].ID)
}

func TestCompilePartialSuccessStillEmitsRules(t *testing.T) {
	source := greetRules + `
rule Broken {
  likelihood nine
  then {
    restrict(trade)
  }
}
`
	path := writeRulesFile(t, "mixed.insimul", source)
	outputFile := filepath.Join(t.TempDir(), "rules.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--output", outputFile})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// The good rule is still compiled and written.
	assert.Contains(t, buf.String(), "insimul/greet")
	assert.Contains(t, buf.String(), "Broken")
	data, readErr := os.ReadFile(outputFile)
	require.NoError(t, readErr)
	rules, decodeErr := ir.UnmarshalRules(data)
	require.NoError(t, decodeErr)
	assert.Len(t, rules, 1)
}

func TestCompileUnknownSyntax(t *testing.T) {
	path := writeRulesFile(t, "greet.insimul", greetRules)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path, "--syntax", "cobol"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileUninferableExtension(t *testing.T) {
	path := writeRulesFile(t, "greet.mystery", greetRules)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax")
}

func TestValidateCanonicalRules(t *testing.T) {
	path := writeRulesFile(t, "greet.insimul", greetRules)
	outputFile := filepath.Join(t.TempDir(), "rules.json")

	compile := NewCompileCommand(&RootOptions{Format: "text"})
	compile.SetOut(&bytes.Buffer{})
	compile.SetArgs([]string{path, "--output", outputFile})
	require.NoError(t, compile.Execute())

	buf := &bytes.Buffer{}
	validate := NewValidateCommand(&RootOptions{Format: "text"})
	validate.SetOut(buf)
	validate.SetArgs([]string{outputFile, "--canonical"})

	require.NoError(t, validate.Execute())
	assert.Contains(t, buf.String(), "1 rule(s) valid")
}

func TestValidateReportsInvalidRules(t *testing.T) {
	path := writeRulesFile(t, "broken.insimul", "rule Broken {\n  likelihood nine\n  then {\n    restrict(trade)\n  }\n}\n")

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "likelihood")
}
