package compiler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulist/fabula/internal/ir"
)

func TestCompileUnknownFormat(t *testing.T) {
	_, err := Compile([]byte("whatever"), ir.SourceFormat("cobol"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source format")
}

func TestCompileStampsFormatAndID(t *testing.T) {
	sources := map[ir.SourceFormat][]byte{
		ir.FormatInsimul:  []byte(insimulSource),
		ir.FormatEnsemble: []byte(ensembleSource),
		ir.FormatKismet:   []byte(kismetSource),
		ir.FormatTott:     []byte(tottSource),
	}

	for format, source := range sources {
		t.Run(string(format), func(t *testing.T) {
			res, err := Compile(source, format)
			require.NoError(t, err)
			require.NotEmpty(t, res.Rules)
			for _, rule := range res.Rules {
				assert.Equal(t, format, rule.Format)
				assert.Equal(t, ruleID(format, rule.Name), rule.ID)
				assert.NoError(t, rule.Validate())
			}
		})
	}
}

func TestCompileDeterministic(t *testing.T) {
	for _, format := range []ir.SourceFormat{
		ir.FormatInsimul, ir.FormatEnsemble, ir.FormatKismet, ir.FormatTott,
	} {
		source := map[ir.SourceFormat]string{
			ir.FormatInsimul:  insimulSource,
			ir.FormatEnsemble: ensembleSource,
			ir.FormatKismet:   kismetSource,
			ir.FormatTott:     tottSource,
		}[format]

		a, err := Compile([]byte(source), format)
		require.NoError(t, err)
		b, err := Compile([]byte(source), format)
		require.NoError(t, err)

		ha, err := ir.RuleSetHash(a.Rules)
		require.NoError(t, err)
		hb, err := ir.RuleSetHash(b.Rules)
		require.NoError(t, err)
		assert.Equal(t, ha, hb, "%s must compile deterministically", format)
	}
}

func TestCompileSerializeRecompileEquality(t *testing.T) {
	res, err := Compile([]byte(insimulSource), ir.FormatInsimul)
	require.NoError(t, err)

	data, err := ir.MarshalRules(res.Rules)
	require.NoError(t, err)
	decoded, err := ir.UnmarshalRules(data)
	require.NoError(t, err)
	require.Equal(t, res.Rules, decoded)
}

func TestRuleIDSlug(t *testing.T) {
	assert.Equal(t, "insimul/befriend-stranger", ruleID(ir.FormatInsimul, "Befriend Stranger"))
	assert.Equal(t, "kismet/greet", ruleID(ir.FormatKismet, "greet"))
	assert.Equal(t, "tott/angry-confrontation", ruleID(ir.FormatTott, "Angry!Confrontation"))
}

func TestCompileErrorAs(t *testing.T) {
	ce := &CompileError{Format: ir.FormatKismet, Line: 7, Message: "bad clause"}
	wrapped := fmt.Errorf("compile: %w", ce)

	var target *CompileError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, 7, target.Line)
	assert.True(t, IsCompileError(wrapped))
	assert.False(t, IsCompileError(errors.New("plain")))
}
