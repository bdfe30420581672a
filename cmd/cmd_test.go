package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"VoiceMorph/core/effects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Name"}, [][]string{{"robot", "Robot Voice"}, {"echo"}}, 0)
	assert.Contains(t, out, "Robot Voice")
	assert.Contains(t, out, "echo")
	assert.Equal(t, "", renderTable(nil, nil))
}

func TestEffectRows(t *testing.T) {
	catalog := effects.Default()
	rows := effectRows(catalog)
	require.Len(t, rows, catalog.Len())
	for _, row := range rows {
		assert.Len(t, row, 4)
		assert.NotEmpty(t, row[3])
	}
}

func TestWantJSONForNonTerminal(t *testing.T) {
	assert.True(t, wantJSON(&bytes.Buffer{}))
}

func TestEffectsCommandJSON(t *testing.T) {
	var buf bytes.Buffer
	effectsCmd.SetOut(&buf)
	t.Cleanup(func() { effectsCmd.SetOut(nil) })

	require.NoError(t, effectsCmd.RunE(effectsCmd, nil))

	var got map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, effects.Default().Len())
	assert.True(t, strings.Contains(buf.String(), "robot"))
}
