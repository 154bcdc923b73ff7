package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"open", "close", "order", "refund", "sync", "status", "serve"} {
		assert.Contains(t, out, sub)
	}
}

func TestOrderRequiresBatchFlag(t *testing.T) {
	_, err := execute(t, "order", "--line", "latte:1:450")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch")
}

func TestParseLines(t *testing.T) {
	lines, err := parseLines([]string{"latte:2:450", "muffin:1:300"})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "latte", lines[0].SKU)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.EqualValues(t, 450, lines[0].UnitPrice)

	_, err = parseLines([]string{"latte:2"})
	assert.Error(t, err)
	_, err = parseLines([]string{"latte:two:450"})
	assert.Error(t, err)
}
