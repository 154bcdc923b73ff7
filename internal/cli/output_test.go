package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tillsync/internal/pos"
)

func TestFormatCents(t *testing.T) {
	cases := []struct {
		in   pos.Cents
		want string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{450, "$4.50"},
		{123456, "$1,234.56"},
		{100000000, "$1,000,000.00"},
		{-50, "-$0.50"},
		{-123456, "-$1,234.56"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatCents(tc.in), "FormatCents(%d)", tc.in)
	}
}

func TestOutputFormatterJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]string{"id": "batch-1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatterJSONError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Error("E001", "batch not found"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "batch not found", resp.Error.Message)
}

func TestOutputFormatterTextError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error("E001", "batch not found"))
	assert.Equal(t, "Error [E001]: batch not found\n", buf.String())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitCommandError, "failed to open database", errors.New("no such file"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "failed to open database")
	assert.Contains(t, wrapped.Error(), "no such file")
}
