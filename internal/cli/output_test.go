package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), buf.String())
	return resp
}

func TestOutputFormatter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: FormatJSON, Writer: buf}

	require.NoError(t, f.Success(map[string]int{"rows": 3}))
	resp := decodeResponse(t, buf)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"rows": float64(3)}, resp.Data)
	assert.Nil(t, resp.Error)

	buf.Reset()
	require.NoError(t, f.Error(ErrCodeLoadFailed, "rules failed to load", map[string]string{"file": "players.yaml"}))
	resp = decodeResponse(t, buf)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLoadFailed, resp.Error.Code)
	assert.Equal(t, "rules failed to load", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: FormatText, Writer: buf, Verbose: tt.verbose}

			require.NoError(t, f.Error("E001", "rules failed to load", "players.yaml"))
			assert.Contains(t, buf.String(), "Error [E001]: rules failed to load")
			assert.Equal(t, tt.wantDetails, bytes.Contains(buf.Bytes(), []byte("Details: players.yaml")))
		})
	}
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: FormatText, Writer: buf}

	require.NoError(t, f.Success("All rules valid"))
	assert.Equal(t, "All rules valid\n", buf.String())
}

func TestOutputFormatter_Report(t *testing.T) {
	data := map[string]int{"rows": 3}

	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: FormatJSON, Writer: buf}
	require.NoError(t, f.Report(data, func(w io.Writer) { t.Fatal("text renderer called in json mode") }))
	assert.Equal(t, "ok", decodeResponse(t, buf).Status)

	buf.Reset()
	f.Format = FormatText
	require.NoError(t, f.Report(data, func(w io.Writer) { fmt.Fprintln(w, "3 rows") }))
	assert.Equal(t, "3 rows\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	f := &OutputFormatter{Format: FormatJSON, Writer: out, ErrWriter: diag}

	f.VerboseLog("Loading %s", "players.yaml")
	assert.Empty(t, diag.String())

	f.Verbose = true
	f.VerboseLog("Loading %s", "players.yaml")
	assert.Equal(t, "Loading players.yaml\n", diag.String())
	assert.Empty(t, out.String(), "diagnostics must not reach the JSON stream")

	f.ErrWriter = nil
	f.VerboseLog("fallback")
	assert.Equal(t, "fallback\n", out.String())
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := WrapExitError(ExitCommandError, "open", cause)
	assert.Equal(t, "open: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "gates failed", NewExitError(ExitFailure, "gates failed").Error())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open", errors.New("boom"))))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "gates failed"))))
}
