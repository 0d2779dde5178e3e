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

func TestOutputFormatter_JSONEmit(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	called := false
	err := formatter.Emit(map[string]int{"count": 2}, func(io.Writer) { called = true })
	require.NoError(t, err)
	assert.False(t, called, "text renderer must not run in json mode")

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data["count"])
}

func TestOutputFormatter_TextEmit(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Emit("ignored", func(w io.Writer) { fmt.Fprint(w, "rendered") })
	require.NoError(t, err)
	assert.Equal(t, "rendered", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Emit("plain", nil))
	assert.Equal(t, "plain\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Error("TIMEOUT", "failed to list items", "poll: timeout")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TIMEOUT", resp.Error.Code)
	assert.Equal(t, "failed to list items", resp.Error.Message)
	assert.Equal(t, "poll: timeout", resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E001", "bad catalog", nil))
	assert.Equal(t, "Error [E001]: bad catalog\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Error("E001", "bad catalog", "line 3"))
	assert.Contains(t, buf.String(), "Details: line 3")
}

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open database", cause)

	assert.Equal(t, "failed to open database: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", err)))

	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("anything")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "x")))
}

func TestFailure_JSONWritesEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := failure(formatter, ExitFailure, "purchase failed", errors.New("boom"))
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ERROR", resp.Error.Code)
	assert.Equal(t, "boom", resp.Error.Details)
}

func TestFailure_TextWritesNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := failure(formatter, ExitCommandError, "bad", errors.New("boom"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, buf.String())
}

func TestFailure_JSONMarksReported(t *testing.T) {
	err := failure(&OutputFormatter{Format: "json", Writer: io.Discard}, ExitFailure, "x", errors.New("boom"))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.True(t, exitErr.Reported)

	err = failure(&OutputFormatter{Format: "text", Writer: io.Discard}, ExitFailure, "x", errors.New("boom"))
	require.ErrorAs(t, err, &exitErr)
	assert.False(t, exitErr.Reported)
}

func TestReportError(t *testing.T) {
	buf := &bytes.Buffer{}

	ReportError(buf, nil)
	assert.Empty(t, buf.String())

	ReportError(buf, WrapExitError(ExitFailure, "consume failed", errors.New("boom")))
	assert.Equal(t, "Error: consume failed: boom\n", buf.String())

	buf.Reset()
	reported := WrapExitError(ExitFailure, "consume failed", errors.New("boom"))
	reported.Reported = true
	ReportError(buf, fmt.Errorf("wrapped: %w", reported))
	assert.Empty(t, buf.String())
}
