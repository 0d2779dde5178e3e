package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/get_all_items.yaml")
	require.NoError(t, err)

	assert.Equal(t, "get-all-items", sc.Name)
	assert.Equal(t, []int64{7}, sc.Subsystem.Handles)
	assert.Equal(t, []string{"Pending", "OK"}, sc.Subsystem.Statuses)
	assert.Len(t, sc.Subsystem.Items, 3)
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, OpGetAllItems, sc.Steps[0].Op)
	assert.Equal(t, 100*time.Millisecond, sc.Assertions[4].Min)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: typo in steps
step:
  - op: get_all_items
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{op: close}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{op: close}]",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: n\ndescription: d\nsteps: [{op: explode}]",
			wantErr: `unknown op "explode"`,
		},
		{
			name:    "deliver without payload",
			yaml:    "name: n\ndescription: d\nsteps: [{op: deliver}]",
			wantErr: "deliver is required",
		},
		{
			name:    "deliver on wrong op",
			yaml:    "name: n\ndescription: d\nsteps: [{op: close, deliver: {result: OK}}]",
			wantErr: "deliver is only valid",
		},
		{
			name:    "bad status name",
			yaml:    "name: n\ndescription: d\nsubsystem: {statuses: [Sleeping]}\nsteps: [{op: close}]",
			wantErr: "subsystem.statuses[0]",
		},
		{
			name:    "bad final status",
			yaml:    "name: n\ndescription: d\nsubsystem: {final_status: Nope}\nsteps: [{op: close}]",
			wantErr: "subsystem.final_status",
		},
		{
			name:    "bad deliver result",
			yaml:    "name: n\ndescription: d\nsteps: [{op: deliver, deliver: {result: Meh}}]",
			wantErr: "steps[0].deliver",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps: [{op: close}]\nassertions: [{type: vibes}]",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "call_count without op",
			yaml:    "name: n\ndescription: d\nsteps: [{op: close}]\nassertions: [{type: call_count, count: 1}]",
			wantErr: "op is required for call_count",
		},
		{
			name:    "elapsed inverted",
			yaml:    "name: n\ndescription: d\nsteps: [{op: close}]\nassertions: [{type: elapsed, min: 2s, max: 1s}]",
			wantErr: "max must not be below min",
		},
		{
			name:    "negative poll attempts",
			yaml:    "name: n\ndescription: d\nengine: {poll_attempts: -1}\nsteps: [{op: close}]",
			wantErr: "poll_attempts must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioDir_SortedAndStrict(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.yaml", "name: second\ndescription: d\nsteps: [{op: close}]\n")
	write("a.yaml", "name: first\ndescription: d\nsteps: [{op: close}]\n")
	write("notes.txt", "ignored")

	scenarios, err := LoadScenarioDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)

	write("c.yaml", "name: broken\n")
	_, err = LoadScenarioDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c.yaml")
}
