package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockpile/internal/store"
)

func TestLoadFile_Starter(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "starter.cue"))
	require.NoError(t, err)

	assert.Equal(t, []Definition{
		{Def: 100, Name: "Supply Crate", Price: 250, BasePrice: 250},
		{Def: 101, Name: "Crate Key", Price: 99, BasePrice: 120},
		{Def: 200, Name: "Café Sticker", Price: 5, BasePrice: 5},
	}, c.Definitions)

	assert.Equal(t, []Grant{
		{Def: 100, Quantity: 3},
		{Def: 200, Quantity: 1},
		{Def: 101, Quantity: 2, Flags: 1},
	}, c.Grants)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "nope.cue"))
	assert.Error(t, err)
}

func TestCompile_Empty(t *testing.T) {
	c, err := Compile("empty.cue", []byte(``))
	require.NoError(t, err)
	assert.NotNil(t, c.Definitions)
	assert.Empty(t, c.Definitions)
	assert.Empty(t, c.Grants)
}

func TestCompile_NormalizesNames(t *testing.T) {
	// "e" followed by U+0301 COMBINING ACUTE ACCENT
	c, err := Compile("nfd.cue", []byte("definitions: [{def: 1, name: \"Cafe\u0301\", price: 1}]"))
	require.NoError(t, err)
	require.Len(t, c.Definitions, 1)
	assert.Equal(t, "Caf\u00e9", c.Definitions[0].Name)
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantField string
	}{
		{"negative price", `definitions: [{def: 1, name: "x", price: -1}]`, "cue"},
		{"zero def", `definitions: [{def: 0, name: "x", price: 1}]`, "cue"},
		{"empty name", `definitions: [{def: 1, name: "", price: 1}]`, "cue"},
		{"unknown field", `definitions: [{def: 1, name: "x", price: 1, colour: "red"}]`, "cue"},
		{"quantity too large", `definitions: [{def: 1, name: "x", price: 1}]
grants: [{def: 1, quantity: 70000}]`, "cue"},
		{"zero quantity", `definitions: [{def: 1, name: "x", price: 1}]
grants: [{def: 1, quantity: 0}]`, "cue"},
		{"duplicate def", `definitions: [
	{def: 1, name: "x", price: 1},
	{def: 1, name: "y", price: 2},
]`, "definitions[1].def"},
		{"undeclared grant", `definitions: [{def: 1, name: "x", price: 1}]
grants: [{def: 2}]`, "grants[0].def"},
		{"syntax", `definitions: [`, "cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("bad.cue", []byte(tt.src))
			require.Error(t, err)

			var cerr *CompileError
			require.True(t, errors.As(err, &cerr), "want *CompileError, got %T: %v", err, err)
			assert.Equal(t, tt.wantField, cerr.Field)
		})
	}
}

func TestCompileError_Message(t *testing.T) {
	err := &CompileError{Field: "grants[0].def", Message: "bad"}
	assert.Equal(t, "grants[0].def: bad", err.Error())
}

func TestCompileError_IncludesPosition(t *testing.T) {
	_, err := Compile("pos.cue", []byte("definitions: [\n\t{def: 1, name: \"x\", price: -5},\n]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pos.cue:")
}

func TestSeed(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	c, err := LoadFile(filepath.Join("testdata", "starter.cue"))
	require.NoError(t, err)

	res, err := Seed(ctx, st, c)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Definitions: 3, Granted: 3}, res)

	defs, err := st.ListDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "Crate Key", defs[1].Name)
	assert.Equal(t, uint64(120), defs[1].BasePrice)

	items, err := st.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, int32(100), items[0].Def)
	assert.Equal(t, uint16(3), items[0].Quantity)
	assert.Equal(t, uint16(1), items[2].Flags)

	// Reseeding updates definitions in place and grants again.
	res, err = Seed(ctx, st, c)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Definitions)

	defs, err = st.ListDefinitions(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 3)

	items, err = st.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 6)
}
