package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

// seedDefinitions inserts definitions with name "item-<def>" and price def*10.
func seedDefinitions(t *testing.T, s *Store, defs ...int32) {
	t.Helper()
	for _, d := range defs {
		require.NoError(t, s.UpsertDefinition(context.Background(), Definition{
			Def:       d,
			Name:      fmt.Sprintf("item-%d", d),
			Price:     uint64(d) * 10,
			BasePrice: uint64(d) * 10,
		}))
	}
}
