package rankstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

func TestMemoryStore_PutFetch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	items, err := s.Fetch(ctx, WindowDay)
	require.NoError(t, err)
	assert.Equal(t, []string{}, items)

	in := []string{"A", "B"}
	require.NoError(t, s.Put(ctx, WindowDay, in))
	in[0] = "mutated"

	items, err = s.Fetch(ctx, WindowDay)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, items)

	items[1] = "mutated"
	again, err := s.Fetch(ctx, WindowDay)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, again)
}

func TestMemoryStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, WindowHour, []string{"A", "B", "C"}))
	require.NoError(t, s.Put(ctx, WindowHour, []string{"D"}))

	items, err := s.Fetch(ctx, WindowHour)
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, items)
}

func TestMemoryStore_InvalidWindow(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Fetch(context.Background(), "")
	assert.True(t, sferrors.IsContractViolation(err))
	err = s.Put(context.Background(), "a:b", nil)
	assert.True(t, sferrors.IsContractViolation(err))
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hour":["A","B"],"day":["C"]}`), 0o600))

	s, err := LoadSeedFile(path)
	require.NoError(t, err)

	items, err := s.Fetch(context.Background(), WindowHour)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, items)

	items, err = s.Fetch(context.Background(), WindowWeek)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoadSeedFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSeedFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`["not","an","object"]`), 0o600))
	_, err = LoadSeedFile(bad)
	assert.True(t, sferrors.IsMalformedUpstream(err))

	badWindow := filepath.Join(dir, "window.json")
	require.NoError(t, os.WriteFile(badWindow, []byte(`{"meta:x":["A"]}`), 0o600))
	_, err = LoadSeedFile(badWindow)
	assert.True(t, sferrors.IsContractViolation(err))
}
